// Package wallet loads the signing keypair and signs venue transactions.
// The key is a single required dependency: exactly one source (inline key or
// keypair file) must be configured, and absence is a fatal startup error.
package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mr-tron/base58"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
)

// Signer holds an ed25519 keypair and signs serialized transactions in place.
type Signer struct {
	priv    ed25519.PrivateKey
	address string
}

var _ domain.Signer = (*Signer)(nil)

// Load builds a Signer from the wallet configuration. Exactly one of
// PrivateKey and KeypairPath must be set.
func Load(cfg config.WalletConfig) (*Signer, error) {
	switch {
	case cfg.PrivateKey != "" && cfg.KeypairPath != "":
		return nil, fmt.Errorf("wallet: private_key and keypair_path are mutually exclusive")
	case cfg.PrivateKey != "":
		return fromEncoded(cfg.PrivateKey)
	case cfg.KeypairPath != "":
		return fromKeypairFile(cfg.KeypairPath)
	default:
		return nil, fmt.Errorf("wallet: no key material configured")
	}
}

// fromEncoded accepts a 64-byte ed25519 private key encoded as base58, hex,
// or base64.
func fromEncoded(encoded string) (*Signer, error) {
	decoders := []func(string) ([]byte, error){
		base58.Decode,
		hex.DecodeString,
		base64.StdEncoding.DecodeString,
	}
	for _, decode := range decoders {
		raw, err := decode(encoded)
		if err == nil && len(raw) == ed25519.PrivateKeySize {
			return fromRaw(raw)
		}
	}
	return nil, fmt.Errorf("wallet: private key is not a 64-byte base58, hex, or base64 string")
}

// fromKeypairFile reads a Solana CLI keypair file: a JSON array of 64 bytes.
func fromKeypairFile(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read keypair file: %w", err)
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return nil, fmt.Errorf("wallet: parse keypair file %s: %w", path, err)
	}
	if len(nums) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: keypair file %s holds %d bytes, want %d", path, len(nums), ed25519.PrivateKeySize)
	}
	raw := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("wallet: keypair file %s holds an out-of-range byte", path)
		}
		raw[i] = byte(n)
	}
	return fromRaw(raw)
}

func fromRaw(raw []byte) (*Signer, error) {
	priv := ed25519.PrivateKey(raw)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("wallet: invalid ed25519 key material")
	}
	return &Signer{
		priv:    priv,
		address: base58.Encode(pub),
	}, nil
}

// Address returns the base58-encoded public key.
func (s *Signer) Address() string {
	return s.address
}

// Sign takes a serialized unsigned transaction, signs its message, and writes
// the signature into the first signature slot. The layout is a shortvec count
// of 64-byte signatures followed by the message.
func (s *Signer) Sign(payload []byte) ([]byte, error) {
	count, offset, err := decodeShortvec(payload)
	if err != nil {
		return nil, fmt.Errorf("wallet: malformed transaction: %w", err)
	}
	msgStart := offset + count*ed25519.SignatureSize
	if count < 1 || msgStart >= len(payload) {
		return nil, fmt.Errorf("wallet: transaction has no signature slot")
	}

	signed := make([]byte, len(payload))
	copy(signed, payload)
	sig := ed25519.Sign(s.priv, payload[msgStart:])
	copy(signed[offset:], sig)
	return signed, nil
}

// decodeShortvec reads a Solana compact-u16 length prefix.
func decodeShortvec(data []byte) (value, size int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("truncated length prefix")
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("length prefix too long")
}
