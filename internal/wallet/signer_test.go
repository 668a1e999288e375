package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsweep/sweepbot/internal/config"
)

func testKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestLoad_RequiresExactlyOneSource(t *testing.T) {
	_, err := Load(config.WalletConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key material")

	_, err = Load(config.WalletConfig{PrivateKey: "abc", KeypairPath: "/tmp/k.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestLoad_DecodesInlineKeyInAnySupportedEncoding(t *testing.T) {
	pub, priv := testKey(t)
	want := base58.Encode(pub)

	for name, encoded := range map[string]string{
		"base58": base58.Encode(priv),
		"hex":    hex.EncodeToString(priv),
	} {
		signer, err := Load(config.WalletConfig{PrivateKey: encoded})
		require.NoError(t, err, name)
		assert.Equal(t, want, signer.Address(), name)
	}
}

func TestLoad_RejectsShortKey(t *testing.T) {
	_, err := Load(config.WalletConfig{PrivateKey: hex.EncodeToString([]byte("too short"))})
	require.Error(t, err)
}

func TestLoad_ReadsKeypairFile(t *testing.T) {
	pub, priv := testKey(t)

	nums := make([]int, len(priv))
	for i, b := range priv {
		nums[i] = int(b)
	}
	data, err := json.Marshal(nums)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keypair.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	signer, err := Load(config.WalletConfig{KeypairPath: path})
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(pub), signer.Address())
}

func TestSign_FillsFirstSignatureSlot(t *testing.T) {
	pub, priv := testKey(t)
	signer, err := Load(config.WalletConfig{PrivateKey: base58.Encode(priv)})
	require.NoError(t, err)

	message := []byte("compiled transaction message")
	payload := make([]byte, 0, 1+ed25519.SignatureSize+len(message))
	payload = append(payload, 0x01)
	payload = append(payload, make([]byte, ed25519.SignatureSize)...)
	payload = append(payload, message...)

	signed, err := signer.Sign(payload)
	require.NoError(t, err)
	require.Len(t, signed, len(payload))

	sig := signed[1 : 1+ed25519.SignatureSize]
	assert.True(t, ed25519.Verify(pub, message, sig))
	assert.Equal(t, message, signed[1+ed25519.SignatureSize:])
	// Input stays untouched.
	assert.Equal(t, make([]byte, ed25519.SignatureSize), payload[1:1+ed25519.SignatureSize])
}

func TestSign_RejectsPayloadWithoutSignatureSlot(t *testing.T) {
	_, priv := testKey(t)
	signer, err := Load(config.WalletConfig{PrivateKey: base58.Encode(priv)})
	require.NoError(t, err)

	_, err = signer.Sign([]byte{0x00})
	require.Error(t, err)
}

func TestDecodeShortvec(t *testing.T) {
	value, size, err := decodeShortvec([]byte{0x03})
	require.NoError(t, err)
	assert.Equal(t, 3, value)
	assert.Equal(t, 1, size)

	value, size, err = decodeShortvec([]byte{0x80, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 128, value)
	assert.Equal(t, 2, size)

	_, _, err = decodeShortvec(nil)
	require.Error(t, err)
}
