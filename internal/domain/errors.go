package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrNoQuote        = errors.New("no quote available")
	ErrQuoteDeviation = errors.New("quote price deviation too large")
	ErrBelowMinimum   = errors.New("amount below minimum trade size")
	ErrTradeLimit     = errors.New("active trade limit reached")
	ErrTradeTooSoon   = errors.New("minimum trade interval not elapsed")
	ErrSigningFailed  = errors.New("signing failed")
	ErrConnectionLost = errors.New("connection unavailable")
	ErrStatusUnknown  = errors.New("transaction status unknown")
)
