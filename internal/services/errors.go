package services

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("account not found")
	ErrDuplicateIdentity   = errors.New("an account with this identity already exists")
	ErrInvalidAmount       = errors.New("amount must be a positive multiple of 500")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidPIN          = errors.New("PIN must be exactly 4 digits")
	ErrIdentityMismatch    = errors.New("identity verification failed")
	ErrGenerationExhausted = errors.New("unable to generate a unique identifier")
	ErrSecurityLockout     = errors.New("card blocked after too many failed PIN attempts")
	ErrSessionCorrupt      = errors.New("decode session")
)
