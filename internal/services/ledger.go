package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/SamiulxHasanx07/atm-management-system/internal/security"
	"github.com/shopspring/decimal"
)

// AccountLedger is the single source of truth for accounts and their transactions.
// Lookups return (nil, nil) when nothing matches.
type AccountLedger interface {
	Create(ctx context.Context, req CreateAccountRequest) (*models.Account, error)

	FindByCard(ctx context.Context, cardNumber string) (*models.Account, error)
	FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	FindByPhone(ctx context.Context, phone string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByNID(ctx context.Context, nid string) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)

	Block(ctx context.Context, cardNumber string) error
	Unblock(ctx context.Context, cardNumber string) error

	Deposit(ctx context.Context, cardNumber string, amount decimal.Decimal) (*models.Account, error)
	Withdraw(ctx context.Context, cardNumber string, amount decimal.Decimal) (*models.Account, error)

	UpdatePIN(ctx context.Context, cardNumber, newPIN string) error
	// RecoverPIN stores newPIN and clears the blocked flag in one write.
	RecoverPIN(ctx context.Context, cardNumber, newPIN string) error
	ResetPINByIdentity(ctx context.Context, cardNumber, identityProof string) (string, error)

	RecordTransaction(ctx context.Context, cardNumber string, amount decimal.Decimal, txType models.TransactionType) (*models.Transaction, error)
	TransactionsFor(ctx context.Context, cardNumber string) ([]models.Transaction, error)
}

// ledgerRules holds the amount and identity checks shared by every ledger backend.
type ledgerRules struct {
	cfg   *config.ATMConfig
	codec security.PINCodec
	gen   *numberGenerator
}

func (r ledgerRules) checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Mod(r.cfg.AmountStep).IsZero() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount.String())
	}
	return nil
}

func (r ledgerRules) checkWithdraw(balance, amount decimal.Decimal) error {
	if err := r.checkAmount(amount); err != nil {
		return err
	}
	if balance.Sub(amount).LessThan(r.cfg.MinRetainedBalance) {
		return fmt.Errorf("%w: balance must stay at or above %s", ErrInsufficientFunds, r.cfg.MinRetainedBalance.StringFixed(2))
	}
	return nil
}

func (r ledgerRules) hashPIN(pin string) (string, error) {
	if !security.IsValidPIN(pin) {
		return "", ErrInvalidPIN
	}
	return r.codec.Hash(pin)
}

// freshPIN draws a random PIN that does not verify against previousHash.
func (r ledgerRules) freshPIN(previousHash string) (pin, hash string, err error) {
	pin, err = unique(r.cfg.GenerationRetries, r.gen.PIN, func(candidate string) (bool, error) {
		return previousHash != "" && r.codec.Verify(candidate, previousHash), nil
	})
	if err != nil {
		return "", "", err
	}
	hash, err = r.codec.Hash(pin)
	return pin, hash, err
}

func verifyIdentity(account *models.Account, proof string) error {
	suffix := account.NIDSuffix()
	if len(proof) != len(suffix) || subtle.ConstantTimeCompare([]byte(proof), []byte(suffix)) != 1 {
		return ErrIdentityMismatch
	}
	return nil
}

// LedgerOption customizes a ledger backend.
type LedgerOption func(*ledgerOptions)

type ledgerOptions struct {
	random io.Reader
	now    func() time.Time
}

// WithRandomSource replaces crypto/rand as the source for identifiers and PINs.
func WithRandomSource(r io.Reader) LedgerOption {
	return func(o *ledgerOptions) { o.random = r }
}

// WithClock replaces time.Now for transaction timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(o *ledgerOptions) { o.now = now }
}

func buildLedgerOptions(opts []LedgerOption) ledgerOptions {
	o := ledgerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validTransactionType(t models.TransactionType) bool {
	return t == models.TransactionDeposit || t == models.TransactionWithdraw
}
