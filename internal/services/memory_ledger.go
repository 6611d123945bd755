package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/SamiulxHasanx07/atm-management-system/internal/security"
	"github.com/shopspring/decimal"
)

// MemoryLedger keeps accounts in process memory. A single mutex serializes every
// mutation, so balance and PIN updates never interleave.
type MemoryLedger struct {
	mu        sync.Mutex
	rules     ledgerRules
	validator *ValidationHelper
	now       func() time.Time

	byCard    map[string]*models.Account
	byAccount map[string]string // account number -> card number
	byPhone   map[string]string
	byEmail   map[string]string
	byNID     map[string]string

	txs      []models.Transaction
	nextTxID int64
}

func NewMemoryLedger(cfg *config.ATMConfig, codec security.PINCodec, opts ...LedgerOption) *MemoryLedger {
	o := buildLedgerOptions(opts)
	return &MemoryLedger{
		rules:     ledgerRules{cfg: cfg, codec: codec, gen: newNumberGenerator(o.random)},
		validator: NewValidationHelper(),
		now:       o.now,
		byCard:    make(map[string]*models.Account),
		byAccount: make(map[string]string),
		byPhone:   make(map[string]string),
		byEmail:   make(map[string]string),
		byNID:     make(map[string]string),
	}
}

func (l *MemoryLedger) Create(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	req, err := validateCreateRequest(l.validator, l.rules.cfg, req)
	if err != nil {
		return nil, err
	}

	pin, pinHash, err := l.rules.freshPIN("")
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byPhone[req.PhoneNumber]; ok {
		return nil, fmt.Errorf("%w: phone number", ErrDuplicateIdentity)
	}
	if _, ok := l.byEmail[req.Email]; ok {
		return nil, fmt.Errorf("%w: email", ErrDuplicateIdentity)
	}
	if _, ok := l.byNID[req.NID]; ok {
		return nil, fmt.Errorf("%w: nid", ErrDuplicateIdentity)
	}

	retries := l.rules.cfg.GenerationRetries
	accountNumber, err := unique(retries, l.rules.gen.AccountNumber, func(c string) (bool, error) {
		_, ok := l.byAccount[c]
		return ok, nil
	})
	if err != nil {
		return nil, fmt.Errorf("account number: %w", err)
	}
	cardNumber, err := unique(retries, l.rules.gen.CardNumber, func(c string) (bool, error) {
		_, ok := l.byCard[c]
		return ok, nil
	})
	if err != nil {
		return nil, fmt.Errorf("card number: %w", err)
	}

	account := &models.Account{
		AccountNumber: accountNumber,
		CardNumber:    cardNumber,
		PINHash:       pinHash,
		Name:          req.Name,
		PhoneNumber:   req.PhoneNumber,
		Email:         req.Email,
		Gender:        req.Gender,
		Profession:    req.Profession,
		Nationality:   req.Nationality,
		NID:           req.NID,
		Address:       req.Address,
		Balance:       req.InitialDeposit,
		Version:       1,
		CreatedAt:     l.now(),
	}
	l.byCard[cardNumber] = account
	l.byAccount[accountNumber] = cardNumber
	l.byPhone[req.PhoneNumber] = cardNumber
	l.byEmail[req.Email] = cardNumber
	l.byNID[req.NID] = cardNumber

	log.Printf("[LEDGER] Account created - account: %s, card: %s", accountNumber, account.MaskedCard())

	created := *account
	created.PIN = pin
	return &created, nil
}

func (l *MemoryLedger) FindByCard(ctx context.Context, cardNumber string) (*models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot(cardNumber), nil
}

func (l *MemoryLedger) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	return l.findVia(l.byAccount, accountNumber), nil
}

func (l *MemoryLedger) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return l.findVia(l.byPhone, DigitsOnly(phone)), nil
}

func (l *MemoryLedger) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return l.findVia(l.byEmail, normalizeEmail(email)), nil
}

func (l *MemoryLedger) FindByNID(ctx context.Context, nid string) (*models.Account, error) {
	return l.findVia(l.byNID, nid), nil
}

func (l *MemoryLedger) List(ctx context.Context) ([]models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Account, 0, len(l.byCard))
	for _, a := range l.byCard {
		out = append(out, *a)
	}
	return out, nil
}

func (l *MemoryLedger) Block(ctx context.Context, cardNumber string) error {
	return l.setBlocked(cardNumber, true)
}

func (l *MemoryLedger) Unblock(ctx context.Context, cardNumber string) error {
	return l.setBlocked(cardNumber, false)
}

func (l *MemoryLedger) Deposit(ctx context.Context, cardNumber string, amount decimal.Decimal) (*models.Account, error) {
	if err := l.rules.checkAmount(amount); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.byCard[cardNumber]
	if !ok {
		return nil, ErrNotFound
	}
	a.Balance = a.Balance.Add(amount)
	a.Version++
	l.appendLocked(cardNumber, amount, models.TransactionDeposit)
	cp := *a
	return &cp, nil
}

func (l *MemoryLedger) Withdraw(ctx context.Context, cardNumber string, amount decimal.Decimal) (*models.Account, error) {
	if err := l.rules.checkAmount(amount); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.byCard[cardNumber]
	if !ok {
		return nil, ErrNotFound
	}
	if err := l.rules.checkWithdraw(a.Balance, amount); err != nil {
		return nil, err
	}
	a.Balance = a.Balance.Sub(amount)
	a.Version++
	l.appendLocked(cardNumber, amount, models.TransactionWithdraw)
	cp := *a
	return &cp, nil
}

func (l *MemoryLedger) UpdatePIN(ctx context.Context, cardNumber, newPIN string) error {
	hash, err := l.rules.hashPIN(newPIN)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.byCard[cardNumber]
	if !ok {
		return ErrNotFound
	}
	a.PINHash = hash
	a.Version++
	return nil
}

func (l *MemoryLedger) RecoverPIN(ctx context.Context, cardNumber, newPIN string) error {
	hash, err := l.rules.hashPIN(newPIN)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.byCard[cardNumber]
	if !ok {
		return ErrNotFound
	}
	a.PINHash = hash
	a.Blocked = false
	a.Version++

	log.Printf("[LEDGER] PIN recovered - card: %s", a.MaskedCard())
	return nil
}

func (l *MemoryLedger) ResetPINByIdentity(ctx context.Context, cardNumber, identityProof string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.byCard[cardNumber]
	if !ok {
		return "", ErrNotFound
	}
	if err := verifyIdentity(a, identityProof); err != nil {
		return "", err
	}

	pin, hash, err := l.rules.freshPIN(a.PINHash)
	if err != nil {
		return "", err
	}
	a.PINHash = hash
	a.Blocked = false
	a.Version++

	log.Printf("[LEDGER] PIN reset by identity - card: %s", a.MaskedCard())
	return pin, nil
}

func (l *MemoryLedger) RecordTransaction(ctx context.Context, cardNumber string, amount decimal.Decimal, txType models.TransactionType) (*models.Transaction, error) {
	if !validTransactionType(txType) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, txType)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byCard[cardNumber]; !ok {
		return nil, ErrNotFound
	}
	tx := l.appendLocked(cardNumber, amount, txType)
	return &tx, nil
}

func (l *MemoryLedger) TransactionsFor(ctx context.Context, cardNumber string) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Transaction
	for _, tx := range l.txs {
		if tx.CardNumber == cardNumber {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (l *MemoryLedger) appendLocked(cardNumber string, amount decimal.Decimal, txType models.TransactionType) models.Transaction {
	l.nextTxID++
	tx := models.Transaction{
		ID:         l.nextTxID,
		CardNumber: cardNumber,
		Amount:     amount,
		Type:       txType,
		Timestamp:  l.now(),
	}
	l.txs = append(l.txs, tx)
	return tx
}

func (l *MemoryLedger) setBlocked(cardNumber string, blocked bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.byCard[cardNumber]
	if !ok {
		return ErrNotFound
	}
	a.Blocked = blocked
	a.Version++
	return nil
}

func (l *MemoryLedger) findVia(index map[string]string, key string) *models.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	card, ok := index[key]
	if !ok {
		return nil
	}
	return l.snapshot(card)
}

// snapshot must be called with mu held.
func (l *MemoryLedger) snapshot(cardNumber string) *models.Account {
	a, ok := l.byCard[cardNumber]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}
