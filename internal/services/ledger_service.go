package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/SamiulxHasanx07/atm-management-system/internal/security"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const accountColumns = `account_number, card_number, pin_hash, name, phone_number, email, gender, profession, nationality, nid, address, balance, blocked, version, created_at`

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresLedger stores accounts and transactions in PostgreSQL. Balance and PIN
// changes lock the account row for the duration of their transaction.
type PostgresLedger struct {
	db        *sql.DB
	rules     ledgerRules
	validator *ValidationHelper
	now       func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func NewPostgresLedger(db *sql.DB, cfg *config.ATMConfig, codec security.PINCodec, opts ...LedgerOption) *PostgresLedger {
	o := buildLedgerOptions(opts)
	return &PostgresLedger{
		db:        db,
		rules:     ledgerRules{cfg: cfg, codec: codec, gen: newNumberGenerator(o.random)},
		validator: NewValidationHelper(),
		now:       o.now,
	}
}

func (s *PostgresLedger) Create(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	req, err := validateCreateRequest(s.validator, s.rules.cfg, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkIdentityFree(ctx, req); err != nil {
		return nil, err
	}

	pin, pinHash, err := s.rules.freshPIN("")
	if err != nil {
		return nil, err
	}

	// UNIQUE constraints reserve the identifiers; a collision regenerates them.
	for attempt := 0; attempt < s.rules.cfg.GenerationRetries; attempt++ {
		accountNumber, err := s.rules.gen.AccountNumber()
		if err != nil {
			return nil, err
		}
		cardNumber, err := s.rules.gen.CardNumber()
		if err != nil {
			return nil, err
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
			CreatedAt:     s.now(),
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO accounts (account_number, card_number, pin_hash, name, phone_number, email, gender, profession, nationality, nid, address, balance, blocked, version, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, 1, $13)`,
			account.AccountNumber, account.CardNumber, account.PINHash, account.Name, account.PhoneNumber,
			account.Email, account.Gender, account.Profession, account.Nationality, account.NID,
			account.Address, account.Balance, account.CreatedAt)
		if err == nil {
			log.Printf("[LEDGER] Account created - account: %s, card: %s", accountNumber, account.MaskedCard())
			account.PIN = pin
			return account, nil
		}

		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
			log.Printf("[LEDGER] Account insert failed: %v", err)
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		switch pqErr.Constraint {
		case "accounts_pkey", "accounts_card_number_key":
			log.Printf("[LEDGER] Identifier collision on %s, regenerating (attempt %d)", pqErr.Constraint, attempt+1)
			continue
		default:
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, pqErr.Constraint)
		}
	}

	return nil, ErrGenerationExhausted
}

func (s *PostgresLedger) checkIdentityFree(ctx context.Context, req CreateAccountRequest) error {
	checks := []struct {
		field string
		find  func(context.Context, string) (*models.Account, error)
		key   string
	}{
		{"phone number", s.FindByPhone, req.PhoneNumber},
		{"email", s.FindByEmail, req.Email},
		{"nid", s.FindByNID, req.NID},
	}
	for _, c := range checks {
		existing, err := c.find(ctx, c.key)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentity, c.field)
		}
	}
	return nil
}

func (s *PostgresLedger) FindByCard(ctx context.Context, cardNumber string) (*models.Account, error) {
	return s.findOne(ctx, "card_number", cardNumber)
}

func (s *PostgresLedger) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	return s.findOne(ctx, "account_number", accountNumber)
}

func (s *PostgresLedger) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return s.findOne(ctx, "phone_number", DigitsOnly(phone))
}

func (s *PostgresLedger) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, "email", normalizeEmail(email))
}

func (s *PostgresLedger) FindByNID(ctx context.Context, nid string) (*models.Account, error) {
	return s.findOne(ctx, "nid", nid)
}

// findOne looks up by one of the fixed identity columns above.
func (s *PostgresLedger) findOne(ctx context.Context, column, value string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, value)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account by %s: %w", column, err)
	}
	return account, nil
}

func (s *PostgresLedger) List(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (s *PostgresLedger) Block(ctx context.Context, cardNumber string) error {
	return s.execOnCard(ctx, `UPDATE accounts SET blocked = true, version = version + 1 WHERE card_number = $1`, cardNumber)
}

func (s *PostgresLedger) Unblock(ctx context.Context, cardNumber string) error {
	return s.execOnCard(ctx, `UPDATE accounts SET blocked = false, version = version + 1 WHERE card_number = $1`, cardNumber)
}

func (s *PostgresLedger) UpdatePIN(ctx context.Context, cardNumber, newPIN string) error {
	hash, err := s.rules.hashPIN(newPIN)
	if err != nil {
		return err
	}
	return s.execOnCard(ctx, `UPDATE accounts SET pin_hash = $2, version = version + 1 WHERE card_number = $1`, cardNumber, hash)
}

func (s *PostgresLedger) RecoverPIN(ctx context.Context, cardNumber, newPIN string) error {
	hash, err := s.rules.hashPIN(newPIN)
	if err != nil {
		return err
	}
	if err := s.execOnCard(ctx, `UPDATE accounts SET pin_hash = $2, blocked = false, version = version + 1 WHERE card_number = $1`, cardNumber, hash); err != nil {
		return err
	}
	log.Printf("[LEDGER] PIN recovered - card: %s", models.MaskCardNumber(cardNumber))
	return nil
}

func (s *PostgresLedger) execOnCard(ctx context.Context, query, cardNumber string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, append([]any{cardNumber}, args...)...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresLedger) Deposit(ctx context.Context, cardNumber string, amount decimal.Decimal) (*models.Account, error) {
	if err := s.rules.checkAmount(amount); err != nil {
		return nil, err
	}
	return s.applyBalance(ctx, cardNumber, amount, models.TransactionDeposit)
}

func (s *PostgresLedger) Withdraw(ctx context.Context, cardNumber string, amount decimal.Decimal) (*models.Account, error) {
	if err := s.rules.checkAmount(amount); err != nil {
		return nil, err
	}
	return s.applyBalance(ctx, cardNumber, amount, models.TransactionWithdraw)
}

func (s *PostgresLedger) applyBalance(ctx context.Context, cardNumber string, amount decimal.Decimal, txType models.TransactionType) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(ctx, tx, cardNumber)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(amount)
	if txType == models.TransactionWithdraw {
		if err := s.rules.checkWithdraw(account.Balance, amount); err != nil {
			return nil, err
		}
		newBalance = account.Balance.Sub(amount)
	}

	if err := s.updateAccountBalance(ctx, tx, cardNumber, newBalance, account.Version); err != nil {
		return nil, err
	}
	if _, err := s.insertTransaction(ctx, tx, cardNumber, amount, txType); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	account.Balance = newBalance
	account.Version++
	log.Printf("[LEDGER] %s of %s on card %s", txType, amount.StringFixed(2), account.MaskedCard())
	return account, nil
}

func (s *PostgresLedger) ResetPINByIdentity(ctx context.Context, cardNumber, identityProof string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(ctx, tx, cardNumber)
	if err != nil {
		return "", err
	}
	if err := verifyIdentity(account, identityProof); err != nil {
		return "", err
	}

	pin, hash, err := s.rules.freshPIN(account.PINHash)
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET pin_hash = $1, blocked = false, version = version + 1
		WHERE card_number = $2`, hash, cardNumber); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Printf("[LEDGER] PIN reset by identity - card: %s", account.MaskedCard())
	return pin, nil
}

func (s *PostgresLedger) RecordTransaction(ctx context.Context, cardNumber string, amount decimal.Decimal, txType models.TransactionType) (*models.Transaction, error) {
	if !validTransactionType(txType) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, txType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := s.insertTransaction(ctx, tx, cardNumber, amount, txType)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, tx.Commit()
}

func (s *PostgresLedger) TransactionsFor(ctx context.Context, cardNumber string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_number, amount, type, created_at
		FROM transactions
		WHERE card_number = $1
		ORDER BY id DESC`, cardNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.CardNumber, &t.Amount, &t.Type, &t.Timestamp); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *PostgresLedger) lockAccount(ctx context.Context, tx *sql.Tx, cardNumber string) (*models.Account, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE card_number = $1 FOR UPDATE`, cardNumber)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return account, err
}

func (s *PostgresLedger) updateAccountBalance(ctx context.Context, tx *sql.Tx, cardNumber string, newBalance decimal.Decimal, version int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1
		WHERE card_number = $2 AND version = $3`,
		newBalance, cardNumber, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for card %s", models.MaskCardNumber(cardNumber))
	}

	return nil
}

func (s *PostgresLedger) insertTransaction(ctx context.Context, tx *sql.Tx, cardNumber string, amount decimal.Decimal, txType models.TransactionType) (*models.Transaction, error) {
	entry := &models.Transaction{
		CardNumber: cardNumber,
		Amount:     amount,
		Type:       txType,
		Timestamp:  s.now(),
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO transactions (card_number, amount, type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		cardNumber, amount, string(txType), entry.Timestamp).Scan(&entry.ID)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.AccountNumber, &a.CardNumber, &a.PINHash, &a.Name, &a.PhoneNumber, &a.Email,
		&a.Gender, &a.Profession, &a.Nationality, &a.NID, &a.Address, &a.Balance, &a.Blocked,
		&a.Version, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
