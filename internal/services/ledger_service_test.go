package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCard = "4000123412341234"

var accountColumnNames = []string{
	"account_number", "card_number", "pin_hash", "name", "phone_number", "email", "gender",
	"profession", "nationality", "nid", "address", "balance", "blocked", "version", "created_at",
}

func accountRows(balance, pinHash string, blocked bool, version int) *sqlmock.Rows {
	return sqlmock.NewRows(accountColumnNames).AddRow(
		"100200300400", testCard, pinHash, "Karim Ahmed", "01710000001", "karim1@example.com", "Male",
		"Engineer", "Bangladeshi", "199012345678", "Dhaka", balance, blocked, version, time.Now(),
	)
}

func newMockLedger(t *testing.T) (*PostgresLedger, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	ledger := NewPostgresLedger(db, config.DefaultATMConfig(), newTestCodec(t))
	return ledger, mock, db
}

const lockQuery = `SELECT (.+) FROM accounts WHERE card_number = \$1 FOR UPDATE`

func TestPostgresLedger_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("successful deposit", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(testCard).
			WillReturnRows(accountRows("1000.00", "hash", false, 3))
		mock.ExpectExec(`UPDATE accounts SET balance = \$1, version = version \+ 1 WHERE card_number = \$2 AND version = \$3`).
			WithArgs("1500", testCard, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(testCard, "500", "DEPOSIT", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
		mock.ExpectCommit()

		account, err := ledger.Deposit(ctx, testCard, decimal.NewFromInt(500))
		require.NoError(t, err)
		assert.Equal(t, "1500.00", account.Balance.StringFixed(2))
		assert.Equal(t, 4, account.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid amount never touches the database", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		_, err := ledger.Deposit(ctx, testCard, decimal.NewFromInt(700))
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown card", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(testCard).
			WillReturnRows(sqlmock.NewRows(accountColumnNames))
		mock.ExpectRollback()

		_, err := ledger.Deposit(ctx, testCard, decimal.NewFromInt(500))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("optimistic lock failure rolls back", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(testCard).
			WillReturnRows(accountRows("1000.00", "hash", false, 3))
		mock.ExpectExec(`UPDATE accounts SET balance`).
			WithArgs("1500", testCard, 3).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := ledger.Deposit(ctx, testCard, decimal.NewFromInt(500))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "optimistic lock failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresLedger_Withdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("successful withdrawal", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(testCard).
			WillReturnRows(accountRows("1000.00", "hash", false, 1))
		mock.ExpectExec(`UPDATE accounts SET balance`).
			WithArgs("500", testCard, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(testCard, "500", "WITHDRAW", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		account, err := ledger.Withdraw(ctx, testCard, decimal.NewFromInt(500))
		require.NoError(t, err)
		assert.Equal(t, "500.00", account.Balance.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(testCard).
			WillReturnRows(accountRows("500.00", "hash", false, 1))
		mock.ExpectRollback()

		_, err := ledger.Withdraw(ctx, testCard, decimal.NewFromInt(500))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresLedger_Create(t *testing.T) {
	ctx := context.Background()
	req := sampleRequest("1")

	expectIdentityFree := func(mock sqlmock.Sqlmock) {
		for _, column := range []string{"phone_number", "email", "nid"} {
			mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE ` + column + ` = \$1`).
				WillReturnRows(sqlmock.NewRows(accountColumnNames))
		}
	}

	t.Run("identifier collision is retried", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		expectIdentityFree(mock)
		mock.ExpectExec(`INSERT INTO accounts`).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "accounts_card_number_key"})
		mock.ExpectExec(`INSERT INTO accounts`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		account, err := ledger.Create(ctx, req)
		require.NoError(t, err)
		assert.Len(t, account.CardNumber, 16)
		assert.Regexp(t, `^\d{4}$`, account.PIN)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing phone number", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE phone_number = \$1`).
			WithArgs(req.PhoneNumber).
			WillReturnRows(accountRows("1000.00", "hash", false, 1))

		_, err := ledger.Create(ctx, req)
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent duplicate email caught by constraint", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		expectIdentityFree(mock)
		mock.ExpectExec(`INSERT INTO accounts`).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "accounts_email_key"})

		_, err := ledger.Create(ctx, req)
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validation runs before any query", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		bad := req
		bad.Email = "nobody"
		_, err := ledger.Create(ctx, bad)
		assert.ErrorIs(t, err, ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresLedger_BlockAndPIN(t *testing.T) {
	ctx := context.Background()

	t.Run("block", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectExec(`UPDATE accounts SET blocked = true`).
			WithArgs(testCard).
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, ledger.Block(ctx, testCard))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unblock unknown card", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectExec(`UPDATE accounts SET blocked = false`).
			WithArgs(testCard).
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, ledger.Unblock(ctx, testCard), ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update PIN stores a hash", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		hash, err := ledger.rules.codec.Hash("2468")
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE accounts SET pin_hash = \$2`).
			WithArgs(testCard, hash).
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, ledger.UpdatePIN(ctx, testCard, "2468"))
		assert.ErrorIs(t, ledger.UpdatePIN(ctx, testCard, "24"), ErrInvalidPIN)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recover PIN sets hash and unblocks together", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		hash, err := ledger.rules.codec.Hash("2468")
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE accounts SET pin_hash = \$2, blocked = false`).
			WithArgs(testCard, hash).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE accounts SET pin_hash = \$2, blocked = false`).
			WithArgs(testCard, hash).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, ledger.RecoverPIN(ctx, testCard, "2468"))
		assert.ErrorIs(t, ledger.RecoverPIN(ctx, testCard, "2468"), ErrNotFound)
		assert.ErrorIs(t, ledger.RecoverPIN(ctx, testCard, "24"), ErrInvalidPIN)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reset by identity unblocks with a new PIN", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		oldHash, err := ledger.rules.codec.Hash("1111")
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(testCard).
			WillReturnRows(accountRows("1000.00", oldHash, true, 2))
		mock.ExpectExec(`UPDATE accounts\s+SET pin_hash = \$1, blocked = false`).
			WithArgs(sqlmock.AnyArg(), testCard).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		pin, err := ledger.ResetPINByIdentity(ctx, testCard, "5678")
		require.NoError(t, err)
		assert.NotEqual(t, "1111", pin)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reset with wrong identity", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(testCard).
			WillReturnRows(accountRows("1000.00", "hash", true, 2))
		mock.ExpectRollback()

		_, err := ledger.ResetPINByIdentity(ctx, testCard, "1234")
		assert.ErrorIs(t, err, ErrIdentityMismatch)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresLedger_Transactions(t *testing.T) {
	ctx := context.Background()

	t.Run("history", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(`SELECT id, card_number, amount, type, created_at\s+FROM transactions`).
			WithArgs(testCard).
			WillReturnRows(sqlmock.NewRows([]string{"id", "card_number", "amount", "type", "created_at"}).
				AddRow(2, testCard, "500.00", "WITHDRAW", now).
				AddRow(1, testCard, "1000.00", "DEPOSIT", now.Add(-time.Hour)))

		txs, err := ledger.TransactionsFor(ctx, testCard)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, models.TransactionWithdraw, txs[0].Type)
		assert.Equal(t, "1000.00", txs[1].Amount.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("record for unknown card", func(t *testing.T) {
		ledger, mock, db := newMockLedger(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO transactions`).
			WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
		mock.ExpectRollback()

		_, err := ledger.RecordTransaction(ctx, testCard, decimal.NewFromInt(500), models.TransactionDeposit)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
