package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// schema is idempotent; constraint names are relied on by the ledger to tell
// identifier collisions from duplicate identities.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		account_number VARCHAR(12) NOT NULL,
		card_number    VARCHAR(16) NOT NULL,
		pin_hash       VARCHAR(128) NOT NULL,
		name           VARCHAR(100) NOT NULL,
		phone_number   VARCHAR(15) NOT NULL,
		email          VARCHAR(100) NOT NULL,
		gender         VARCHAR(20) NOT NULL,
		profession     VARCHAR(100) NOT NULL,
		nationality    VARCHAR(50) NOT NULL,
		nid            VARCHAR(30) NOT NULL,
		address        TEXT NOT NULL,
		balance        DECIMAL(15,2) NOT NULL DEFAULT 0,
		blocked        BOOLEAN NOT NULL DEFAULT false,
		version        INTEGER NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT accounts_pkey PRIMARY KEY (account_number),
		CONSTRAINT accounts_card_number_key UNIQUE (card_number),
		CONSTRAINT accounts_phone_number_key UNIQUE (phone_number),
		CONSTRAINT accounts_email_key UNIQUE (email),
		CONSTRAINT accounts_nid_key UNIQUE (nid),
		CONSTRAINT accounts_balance_check CHECK (balance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id          BIGSERIAL PRIMARY KEY,
		card_number VARCHAR(16) NOT NULL REFERENCES accounts (card_number),
		amount      DECIMAL(15,2) NOT NULL,
		type        VARCHAR(10) NOT NULL CHECK (type IN ('DEPOSIT', 'WITHDRAW')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_card_number ON transactions (card_number, id DESC)`,
}

// Migrate creates the ledger tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	log.Println("Database schema is up to date")
	return nil
}
