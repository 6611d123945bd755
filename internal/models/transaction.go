package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionWithdraw TransactionType = "WITHDRAW"
)

// Transaction is an immutable ledger entry written once per successful deposit or withdrawal.
type Transaction struct {
	ID         int64           `json:"id" db:"id"`
	CardNumber string          `json:"cardNumber" db:"card_number"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Type       TransactionType `json:"type" db:"type"`
	Timestamp  time.Time       `json:"timestamp" db:"created_at"`
}
