package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
)

type StatementPeriod string

const (
	PeriodAll   StatementPeriod = "ALL"
	PeriodDay   StatementPeriod = "DAY"
	PeriodMonth StatementPeriod = "MONTH"
)

// StatementFilter narrows a card's transactions by type and recency.
// An empty Type means every type.
type StatementFilter struct {
	Type   models.TransactionType
	Period StatementPeriod
}

// ParseStatementFilter accepts the query values used by the statement endpoint.
func ParseStatementFilter(txType, period string) (StatementFilter, error) {
	var f StatementFilter

	switch t := models.TransactionType(strings.ToUpper(strings.TrimSpace(txType))); t {
	case "", "ALL":
	case models.TransactionDeposit, models.TransactionWithdraw:
		f.Type = t
	default:
		return f, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, txType)
	}

	switch p := StatementPeriod(strings.ToUpper(strings.TrimSpace(period))); p {
	case "":
		f.Period = PeriodAll
	case PeriodAll, PeriodDay, PeriodMonth:
		f.Period = p
	default:
		return f, fmt.Errorf("%w: unknown period %q", ErrValidation, period)
	}

	return f, nil
}

// FilterTransactions keeps the order of txs.
func FilterTransactions(txs []models.Transaction, f StatementFilter, now time.Time) []models.Transaction {
	var cutoff time.Time
	switch f.Period {
	case PeriodDay:
		cutoff = now.AddDate(0, 0, -1)
	case PeriodMonth:
		cutoff = now.AddDate(0, -1, 0)
	}

	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if !cutoff.IsZero() && tx.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, tx)
	}
	return out
}
