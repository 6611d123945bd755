package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the identity and ledger record behind a card.
type Account struct {
	AccountNumber string          `json:"accountNumber" db:"account_number"` // 12 digits
	CardNumber    string          `json:"cardNumber" db:"card_number"`       // 16 digits
	PINHash       string          `json:"-" db:"pin_hash"`
	Name          string          `json:"name" db:"name"`
	PhoneNumber   string          `json:"phoneNumber" db:"phone_number"`
	Email         string          `json:"email" db:"email"`
	Gender        string          `json:"gender" db:"gender"`
	Profession    string          `json:"profession" db:"profession"`
	Nationality   string          `json:"nationality" db:"nationality"`
	NID           string          `json:"nid" db:"nid"`
	Address       string          `json:"address" db:"address"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Blocked       bool            `json:"blocked" db:"blocked"`
	Version       int             `json:"-" db:"version"` // for optimistic locking
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`

	// PIN is only set on the account returned by account creation.
	PIN string `json:"pin,omitempty" db:"-"`
}

// NIDSuffix returns the last four characters of the NID, used as identity proof.
func (a *Account) NIDSuffix() string {
	if len(a.NID) <= 4 {
		return a.NID
	}
	return a.NID[len(a.NID)-4:]
}

// MaskedCard hides all but the last four digits of the card number.
func (a *Account) MaskedCard() string {
	return MaskCardNumber(a.CardNumber)
}

func MaskCardNumber(card string) string {
	if len(card) <= 4 {
		return card
	}
	masked := make([]byte, len(card))
	for i := range masked {
		if i < len(card)-4 {
			masked[i] = '*'
		} else {
			masked[i] = card[i]
		}
	}
	return string(masked)
}
