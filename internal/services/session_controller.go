package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/SamiulxHasanx07/atm-management-system/internal/seclog"
	"github.com/SamiulxHasanx07/atm-management-system/internal/security"
	"github.com/shopspring/decimal"
)

const (
	maxBufferLength = 19
	minCardLength   = 10

	msgSelectOption   = "Please select an option."
	msgInvalidOption  = "Invalid option."
	msgInvalidCard    = "Invalid Card Number. Try again."
	msgCardNotFound   = "Card not found. Please try again."
	msgCardBlocked    = "This card is BLOCKED. Please contact bank."
	msgInvalidPIN     = "Invalid PIN format. Enter 4 digits."
	msgIdentityFailed = "Identity verification failed. Try again."
	msgPINMismatch    = "PINs do not match. Enter new PIN:"
	msgCancelled      = "Cancelled."
	msgSystemNoCard   = "System Error: Card not found."
	msgSystemError    = "System error. Please try again."
)

// identityFlow is the "enter card, then prove identity" sub-flow shared by PIN
// recovery and card disabling.
type identityFlow struct {
	name      string
	proofMode Mode
	onProven  func(c *SessionController, ctx context.Context, s Session, account *models.Account) (Session, Output)
}

// pinFlow is the "enter new PIN, then confirm it" sub-flow shared by PIN recovery
// and in-session PIN change. save is the single ledger write for the confirmed PIN.
type pinFlow struct {
	newMode     Mode
	confirmMode Mode
	save        func(c *SessionController, ctx context.Context, cardNumber, pin string) error
	onConfirmed func(c *SessionController, ctx context.Context, s Session) (Session, Output)
}

var (
	recoverIdentity = identityFlow{
		name:      "forgot-pin",
		proofMode: ModeForgotPinEnterIdentity,
		onProven: func(c *SessionController, ctx context.Context, s Session, _ *models.Account) (Session, Output) {
			s.Mode = ModeForgotPinNewPin
			return s, render(s, "Identity verified. Enter new 4-digit PIN:")
		},
	}
	disableIdentity = identityFlow{
		name:      "disable-card",
		proofMode: ModeDisableCardEnterIdentity,
		onProven: func(c *SessionController, ctx context.Context, s Session, account *models.Account) (Session, Output) {
			if err := c.ledger.Block(ctx, account.CardNumber); err != nil {
				return c.fail(s, err)
			}
			c.events.LogSession(s.ID, account.MaskedCard(), seclog.EventCardDisabled)
			return c.reset("Card disabled successfully.")
		},
	}

	recoverPIN = pinFlow{
		newMode:     ModeForgotPinNewPin,
		confirmMode: ModeForgotPinConfirmPin,
		save: func(c *SessionController, ctx context.Context, cardNumber, pin string) error {
			return c.ledger.RecoverPIN(ctx, cardNumber, pin)
		},
		onConfirmed: func(c *SessionController, ctx context.Context, s Session) (Session, Output) {
			c.events.LogSession(s.ID, models.MaskCardNumber(s.ActiveCardNumber), seclog.EventPINRecovered)
			return c.reset("PIN reset successful. Please insert your card.")
		},
	}
	changePIN = pinFlow{
		newMode:     ModeChangePinNew,
		confirmMode: ModeChangePinConfirm,
		save: func(c *SessionController, ctx context.Context, cardNumber, pin string) error {
			return c.ledger.UpdatePIN(ctx, cardNumber, pin)
		},
		onConfirmed: func(c *SessionController, ctx context.Context, s Session) (Session, Output) {
			c.events.LogSession(s.ID, models.MaskCardNumber(s.ActiveCardNumber), seclog.EventPINChanged)
			s.Mode = ModeLoggedIn
			return s, render(s, "PIN changed successfully.")
		},
	}
)

// SessionController interprets terminal inputs. It holds no per-session state;
// every call maps the current session and one input to the next session.
type SessionController struct {
	ledger AccountLedger
	codec  security.PINCodec
	cfg    *config.ATMConfig
	events *seclog.Logger
}

func NewSessionController(ledger AccountLedger, codec security.PINCodec, cfg *config.ATMConfig) *SessionController {
	return &SessionController{
		ledger: ledger,
		codec:  codec,
		cfg:    cfg,
		events: seclog.NewLogger(),
	}
}

// Render returns the screen for s without applying any input.
func (c *SessionController) Render(s Session) Output {
	return render(s, "")
}

// HandleInput applies ev to s and returns the next session and what to display.
func (c *SessionController) HandleInput(ctx context.Context, s Session, ev InputEvent) (Session, Output) {
	if s.Mode == "" {
		s = NewSession()
	}
	if _, ok := modeOptions[s.Mode]; !ok {
		log.Printf("[SESSION] %s - unknown mode %q, resetting", s.ID, s.Mode)
		return c.reset(msgSystemError)
	}

	switch ev.Kind {
	case InputDigit:
		return c.handleDigit(s, ev.Digit)
	case InputClear:
		s.Buffer = ""
		return s, render(s, "")
	case InputConfirm:
		input := s.Buffer
		s.Buffer = ""
		return c.handleConfirm(ctx, s, input)
	case InputOption:
		return c.handleOption(ctx, s, ev.Option)
	}
	return s, render(s, "Unsupported input.")
}

func (c *SessionController) handleDigit(s Session, d rune) (Session, Output) {
	if s.Mode == ModeWelcome || s.Mode == ModeLoggedIn {
		return s, render(s, msgSelectOption)
	}
	if d < '0' || d > '9' || len(s.Buffer) >= maxBufferLength {
		return s, render(s, "")
	}
	s.Buffer += string(d)
	return s, render(s, "")
}

func (c *SessionController) handleOption(ctx context.Context, s Session, code OptionCode) (Session, Output) {
	if _, ok := modeOptions[s.Mode][code]; !ok {
		return s, render(s, msgInvalidOption)
	}

	switch s.Mode {
	case ModeWelcome:
		switch code {
		case OptionL2:
			return enter(s, ModeCardInput)
		case OptionR1:
			return enter(s, ModeForgotPinEnterCard)
		case OptionL3:
			return enter(s, ModeDisableCardEnterCard)
		}
	case ModeLoggedIn:
		switch code {
		case OptionL1:
			return enter(s, ModeWithdrawInput)
		case OptionR1:
			return enter(s, ModeDepositInput)
		case OptionL2:
			return c.showBalance(ctx, s)
		case OptionL3:
			return enter(s, ModeChangePinNew)
		case OptionR2:
			log.Printf("[SESSION] %s - card ejected", s.ID)
			return c.reset("Card Ejected. Thank you.")
		case OptionR3:
			return c.showMiniStatement(ctx, s)
		}
	default:
		if code == OptionR4 {
			return c.cancel(s)
		}
	}
	return s, render(s, msgInvalidOption)
}

func (c *SessionController) handleConfirm(ctx context.Context, s Session, input string) (Session, Output) {
	switch s.Mode {
	case ModeCardInput:
		return c.confirmCard(ctx, s, input)
	case ModePinInput:
		return c.confirmPIN(ctx, s, input)
	case ModeDepositInput, ModeWithdrawInput:
		return c.confirmAmount(ctx, s, input)
	case ModeForgotPinEnterCard:
		return c.confirmIdentityCard(ctx, s, input, recoverIdentity)
	case ModeDisableCardEnterCard:
		return c.confirmIdentityCard(ctx, s, input, disableIdentity)
	case ModeForgotPinEnterIdentity:
		return c.confirmIdentityProof(ctx, s, input, recoverIdentity)
	case ModeDisableCardEnterIdentity:
		return c.confirmIdentityProof(ctx, s, input, disableIdentity)
	case ModeForgotPinNewPin:
		return c.confirmNewPIN(s, input, recoverPIN)
	case ModeChangePinNew:
		return c.confirmNewPIN(s, input, changePIN)
	case ModeForgotPinConfirmPin:
		return c.confirmRepeatPIN(ctx, s, input, recoverPIN)
	case ModeChangePinConfirm:
		return c.confirmRepeatPIN(ctx, s, input, changePIN)
	}
	return s, render(s, msgSelectOption)
}

func (c *SessionController) confirmCard(ctx context.Context, s Session, input string) (Session, Output) {
	if len(input) < minCardLength {
		return s, render(s, msgInvalidCard)
	}

	account, err := c.ledger.FindByCard(ctx, input)
	if err != nil {
		return c.fail(s, err)
	}
	if account == nil {
		return s, render(s, msgCardNotFound)
	}
	if account.Blocked {
		log.Printf("[SESSION] %s - blocked card inserted: %s", s.ID, account.MaskedCard())
		return c.reset(msgCardBlocked)
	}

	s.ActiveCardNumber = account.CardNumber
	s.FailedPINAttempts = 0
	s.Mode = ModePinInput
	return s, render(s, "")
}

func (c *SessionController) confirmPIN(ctx context.Context, s Session, input string) (Session, Output) {
	if !security.IsValidPIN(input) {
		return s, render(s, msgInvalidPIN)
	}

	account, err := c.activeAccount(ctx, s)
	if err != nil {
		return c.fail(s, err)
	}
	if account.Blocked {
		return c.reset(msgCardBlocked)
	}

	if c.codec.Verify(input, account.PINHash) {
		s.Mode = ModeLoggedIn
		s.FailedPINAttempts = 0
		c.events.LogSession(s.ID, account.MaskedCard(), seclog.EventLogin)
		return s, render(s, "Welcome Back, "+account.Name)
	}

	s.FailedPINAttempts++
	maxAttempts := c.cfg.MaxPINAttempts
	if s.FailedPINAttempts >= maxAttempts {
		if err := c.ledger.Block(ctx, account.CardNumber); err != nil {
			return c.fail(s, err)
		}
		log.Printf("[SESSION] %s - %v", s.ID, ErrSecurityLockout)
		c.events.LogSession(s.ID, account.MaskedCard(), seclog.EventLockout)
		return c.reset(fmt.Sprintf("Wrong PIN %d times. CARD BLOCKED.", maxAttempts))
	}

	remaining := maxAttempts - s.FailedPINAttempts
	return s, render(s, fmt.Sprintf("Incorrect PIN. Attempt %d/%d, %d remaining.", s.FailedPINAttempts, maxAttempts, remaining))
}

func (c *SessionController) confirmAmount(ctx context.Context, s Session, input string) (Session, Output) {
	amount, err := decimal.NewFromString(input)
	if err != nil {
		return s, render(s, "Invalid amount. Enter a number.")
	}

	var account *models.Account
	var verb string
	if s.Mode == ModeWithdrawInput {
		account, err = c.ledger.Withdraw(ctx, s.ActiveCardNumber, amount)
		verb = "Withdrawal"
	} else {
		account, err = c.ledger.Deposit(ctx, s.ActiveCardNumber, amount)
		verb = "Deposit"
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidAmount):
		return s, render(s, fmt.Sprintf("Amount must be a positive multiple of %s.", c.cfg.AmountStep.String()))
	case errors.Is(err, ErrInsufficientFunds):
		return s, render(s, fmt.Sprintf("Insufficient funds. A minimum balance of %s must remain.", c.cfg.MinRetainedBalance.StringFixed(2)))
	default:
		return c.fail(s, err)
	}

	s.Mode = ModeLoggedIn
	return s, render(s, fmt.Sprintf("%s successful. New balance: %s", verb, account.Balance.StringFixed(2)))
}

func (c *SessionController) confirmIdentityCard(ctx context.Context, s Session, input string, flow identityFlow) (Session, Output) {
	if len(input) < minCardLength {
		return s, render(s, msgInvalidCard)
	}

	account, err := c.ledger.FindByCard(ctx, input)
	if err != nil {
		return c.fail(s, err)
	}
	if account == nil {
		return s, render(s, msgCardNotFound)
	}

	s.ActiveCardNumber = account.CardNumber
	s.Mode = flow.proofMode
	return s, render(s, "")
}

func (c *SessionController) confirmIdentityProof(ctx context.Context, s Session, input string, flow identityFlow) (Session, Output) {
	account, err := c.activeAccount(ctx, s)
	if err != nil {
		return c.fail(s, err)
	}
	if err := verifyIdentity(account, input); err != nil {
		c.events.LogRejected(s.ID, account.MaskedCard(), seclog.EventIdentityFailed, flow.name)
		return s, render(s, msgIdentityFailed)
	}
	return flow.onProven(c, ctx, s, account)
}

func (c *SessionController) confirmNewPIN(s Session, input string, flow pinFlow) (Session, Output) {
	if !security.IsValidPIN(input) {
		return s, render(s, msgInvalidPIN)
	}
	hash, err := c.codec.Hash(input)
	if err != nil {
		return c.fail(s, err)
	}
	s.PendingPINHash = hash
	s.Mode = flow.confirmMode
	return s, render(s, "")
}

func (c *SessionController) confirmRepeatPIN(ctx context.Context, s Session, input string, flow pinFlow) (Session, Output) {
	if s.PendingPINHash == "" || !c.codec.Verify(input, s.PendingPINHash) {
		s.PendingPINHash = ""
		s.Mode = flow.newMode
		return s, render(s, msgPINMismatch)
	}

	if err := flow.save(c, ctx, s.ActiveCardNumber, input); err != nil {
		return c.fail(s, err)
	}
	s.PendingPINHash = ""
	return flow.onConfirmed(c, ctx, s)
}

func (c *SessionController) showBalance(ctx context.Context, s Session) (Session, Output) {
	account, err := c.activeAccount(ctx, s)
	if err != nil {
		return c.fail(s, err)
	}
	return s, render(s, "Current Balance: "+account.Balance.StringFixed(2))
}

func (c *SessionController) showMiniStatement(ctx context.Context, s Session) (Session, Output) {
	if _, err := c.activeAccount(ctx, s); err != nil {
		return c.fail(s, err)
	}
	txs, err := c.ledger.TransactionsFor(ctx, s.ActiveCardNumber)
	if err != nil {
		return c.fail(s, err)
	}
	if len(txs) == 0 {
		return s, render(s, "No transactions yet.")
	}
	if len(txs) > c.cfg.StatementSize {
		txs = txs[:c.cfg.StatementSize]
	}

	var b strings.Builder
	b.WriteString("Recent transactions:")
	for _, tx := range txs {
		fmt.Fprintf(&b, "\n%s %-8s %12s", tx.Timestamp.Format("2006-01-02 15:04"), tx.Type, tx.Amount.StringFixed(2))
	}
	return s, render(s, b.String())
}

func (c *SessionController) cancel(s Session) (Session, Output) {
	s.PendingPINHash = ""
	s.Buffer = ""
	if s.Mode == ModeDepositInput || s.Mode == ModeWithdrawInput {
		s.Mode = ModeLoggedIn
		return s, render(s, msgCancelled)
	}
	return c.reset(msgCancelled)
}

// activeAccount loads the card under interaction; a vanished record is ErrNotFound.
func (c *SessionController) activeAccount(ctx context.Context, s Session) (*models.Account, error) {
	if s.ActiveCardNumber == "" {
		return nil, ErrNotFound
	}
	account, err := c.ledger.FindByCard(ctx, s.ActiveCardNumber)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNotFound
	}
	return account, nil
}

// fail ends the session after an error the current mode cannot recover from.
func (c *SessionController) fail(s Session, err error) (Session, Output) {
	if errors.Is(err, ErrNotFound) {
		log.Printf("[SESSION] %s - active card %s disappeared, resetting", s.ID, models.MaskCardNumber(s.ActiveCardNumber))
		return c.reset(msgSystemNoCard)
	}
	log.Printf("[SESSION] %s - unexpected error in mode %s: %v", s.ID, s.Mode, err)
	return c.reset(msgSystemError)
}

func (c *SessionController) reset(message string) (Session, Output) {
	s := NewSession()
	return s, render(s, message)
}

func enter(s Session, mode Mode) (Session, Output) {
	s.Mode = mode
	s.Buffer = ""
	s.PendingPINHash = ""
	return s, render(s, "")
}
