package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Mode is the input mode a terminal session is in.
type Mode string

const (
	ModeWelcome                  Mode = "Welcome"
	ModeCardInput                Mode = "CardInput"
	ModePinInput                 Mode = "PinInput"
	ModeLoggedIn                 Mode = "LoggedIn"
	ModeDepositInput             Mode = "DepositInput"
	ModeWithdrawInput            Mode = "WithdrawInput"
	ModeForgotPinEnterCard       Mode = "ForgotPin_EnterCard"
	ModeForgotPinEnterIdentity   Mode = "ForgotPin_EnterIdentity"
	ModeForgotPinNewPin          Mode = "ForgotPin_NewPin"
	ModeForgotPinConfirmPin      Mode = "ForgotPin_ConfirmPin"
	ModeChangePinNew             Mode = "ChangePin_New"
	ModeChangePinConfirm         Mode = "ChangePin_Confirm"
	ModeDisableCardEnterCard     Mode = "DisableCard_EnterCard"
	ModeDisableCardEnterIdentity Mode = "DisableCard_EnterIdentity"
)

// OptionCode names one of the eight side buttons.
type OptionCode string

const (
	OptionL1 OptionCode = "L1"
	OptionL2 OptionCode = "L2"
	OptionL3 OptionCode = "L3"
	OptionL4 OptionCode = "L4"
	OptionR1 OptionCode = "R1"
	OptionR2 OptionCode = "R2"
	OptionR3 OptionCode = "R3"
	OptionR4 OptionCode = "R4"
)

var optionCodes = []OptionCode{OptionL1, OptionL2, OptionL3, OptionL4, OptionR1, OptionR2, OptionR3, OptionR4}

// OptionLabels maps the buttons shown in a mode to their labels.
type OptionLabels map[OptionCode]string

var cancelOnly = OptionLabels{OptionR4: "Cancel"}

var modeOptions = map[Mode]OptionLabels{
	ModeWelcome: {
		OptionL2: "Insert Card",
		OptionL3: "Disable Card",
		OptionR1: "Forgot PIN",
	},
	ModeLoggedIn: {
		OptionL1: "Withdraw",
		OptionL2: "Check Balance",
		OptionL3: "Change PIN",
		OptionR1: "Deposit",
		OptionR2: "Eject Card",
		OptionR3: "Mini Statement",
	},
	ModeCardInput:                cancelOnly,
	ModePinInput:                 cancelOnly,
	ModeDepositInput:             cancelOnly,
	ModeWithdrawInput:            cancelOnly,
	ModeForgotPinEnterCard:       cancelOnly,
	ModeForgotPinEnterIdentity:   cancelOnly,
	ModeForgotPinNewPin:          cancelOnly,
	ModeForgotPinConfirmPin:      cancelOnly,
	ModeChangePinNew:             cancelOnly,
	ModeChangePinConfirm:         cancelOnly,
	ModeDisableCardEnterCard:     cancelOnly,
	ModeDisableCardEnterIdentity: cancelOnly,
}

// OptionLabelsFor returns the buttons available in mode.
func OptionLabelsFor(mode Mode) OptionLabels {
	labels := make(OptionLabels, len(modeOptions[mode]))
	for code, label := range modeOptions[mode] {
		labels[code] = label
	}
	return labels
}

var prompts = map[Mode]string{
	ModeWelcome:                  "Welcome to Bangla Bank. Please select an option.",
	ModeCardInput:                "Please enter your Card Number using the keypad.",
	ModePinInput:                 "Card Accepted. Enter PIN:",
	ModeLoggedIn:                 "Please select a transaction.",
	ModeDepositInput:             "Enter amount to deposit (multiples of 500):",
	ModeWithdrawInput:            "Enter amount to withdraw (multiples of 500):",
	ModeForgotPinEnterCard:       "Forgot PIN. Enter your Card Number:",
	ModeForgotPinEnterIdentity:   "Enter the last 4 digits of your NID:",
	ModeForgotPinNewPin:          "Enter new 4-digit PIN:",
	ModeForgotPinConfirmPin:      "Re-enter new PIN to confirm:",
	ModeChangePinNew:             "Enter new 4-digit PIN:",
	ModeChangePinConfirm:         "Re-enter new PIN to confirm:",
	ModeDisableCardEnterCard:     "Disable Card. Enter your Card Number:",
	ModeDisableCardEnterIdentity: "Enter the last 4 digits of your NID:",
}

var maskedModes = map[Mode]bool{
	ModePinInput:                 true,
	ModeForgotPinEnterIdentity:   true,
	ModeForgotPinNewPin:          true,
	ModeForgotPinConfirmPin:      true,
	ModeChangePinNew:             true,
	ModeChangePinConfirm:         true,
	ModeDisableCardEnterIdentity: true,
}

// Session is the in-memory state of one terminal interaction.
type Session struct {
	ID                string `json:"id"`
	Mode              Mode   `json:"mode"`
	ActiveCardNumber  string `json:"activeCardNumber,omitempty"`
	FailedPINAttempts int    `json:"failedPinAttempts"`
	// PendingPINHash is the digest of a new PIN awaiting confirmation.
	PendingPINHash string `json:"pendingPinHash,omitempty"`
	Buffer         string `json:"buffer,omitempty"`
}

// NewSession returns an idle session at the welcome screen.
func NewSession() Session {
	return Session{ID: uuid.NewString(), Mode: ModeWelcome}
}

type InputKind string

const (
	InputDigit   InputKind = "DIGIT"
	InputClear   InputKind = "CLEAR"
	InputConfirm InputKind = "CONFIRM"
	InputOption  InputKind = "OPTION"
)

// InputEvent is one keypad or side-button press.
type InputEvent struct {
	Kind   InputKind
	Digit  rune
	Option OptionCode
}

func Digit(d rune) InputEvent           { return InputEvent{Kind: InputDigit, Digit: d} }
func Clear() InputEvent                 { return InputEvent{Kind: InputClear} }
func Confirm() InputEvent               { return InputEvent{Kind: InputConfirm} }
func Option(code OptionCode) InputEvent { return InputEvent{Kind: InputOption, Option: code} }

// Digits expands a string of keypad digits into one event per key.
func Digits(s string) []InputEvent {
	events := make([]InputEvent, 0, len(s))
	for _, r := range s {
		events = append(events, Digit(r))
	}
	return events
}

// ParseInputEvent builds an event from its wire form, e.g. ("DIGIT", "7") or ("OPTION", "L2").
func ParseInputEvent(kind, value string) (InputEvent, error) {
	switch InputKind(strings.ToUpper(strings.TrimSpace(kind))) {
	case InputDigit:
		if len(value) != 1 || value[0] < '0' || value[0] > '9' {
			return InputEvent{}, fmt.Errorf("%w: digit must be 0-9", ErrValidation)
		}
		return Digit(rune(value[0])), nil
	case InputClear:
		return Clear(), nil
	case InputConfirm:
		return Confirm(), nil
	case InputOption:
		code := OptionCode(strings.ToUpper(strings.TrimSpace(value)))
		for _, c := range optionCodes {
			if c == code {
				return Option(code), nil
			}
		}
		return InputEvent{}, fmt.Errorf("%w: unknown option %q", ErrValidation, value)
	}
	return InputEvent{}, fmt.Errorf("%w: unknown input type %q", ErrValidation, kind)
}

// Output is what the terminal should show after an input.
type Output struct {
	Mode    Mode         `json:"mode"`
	Message string       `json:"message"`
	Display string       `json:"display"`
	Options OptionLabels `json:"options"`
}

// render builds the output for s, falling back to the mode prompt when message is empty.
func render(s Session, message string) Output {
	if message == "" {
		message = prompts[s.Mode]
	}
	display := s.Buffer
	if maskedModes[s.Mode] {
		display = strings.Repeat("*", len(s.Buffer))
	}
	return Output{
		Mode:    s.Mode,
		Message: message,
		Display: display,
		Options: OptionLabelsFor(s.Mode),
	}
}
