package seclog

import (
	"encoding/json"
	"io"
	"log"
	"time"
)

const (
	EventLogin          = "LOGIN"
	EventLockout        = "LOCKOUT"
	EventIdentityFailed = "IDENTITY_FAILED"
	EventCardDisabled   = "CARD_DISABLED"
	EventPINChanged     = "PIN_CHANGED"
	EventPINRecovered   = "PIN_RECOVERED"
	EventAccountOpened  = "ACCOUNT_OPENED"
	EventCardBlocked    = "CARD_BLOCKED"
	EventCardUnblocked  = "CARD_UNBLOCKED"
	EventPINReset       = "PIN_RESET"
)

// Event is one card-security log line. Card numbers are always masked.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id,omitempty"`
	Operator  string    `json:"operator,omitempty"`
	Card      string    `json:"card"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type Logger struct {
	out *log.Logger
	now func() time.Time
}

func NewLogger() *Logger {
	return &Logger{out: log.Default(), now: time.Now}
}

// NewLoggerTo writes one JSON line per event to w.
func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{out: log.New(w, "", 0), now: time.Now}
}

// LogSession records a security event raised at a terminal.
func (l *Logger) LogSession(sessionID, maskedCard, eventType string) {
	l.log(Event{
		EventType: eventType,
		SessionID: sessionID,
		Card:      maskedCard,
		Status:    "SUCCESS",
	})
}

// LogRejected records a refused attempt, such as a failed identity check.
func (l *Logger) LogRejected(sessionID, maskedCard, eventType, reason string) {
	l.log(Event{
		EventType: eventType,
		SessionID: sessionID,
		Card:      maskedCard,
		Status:    "REJECTED",
		Details:   map[string]string{"reason": reason},
	})
}

// LogOperation records an action taken by an operator through the account API.
func (l *Logger) LogOperation(operator, maskedCard, eventType string, details map[string]string) {
	event := Event{
		EventType: eventType,
		Operator:  operator,
		Card:      maskedCard,
		Status:    "SUCCESS",
	}
	if len(details) > 0 {
		event.Details = details
	}
	l.log(event)
}

func (l *Logger) log(event Event) {
	event.Timestamp = l.now()
	data, _ := json.Marshal(event)
	l.out.Printf("SECURITY: %s", string(data))
}
