package services

import (
	"context"
	"errors"
	"log"
	"sync"
)

// TerminalService hosts one session per terminal and feeds inputs through the
// controller one at a time per terminal. Different terminals run concurrently.
type TerminalService struct {
	controller *SessionController
	store      SessionStore

	mu    sync.Mutex
	locks map[string]*terminalLock
}

// terminalLock is dropped from the map once no request holds or waits on it.
type terminalLock struct {
	mu   sync.Mutex
	refs int
}

func NewTerminalService(controller *SessionController, store SessionStore) *TerminalService {
	return &TerminalService{
		controller: controller,
		store:      store,
		locks:      make(map[string]*terminalLock),
	}
}

// load replaces an undecodable stored session with a fresh one.
func (t *TerminalService) load(ctx context.Context, terminalID string) (Session, error) {
	session, err := t.store.Load(ctx, terminalID)
	if errors.Is(err, ErrSessionCorrupt) {
		log.Printf("[TERMINAL] %s - discarding stored session: %v", terminalID, err)
		return NewSession(), nil
	}
	return session, err
}

// lock serializes work on one terminal and returns the matching unlock.
func (t *TerminalService) lock(terminalID string) func() {
	t.mu.Lock()
	l, ok := t.locks[terminalID]
	if !ok {
		l = &terminalLock{}
		t.locks[terminalID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, terminalID)
		}
		t.mu.Unlock()
	}
}

// Handle applies one input to the terminal's session and persists the result.
func (t *TerminalService) Handle(ctx context.Context, terminalID string, ev InputEvent) (Output, error) {
	defer t.lock(terminalID)()

	session, err := t.load(ctx, terminalID)
	if err != nil {
		log.Printf("[TERMINAL] %s - failed to load session: %v", terminalID, err)
		return Output{}, err
	}

	prevMode := session.Mode
	next, out := t.controller.HandleInput(ctx, session, ev)
	if err := t.store.Save(ctx, terminalID, next); err != nil {
		log.Printf("[TERMINAL] %s - failed to save session: %v", terminalID, err)
		return Output{}, err
	}

	if prevMode != next.Mode {
		log.Printf("[TERMINAL] %s - %s -> %s", terminalID, prevMode, next.Mode)
	}
	return out, nil
}

// Screen returns what the terminal currently shows.
func (t *TerminalService) Screen(ctx context.Context, terminalID string) (Output, error) {
	defer t.lock(terminalID)()

	session, err := t.load(ctx, terminalID)
	if err != nil {
		return Output{}, err
	}
	return t.controller.Render(session), nil
}

// Reset discards the terminal's session, returning it to the welcome screen.
func (t *TerminalService) Reset(ctx context.Context, terminalID string) error {
	defer t.lock(terminalID)()
	return t.store.Delete(ctx, terminalID)
}
