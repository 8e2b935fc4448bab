package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type State int

const (
	StateInitializing State = iota
	StateAwaitingQR
	StateAuthenticated
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingQR:
		return "awaiting_qr"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrNotReady = errors.New("whatsapp session is not ready")

// Media is an attachment ready to be uploaded.
type Media struct {
	Data     []byte
	MimeType string
	FileName string
}

type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Messenger delivers messages through an authenticated session.
type Messenger interface {
	SendText(ctx context.Context, chat ChatID, text string) error
	SendMedia(ctx context.Context, chat ChatID, media Media, caption string) error
	Groups(ctx context.Context) ([]Group, error)
}

// Session owns the lifecycle of the single messaging session. A Messenger is
// only handed out once the session has reached StateReady.
type Session struct {
	mu        sync.RWMutex
	state     State
	messenger Messenger
	err       error

	done     chan struct{}
	doneOnce sync.Once
}

func NewSession() *Session {
	return &Session{done: make(chan struct{})}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Advance moves the session forward to st. Moves backwards, or out of a
// terminal state, are ignored.
func (s *Session) Advance(st State) {
	if st == StateReady || st == StateFailed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady || s.state == StateFailed || st < s.state {
		return
	}
	s.state = st
}

// MarkReady publishes m and unblocks Wait. Reconnects after the first ready
// keep the first messenger.
func (s *Session) MarkReady(m Messenger) {
	s.mu.Lock()
	if s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	if s.messenger == nil {
		s.messenger = m
	}
	s.state = StateReady
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// Fail moves the session to StateFailed. Messenger returns err from then on.
func (s *Session) Fail(err error) {
	if err == nil {
		err = errors.New("session failed")
	}
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.messenger = nil
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) Messenger() (Messenger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case StateReady:
		return s.messenger, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %v", ErrNotReady, s.err)
	default:
		return nil, ErrNotReady
	}
}

// Wait blocks until the session is ready or has failed.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateFailed {
		return s.err
	}
	return nil
}
