package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"
)

type nopMessenger struct{}

func (nopMessenger) SendText(context.Context, ChatID, string) error         { return nil }
func (nopMessenger) SendMedia(context.Context, ChatID, Media, string) error { return nil }
func (nopMessenger) Groups(context.Context) ([]Group, error)                { return nil, nil }

func TestSessionNotReadyUntilMarked(t *testing.T) {
	s := NewSession()
	for _, st := range []State{StateAwaitingQR, StateAuthenticated} {
		s.Advance(st)
		if _, err := s.Messenger(); !errors.Is(err, ErrNotReady) {
			t.Fatalf("state %s: expected ErrNotReady, got %v", st, err)
		}
	}

	s.MarkReady(nopMessenger{})
	if s.State() != StateReady {
		t.Fatalf("state=%s, expected ready", s.State())
	}
	m, err := s.Messenger()
	if err != nil || m == nil {
		t.Fatalf("expected messenger, got %v, %v", m, err)
	}
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestSessionAdvanceNeverGoesBack(t *testing.T) {
	s := NewSession()
	s.Advance(StateAuthenticated)
	s.Advance(StateAwaitingQR)
	if s.State() != StateAuthenticated {
		t.Fatalf("state=%s, expected authenticated", s.State())
	}

	s.MarkReady(nopMessenger{})
	s.Advance(StateAuthenticated)
	if s.State() != StateReady {
		t.Fatalf("state=%s, expected ready", s.State())
	}
}

func TestSessionFailUnblocksWait(t *testing.T) {
	s := NewSession()
	boom := errors.New("qr timeout")

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Fail(boom)
	}()

	if err := s.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Wait err=%v, expected %v", err, boom)
	}
	if _, err := s.Messenger(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady after failure, got %v", err)
	}

	s.MarkReady(nopMessenger{})
	if s.State() != StateFailed {
		t.Fatalf("failed session must stay failed, got %s", s.State())
	}
}

func TestSessionWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := NewSession().Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
