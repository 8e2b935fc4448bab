package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type memoryRepo struct {
	saved []Delivery
	err   error
}

func (m *memoryRepo) SaveDelivery(_ context.Context, d Delivery) error {
	m.saved = append(m.saved, d)
	return m.err
}

type memoryPublisher struct {
	published []Delivery
	err       error
}

func (m *memoryPublisher) PublishDelivery(_ context.Context, d Delivery) error {
	m.published = append(m.published, d)
	return m.err
}

func TestRecorderFillsIDAndTimestamp(t *testing.T) {
	repo := &memoryRepo{}
	pub := &memoryPublisher{}
	r := &Recorder{Repo: repo, Publisher: pub, Logger: zerolog.Nop()}

	r.Record(context.Background(), Delivery{ChatID: "1@c.us", Kind: KindText, Status: StatusSent})

	if len(repo.saved) != 1 || len(pub.published) != 1 {
		t.Fatalf("expected one record per sink, got %d/%d", len(repo.saved), len(pub.published))
	}
	got := repo.saved[0]
	if got.ID == "" || got.CreatedAt.IsZero() {
		t.Fatalf("id/timestamp not filled: %+v", got)
	}
	if pub.published[0].ID != got.ID {
		t.Fatalf("sinks received different ids")
	}
}

func TestRecorderLogsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	r := &Recorder{
		Repo:      &memoryRepo{err: errors.New("db down")},
		Publisher: &memoryPublisher{err: errors.New("broker down")},
		Logger:    zerolog.New(&buf),
	}

	r.Record(context.Background(), Delivery{ChatID: "1@c.us"})

	for _, want := range []string{"db down", "broker down"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("log missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRecorderWithoutSinks(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), Delivery{})
	(&Recorder{}).Record(context.Background(), Delivery{})
}

func TestNewPostgresRepositoryRequiresPool(t *testing.T) {
	if _, err := NewPostgresRepository(nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
