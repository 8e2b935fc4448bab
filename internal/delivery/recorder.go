package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var recordFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_record_failures_total",
	Help: "Delivery records that could not be stored or published",
}, []string{"sink"})

// Recorder keeps an audit trail of gateway sends. Both sinks are optional
// and their failures are logged, never returned: the message has already
// gone out by the time it is recorded.
type Recorder struct {
	Repo      Repository
	Publisher Publisher
	Logger    zerolog.Logger
	Timeout   time.Duration
}

func (r *Recorder) Record(ctx context.Context, d Delivery) {
	if r == nil || (r.Repo == nil && r.Publisher == nil) {
		return
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	// detach from the request so a client hang-up does not drop the record
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if r.Repo != nil {
		if err := r.Repo.SaveDelivery(ctx, d); err != nil {
			recordFailures.WithLabelValues("postgres").Inc()
			r.Logger.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to store delivery")
		}
	}
	if r.Publisher != nil {
		if err := r.Publisher.PublishDelivery(ctx, d); err != nil {
			recordFailures.WithLabelValues("kafka").Inc()
			r.Logger.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to publish delivery")
		}
	}
}
