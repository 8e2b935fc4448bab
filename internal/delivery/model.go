package delivery

import (
	"context"
	"time"
)

type Kind string

const (
	KindText  Kind = "text"
	KindFile  Kind = "file"
	KindGraph Kind = "graph"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Delivery is one send attempt made by the gateway.
type Delivery struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Kind      Kind      `json:"kind"`
	ItemID    string    `json:"item_id,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	SaveDelivery(ctx context.Context, d Delivery) error
}

type Publisher interface {
	PublishDelivery(ctx context.Context, d Delivery) error
}
