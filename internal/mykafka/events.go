package mykafka

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

type UserEvent struct {
	Type     string    `json:"type"`
	UserID   uint      `json:"user_id"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
}

type ProductEvent struct {
	Type      string    `json:"type"`
	ProductID uint      `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Price     float64   `json:"price,omitempty"`
	At        time.Time `json:"at"`
}

type CartEvent struct {
	Type      string    `json:"type"`
	UserID    uint      `json:"user_id"`
	ProductID uint      `json:"product_id,omitempty"`
	Quantity  uint      `json:"quantity,omitempty"`
	At        time.Time `json:"at"`
}

type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    uint      `json:"order_id"`
	UserID     uint      `json:"user_id"`
	TotalPrice float64   `json:"total_price"`
	At         time.Time `json:"at"`
}

func Key(id uint) string { return strconv.FormatUint(uint64(id), 10) }

// PublishBestEffort sends event with its own timeout and only logs
// failures; callers never fail because of the event bus.
func PublishBestEffort(ctx context.Context, p Publisher, l *slog.Logger, topic, key string, event any) {
	if p == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := p.PublishEvent(pubCtx, topic, key, event); err != nil {
		l.Warn("event_publish_failed", "topic", topic, "key", key, "error", err)
	}
}
