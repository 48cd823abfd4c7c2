// Package events publishes submission lifecycle events. Results themselves are
// never stored; subscribers only see what happened and when.
package events

import (
	"context"
	"encoding/json"
	"time"
)

type Type string

const (
	Submitted Type = "submitted"
	Resolved  Type = "resolved"
	Discarded Type = "discarded"
)

type Event struct {
	Type      Type      `json:"type"`
	RequestID string    `json:"request_id"`
	ChatID    int64     `json:"chat_id"`
	Task      string    `json:"task"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	TookMs    int64     `json:"took_ms,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

func subjectFor(base string, t Type) string {
	return base + "." + string(t)
}

func encode(e Event) ([]byte, error) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return json.Marshal(e)
}
