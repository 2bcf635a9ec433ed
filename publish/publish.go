// Package publish emits accepted-change events to NATS so downstream
// consumers (search indexers, mirrors) can react to corpus changes.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/kbgov/ledger"
)

// AcceptedSubject is the subject accepted-change events are published on.
const AcceptedSubject = "kb.change.accepted"

// AcceptedEvent is the wire format for an accepted change.
type AcceptedEvent struct {
	EntryID       ledger.EntryID `json:"entry_id"`
	Summary       string         `json:"summary"`
	ImpactedPaths []string       `json:"impacted_paths"`
	Breaking      bool           `json:"breaking,omitempty"`
	Corrects      ledger.EntryID `json:"corrects,omitempty"`
	CommittedAt   time.Time      `json:"committed_at"`
}

// Publisher publishes governance events over NATS.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials a NATS server and returns a publisher.
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("kbgov"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return &Publisher{nc: nc}, nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}

// PublishAccepted publishes an accepted-change event. A nil publisher
// skips publishing, so callers without a broker degrade gracefully.
func (p *Publisher) PublishAccepted(ctx context.Context, entry ledger.Entry) error {
	if p == nil || p.nc == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	event := AcceptedEvent{
		EntryID:       entry.ID,
		Summary:       entry.Summary,
		ImpactedPaths: entry.ImpactedPaths,
		Breaking:      entry.Breaking,
		Corrects:      entry.Corrects,
		CommittedAt:   entry.CommittedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding accepted event: %w", err)
	}
	if err := p.nc.Publish(AcceptedSubject, data); err != nil {
		return fmt.Errorf("publishing accepted event: %w", err)
	}
	return nil
}
