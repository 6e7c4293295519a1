package events

import (
	"context"
	"fmt"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// PGStore appends events to the domain_events table.
type PGStore struct {
	DB db.DBTX
}

const insertEventSQL = `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING occurred_at`

// Insert implements EventStore.
func (s PGStore) Insert(ctx context.Context, ev Event) (Event, error) {
	if err := s.DB.QueryRow(ctx, insertEventSQL, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt).Scan(&ev.OccurredAt); err != nil {
		return Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}
