package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk appends decoded events in one batch. Rows sharing an event_id
// collapse on merge; reads use FINAL.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.ProtocolEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.Signature == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO protocol_events (
			event_id, signature, block_time, program, kind, name, outer_index, inner_index, payload
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		var blockTime *time.Time
		if e.BlockTime != nil {
			t := e.BlockTime.UTC()
			blockTime = &t
		}
		err = batch.Append(
			e.ID, e.Signature, blockTime, e.Program, e.Kind, e.Name,
			int32(e.OuterIndex), int32(e.InnerIndex), e.Payload,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySignature returns one transaction's events ordered by position.
func (s *EventStore) GetBySignature(ctx context.Context, signature string) ([]*domain.ProtocolEvent, error) {
	query := `
		SELECT event_id, signature, block_time, program, kind, name, outer_index, inner_index, payload
		FROM protocol_events FINAL
		WHERE signature = ?
		ORDER BY outer_index ASC, inner_index ASC
	`

	rows, err := s.conn.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("query events by signature: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProtocolEvent
	for rows.Next() {
		var (
			e            domain.ProtocolEvent
			outer, inner int32
		)
		if err := rows.Scan(&e.ID, &e.Signature, &e.BlockTime, &e.Program, &e.Kind, &e.Name, &outer, &inner, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.OuterIndex = int(outer)
		e.InnerIndex = int(inner)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
