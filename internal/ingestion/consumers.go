package ingestion

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"solana-lp-sync/internal/decode"
	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/idhash"
	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/protocol"
	"solana-lp-sync/internal/storage"
)

// InstructionWriter stores decoded instructions. Records that failed to
// decode are not stored; the adapter already counted them.
func InstructionWriter(store storage.EventStore) decode.Consumer[protocol.InstructionRecord] {
	return decode.ConsumerFunc[protocol.InstructionRecord](func(ctx context.Context, recs []protocol.InstructionRecord, meta decode.Meta) error {
		events := make([]*domain.ProtocolEvent, 0, len(recs))
		for _, rec := range recs {
			if rec.Parsed == nil {
				continue
			}
			payload, err := rec.Parsed.JSON()
			if err != nil {
				return fmt.Errorf("encode %s payload: %w", rec.Name, err)
			}
			events = append(events, &domain.ProtocolEvent{
				ID:         idhash.EventID(meta.Signature, domain.EventKindInstruction, rec.Name, rec.Entry.OuterIndex, rec.Entry.InnerIndex),
				Signature:  meta.Signature,
				BlockTime:  meta.BlockTime,
				Program:    rec.Program,
				Kind:       domain.EventKindInstruction,
				Name:       rec.Name,
				OuterIndex: rec.Entry.OuterIndex,
				InnerIndex: rec.Entry.InnerIndex,
				Payload:    payload,
			})
		}
		return writeEvents(ctx, store, events)
	})
}

// EventWriter stores decoded events from event-CPI instructions and logs.
// Records without fields failed to decode and are skipped.
func EventWriter(store storage.EventStore) decode.Consumer[protocol.EventRecord] {
	return decode.ConsumerFunc[protocol.EventRecord](func(ctx context.Context, recs []protocol.EventRecord, meta decode.Meta) error {
		events := make([]*domain.ProtocolEvent, 0, len(recs))
		for _, rec := range recs {
			if rec.Fields == nil {
				continue
			}
			payload, err := rec.Fields.JSON()
			if err != nil {
				return fmt.Errorf("encode %s payload: %w", rec.Name, err)
			}
			events = append(events, &domain.ProtocolEvent{
				ID:         idhash.EventID(meta.Signature, domain.EventKindEvent, rec.Name, rec.OuterIndex, rec.InnerIndex),
				Signature:  meta.Signature,
				BlockTime:  meta.BlockTime,
				Program:    rec.Program,
				Kind:       domain.EventKindEvent,
				Name:       rec.Name,
				OuterIndex: rec.OuterIndex,
				InnerIndex: rec.InnerIndex,
				Payload:    payload,
			})
		}
		return writeEvents(ctx, store, events)
	})
}

func writeEvents(ctx context.Context, store storage.EventStore, events []*domain.ProtocolEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		return fmt.Errorf("store %s events: %w", events[0].Program, err)
	}
	observability.RecordEventsStored(events[0].Program, len(events))
	return nil
}

// Lifecycle moves positions through open and close as the program executes
// the matching instructions. Positions are created elsewhere; unknown ids
// are ignored.
type Lifecycle struct {
	positions storage.PositionStore
	rules     protocol.Lifecycle
	logger    *zap.Logger
}

// NewLifecycle creates a lifecycle consumer for one protocol.
func NewLifecycle(positions storage.PositionStore, rules protocol.Lifecycle, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{positions: positions, rules: rules, logger: logger.Named("lifecycle")}
}

// Consume applies every open or close in recs, in instruction order.
func (l *Lifecycle) Consume(ctx context.Context, recs []protocol.InstructionRecord, meta decode.Meta) error {
	var errs []error
	for _, rec := range recs {
		id, status, ok := l.rules.Classify(rec)
		if !ok {
			continue
		}

		err := l.apply(ctx, id, status)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			l.logger.Debug("untracked position", zap.String("position", id), zap.String("signature", meta.Signature))
		case err != nil:
			errs = append(errs, fmt.Errorf("%s %s: %w", rec.Name, id, err))
		default:
			l.logger.Info("position lifecycle",
				zap.String("position", id),
				zap.String("status", string(status)),
				zap.String("signature", meta.Signature),
			)
		}
	}
	return errors.Join(errs...)
}

func (l *Lifecycle) apply(ctx context.Context, id string, status domain.PositionStatus) error {
	if status == domain.PositionStatusOpen {
		if err := l.positions.UpdateState(ctx, id, domain.PositionStateSuccessful); err != nil {
			return err
		}
	}
	return l.positions.UpdateStatus(ctx, id, status)
}

// Register adds every processor of adapter to pipeline, wired to the event
// store and the lifecycle consumer.
func Register(pipeline *decode.Pipeline, adapter *protocol.Adapter, events storage.EventStore, positions storage.PositionStore, logger *zap.Logger) error {
	desc := adapter.Descriptor()
	ixConsumers := []decode.Consumer[protocol.InstructionRecord]{InstructionWriter(events)}
	if positions != nil {
		ixConsumers = append(ixConsumers, NewLifecycle(positions, desc.Lifecycle, logger))
	}
	evConsumers := []decode.Consumer[protocol.EventRecord]{EventWriter(events)}

	for _, proc := range adapter.Processors(ixConsumers, evConsumers) {
		if err := pipeline.Add(proc); err != nil {
			return fmt.Errorf("register %s: %w", desc.Name, err)
		}
	}
	return nil
}
