package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"trading_simulator/internal/domain"
)

const defaultEventFlushBatch = 500

// EventRecorder buffers audit events in memory and writes them to the event
// store in batches: incrementally once the buffer reaches the batch size,
// and finally when the run flushes. Write failures are logged and the
// affected batch dropped; losing audit rows degrades observability but must
// never abort a simulation.
type EventRecorder struct {
	store     domain.EventStore
	buffer    []domain.SimEvent
	batchSize int
	logger    zerolog.Logger
}

func NewEventRecorder(store domain.EventStore, batchSize int, logger zerolog.Logger) (*EventRecorder, error) {
	if store == nil {
		return nil, errors.New("event store required")
	}
	if batchSize <= 0 {
		batchSize = defaultEventFlushBatch
	}
	return &EventRecorder{
		store:     store,
		buffer:    make([]domain.SimEvent, 0, batchSize),
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

func (r *EventRecorder) Record(ctx context.Context, ev domain.SimEvent) {
	r.buffer = append(r.buffer, ev)
	if len(r.buffer) >= r.batchSize {
		r.Flush(ctx)
	}
}

// Flush writes all buffered events. Safe to call with an empty buffer.
func (r *EventRecorder) Flush(ctx context.Context) {
	if len(r.buffer) == 0 {
		return
	}
	if err := r.store.AppendEvents(ctx, r.buffer); err != nil {
		r.logger.Error().Err(err).Int("events", len(r.buffer)).Msg("append events failed, batch dropped")
	}
	r.buffer = r.buffer[:0]
}

// Pending returns the number of events not yet written.
func (r *EventRecorder) Pending() int {
	return len(r.buffer)
}
