package rule

import (
	"context"
	"log/slog"
	"sync"

	"github.com/harutaka/shiwake/internal/common"
	"github.com/harutaka/shiwake/internal/service"
)

// NopRecorder discards match events. Used for dry runs and rule testing.
type NopRecorder struct{}

// RecordMatch does nothing.
func (NopRecorder) RecordMatch(_ context.Context, _ int64) {}

// StoreRecorder persists match events through the rule store's atomic
// counter update. A persistence failure is logged and swallowed: it must
// never fail the match operation that produced the event.
type StoreRecorder struct {
	store service.RuleStore
}

// NewStoreRecorder creates a recorder backed by the given rule store.
func NewStoreRecorder(store service.RuleStore) *StoreRecorder {
	return &StoreRecorder{store: store}
}

// RecordMatch increments the rule's match counter and stamps
// last_matched_at.
func (r *StoreRecorder) RecordMatch(ctx context.Context, ruleID int64) {
	if err := r.store.IncrementLearningRuleMatchCount(ctx, ruleID); err != nil {
		common.LogError(err, "Failed to record rule match", common.Fields{
			"rule_id": ruleID,
		})
	}
}

// AsyncRecorder queues match events and persists them on a background
// goroutine, decoupling counter writes from the match decision entirely.
// Events that arrive after Close, or while the queue is full, are dropped
// with a log line; the counter is approximate by contract.
type AsyncRecorder struct {
	inner  MatchRecorder
	events chan int64
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewAsyncRecorder wraps a recorder with a buffered queue of the given size.
func NewAsyncRecorder(inner MatchRecorder, buffer int) *AsyncRecorder {
	if buffer <= 0 {
		buffer = 64
	}
	r := &AsyncRecorder{
		inner:  inner,
		events: make(chan int64, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for id := range r.events {
		// The queue outlives individual request contexts.
		r.inner.RecordMatch(context.Background(), id)
	}
}

// RecordMatch enqueues the event without blocking the caller.
func (r *AsyncRecorder) RecordMatch(_ context.Context, ruleID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		slog.Warn("Recorder closed, dropping telemetry", "rule_id", ruleID)
		return
	}
	select {
	case r.events <- ruleID:
	default:
		slog.Warn("Match event queue full, dropping telemetry", "rule_id", ruleID)
	}
}

// Close stops accepting events and waits for queued events to drain.
func (r *AsyncRecorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	<-r.done
}
