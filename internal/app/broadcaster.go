package app

import (
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/internal/domain"
)

// Sink is a live channel to which progress events for a job are pushed
type Sink interface {
	Send(event domain.ProgressEvent) error
}

// Broadcaster fans out progress events to the live subscribers of a job.
// It is an owned registry with an explicit lifecycle, not ambient shared
// state: the registry entry for a job disappears when its last sink leaves.
// There is no buffering or replay; a sink only sees events published while
// it is registered.
type Broadcaster struct {
	mu     sync.RWMutex
	sinks  map[string]map[Sink]struct{}
	logger *zap.Logger
}

// NewBroadcaster creates a new progress broadcaster
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		sinks:  make(map[string]map[Sink]struct{}),
		logger: logger,
	}
}

// Subscribe registers a sink for a job's events
func (b *Broadcaster) Subscribe(jobID string, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.sinks[jobID]
	if !ok {
		set = make(map[Sink]struct{})
		b.sinks[jobID] = set
	}
	set[sink] = struct{}{}
}

// Unsubscribe removes a sink; a no-op if the sink is not registered.
// Removing the last sink for a job removes the job's registry entry.
func (b *Broadcaster) Unsubscribe(jobID string, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.sinks[jobID]
	if !ok {
		return
	}
	delete(set, sink)
	if len(set) == 0 {
		delete(b.sinks, jobID)
	}
}

// Publish delivers an event to every sink currently registered for the job.
// Delivery is best-effort: a failing sink is logged and skipped, it never
// blocks the others or raises to the publisher. Publishing to a job with no
// sinks is a no-op.
func (b *Broadcaster) Publish(jobID string, event domain.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sink := range b.sinks[jobID] {
		if err := sink.Send(event); err != nil {
			b.logger.Debug("Failed to deliver progress event",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
	}
}

// SubscriberCount returns the number of sinks registered for a job
func (b *Broadcaster) SubscriberCount(jobID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sinks[jobID])
}

// HasEntry reports whether a registry entry exists for the job id
func (b *Broadcaster) HasEntry(jobID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.sinks[jobID]
	return ok
}
