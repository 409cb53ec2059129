// Package progress publishes pipeline progress events to interested
// consumers (SSE streams, tests). Channels are named per job:
// pipeline:progress:{job_id}. Consumers must treat a terminal status
// (completed, failed, cancelled) as end-of-stream.
package progress

import (
	"log/slog"
	"sync"
	"time"
)

// Event is one progress update for a job.
type Event struct {
	Stage     string    `json:"stage"`
	Progress  float64   `json:"progress"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether an event status ends the stream.
func Terminal(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}

// Channel returns the progress channel name for a job.
func Channel(jobID string) string {
	return "pipeline:progress:" + jobID
}

// Publisher is the fire-and-forget side of the progress bus.
type Publisher interface {
	Publish(channel string, event Event)
}

// Bus is an in-process publish/subscribe hub keyed by channel name.
type Bus struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string][]chan Event
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[string][]chan Event),
	}
}

// Subscribe returns a channel receiving events published to the named
// channel, plus an unsubscribe function. The returned channel is closed
// on unsubscribe.
func (b *Bus) Subscribe(channel string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 64)
	b.subs[channel] = append(b.subs[channel], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subs[channel]
		for i, sub := range subscribers {
			if sub == ch {
				close(ch)
				b.subs[channel] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
	}

	return ch, unsub
}

// Publish delivers an event to all subscribers of the channel. Slow
// subscribers with a full buffer drop the event rather than block the
// publisher.
func (b *Bus) Publish(channel string, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("progress subscriber buffer full, dropping event", "channel", channel)
		}
	}
}

var _ Publisher = (*Bus)(nil)
