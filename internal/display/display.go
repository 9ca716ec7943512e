package display

import (
	"sync"

	"timepilot/internal/metrics"
	"timepilot/pkg/models"
)

// Hub holds the displayed timecode and fans updates out to subscribers
type Hub struct {
	metrics *metrics.Metrics

	mu          sync.RWMutex
	current     models.Timecode
	subscribers []chan models.Timecode
	closed      bool
}

// New creates a hub showing 00:00:00:00. m may be nil.
func New(m *metrics.Metrics) *Hub {
	return &Hub{metrics: m}
}

// Publish sets the displayed timecode and notifies subscribers.
// Subscribers with a full buffer miss this update.
func (h *Hub) Publish(tc models.Timecode) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = tc
	// Send to all subscribers (non-blocking)
	for _, ch := range h.subscribers {
		select {
		case ch <- tc:
		default:
			if h.metrics != nil {
				h.metrics.RecordDisplayDropped()
			}
		}
	}
}

// Reset shows 00:00:00:00
func (h *Hub) Reset() {
	h.Publish(models.Timecode{})
}

// Current returns the displayed timecode
func (h *Hub) Current() models.Timecode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe returns a channel of timecode updates primed with the current value,
// and a cleanup function that must be called when the subscriber leaves
func (h *Hub) Subscribe(bufferSize int) (<-chan models.Timecode, func()) {
	if bufferSize < 1 {
		bufferSize = 1
	}
	ch := make(chan models.Timecode, bufferSize)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- h.current
	h.subscribers = append(h.subscribers, ch)
	if h.metrics != nil {
		h.metrics.RecordSubscriberStart()
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { h.unsubscribe(ch) })
	}
	return ch, cleanup
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close closes every subscriber channel; later subscriptions get a closed channel
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		close(ch)
		if h.metrics != nil {
			h.metrics.RecordSubscriberStop()
		}
	}
	h.subscribers = nil
	h.closed = true
}

// unsubscribe removes a subscriber channel
func (h *Hub) unsubscribe(ch chan models.Timecode) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, subCh := range h.subscribers {
		if subCh == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			if h.metrics != nil {
				h.metrics.RecordSubscriberStop()
			}
			break
		}
	}
}
