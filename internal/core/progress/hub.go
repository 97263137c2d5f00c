package progress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

// subscriberBuffer must absorb the handful of events one pipeline run
// emits so Publish never waits on a slow reader.
const subscriberBuffer = 16

// Hub is the in-memory registry of live progress subscribers, keyed by
// document id. It decouples the pipeline from transport: the pipeline
// publishes after every store update, and the streaming endpoint
// drains a subscriber channel. Subscribe, Publish and Unsubscribe are
// safe to call from concurrent goroutines.
type Hub struct {
	mu     sync.Mutex
	subs   map[string][]chan models.ProgressEvent
	logger *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		subs:   make(map[string][]chan models.ProgressEvent),
		logger: logger,
	}
}

// Subscribe registers a fresh buffered channel for documentID and
// returns it. The caller must Unsubscribe when done.
func (h *Hub) Subscribe(documentID string) chan models.ProgressEvent {
	ch := make(chan models.ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	h.subs[documentID] = append(h.subs[documentID], ch)
	h.mu.Unlock()

	return ch
}

// Publish delivers ev to every live subscriber of ev.FileID without
// blocking. With no subscribers the event is dropped; a subscriber
// whose buffer is full is torn down instead of stalling the pipeline.
func (h *Hub) Publish(ev models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channels := h.subs[ev.FileID]
	if len(channels) == 0 {
		return
	}

	kept := channels[:0]
	for _, ch := range channels {
		select {
		case ch <- ev:
			kept = append(kept, ch)
		default:
			h.logger.Warnw("dropping stalled progress subscriber", "document_id", ev.FileID)
			close(ch)
		}
	}

	if len(kept) == 0 {
		delete(h.subs, ev.FileID)
	} else {
		h.subs[ev.FileID] = kept
	}
}

// Unsubscribe removes ch from documentID's subscriber set and closes
// it. Calling it for a channel that was already torn down is a no-op.
func (h *Hub) Unsubscribe(documentID string, ch chan models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channels := h.subs[documentID]
	for i, c := range channels {
		if c == ch {
			h.subs[documentID] = append(channels[:i], channels[i+1:]...)
			close(c)
			break
		}
	}
	if len(h.subs[documentID]) == 0 {
		delete(h.subs, documentID)
	}
}
