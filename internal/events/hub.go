package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Hub fans events out to in-process subscribers. Slow subscribers lose
// events rather than blocking publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan []byte
	nextID int
	buf    int

	logger  *zap.Logger
	dropped uint64
}

func NewHub(buf int, logger *zap.Logger) *Hub {
	if buf <= 0 {
		buf = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: map[int]chan []byte{}, buf: buf, logger: logger}
}

func (h *Hub) Publish(ctx context.Context, ev Event) {
	if h == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("events: marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- raw:
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	ch := make(chan []byte, h.buf)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}
