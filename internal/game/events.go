package game

import (
	"log/slog"
	"sync"
)

const defaultSubscriberBuffer = 64

// Broker fans game events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan GameEvent
	next   int
	buffer int
	closed bool
	logger *slog.Logger
}

func NewBroker(buffer int, logger *slog.Logger) *Broker {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[int]chan GameEvent),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe returns a channel of events and a func that unsubscribes and
// closes it. After Close the channel is returned already closed.
func (b *Broker) Subscribe() (<-chan GameEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan GameEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broker) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Broker) Publish(event GameEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber", "subscriber", id, "type", event.Type)
		}
	}
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
