package ros

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/fimnav/logging"
)

// ErrBusClosed is returned when using a closed Bus.
var ErrBusClosed = errors.New("bus is closed")

// Handler receives one message published on a subscribed topic. Handlers run on the
// publisher's goroutine and must not block.
type Handler func(msg interface{})

type subscription struct {
	id      uuid.UUID
	handler Handler
}

// Bus is an in-process publish/subscribe message bus keyed by topic name.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uuid.UUID]Handler
	topics map[uuid.UUID]string
	closed bool
	logger logging.Logger
}

// NewBus returns an empty bus.
func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		subs:   map[string]map[uuid.UUID]Handler{},
		topics: map[uuid.UUID]string{},
		logger: logger,
	}
}

// Subscribe registers handler for topic and returns an id for Unsubscribe.
func (b *Bus) Subscribe(topic string, handler Handler) (uuid.UUID, error) {
	if handler == nil {
		return uuid.Nil, errors.Errorf("nil handler for topic %s", topic)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return uuid.Nil, ErrBusClosed
	}
	id := uuid.New()
	if b.subs[topic] == nil {
		b.subs[topic] = map[uuid.UUID]Handler{}
	}
	b.subs[topic][id] = handler
	b.topics[id] = topic
	return id, nil
}

// Unsubscribe removes a subscription. It reports whether the id was subscribed.
func (b *Bus) Unsubscribe(id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	topic, ok := b.topics[id]
	if !ok {
		return false
	}
	delete(b.topics, id)
	delete(b.subs[topic], id)
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
	return true
}

// Publish delivers msg to every handler subscribed to topic and returns how many received
// it. A panicking handler is logged and does not stop delivery to the others.
func (b *Bus) Publish(topic string, msg interface{}) (int, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0, ErrBusClosed
	}
	handlers := lo.MapToSlice(b.subs[topic], func(id uuid.UUID, h Handler) subscription {
		return subscription{id: id, handler: h}
	})
	b.mu.RUnlock()

	// deterministic delivery order
	sort.Slice(handlers, func(i, j int) bool { return handlers[i].id.String() < handlers[j].id.String() })
	for _, sub := range handlers {
		b.deliver(topic, sub.handler, msg)
	}
	return len(handlers), nil
}

func (b *Bus) deliver(topic string, handler Handler, msg interface{}) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Errorw("handler panicked", "topic", topic, "panic", r)
		}
	}()
	handler(msg)
}

// Topics lists the topics with at least one subscriber.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	topics := lo.Keys(b.subs)
	sort.Strings(topics)
	return topics
}

// Close drops every subscription. Later calls to Subscribe and Publish fail.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[string]map[uuid.UUID]Handler{}
	b.topics = map[uuid.UUID]string{}
}
