package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/pkg/safego"
)

// Event 事件接口
type Event interface {
	Type() string
	Timestamp() time.Time
	Payload() any
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	EventType      string
	EventTimestamp time.Time
	EventPayload   any
}

func (e *BaseEvent) Type() string         { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTimestamp }
func (e *BaseEvent) Payload() any         { return e.EventPayload }

// NewEvent 创建新事件
func NewEvent(eventType string, payload any) *BaseEvent {
	return &BaseEvent{
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

// Handler 事件处理函数
type Handler func(ctx context.Context, event Event)

// Bus 事件总线接口
type Bus interface {
	// Publish never blocks; events are dropped when the buffer is full.
	Publish(ctx context.Context, event Event)
	// Subscribe registers handler for eventType ("*" for all) and returns
	// a function that removes it.
	Subscribe(eventType string, handler Handler) (unsubscribe func())
	Close()
}

type subscription struct {
	id      uint64
	handler Handler
}

// InMemoryBus 内存事件总线，单协程按发布顺序分发
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]subscription
	nextID    uint64
	eventChan chan eventWrapper
	closed    bool
	logger    *zap.Logger
	wg        sync.WaitGroup
}

type eventWrapper struct {
	ctx   context.Context
	event Event
}

// NewInMemoryBus 创建内存事件总线
func NewInMemoryBus(logger *zap.Logger, bufferSize int) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	bus := &InMemoryBus{
		handlers:  make(map[string][]subscription),
		eventChan: make(chan eventWrapper, bufferSize),
		logger:    logger.With(zap.String("component", "eventbus")),
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish 发布事件. Handlers outlive the publishing request, so the
// context keeps its values but not its cancellation.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.eventChan <- eventWrapper{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		b.logger.Warn("Event buffer full, dropping event", zap.String("type", event.Type()))
	}
}

// Subscribe 订阅事件
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() { b.unsubscribe(eventType, id) }
}

func (b *InMemoryBus) unsubscribe(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// Close drains queued events and stops the dispatcher. Safe to call twice.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *InMemoryBus) dispatch() {
	defer b.wg.Done()
	for w := range b.eventChan {
		b.dispatchEvent(w.ctx, w.event)
	}
}

func (b *InMemoryBus) dispatchEvent(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers[event.Type()])+len(b.handlers["*"]))
	subs = append(subs, b.handlers[event.Type()]...)
	subs = append(subs, b.handlers["*"]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(ctx, event, s.handler)
	}
}

func (b *InMemoryBus) invoke(ctx context.Context, event Event, h Handler) {
	defer safego.Recover(b.logger, "event-handler:"+event.Type())
	h(ctx, event)
}
