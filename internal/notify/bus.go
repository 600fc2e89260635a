// internal/notify/bus.go
package notify

import (
	"fmt"
	"sync"

	"school-notifier/internal/common/logger"
	"school-notifier/internal/models"
)

// Bus topics used by the presentation sinks.
const (
	TopicNotification = "notification"
	TopicToast        = "toast"
	TopicConnection   = "connection"
)

// BusHandler receives a published event payload.
type BusHandler func(payload interface{})

// ToastEvent is published on TopicToast; Severity is derived from priority.
type ToastEvent struct {
	Notification models.Notification
	Severity     string
}

// Bus is an explicit publish/subscribe channel replacing implicit global
// events: any number of independent sinks and UI surfaces may react without
// coupling to the store. Handlers run in subscription order and are
// individually panic-isolated.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]BusHandler
	log      logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]BusHandler),
		log:      log.WithFields(map[string]interface{}{"component": "notification-bus"}),
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, handler BusHandler) {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.mu.Unlock()
}

// Publish delivers the payload to every subscriber of the topic, in
// registration order. A panicking subscriber never blocks the rest.
func (b *Bus) Publish(topic string, payload interface{}) {
	b.mu.Lock()
	handlers := make([]BusHandler, len(b.handlers[topic]))
	copy(handlers, b.handlers[topic])
	b.mu.Unlock()

	for _, h := range handlers {
		b.invoke(topic, h, payload)
	}
}

func (b *Bus) invoke(topic string, h BusHandler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus subscriber panicked", map[string]interface{}{
				"topic": topic,
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()
	h(payload)
}
