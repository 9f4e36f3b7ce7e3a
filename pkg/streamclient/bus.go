package streamclient

import (
	"encoding/json"
	"sync"
	"time"
)

// Bus topics. UI surfaces subscribe here instead of opening their own
// network connections; the single stream client feeds all of them.
const (
	TopicEvents     = "order-events"      // republished domain events
	TopicConnection = "connection-status" // controller state changes
	TopicControl    = "control"           // subscriber -> controller requests
)

// RequestStatus is the control event a late subscriber publishes to get
// the controller's last-known connection state without a retained topic.
const RequestStatus = "request-status"

// Message is what subscribers receive: the wire event annotated with the
// local receipt time.
type Message struct {
	Event      string
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Subscription is a handle on one topic subscription. Reading from C is
// the only obligation; slow readers drop messages rather than block the
// publisher.
type Subscription struct {
	Topic string
	C     chan Message
}

// Bus is a same-process topic broadcast: no persistence, no cross-process
// delivery, no replay.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{})}
}

func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &Subscription{Topic: topic, C: make(chan Message, 16)}
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[topic] = set
	}
	set[s] = struct{}{}
	return s
}

// Unsubscribe removes the subscription; calling it again is a no-op.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[s.Topic]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.Topic)
	}
	close(s.C)
}

// Publish delivers to every current subscriber on the topic. Delivery is
// advisory: a subscriber with a full buffer misses the message.
func (b *Bus) Publish(topic string, m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[topic] {
		select {
		case s.C <- m:
		default:
		}
	}
}
