// Package notify fans content change events out to live subscribers such
// as server-sent event streams and edit consoles.
package notify

import (
	"sync/atomic"

	"flyer/internal/content"
	"flyer/internal/logging"
)

var logger = logging.For("notify")

// Event describes one accepted mutation of the content store.
type Event struct {
	Kind     string `json:"kind"` // "update" or "load"
	Key      string `json:"key,omitempty"`
	Revision uint64 `json:"revision"`
	Origin   string `json:"origin,omitempty"` // who made the change, if tagged
}

// Subscriber receives events on Events until it is unsubscribed or the
// hub stops, at which point Events is closed.
type Subscriber struct {
	ID     uint64
	Name   string
	Events chan Event

	dropped atomic.Uint64
}

// Dropped returns how many events were discarded because Events was full.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Hub manages subscribers using channels only. A single goroutine owns the
// subscriber map; all operations go through channels.
type Hub struct {
	subscribe   chan subscribeReq
	unsubscribe chan *Subscriber
	publish     chan Event
	list        chan listReq
	stop        chan struct{}
	done        chan struct{}

	buffer int
}

type subscribeReq struct {
	name   string
	result chan *Subscriber
}

type listReq struct {
	result chan []string
}

var subscriberCounter atomic.Uint64

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// NewHub creates a hub. Call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		subscribe:   make(chan subscribeReq),
		unsubscribe: make(chan *Subscriber),
		publish:     make(chan Event, 64),
		list:        make(chan listReq),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		buffer:      DefaultBuffer,
	}
}

// Run is the hub's main loop. It blocks until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)
	subs := make(map[uint64]*Subscriber)

	for {
		select {
		case req := <-h.subscribe:
			s := &Subscriber{
				ID:     subscriberCounter.Add(1),
				Name:   req.name,
				Events: make(chan Event, h.buffer),
			}
			subs[s.ID] = s
			req.result <- s
			logger.Debug("subscriber joined", "id", s.ID, "name", s.Name, "subscribers", len(subs))

		case s := <-h.unsubscribe:
			if _, ok := subs[s.ID]; ok {
				delete(subs, s.ID)
				close(s.Events)
				logger.Debug("subscriber left", "id", s.ID, "name", s.Name, "dropped", s.Dropped())
			}

		case ev := <-h.publish:
			for _, s := range subs {
				select {
				case s.Events <- ev:
				default:
					s.dropped.Add(1)
				}
			}

		case req := <-h.list:
			names := make([]string, 0, len(subs))
			for _, s := range subs {
				names = append(names, s.Name)
			}
			req.result <- names

		case <-h.stop:
			for _, s := range subs {
				close(s.Events)
			}
			return
		}
	}
}

// Stop shuts the hub down and closes every subscriber's channel.
func (h *Hub) Stop() {
	close(h.stop)
	<-h.done
}

// Subscribe registers a new subscriber. It returns nil once the hub stopped.
func (h *Hub) Subscribe(name string) *Subscriber {
	result := make(chan *Subscriber, 1)
	select {
	case h.subscribe <- subscribeReq{name: name, result: result}:
		return <-result
	case <-h.stop:
		return nil
	}
}

// Unsubscribe removes s and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	select {
	case h.unsubscribe <- s:
	case <-h.stop:
	}
}

// Publish queues ev for every subscriber. Events published after Stop are
// discarded.
func (h *Hub) Publish(ev Event) {
	select {
	case h.publish <- ev:
	case <-h.stop:
	}
}

// Subscribers returns the names of all current subscribers.
func (h *Hub) Subscribers() []string {
	result := make(chan []string, 1)
	select {
	case h.list <- listReq{result: result}:
		return <-result
	case <-h.stop:
		return nil
	}
}

// HandleChange publishes c. It has the shape of content.ChangeHandler so a
// hub can be registered with Store.OnChange.
func (h *Hub) HandleChange(c content.Change) {
	h.Publish(Event{Kind: string(c.Kind), Key: c.Key, Revision: c.Revision, Origin: c.Origin})
}
