package database

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/factory"
)

// Event names a connection lifecycle point.
type Event string

// PostConnect fires once Connection.Connect has reached the database.
const PostConnect Event = "postConnect"

// Subscriber handles the events it subscribes to.
type Subscriber interface {
	SubscribedEvents() []Event
	HandleEvent(ctx context.Context, event Event, conn *Connection) error
}

// EventManager dispatches events to subscribers in subscription order.
type EventManager struct {
	mu        sync.RWMutex
	listeners map[Event][]Subscriber
}

func NewEventManager() *EventManager {
	return &EventManager{listeners: make(map[Event][]Subscriber)}
}

func (m *EventManager) AddSubscriber(s Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range s.SubscribedEvents() {
		m.listeners[e] = append(m.listeners[e], s)
	}
}

func (m *EventManager) HasListeners(e Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[e]) > 0
}

// Dispatch stops at the first subscriber error.
func (m *EventManager) Dispatch(ctx context.Context, e Event, conn *Connection) error {
	m.mu.RLock()
	subs := append([]Subscriber(nil), m.listeners[e]...)
	m.mu.RUnlock()
	for _, s := range subs {
		if err := s.HandleEvent(ctx, e, conn); err != nil {
			return errors.Annotatef(err, "%s subscriber", e)
		}
	}
	return nil
}

// ── Subscribers ───────────────────────────────────────────────────────────────

// SubscriberFactory creates a subscriber named in "eventSubscribers".
type SubscriberFactory func() Subscriber

// NewSubscribers returns an empty subscriber table.
func NewSubscribers() *factory.Registry[SubscriberFactory] {
	return factory.New[SubscriberFactory]("event subscriber")
}

// RegisterBuiltinSubscribers adds the session initializers:
//
//	sqliteForeignKeys  PRAGMA foreign_keys = ON
//	mysqlSessionInit   SET NAMES utf8mb4
func RegisterBuiltinSubscribers(subs *factory.Registry[SubscriberFactory]) {
	subs.Register("sqliteForeignKeys", func() Subscriber {
		return &SessionInit{Statements: []string{"PRAGMA foreign_keys = ON"}}
	})
	subs.Register("mysqlSessionInit", func() Subscriber {
		return &SessionInit{Statements: []string{"SET NAMES utf8mb4"}}
	})
}

// SessionInit runs statements right after connecting.
type SessionInit struct {
	Statements []string
}

func (s *SessionInit) SubscribedEvents() []Event { return []Event{PostConnect} }

func (s *SessionInit) HandleEvent(ctx context.Context, _ Event, conn *Connection) error {
	for _, stmt := range s.Statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return errors.Annotatef(err, "session init %q", stmt)
		}
	}
	return nil
}
