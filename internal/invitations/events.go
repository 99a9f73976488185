package invitations

import (
	"sync"
	"time"
)

// Event is a notification about an invitation. Concrete types are SentEvent
// and AcceptedEvent.
type Event interface {
	EventInvitation() *Invitation
}

// SentEvent signals that an invitation was issued to its receiver.
type SentEvent struct {
	Invitation *Invitation
}

func (e SentEvent) EventInvitation() *Invitation { return e.Invitation }

// AcceptedEvent signals that an invitation was redeemed by a user.
type AcceptedEvent struct {
	Invitation *Invitation
	User       User
}

func (e AcceptedEvent) EventInvitation() *Invitation { return e.Invitation }

// Bus delivers events synchronously to explicitly registered subscribers.
// Publication is fire-and-forget: there is no return value and zero
// subscribers is fine.
type Bus struct {
	mu          sync.RWMutex
	subscribers []func(Event)
}

// NewBus creates an event bus with the sent-time subscriber installed.
func NewBus() *Bus {
	b := &Bus{}
	b.Subscribe(StampSentTime)
	return b
}

// Subscribe registers a listener for all events.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = append(b.subscribers, fn)
}

// Publish delivers the event to every subscriber in registration order.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subscribers := make([]func(Event), len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.RUnlock()

	for _, fn := range subscribers {
		fn(evt)
	}
}

// StampSentTime records the sent time on the invitation when a SentEvent is
// published.
func StampSentTime(evt Event) {
	if e, ok := evt.(SentEvent); ok {
		e.Invitation.Sent = time.Now().Unix()
	}
}
