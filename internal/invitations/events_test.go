package invitations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublish(t *testing.T) {
	t.Run("should deliver to subscribers in order", func(t *testing.T) {
		bus := &Bus{}

		var order []string
		bus.Subscribe(func(Event) { order = append(order, "first") })
		bus.Subscribe(func(Event) { order = append(order, "second") })

		bus.Publish(SentEvent{Invitation: NewInvitation("ichigo", "aizen")})
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("should tolerate zero subscribers", func(t *testing.T) {
		bus := &Bus{}
		bus.Publish(SentEvent{Invitation: NewInvitation("ichigo", "aizen")})
	})
}

func TestStampSentTime(t *testing.T) {
	t.Run("should stamp the sent time on publish", func(t *testing.T) {
		bus := NewBus()

		inv := NewInvitation("ichigo", "aizen")
		require.Zero(t, inv.Sent)

		bus.Publish(SentEvent{Invitation: inv})
		assert.NotZero(t, inv.Sent)
	})

	t.Run("should ignore accepted events", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		StampSentTime(AcceptedEvent{Invitation: inv, User: testUser{name: "sosuke"}})
		assert.Zero(t, inv.Sent)
	})
}

func TestEventInvitation(t *testing.T) {
	inv := NewInvitation("ichigo", "aizen")

	assert.Same(t, inv, SentEvent{Invitation: inv}.EventInvitation())
	assert.Same(t, inv, AcceptedEvent{Invitation: inv}.EventInvitation())
}
