package audit

import (
	"time"
)

// Record is a journal entry for an invitation event.
type Record struct {
	ID        string    `msgpack:"id"`
	EventType string    `msgpack:"event_type"`
	Site      string    `msgpack:"site"`
	Sender    string    `msgpack:"sender"`
	Receiver  string    `msgpack:"receiver"`
	Code      string    `msgpack:"code"`
	Actor     string    `msgpack:"actor"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// Event types recorded by the journal.
const (
	EventTypeInvitationSent     = "invitation.sent"
	EventTypeInvitationAccepted = "invitation.accepted"
)

// QueryFilter represents filtering criteria for journal queries. Empty
// fields are unconstrained.
type QueryFilter struct {
	Site      string
	Sender    string
	EventType string
	Code      string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}
