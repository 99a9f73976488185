package audit

import (
	"github.com/victoralfred/invite_manager/internal/invitations"
	"github.com/victoralfred/invite_manager/pkg/logger"
)

// Subscriber returns an event bus listener that journals Sent and Accepted
// invitation events.
func Subscriber(journal *Journal, log *logger.Logger) func(invitations.Event) {
	return func(evt invitations.Event) {
		var rec *Record
		switch e := evt.(type) {
		case invitations.SentEvent:
			rec = &Record{
				EventType: EventTypeInvitationSent,
				Site:      e.Invitation.Site(),
				Sender:    e.Invitation.SenderName(),
				Receiver:  e.Invitation.Receiver,
				Code:      e.Invitation.Code,
			}
		case invitations.AcceptedEvent:
			rec = &Record{
				EventType: EventTypeInvitationAccepted,
				Site:      e.Invitation.Site(),
				Sender:    e.Invitation.SenderName(),
				Receiver:  e.Invitation.Receiver,
				Code:      e.Invitation.Code,
				Actor:     e.User.Username(),
			}
		default:
			return
		}

		if err := journal.Record(rec); err != nil {
			log.WithCode(rec.Code).Error("failed to journal invitation event", err)
		}
	}
}
