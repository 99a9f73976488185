package invitations

import "fmt"

// InvitationCodeError is returned when a lookup by code finds nothing.
type InvitationCodeError struct {
	Code string
}

func (e *InvitationCodeError) Error() string {
	return fmt.Sprintf("invitation code %q is not valid", e.Code)
}

// DuplicateInvitationCodeError is returned when an invitation is added with
// a code already present in the container, or already stored durably.
type DuplicateInvitationCodeError struct {
	Code string
}

func (e *DuplicateInvitationCodeError) Error() string {
	return fmt.Sprintf("invitation code %q is already in use", e.Code)
}

// InvitationExpiredError is returned when acceptance is attempted on an
// expired invitation. The offending invitation is attached for context.
type InvitationExpiredError struct {
	Invitation *Invitation
}

func (e *InvitationExpiredError) Error() string {
	return fmt.Sprintf("invitation %q has expired", e.Invitation.Code)
}

// InvitationActorError is returned when no actor resolves for an
// (invitation, user) pair.
type InvitationActorError struct {
	Invitation *Invitation
}

func (e *InvitationActorError) Error() string {
	return fmt.Sprintf("no actor available for invitation %q", e.Invitation.Code)
}
