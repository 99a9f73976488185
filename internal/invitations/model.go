package invitations

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SystemUserName is the sender recorded for invitations issued by the
	// platform itself rather than by a concrete user.
	SystemUserName = "system"

	// InvitationMimeType is the default type tag for invitation objects.
	// Specialized invitation kinds may carry their own tag; the catalog and
	// the actor registry key off this value.
	InvitationMimeType = "application/vnd.invitations.invitation"
)

// Invitation grants a receiver permission to perform a gated action once
// accepted. Timestamps are epoch seconds; an ExpiryTime of zero means the
// invitation never expires.
type Invitation struct {
	Code     string
	Sender   string
	Receiver string

	MimeType string

	Accepted     bool
	AcceptedTime int64
	Sent         int64
	ExpiryTime   int64

	CreatedTime  int64
	LastModified int64

	// site is resolved lazily from the ambient tenant context and cached.
	// Read it through Site or ResolveSite.
	site string
}

// NewInvitation creates an invitation for the given receiver. The code is
// assigned by the container on Add when left empty.
func NewInvitation(sender, receiver string) *Invitation {
	now := time.Now().Unix()
	return &Invitation{
		Sender:       sender,
		Receiver:     receiver,
		MimeType:     InvitationMimeType,
		CreatedTime:  now,
		LastModified: now,
	}
}

// SenderName returns the sender, or the system user identity when the
// invitation was created without one.
func (i *Invitation) SenderName() string {
	if i.Sender == "" {
		return SystemUserName
	}
	return i.Sender
}

// IsEmail reports whether the receiver is syntactically an email address.
func (i *Invitation) IsEmail() bool {
	if i.Receiver == "" {
		return false
	}
	addr, err := mail.ParseAddress(i.Receiver)
	return err == nil && addr.Address == i.Receiver
}

// IsExpired reports whether the invitation has expired at the given time.
// A zero now means the current time. Invitations without an expiry never
// expire.
func (i *Invitation) IsExpired(now int64) bool {
	if i.ExpiryTime == 0 {
		return false
	}
	if now == 0 {
		now = time.Now().Unix()
	}
	return i.ExpiryTime <= now
}

// IsAccepted reports whether the invitation has been redeemed. The accepted
// flag is authoritative; an acceptance timestamp set by older callers that
// never flipped the flag counts as well.
func (i *Invitation) IsAccepted() bool {
	return i.Accepted || i.AcceptedTime != 0
}

// Site returns the cached tenant site, or empty when not yet resolved.
func (i *Invitation) Site() string {
	return i.site
}

// SetSite caches the tenant site directly, bypassing resolution. Used when
// rehydrating invitations from durable storage.
func (i *Invitation) SetSite(site string) {
	i.site = site
}

// ResolveSite resolves the tenant site through the given resolver on first
// call and caches the result. Subsequent calls return the cached value
// without consulting the resolver again.
func (i *Invitation) ResolveSite(ctx context.Context, resolver SiteResolver) string {
	if i.site == "" && resolver != nil {
		i.site = resolver.CurrentSite(ctx)
	}
	return i.site
}

// Touch stamps the last-modified time.
func (i *Invitation) Touch() {
	i.LastModified = time.Now().Unix()
}

// Before orders invitations by (code, createdTime). The second return value
// is false when no order is defined, i.e. the other operand is nil.
func (i *Invitation) Before(other *Invitation) (less, ok bool) {
	if other == nil {
		return false, false
	}
	if i.Code != other.Code {
		return i.Code < other.Code, true
	}
	return i.CreatedTime < other.CreatedTime, true
}

// RandomInvitationCode generates a fresh invitation code of the form
// XXX-XXX-XXXX from the tail of a random UUID. Uniqueness within a
// container is enforced by the container, not here.
func RandomInvitationCode() string {
	s := uuid.New().String()
	tail := strings.ToUpper(s[len(s)-12:])[:10]
	return tail[0:3] + "-" + tail[3:6] + "-" + tail[6:10]
}
