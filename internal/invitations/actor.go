package invitations

import (
	"context"
	"sync"
)

// User is the identity accepting an invitation.
type User interface {
	// Username returns the canonical account identifier. It replaces the
	// invitation's receiver once the invitation is redeemed.
	Username() string
}

// KindedUser is a user exposing a kind for actor resolution. Users without
// a kind resolve through the invitation-kind fallback alone.
type KindedUser interface {
	User
	Kind() string
}

// Actor performs the side effect of accepting an invitation. The boolean
// result is the source of truth for whether acceptance actually happened;
// an actor may decline without error, for example when it does not
// recognize the target entity.
type Actor interface {
	Accept(ctx context.Context, user User, inv *Invitation) (bool, error)
}

// ActorFunc adapts a function to the Actor interface.
type ActorFunc func(ctx context.Context, user User, inv *Invitation) (bool, error)

func (f ActorFunc) Accept(ctx context.Context, user User, inv *Invitation) (bool, error) {
	return f(ctx, user, inv)
}

type actorKey struct {
	invitationKind string
	userKind       string
}

// ActorRegistry resolves actors by invitation kind (the mime type tag) and
// optionally the user kind. Resolution tries the specific
// (invitation, user) pair first and falls back to the invitation kind
// alone.
type ActorRegistry struct {
	mu    sync.RWMutex
	pairs map[actorKey]Actor
	kinds map[string]Actor
}

// NewActorRegistry creates an empty registry.
func NewActorRegistry() *ActorRegistry {
	return &ActorRegistry{
		pairs: make(map[actorKey]Actor),
		kinds: make(map[string]Actor),
	}
}

// Register binds an actor to an invitation kind.
func (r *ActorRegistry) Register(invitationKind string, actor Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds[invitationKind] = actor
}

// RegisterPair binds an actor to a specific (invitation, user) kind pair.
func (r *ActorRegistry) RegisterPair(invitationKind, userKind string, actor Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pairs[actorKey{invitationKind: invitationKind, userKind: userKind}] = actor
}

// Resolve returns the actor for the invitation and user, or nil. The pair
// binding wins over the invitation-kind binding.
func (r *ActorRegistry) Resolve(inv *Invitation, user User) Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ku, ok := user.(KindedUser); ok {
		if actor, ok := r.pairs[actorKey{invitationKind: inv.MimeType, userKind: ku.Kind()}]; ok {
			return actor
		}
	}
	return r.kinds[inv.MimeType]
}
