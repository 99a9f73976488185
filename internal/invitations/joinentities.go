package invitations

import (
	"context"

	"github.com/victoralfred/invite_manager/pkg/logger"
)

// JoinEntitiesMimeType tags invitations that grant membership in a fixed
// set of entities.
const JoinEntitiesMimeType = "application/vnd.invitations.join-entities"

// EntityFinder resolves entity names to entities. A nil entity with a nil
// error means the entity does not exist.
type EntityFinder interface {
	Find(ctx context.Context, name string) (any, error)
}

// Community is an entity that accepts dynamic membership and followers.
type Community interface {
	RecordDynamicMembership(user User) error
	RecordFollower(user User) error
}

// MemberList is a simple group entity with an explicit member roster.
type MemberList interface {
	AddMember(user User) error
}

// JoinEntitiesActor joins the accepting user to each of the configured
// entities. Entities that cannot be resolved or whose capability is not
// recognized are logged and skipped; the overall result is true when at
// least one join succeeded.
type JoinEntitiesActor struct {
	Entities []string
	Finder   EntityFinder
	Log      *logger.Logger
}

// NewJoinEntitiesActor creates an actor joining users to the named entities.
func NewJoinEntitiesActor(entities []string, finder EntityFinder, log *logger.Logger) *JoinEntitiesActor {
	return &JoinEntitiesActor{Entities: entities, Finder: finder, Log: log}
}

func (a *JoinEntitiesActor) Accept(ctx context.Context, user User, inv *Invitation) (bool, error) {
	result := false
	for _, name := range a.Entities {
		entity, err := a.Finder.Find(ctx, name)
		if err != nil {
			a.Log.WithField("entity", name).Error("failed to resolve entity", err)
			continue
		}
		if entity == nil {
			a.Log.WithField("entity", name).Warn("cannot join non-existent entity")
			continue
		}
		if a.join(entity, name, user) {
			result = true
		}
	}
	return result, nil
}

func (a *JoinEntitiesActor) join(entity any, name string, user User) bool {
	log := a.Log.WithField("entity", name).WithUser(user.Username())
	switch e := entity.(type) {
	case Community:
		log.Info("joining community")
		if err := e.RecordDynamicMembership(user); err != nil {
			log.Error("failed to record membership", err)
			return false
		}
		if err := e.RecordFollower(user); err != nil {
			log.Error("failed to record follow", err)
			return false
		}
		return true
	case MemberList:
		log.Info("joining member list")
		if err := e.AddMember(user); err != nil {
			log.Error("failed to add member", err)
			return false
		}
		return true
	default:
		log.Warn("don't know how to join entity")
		return false
	}
}
