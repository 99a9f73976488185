package invitations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/victoralfred/invite_manager/pkg/cache"
	"github.com/victoralfred/invite_manager/pkg/logger"
	"github.com/victoralfred/invite_manager/pkg/metrics"
)

// Service is the invitation business logic: issuing, querying and accepting
// invitations.
type Service interface {
	Send(ctx context.Context, inv *Invitation) error
	Remove(ctx context.Context, inv *Invitation) bool

	Accept(ctx context.Context, user User, inv *Invitation) (bool, error)
	AcceptByCode(ctx context.Context, user User, code string) (bool, error)
	AcceptByCodes(ctx context.Context, user User, codes []string) (map[string]*Invitation, error)

	InvitationIDs(ctx context.Context, filter QueryFilter) []int64
	Invitations(ctx context.Context, filter QueryFilter) []*Invitation
	PendingInvitationIDs(ctx context.Context, filter QueryFilter, now int64) []int64
	PendingInvitations(ctx context.Context, filter QueryFilter, now int64) []*Invitation
	HasPendingInvitations(ctx context.Context, filter QueryFilter, now int64) bool
	ExpiredInvitationIDs(ctx context.Context, filter QueryFilter, now int64) []int64
	ExpiredInvitations(ctx context.Context, filter QueryFilter, now int64) []*Invitation
	SentInvitationIDs(ctx context.Context, filter QueryFilter, accepted bool) []int64
	SentInvitations(ctx context.Context, filter QueryFilter, accepted bool) []*Invitation
	DeleteExpiredInvitations(ctx context.Context, filter QueryFilter, now int64) []*Invitation
}

// ServiceConfig carries the service's collaborators. Container, Catalog,
// IntIDs, Actors, Bus and Log are required; Store, Cache and Sites are
// optional.
type ServiceConfig struct {
	Container *Container
	Catalog   *Catalog
	IntIDs    *IntIDRegistry
	Actors    *ActorRegistry
	Bus       *Bus
	Sites     SiteResolver
	Store     Store
	Cache     cache.Cache
	CacheTTL  time.Duration
	Log       *logger.Logger
	Metrics   *metrics.Recorder
}

type service struct {
	container *Container
	catalog   *Catalog
	intids    *IntIDRegistry
	actors    *ActorRegistry
	bus       *Bus
	sites     SiteResolver
	store     Store
	cache     cache.Cache
	cacheTTL  time.Duration
	cacheSalt string
	log       *logger.Logger
	metrics   *metrics.Recorder
}

// NewService creates the invitation service.
func NewService(cfg ServiceConfig) Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &service{
		container: cfg.Container,
		catalog:   cfg.Catalog,
		intids:    cfg.IntIDs,
		actors:    cfg.Actors,
		bus:       cfg.Bus,
		sites:     cfg.Sites,
		store:     cfg.Store,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		cacheSalt: uuid.New().String(),
		log:       cfg.Log,
		metrics:   cfg.Metrics,
	}
}

// Send stamps the invitation's site, adds it to the container (assigning a
// code when absent) and publishes a SentEvent.
func (s *service) Send(ctx context.Context, inv *Invitation) error {
	inv.ResolveSite(ctx, s.sites)

	if err := s.container.Add(inv); err != nil {
		return err
	}

	if s.store != nil {
		if err := s.store.Create(ctx, inv); err != nil {
			s.container.Remove(inv)
			return fmt.Errorf("failed to persist invitation: %w", err)
		}
	}

	s.metrics.InvitationCreated()
	s.invalidateQueryCache(ctx)
	s.bus.Publish(SentEvent{Invitation: inv})

	s.log.WithCode(inv.Code).WithSite(inv.Site()).
		WithField("receiver", inv.Receiver).Info("invitation sent")
	return nil
}

// Remove deletes the invitation from the container and the durable store.
func (s *service) Remove(ctx context.Context, inv *Invitation) bool {
	if !s.container.Remove(inv) {
		return false
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, inv.Code); err != nil {
			s.log.WithCode(inv.Code).Error("failed to delete invitation from store", err)
		}
	}
	s.invalidateQueryCache(ctx)
	return true
}

// Accept redeems the invitation for the user. Expired invitations fail with
// InvitationExpiredError, an unresolvable actor with InvitationActorError;
// neither mutates state. The actor's boolean result decides whether
// acceptance happened: on true the invitation is marked accepted, the
// receiver is bound to the user's canonical identifier and exactly one
// AcceptedEvent is published.
func (s *service) Accept(ctx context.Context, user User, inv *Invitation) (bool, error) {
	log := s.log.WithCode(inv.Code).WithUser(user.Username())

	if inv.IsExpired(0) {
		s.metrics.AcceptFailed(metrics.ReasonExpired)
		return false, &InvitationExpiredError{Invitation: inv}
	}

	actor := s.actors.Resolve(inv, user)
	if actor == nil {
		s.metrics.AcceptFailed(metrics.ReasonNoActor)
		return false, &InvitationActorError{Invitation: inv}
	}

	accepted, err := actor.Accept(ctx, user, inv)
	if err != nil {
		s.metrics.AcceptFailed(metrics.ReasonActorFailure)
		return false, fmt.Errorf("invitation actor failed: %w", err)
	}
	if !accepted {
		s.metrics.InvitationDeclined()
		log.Debug("actor declined invitation")
		return false, nil
	}

	inv.Accepted = true
	inv.AcceptedTime = time.Now().Unix()
	inv.Receiver = user.Username()
	inv.Touch()

	if id, ok := s.intids.ID(inv); ok {
		s.catalog.IndexDoc(id, inv)
	}
	if s.store != nil {
		// The actor's side effect already happened; a store failure here is
		// logged rather than surfaced so the caller sees the acceptance.
		if err := s.store.Update(ctx, inv); err != nil {
			log.Error("failed to persist accepted invitation", err)
		}
	}

	s.invalidateQueryCache(ctx)
	s.bus.Publish(AcceptedEvent{Invitation: inv, User: user})
	s.metrics.InvitationAccepted()

	log.Info("invitation accepted")
	return true, nil
}

// AcceptByCode looks the invitation up by code and accepts it. An unknown
// code fails with InvitationCodeError.
func (s *service) AcceptByCode(ctx context.Context, user User, code string) (bool, error) {
	inv := s.container.GetInvitationByCode(code)
	if inv == nil {
		s.metrics.AcceptFailed(metrics.ReasonUnknownCode)
		return false, &InvitationCodeError{Code: code}
	}
	return s.Accept(ctx, user, inv)
}

// AcceptByCodes accepts every invitation in the code list, returning the
// invitations whose acceptance actually happened keyed by code. The first
// error aborts the walk.
func (s *service) AcceptByCodes(ctx context.Context, user User, codes []string) (map[string]*Invitation, error) {
	result := make(map[string]*Invitation)
	for _, code := range codes {
		inv := s.container.GetInvitationByCode(code)
		if inv == nil {
			s.metrics.AcceptFailed(metrics.ReasonUnknownCode)
			return result, &InvitationCodeError{Code: code}
		}
		accepted, err := s.Accept(ctx, user, inv)
		if err != nil {
			return result, err
		}
		if accepted {
			result[code] = inv
		}
	}
	return result, nil
}
