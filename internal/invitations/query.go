package invitations

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

// QueryFilter narrows catalog queries. An empty field means no constraint
// on that dimension; values within a field combine with OR.
type QueryFilter struct {
	Sites     []string
	Senders   []string
	Receivers []string
	MimeTypes []string
}

func anyStrings(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// apply adds the filter's non-empty dimensions to the query.
func (f QueryFilter) apply(q Query) {
	if len(f.Receivers) > 0 {
		q[IxReceiver] = AnyOf(anyStrings(f.Receivers)...)
	}
	if len(f.Senders) > 0 {
		q[IxSender] = AnyOf(anyStrings(f.Senders)...)
	}
	if len(f.MimeTypes) > 0 {
		q[IxMimeType] = AnyOf(anyStrings(f.MimeTypes)...)
	}
	if len(f.Sites) > 0 {
		q[IxSite] = AnyOf(anyStrings(f.Sites)...)
	}
}

// cacheKey builds the cache key for a query. Catalog ids are allocated per
// process, so keys carry the service instance's salt; a cache that outlives
// the process must never serve one instance's ids to another.
func (f QueryFilter) cacheKey(salt, kind string, extra ...string) string {
	parts := []string{"invitations", "q", salt, kind}
	for _, values := range [][]string{f.Sites, f.Senders, f.Receivers, f.MimeTypes} {
		sorted := append([]string(nil), values...)
		sort.Strings(sorted)
		parts = append(parts, strings.Join(sorted, ","))
	}
	parts = append(parts, extra...)
	return strings.Join(parts, ":")
}

// InvitationIDs returns the ids of invitations matching the filter. With no
// constraints at all it returns every indexed document.
func (s *service) InvitationIDs(ctx context.Context, filter QueryFilter) []int64 {
	defer s.metrics.ObserveQuery("invitations", time.Now())

	key := filter.cacheKey(s.cacheSalt, "all")
	if ids, ok := s.cachedIDs(ctx, key); ok {
		return ids
	}

	query := make(Query)
	filter.apply(query)
	ids := s.catalog.Apply(query).Sorted()

	s.cacheIDs(ctx, key, ids)
	return ids
}

// Invitations returns the invitations matching the filter.
func (s *service) Invitations(ctx context.Context, filter QueryFilter) []*Invitation {
	return s.resolve(s.InvitationIDs(ctx, filter))
}

// PendingInvitationIDs returns ids of invitations that are not accepted and
// either never expire or expire after now. A zero now means the current
// time.
func (s *service) PendingInvitationIDs(ctx context.Context, filter QueryFilter, now int64) []int64 {
	defer s.metrics.ObserveQuery("pending", time.Now())

	if now == 0 {
		now = time.Now().Unix()
	}

	query := Query{
		IxAccepted:   AnyOf(false),
		IxExpiryTime: AnyOf(int64(0)),
	}
	filter.apply(query)

	// pending with no expiry
	noExpiry := s.catalog.Apply(query)

	// pending with an expiration still in the future
	query[IxExpiryTime] = Between(now, MaxTimestamp)
	inBetween := s.catalog.Apply(query)

	return Multiunion(noExpiry, inBetween).Sorted()
}

// PendingInvitations returns the pending invitations themselves.
func (s *service) PendingInvitations(ctx context.Context, filter QueryFilter, now int64) []*Invitation {
	return s.resolve(s.PendingInvitationIDs(ctx, filter, now))
}

// HasPendingInvitations reports whether any invitation matching the filter
// is still pending.
func (s *service) HasPendingInvitations(ctx context.Context, filter QueryFilter, now int64) bool {
	return len(s.PendingInvitationIDs(ctx, filter, now)) > 0
}

// ExpiredInvitationIDs returns ids of unaccepted invitations whose expiry
// has passed. The range floor of 60 avoids matching the never-expires
// marker, and the default upper bound lags the current time by 60 seconds
// so invitations expiring in the same tick they were created get a short
// grace window before cleanup. An explicit now is used as the upper bound
// as given.
func (s *service) ExpiredInvitationIDs(ctx context.Context, filter QueryFilter, now int64) []int64 {
	defer s.metrics.ObserveQuery("expired", time.Now())

	if now == 0 {
		now = time.Now().Unix() - 60
	}

	query := Query{
		IxAccepted:   AnyOf(false),
		IxExpiryTime: Between(60, now),
	}
	filter.apply(query)

	return s.catalog.Apply(query).Sorted()
}

// ExpiredInvitations returns the expired invitations themselves.
func (s *service) ExpiredInvitations(ctx context.Context, filter QueryFilter, now int64) []*Invitation {
	return s.resolve(s.ExpiredInvitationIDs(ctx, filter, now))
}

// SentInvitationIDs returns ids of invitations whose accepted state matches
// the given flag, narrowed by the filter's senders, sites and mime types.
func (s *service) SentInvitationIDs(ctx context.Context, filter QueryFilter, accepted bool) []int64 {
	defer s.metrics.ObserveQuery("sent", time.Now())

	key := filter.cacheKey(s.cacheSalt, "sent", strconv.FormatBool(accepted))
	if ids, ok := s.cachedIDs(ctx, key); ok {
		return ids
	}

	query := Query{
		IxAccepted: AnyOf(accepted),
	}
	filter.apply(query)
	ids := s.catalog.Apply(query).Sorted()

	s.cacheIDs(ctx, key, ids)
	return ids
}

// SentInvitations returns the sent invitations themselves.
func (s *service) SentInvitations(ctx context.Context, filter QueryFilter, accepted bool) []*Invitation {
	return s.resolve(s.SentInvitationIDs(ctx, filter, accepted))
}

// DeleteExpiredInvitations removes every expired invitation matching the
// filter from the container and returns the removed invitations.
func (s *service) DeleteExpiredInvitations(ctx context.Context, filter QueryFilter, now int64) []*Invitation {
	expired := s.ExpiredInvitations(ctx, filter, now)

	removed := make([]*Invitation, 0, len(expired))
	for _, inv := range expired {
		if !s.container.Remove(inv) {
			continue
		}
		if s.store != nil {
			if err := s.store.Delete(ctx, inv.Code); err != nil {
				s.log.WithCode(inv.Code).Error("failed to delete expired invitation from store", err)
			}
		}
		removed = append(removed, inv)
	}

	if len(removed) > 0 {
		s.metrics.ExpiredDeleted(len(removed))
		s.invalidateQueryCache(ctx)
		s.log.WithField("count", len(removed)).Info("expired invitations deleted")
	}
	return removed
}

// resolve maps catalog ids back to invitations, dropping ids whose object
// is gone.
func (s *service) resolve(ids []int64) []*Invitation {
	result := make([]*Invitation, 0, len(ids))
	for _, id := range ids {
		if inv := s.intids.QueryObject(id); inv != nil {
			result = append(result, inv)
		}
	}
	return result
}

func (s *service) cachedIDs(ctx context.Context, key string) ([]int64, bool) {
	if s.cache == nil {
		return nil, false
	}
	var ids []int64
	if err := s.cache.Get(ctx, key, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func (s *service) cacheIDs(ctx context.Context, key string, ids []int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, ids, s.cacheTTL); err != nil {
		s.log.Debugf("failed to cache query result: %v", err)
	}
}

func (s *service) invalidateQueryCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, "invitations:q:*"); err != nil {
		s.log.Debugf("failed to invalidate query cache: %v", err)
	}
}
