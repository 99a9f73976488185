package invitations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victoralfred/invite_manager/pkg/cache"
	"github.com/victoralfred/invite_manager/pkg/logger"
)

// sendWithExpiry issues an invitation with the given expiry and returns it
// with its catalog id.
func sendWithExpiry(t *testing.T, f *serviceFixture, sender, receiver string, expiry int64) (*Invitation, int64) {
	t.Helper()

	inv := NewInvitation(sender, receiver)
	inv.ExpiryTime = expiry
	require.NoError(t, f.svc.Send(context.Background(), inv))

	id, ok := f.intids.ID(inv)
	require.True(t, ok)
	return inv, id
}

func TestPendingAndExpiredQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Unix()

	f := newServiceFixture(t)
	_, never := sendWithExpiry(t, f, "ichigo", "aizen", 0)
	stale, past := sendWithExpiry(t, f, "ichigo", "rukia", now-2000)
	_, future := sendWithExpiry(t, f, "urahara", "yoruichi", now+1000)

	t.Run("should report never-expiring and future invitations as pending", func(t *testing.T) {
		ids := f.svc.PendingInvitationIDs(ctx, QueryFilter{}, now)
		assert.ElementsMatch(t, []int64{never, future}, ids)
	})

	t.Run("should report only stale invitations as expired", func(t *testing.T) {
		ids := f.svc.ExpiredInvitationIDs(ctx, QueryFilter{}, now)
		assert.Equal(t, []int64{past}, ids)
	})

	t.Run("should partition pending and expired disjointly", func(t *testing.T) {
		pending := NewIDSet(f.svc.PendingInvitationIDs(ctx, QueryFilter{}, now)...)
		for _, id := range f.svc.ExpiredInvitationIDs(ctx, QueryFilter{}, now) {
			assert.False(t, pending.Contains(id))
		}
	})

	t.Run("should be idempotent", func(t *testing.T) {
		first := f.svc.PendingInvitationIDs(ctx, QueryFilter{}, now)
		second := f.svc.PendingInvitationIDs(ctx, QueryFilter{}, now)
		assert.Equal(t, first, second)
	})

	t.Run("should resolve pending ids to invitations", func(t *testing.T) {
		pending := f.svc.PendingInvitations(ctx, QueryFilter{}, now)
		require.Len(t, pending, 2)
		for _, inv := range pending {
			assert.NotSame(t, stale, inv)
		}
	})

	t.Run("should report pending presence", func(t *testing.T) {
		assert.True(t, f.svc.HasPendingInvitations(ctx, QueryFilter{}, now))
		assert.False(t, f.svc.HasPendingInvitations(ctx,
			QueryFilter{Senders: []string{"nobody"}}, now))
	})

	t.Run("should narrow by sender", func(t *testing.T) {
		ids := f.svc.PendingInvitationIDs(ctx, QueryFilter{Senders: []string{"urahara"}}, now)
		assert.Equal(t, []int64{future}, ids)
	})
}

func TestPendingExcludesAccepted(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Unix()

	f := newServiceFixture(t)
	f.actors.Register(InvitationMimeType, ActorFunc(acceptAll))

	inv, id := sendWithExpiry(t, f, "ichigo", "aizen", 0)
	_, other := sendWithExpiry(t, f, "rukia", "byakuya", 0)

	ok, err := f.svc.Accept(ctx, testUser{name: "sosuke"}, inv)
	require.NoError(t, err)
	require.True(t, ok)

	ids := f.svc.PendingInvitationIDs(ctx, QueryFilter{}, now)
	assert.Equal(t, []int64{other}, ids)
	assert.NotContains(t, ids, id)
}

func TestNeverExpiringInvitations(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Unix()

	f := newServiceFixture(t)
	_, id := sendWithExpiry(t, f, "ichigo", "aizen", 0)

	// No expiry means pending forever and never expired, at any probe time
	for _, probe := range []int64{now, now + 1000000, now + 100000000} {
		assert.Contains(t, f.svc.PendingInvitationIDs(ctx, QueryFilter{}, probe), id)
		assert.Empty(t, f.svc.ExpiredInvitationIDs(ctx, QueryFilter{}, probe))
	}
}

func TestSentQueries(t *testing.T) {
	ctx := context.Background()

	f := newServiceFixture(t)
	f.actors.Register(InvitationMimeType, ActorFunc(acceptAll))

	accepted, acceptedID := sendWithExpiry(t, f, "ichigo", "aizen", 0)
	_, openID := sendWithExpiry(t, f, "ichigo", "rukia", 0)

	ok, err := f.svc.Accept(ctx, testUser{name: "sosuke"}, accepted)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("should split sent invitations by accepted state", func(t *testing.T) {
		assert.Equal(t, []int64{acceptedID}, f.svc.SentInvitationIDs(ctx, QueryFilter{}, true))
		assert.Equal(t, []int64{openID}, f.svc.SentInvitationIDs(ctx, QueryFilter{}, false))
	})

	t.Run("should narrow sent invitations by filter", func(t *testing.T) {
		ids := f.svc.SentInvitationIDs(ctx, QueryFilter{Senders: []string{"ichigo"}}, false)
		assert.Equal(t, []int64{openID}, ids)

		ids = f.svc.SentInvitationIDs(ctx, QueryFilter{Senders: []string{"urahara"}}, false)
		assert.Empty(t, ids)
	})

	t.Run("should resolve sent ids to invitations", func(t *testing.T) {
		sent := f.svc.SentInvitations(ctx, QueryFilter{}, true)
		require.Len(t, sent, 1)
		assert.Same(t, accepted, sent[0])
	})
}

func TestInvitationsQuery(t *testing.T) {
	ctx := context.Background()

	f := newServiceFixture(t)
	a, aID := sendWithExpiry(t, f, "ichigo", "aizen", 0)
	b, bID := sendWithExpiry(t, f, "urahara", "yoruichi", 0)

	t.Run("should return everything for an empty filter", func(t *testing.T) {
		assert.ElementsMatch(t, []int64{aID, bID}, f.svc.InvitationIDs(ctx, QueryFilter{}))
		assert.ElementsMatch(t, []*Invitation{a, b}, f.svc.Invitations(ctx, QueryFilter{}))
	})

	t.Run("should OR values within a filter dimension", func(t *testing.T) {
		ids := f.svc.InvitationIDs(ctx, QueryFilter{Senders: []string{"ichigo", "urahara"}})
		assert.ElementsMatch(t, []int64{aID, bID}, ids)
	})

	t.Run("should AND across filter dimensions", func(t *testing.T) {
		ids := f.svc.InvitationIDs(ctx, QueryFilter{
			Senders:   []string{"ichigo"},
			Receivers: []string{"yoruichi"},
		})
		assert.Empty(t, ids)
	})
}

func TestDeleteExpiredInvitations(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Unix()

	f := newServiceFixture(t)
	stale, _ := sendWithExpiry(t, f, "ichigo", "aizen", now-2000)
	fresh, freshID := sendWithExpiry(t, f, "urahara", "yoruichi", now+1000)

	removed := f.svc.DeleteExpiredInvitations(ctx, QueryFilter{}, now)

	require.Len(t, removed, 1)
	assert.Same(t, stale, removed[0])
	assert.Nil(t, f.container.GetInvitationByCode(stale.Code))
	assert.Same(t, fresh, f.container.GetInvitationByCode(fresh.Code))
	assert.Equal(t, []int64{freshID}, f.svc.InvitationIDs(ctx, QueryFilter{}))

	// A second sweep finds nothing
	assert.Empty(t, f.svc.DeleteExpiredInvitations(ctx, QueryFilter{}, now))
}

func TestQueryCacheInvalidation(t *testing.T) {
	ctx := context.Background()

	intids := NewIntIDRegistry()
	catalog := NewCatalog()
	container := NewContainer(intids, catalog)

	svc := NewService(ServiceConfig{
		Container: container,
		Catalog:   catalog,
		IntIDs:    intids,
		Actors:    NewActorRegistry(),
		Bus:       NewBus(),
		Cache:     cache.NewInMemoryCache(),
		CacheTTL:  time.Minute,
		Log:       logger.New("error", "test"),
	})

	first := NewInvitation("ichigo", "aizen")
	require.NoError(t, svc.Send(ctx, first))
	require.Len(t, svc.InvitationIDs(ctx, QueryFilter{}), 1)

	// The next Send must not serve the cached one-element answer
	second := NewInvitation("rukia", "byakuya")
	require.NoError(t, svc.Send(ctx, second))
	assert.Len(t, svc.InvitationIDs(ctx, QueryFilter{}), 2)
}

func TestQueryCacheScopedPerInstance(t *testing.T) {
	ctx := context.Background()
	shared := cache.NewInMemoryCache()
	defer shared.Close()

	newInstance := func() (Service, *Container) {
		intids := NewIntIDRegistry()
		catalog := NewCatalog()
		container := NewContainer(intids, catalog)
		svc := NewService(ServiceConfig{
			Container: container,
			Catalog:   catalog,
			IntIDs:    intids,
			Actors:    NewActorRegistry(),
			Bus:       NewBus(),
			Cache:     shared,
			CacheTTL:  time.Minute,
			Log:       logger.New("error", "test"),
		})
		return svc, container
	}

	// First instance issues two invitations and warms the cache
	svcA, _ := newInstance()
	fromIchigo := NewInvitation("ichigo", "aizen")
	fromRukia := NewInvitation("rukia", "byakuya")
	require.NoError(t, svcA.Send(ctx, fromIchigo))
	require.NoError(t, svcA.Send(ctx, fromRukia))

	got := svcA.Invitations(ctx, QueryFilter{Senders: []string{"ichigo"}})
	require.Len(t, got, 1)
	require.Equal(t, "ichigo", got[0].Sender)

	// A second instance rebuilds from durable storage in a different order,
	// so the same invitations land on different catalog ids. The warm cache
	// must not resolve the old instance's ids against the new registry.
	svcB, containerB := newInstance()
	require.NoError(t, containerB.Add(fromRukia))
	require.NoError(t, containerB.Add(fromIchigo))

	got = svcB.Invitations(ctx, QueryFilter{Senders: []string{"ichigo"}})
	require.Len(t, got, 1)
	assert.Equal(t, "ichigo", got[0].Sender)
}
