package invitations

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitationIsEmail(t *testing.T) {
	t.Run("should accept a valid email receiver", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen@bleach.org")
		assert.True(t, inv.IsEmail())
	})

	t.Run("should reject a username receiver", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		assert.False(t, inv.IsEmail())
	})

	t.Run("should reject an empty receiver", func(t *testing.T) {
		inv := NewInvitation("ichigo", "")
		assert.False(t, inv.IsEmail())
	})
}

func TestInvitationIsExpired(t *testing.T) {
	now := time.Now().Unix()

	t.Run("should never expire without an expiry time", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		assert.False(t, inv.IsExpired(0))
		assert.False(t, inv.IsExpired(now+1000000))
	})

	t.Run("should expire once the expiry time passes", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		inv.ExpiryTime = now - 10
		assert.True(t, inv.IsExpired(0))
	})

	t.Run("should not expire before the expiry time", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		inv.ExpiryTime = now + 1000
		assert.False(t, inv.IsExpired(now))
	})

	t.Run("should treat the expiry instant as expired", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		inv.ExpiryTime = now
		assert.True(t, inv.IsExpired(now))
	})

	t.Run("should be monotonic in time", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		inv.ExpiryTime = now - 100

		expiredAt := now - 100
		for _, later := range []int64{expiredAt, expiredAt + 1, expiredAt + 500, expiredAt + 100000} {
			assert.True(t, inv.IsExpired(later))
		}
	})

	t.Run("should be stable for a fixed now", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		inv.ExpiryTime = now + 50
		for i := 0; i < 3; i++ {
			assert.False(t, inv.IsExpired(now))
		}
	})
}

func TestInvitationIsAccepted(t *testing.T) {
	t.Run("should report the accepted flag", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		assert.False(t, inv.IsAccepted())

		inv.Accepted = true
		assert.True(t, inv.IsAccepted())
	})

	t.Run("should derive acceptance from the timestamp", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		inv.AcceptedTime = time.Now().Unix()
		assert.True(t, inv.IsAccepted())
	})
}

func TestInvitationSenderName(t *testing.T) {
	t.Run("should default to the system user", func(t *testing.T) {
		inv := NewInvitation("", "aizen")
		assert.Equal(t, SystemUserName, inv.SenderName())
	})

	t.Run("should return the explicit sender", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		assert.Equal(t, "ichigo", inv.SenderName())
	})
}

func TestInvitationSite(t *testing.T) {
	t.Run("should resolve and cache the ambient site", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		require.Empty(t, inv.Site())

		ctx := WithSite(context.Background(), "bleach.org")
		assert.Equal(t, "bleach.org", inv.ResolveSite(ctx, ContextSiteResolver{}))

		// Cached value survives a different ambient context
		other := WithSite(context.Background(), "other.org")
		assert.Equal(t, "bleach.org", inv.ResolveSite(other, ContextSiteResolver{}))
		assert.Equal(t, "bleach.org", inv.Site())
	})

	t.Run("should tolerate a nil resolver", func(t *testing.T) {
		inv := NewInvitation("ichigo", "aizen")
		assert.Empty(t, inv.ResolveSite(context.Background(), nil))
	})
}

func TestInvitationBefore(t *testing.T) {
	t.Run("should order by code", func(t *testing.T) {
		a := NewInvitation("ichigo", "aizen")
		a.Code = "AAAA"
		b := NewInvitation("ichigo", "aizen")
		b.Code = "BBBB"

		less, ok := a.Before(b)
		require.True(t, ok)
		assert.True(t, less)

		less, ok = b.Before(a)
		require.True(t, ok)
		assert.False(t, less)
	})

	t.Run("should break code ties by created time", func(t *testing.T) {
		a := NewInvitation("ichigo", "aizen")
		a.Code = "AAAA"
		a.CreatedTime = 100
		b := NewInvitation("ichigo", "aizen")
		b.Code = "AAAA"
		b.CreatedTime = 200

		less, ok := a.Before(b)
		require.True(t, ok)
		assert.True(t, less)
	})

	t.Run("should be unordered against nil", func(t *testing.T) {
		a := NewInvitation("ichigo", "aizen")
		_, ok := a.Before(nil)
		assert.False(t, ok)
	})
}

func TestRandomInvitationCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{3}-[0-9A-F]{3}-[0-9A-F]{4}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := RandomInvitationCode()
		assert.Regexp(t, pattern, code)
		assert.False(t, seen[code], "codes should not repeat")
		seen[code] = true
	}
}
