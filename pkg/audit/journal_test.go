package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victoralfred/invite_manager/internal/invitations"
	"github.com/victoralfred/invite_manager/pkg/logger"
)

func newTestJournal(t *testing.T, dir string) *Journal {
	t.Helper()

	journal, err := NewJournal(JournalConfig{
		BasePath:      dir,
		BatchSize:     10,
		FlushInterval: time.Hour,
	})
	require.NoError(t, err)
	return journal
}

func TestJournalRecord(t *testing.T) {
	journal := newTestJournal(t, t.TempDir())
	defer journal.Close()

	rec := &Record{
		EventType: EventTypeInvitationSent,
		Site:      "bleach.org",
		Sender:    "ichigo",
		Receiver:  "aizen",
		Code:      "AAAA-BBBB-CCCC",
	}
	require.NoError(t, journal.Record(rec))

	t.Run("should fill id and created time", func(t *testing.T) {
		assert.NotEmpty(t, rec.ID)
		assert.False(t, rec.CreatedAt.IsZero())
	})

	t.Run("should index the record immediately", func(t *testing.T) {
		assert.Same(t, rec, journal.Indexer().GetByID(rec.ID))
	})
}

func TestJournalReplay(t *testing.T) {
	dir := t.TempDir()

	journal := newTestJournal(t, dir)
	require.NoError(t, journal.Record(&Record{
		EventType: EventTypeInvitationSent,
		Site:      "bleach.org",
		Sender:    "ichigo",
		Code:      "AAAA-BBBB-CCCC",
	}))
	require.NoError(t, journal.Record(&Record{
		EventType: EventTypeInvitationAccepted,
		Site:      "bleach.org",
		Sender:    "ichigo",
		Code:      "AAAA-BBBB-CCCC",
		Actor:     "sosuke",
	}))
	require.NoError(t, journal.Close())

	reopened := newTestJournal(t, dir)
	defer reopened.Close()

	records := reopened.Indexer().Query(QueryFilter{Site: "bleach.org"})
	require.Len(t, records, 2)

	accepted := reopened.Indexer().Query(QueryFilter{EventType: EventTypeInvitationAccepted})
	require.Len(t, accepted, 1)
	assert.Equal(t, "sosuke", accepted[0].Actor)
}

func TestIndexerQuery(t *testing.T) {
	indexer := NewIndexer()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, rec := range []*Record{
		{ID: "a", EventType: EventTypeInvitationSent, Site: "bleach.org", Sender: "ichigo", Code: "AAAA"},
		{ID: "b", EventType: EventTypeInvitationAccepted, Site: "bleach.org", Sender: "ichigo", Code: "AAAA"},
		{ID: "c", EventType: EventTypeInvitationSent, Site: "soul.society", Sender: "urahara", Code: "BBBB"},
	} {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		indexer.Add(rec)
	}

	t.Run("should filter by site", func(t *testing.T) {
		assert.Len(t, indexer.Query(QueryFilter{Site: "bleach.org"}), 2)
	})

	t.Run("should combine filters", func(t *testing.T) {
		records := indexer.Query(QueryFilter{
			Site:      "bleach.org",
			EventType: EventTypeInvitationAccepted,
		})
		require.Len(t, records, 1)
		assert.Equal(t, "b", records[0].ID)
	})

	t.Run("should return newest first", func(t *testing.T) {
		records := indexer.Query(QueryFilter{})
		require.Len(t, records, 3)
		assert.Equal(t, "c", records[0].ID)
		assert.Equal(t, "a", records[2].ID)
	})

	t.Run("should paginate", func(t *testing.T) {
		records := indexer.Query(QueryFilter{Limit: 1, Offset: 1})
		require.Len(t, records, 1)
		assert.Equal(t, "b", records[0].ID)
	})

	t.Run("should bound by time range", func(t *testing.T) {
		records := indexer.Query(QueryFilter{
			StartTime: base.Add(30 * time.Minute),
			EndTime:   base.Add(90 * time.Minute),
		})
		require.Len(t, records, 1)
		assert.Equal(t, "b", records[0].ID)
	})
}

type journalUser string

func (u journalUser) Username() string { return string(u) }

func TestSubscriber(t *testing.T) {
	journal := newTestJournal(t, t.TempDir())
	defer journal.Close()

	listener := Subscriber(journal, logger.New("error", "test"))

	inv := invitations.NewInvitation("ichigo", "aizen")
	inv.Code = "AAAA-BBBB-CCCC"
	inv.SetSite("bleach.org")

	listener(invitations.SentEvent{Invitation: inv})
	listener(invitations.AcceptedEvent{Invitation: inv, User: journalUser("sosuke")})

	records := journal.Indexer().Query(QueryFilter{Code: "AAAA-BBBB-CCCC"})
	require.Len(t, records, 2)

	accepted := journal.Indexer().Query(QueryFilter{EventType: EventTypeInvitationAccepted})
	require.Len(t, accepted, 1)
	assert.Equal(t, "sosuke", accepted[0].Actor)
	assert.Equal(t, "bleach.org", accepted[0].Site)
}
