package audit

import (
	"sort"
	"sync"
)

// Indexer maintains in-memory indexes for fast journal lookups. It is
// rebuilt from the journal file on startup via Journal.Replay.
type Indexer struct {
	mu sync.RWMutex

	byID        map[string]*Record
	bySite      map[string][]*Record
	bySender    map[string][]*Record
	byEventType map[string][]*Record
	byDate      map[string][]*Record // Date in YYYY-MM-DD format
}

// NewIndexer creates an empty indexer.
func NewIndexer() *Indexer {
	return &Indexer{
		byID:        make(map[string]*Record),
		bySite:      make(map[string][]*Record),
		bySender:    make(map[string][]*Record),
		byEventType: make(map[string][]*Record),
		byDate:      make(map[string][]*Record),
	}
}

// Add indexes a record.
func (i *Indexer) Add(rec *Record) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.byID[rec.ID] = rec

	if rec.Site != "" {
		i.bySite[rec.Site] = append(i.bySite[rec.Site], rec)
	}
	if rec.Sender != "" {
		i.bySender[rec.Sender] = append(i.bySender[rec.Sender], rec)
	}
	if rec.EventType != "" {
		i.byEventType[rec.EventType] = append(i.byEventType[rec.EventType], rec)
	}

	dateKey := rec.CreatedAt.Format("2006-01-02")
	i.byDate[dateKey] = append(i.byDate[dateKey], rec)
}

// Query performs a query against the indexes.
func (i *Indexer) Query(filter QueryFilter) []*Record {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var candidates []*Record

	// Start with the most selective index
	if filter.Site != "" {
		candidates = i.bySite[filter.Site]
	} else if filter.Sender != "" {
		candidates = i.bySender[filter.Sender]
	} else if filter.EventType != "" {
		candidates = i.byEventType[filter.EventType]
	} else {
		candidates = make([]*Record, 0, len(i.byID))
		for _, rec := range i.byID {
			candidates = append(candidates, rec)
		}
	}

	results := make([]*Record, 0)
	for _, rec := range candidates {
		if matchesFilter(rec, filter) {
			results = append(results, rec)
		}
	}

	// Newest first
	sort.Slice(results, func(a, b int) bool {
		return results[a].CreatedAt.After(results[b].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(results) {
			return []*Record{}
		}
		results = results[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(results) {
		results = results[:filter.Limit]
	}

	return results
}

func matchesFilter(rec *Record, filter QueryFilter) bool {
	if filter.Site != "" && rec.Site != filter.Site {
		return false
	}
	if filter.Sender != "" && rec.Sender != filter.Sender {
		return false
	}
	if filter.EventType != "" && rec.EventType != filter.EventType {
		return false
	}
	if filter.Code != "" && rec.Code != filter.Code {
		return false
	}
	if !filter.StartTime.IsZero() && rec.CreatedAt.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && rec.CreatedAt.After(filter.EndTime) {
		return false
	}
	return true
}

// GetByID retrieves a record by ID.
func (i *Indexer) GetByID(id string) *Record {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.byID[id]
}
