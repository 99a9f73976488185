package invitations

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Names of the catalog indexes.
const (
	IxSite        = "site"
	IxSender      = "sender"
	IxReceiver    = "receiver"
	IxAccepted    = "accepted"
	IxMimeType    = "mimeType"
	IxExpiryTime  = "expiryTime"
	IxCreatedTime = "createdTime"
)

// MaxTimestamp is the upper bound for open-ended time range queries.
var MaxTimestamp = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC).Unix()

// IDSet is a set of catalog document ids.
type IDSet map[int64]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports set membership.
func (s IDSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order for deterministic output.
func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s IDSet) clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func intersect(a, b IDSet) IDSet {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(IDSet)
	for id := range a {
		if b.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Multiunion returns the union of the given id sets.
func Multiunion(sets ...IDSet) IDSet {
	out := make(IDSet)
	for _, s := range sets {
		for id := range s {
			out[id] = struct{}{}
		}
	}
	return out
}

// Range is an inclusive [Low, High] interval over epoch seconds.
type Range struct {
	Low  int64
	High int64
}

// Criterion constrains a single index. Exactly one of AnyOf or Between is
// set: AnyOf matches documents whose value equals any candidate (OR),
// Between matches the inclusive range and is only meaningful on the time
// indexes. A non-nil empty AnyOf matches nothing.
type Criterion struct {
	AnyOf   []any
	Between *Range
}

// AnyOf builds an exact-match criterion over the candidate values.
func AnyOf(values ...any) Criterion {
	return Criterion{AnyOf: values}
}

// Between builds an inclusive range criterion.
func Between(low, high int64) Criterion {
	return Criterion{Between: &Range{Low: low, High: high}}
}

// Query maps index names to criteria. Fields combine with AND semantics.
type Query map[string]Criterion

type index interface {
	indexDoc(id int64, inv *Invitation)
	unindexDoc(id int64)
	apply(c Criterion) IDSet
}

func normalizeToken(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// valueIndex maps a normalized string field to the ids carrying each value.
type valueIndex struct {
	extract   func(*Invitation) (string, bool)
	normalize func(string) string
	byValue   map[string]IDSet
	byDoc     map[int64]string
}

func newValueIndex(extract func(*Invitation) (string, bool), normalize func(string) string) *valueIndex {
	return &valueIndex{
		extract:   extract,
		normalize: normalize,
		byValue:   make(map[string]IDSet),
		byDoc:     make(map[int64]string),
	}
}

func (ix *valueIndex) indexDoc(id int64, inv *Invitation) {
	ix.unindexDoc(id)
	value, ok := ix.extract(inv)
	if !ok {
		return
	}
	if ix.normalize != nil {
		value = ix.normalize(value)
	}
	set, ok := ix.byValue[value]
	if !ok {
		set = make(IDSet)
		ix.byValue[value] = set
	}
	set[id] = struct{}{}
	ix.byDoc[id] = value
}

func (ix *valueIndex) unindexDoc(id int64) {
	value, ok := ix.byDoc[id]
	if !ok {
		return
	}
	delete(ix.byDoc, id)
	if set, ok := ix.byValue[value]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(ix.byValue, value)
		}
	}
}

func (ix *valueIndex) apply(c Criterion) IDSet {
	result := make(IDSet)
	if c.Between != nil {
		// Range queries are only defined for the time indexes.
		return result
	}
	for _, candidate := range c.AnyOf {
		value, ok := stringValue(candidate)
		if !ok {
			continue
		}
		if ix.normalize != nil {
			value = ix.normalize(value)
		}
		for id := range ix.byValue[value] {
			result[id] = struct{}{}
		}
	}
	return result
}

// integerIndex maps an epoch-seconds field to ids and supports inclusive
// range queries.
type integerIndex struct {
	extract func(*Invitation) (int64, bool)
	byValue map[int64]IDSet
	byDoc   map[int64]int64
}

func newIntegerIndex(extract func(*Invitation) (int64, bool)) *integerIndex {
	return &integerIndex{
		extract: extract,
		byValue: make(map[int64]IDSet),
		byDoc:   make(map[int64]int64),
	}
}

func (ix *integerIndex) indexDoc(id int64, inv *Invitation) {
	ix.unindexDoc(id)
	value, ok := ix.extract(inv)
	if !ok {
		return
	}
	set, ok := ix.byValue[value]
	if !ok {
		set = make(IDSet)
		ix.byValue[value] = set
	}
	set[id] = struct{}{}
	ix.byDoc[id] = value
}

func (ix *integerIndex) unindexDoc(id int64) {
	value, ok := ix.byDoc[id]
	if !ok {
		return
	}
	delete(ix.byDoc, id)
	if set, ok := ix.byValue[value]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(ix.byValue, value)
		}
	}
}

func (ix *integerIndex) apply(c Criterion) IDSet {
	result := make(IDSet)
	if c.Between != nil {
		for value, set := range ix.byValue {
			if value >= c.Between.Low && value <= c.Between.High {
				for id := range set {
					result[id] = struct{}{}
				}
			}
		}
		return result
	}
	for _, candidate := range c.AnyOf {
		value, ok := intValue(candidate)
		if !ok {
			continue
		}
		for id := range ix.byValue[value] {
			result[id] = struct{}{}
		}
	}
	return result
}

func stringValue(v any) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case bool:
		return strconv.FormatBool(value), true
	default:
		return "", false
	}
}

func intValue(v any) (int64, bool) {
	switch value := v.(type) {
	case int64:
		return value, true
	case int:
		return int64(value), true
	case float64:
		return int64(value), true
	default:
		return 0, false
	}
}

// Catalog derives queryable fields from invitations and answers
// multi-criteria queries with sets of document ids. Content is kept
// consistent with the container by whoever mutates invitations: IndexDoc on
// add or change, UnindexDoc on removal.
type Catalog struct {
	mu        sync.RWMutex
	indexes   map[string]index
	documents IDSet
}

// NewCatalog builds the seven invitation indexes.
func NewCatalog() *Catalog {
	return &Catalog{
		indexes: map[string]index{
			IxSite: newValueIndex(func(inv *Invitation) (string, bool) {
				return inv.Site(), inv.Site() != ""
			}, nil),
			IxSender: newValueIndex(func(inv *Invitation) (string, bool) {
				return inv.SenderName(), true
			}, normalizeToken),
			IxReceiver: newValueIndex(func(inv *Invitation) (string, bool) {
				return inv.Receiver, inv.Receiver != ""
			}, normalizeToken),
			IxAccepted: newValueIndex(func(inv *Invitation) (string, bool) {
				return strconv.FormatBool(inv.IsAccepted()), true
			}, nil),
			IxMimeType: newValueIndex(func(inv *Invitation) (string, bool) {
				return inv.MimeType, inv.MimeType != ""
			}, nil),
			IxExpiryTime: newIntegerIndex(func(inv *Invitation) (int64, bool) {
				return inv.ExpiryTime, true
			}),
			IxCreatedTime: newIntegerIndex(func(inv *Invitation) (int64, bool) {
				return inv.CreatedTime, true
			}),
		},
		documents: make(IDSet),
	}
}

// IndexDoc indexes the invitation under the given id, replacing any values
// previously derived for that id.
func (c *Catalog) IndexDoc(id int64, inv *Invitation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ix := range c.indexes {
		ix.indexDoc(id, inv)
	}
	c.documents[id] = struct{}{}
}

// UnindexDoc removes the id from every index.
func (c *Catalog) UnindexDoc(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ix := range c.indexes {
		ix.unindexDoc(id)
	}
	delete(c.documents, id)
}

// Len returns the number of indexed documents.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.documents)
}

// Apply evaluates the query. Fields combine with AND; candidate values
// within a field combine with OR. An empty query matches every indexed
// document. A criterion naming an unknown index matches nothing.
func (c *Catalog) Apply(q Query) IDSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(q) == 0 {
		return c.documents.clone()
	}

	var result IDSet
	for name, crit := range q {
		ix, ok := c.indexes[name]
		if !ok {
			return make(IDSet)
		}
		matched := ix.apply(crit)
		if result == nil {
			result = matched
		} else {
			result = intersect(result, matched)
		}
		if len(result) == 0 {
			return result
		}
	}
	return result
}
