package invitations

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Container is a code-keyed store of invitations. Codes are matched
// case-insensitively and with surrounding whitespace ignored. Adding an
// invitation registers it with the identity registry and the catalog;
// removal undoes both.
type Container struct {
	mu           sync.RWMutex
	byCode       map[string]*Invitation
	intids       *IntIDRegistry
	catalog      *Catalog
	lastModified int64
}

// NewContainer creates an empty container wired to the given identity
// registry and catalog.
func NewContainer(intids *IntIDRegistry, catalog *Catalog) *Container {
	return &Container{
		byCode:  make(map[string]*Invitation),
		intids:  intids,
		catalog: catalog,
	}
}

func codeKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Add stores the invitation. An invitation without a code is assigned a
// freshly generated unique one; an explicit code that is already in use
// fails with DuplicateInvitationCodeError and leaves the container
// unchanged. Once assigned, a code is never reassigned.
func (c *Container) Add(inv *Invitation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if inv.Code == "" {
		code := RandomInvitationCode()
		for {
			if _, ok := c.byCode[codeKey(code)]; !ok {
				break
			}
			code = RandomInvitationCode()
		}
		inv.Code = code
	}

	key := codeKey(inv.Code)
	if _, ok := c.byCode[key]; ok {
		return &DuplicateInvitationCodeError{Code: inv.Code}
	}
	c.byCode[key] = inv
	c.lastModified = time.Now().Unix()

	id := c.intids.Register(inv)
	c.catalog.IndexDoc(id, inv)
	return nil
}

// Remove deletes the invitation, unindexing it and releasing its identity.
// It reports whether the invitation was present.
func (c *Container) Remove(inv *Invitation) bool {
	return c.RemoveByCode(inv.Code)
}

// RemoveByCode deletes the invitation stored under the given code.
func (c *Container) RemoveByCode(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := codeKey(code)
	inv, ok := c.byCode[key]
	if !ok {
		return false
	}
	delete(c.byCode, key)
	c.lastModified = time.Now().Unix()

	if id, ok := c.intids.ID(inv); ok {
		c.catalog.UnindexDoc(id)
	}
	c.intids.Unregister(inv)
	return true
}

// GetInvitationByCode returns the invitation stored under the given code,
// or nil. Lookup is case-insensitive and tolerates surrounding whitespace.
func (c *Container) GetInvitationByCode(code string) *Invitation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.byCode[codeKey(code)]
}

// Len returns the number of stored invitations.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.byCode)
}

// Codes returns the canonical invitation codes in sorted order.
func (c *Container) Codes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	codes := make([]string, 0, len(c.byCode))
	for code := range c.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// LastModified returns the time of the last add or remove, epoch seconds.
func (c *Container) LastModified() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastModified
}
