package invitations

import "sync"

// IntIDRegistry allocates stable int64 identities for invitations,
// independent of their codes. The catalog keys documents by these ids.
type IntIDRegistry struct {
	mu    sync.RWMutex
	next  int64
	byID  map[int64]*Invitation
	byObj map[*Invitation]int64
}

// NewIntIDRegistry creates an empty identity registry.
func NewIntIDRegistry() *IntIDRegistry {
	return &IntIDRegistry{
		next:  1,
		byID:  make(map[int64]*Invitation),
		byObj: make(map[*Invitation]int64),
	}
}

// Register allocates an id for the invitation, or returns the existing one.
func (r *IntIDRegistry) Register(inv *Invitation) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byObj[inv]; ok {
		return id
	}
	id := r.next
	r.next++
	r.byID[id] = inv
	r.byObj[inv] = id
	return id
}

// ID returns the id previously allocated for the invitation.
func (r *IntIDRegistry) ID(inv *Invitation) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byObj[inv]
	return id, ok
}

// QueryObject returns the invitation registered under the given id, or nil.
func (r *IntIDRegistry) QueryObject(id int64) *Invitation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byID[id]
}

// Unregister releases the invitation's identity. Released ids are never
// reused.
func (r *IntIDRegistry) Unregister(inv *Invitation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byObj[inv]; ok {
		delete(r.byID, id)
		delete(r.byObj, inv)
	}
}
