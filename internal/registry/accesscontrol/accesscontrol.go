// Package accesscontrol holds the ledger's role table: two independent
// boolean relations (identity -> is-issuer, identity -> is-oracle) plus the
// owner identity. It is deliberately decoupled from entry storage so role
// logic is testable without batch logic.
package accesscontrol

import (
	"sync"

	"medchain/pkg/domain"
)

// Roles is the in-process role table. The deploying identity becomes owner
// and receives both roles; ownership is never rotated in this design.
type Roles struct {
	mu     sync.RWMutex
	owner  domain.Identity
	grants map[domain.Role]map[domain.Identity]bool
}

// New seeds the table with the owner holding both roles.
func New(owner domain.Identity) *Roles {
	r := &Roles{
		owner: owner,
		grants: map[domain.Role]map[domain.Identity]bool{
			domain.RoleIssuer: {owner: true},
			domain.RoleOracle: {owner: true},
		},
	}
	return r
}

// Owner returns the deploying identity.
func (r *Roles) Owner() domain.Identity {
	return r.owner
}

// IsOwner reports whether identity is the registry owner.
func (r *Roles) IsOwner(identity domain.Identity) bool {
	return identity == r.owner
}

// HasRole reports whether identity holds the given role.
func (r *Roles) HasRole(identity domain.Identity, role domain.Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grants[role][identity]
}

// Grant assigns role to identity. Granting an already-granted role succeeds
// silently.
func (r *Roles) Grant(identity domain.Identity, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.grants[role]
	if !ok {
		set = make(map[domain.Identity]bool)
		r.grants[role] = set
	}
	set[identity] = true
}

// Revoke removes role from identity. Revoking an already-revoked role
// succeeds silently.
func (r *Roles) Revoke(identity domain.Identity, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[role], identity)
}
