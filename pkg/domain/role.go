package domain

import "fmt"

// Role is a ledger capability. The two roles are independent boolean
// relations over identities; an identity may hold both.
type Role string

const (
	// RoleIssuer permits registering new drug batches.
	RoleIssuer Role = "issuer"
	// RoleOracle permits recording shortage predictions.
	RoleOracle Role = "oracle"
)

var validRoles = map[Role]bool{
	RoleIssuer: true,
	RoleOracle: true,
}

// ParseRole validates and returns a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", fmt.Errorf("unknown role: %s", s)
	}
	return r, nil
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}
