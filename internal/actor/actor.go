// Package actor carries the authenticated caller through a request.
package actor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Role is the marketplace role of an account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleMaster   Role = "master"
)

// ParseRole normalises a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleSeller, RoleMaster:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Actor identifies who performs an operation.
type Actor struct {
	AccountID int64
	Role      Role
}

// Parse builds an Actor from the raw account id and role values.
func Parse(accountID, role string) (Actor, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(accountID), 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, fmt.Errorf("invalid account id %q", accountID)
	}
	r, err := ParseRole(role)
	if err != nil {
		return Actor{}, err
	}
	return Actor{AccountID: id, Role: r}, nil
}

// IsCustomer reports whether the actor may place orders.
func (a Actor) IsCustomer() bool { return a.Role == RoleCustomer }

type ctxKey struct{}

// WithContext stores a in ctx.
func WithContext(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored by WithContext.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
