package auth

import (
	"context"
	"strings"
)

// RolePolicy permits a fixed set of staff roles to read activity feeds. When the request
// carries token claims, they must also hold ScopeActivitiesRead.
type RolePolicy struct {
	roles map[string]struct{}
}

// NewRolePolicy constructs a RolePolicy. Role names are matched case-insensitively.
func NewRolePolicy(roles []string) RolePolicy {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role != "" {
			set[role] = struct{}{}
		}
	}
	return RolePolicy{roles: set}
}

// Allowed implements feed.Authorizer.
func (p RolePolicy) Allowed(ctx context.Context, actorID, role string) bool {
	if actorID == "" {
		return false
	}
	if _, ok := p.roles[strings.ToLower(strings.TrimSpace(role))]; !ok {
		return false
	}
	if claims, ok := FromContext(ctx); ok {
		return claims.HasScope(ScopeActivitiesRead)
	}
	return true
}
