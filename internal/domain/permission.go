package domain

import "strings"

// Permission is a token of the form "resource:action", "resource:*", or the
// global wildcard "*". Roles hold permissions; administrative operations
// declare the permission they require.
type Permission string

// Includes reports whether the held permission satisfies required.
//
//	held        required        result
//	*           anything        true
//	user:*      user:read       true
//	user:read   user:read       true
//	user:read   user:write      false
//	user:*      task:read       false
//	user:*      user            false (no colon in required)
func (p Permission) Includes(required Permission) bool {
	held := string(p)
	req := string(required)

	if held == "*" {
		return true
	}
	if resource, ok := strings.CutSuffix(held, ":*"); ok {
		return strings.HasPrefix(req, resource+":")
	}
	return held == req
}

// AnyIncludes reports whether any held permission satisfies required.
func AnyIncludes(held []Permission, required Permission) bool {
	for _, p := range held {
		if p.Includes(required) {
			return true
		}
	}
	return false
}

// ParsePermissions splits a comma-separated token list into permissions,
// skipping empty entries.
func ParsePermissions(s string) []Permission {
	var out []Permission
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, Permission(tok))
		}
	}
	return out
}
