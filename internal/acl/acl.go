// Package acl holds the in-memory permission table consulted by the authorization middleware.
//
// Feature modules register their rules while the server is being assembled. Once the server
// seals the registry it is read-only and safe for concurrent lookups without locking.
package acl

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"

	// Wildcard matches every resource or every method.
	Wildcard = "*"
)

var (
	ErrNotSealed   = errors.New("acl: registry is not sealed")
	ErrSealed      = errors.New("acl: registry is sealed")
	ErrNilRegistry = errors.New("acl: nil registry")
	ErrNoRoles     = errors.New("acl: no roles to check")
)

// Decision is the outcome of a permission lookup.
type Decision int

const (
	Denied Decision = iota
	Allowed
	LookupError
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	}
	return "error"
}

// Rule grants Role the listed Methods on Resource. Resource is an echo route pattern such as
// "/api/tasks/:taskId", a prefix pattern ending in "/*", or "*".
type Rule struct {
	Role     string
	Resource string
	Methods  []string
}

// Registry maps role -> resource -> allowed methods.
type Registry struct {
	rules  map[string]map[string]map[string]bool
	sealed atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]map[string]map[string]bool)}
}

// Allow adds rules. It fails once the registry is sealed or when a rule is incomplete.
func (r *Registry) Allow(rules ...Rule) error {
	if r == nil {
		return ErrNilRegistry
	}
	if r.sealed.Load() {
		return ErrSealed
	}
	for _, rule := range rules {
		if rule.Role == "" || rule.Resource == "" || len(rule.Methods) == 0 {
			return fmt.Errorf("acl: incomplete rule %+v", rule)
		}
		resources, ok := r.rules[rule.Role]
		if !ok {
			resources = make(map[string]map[string]bool)
			r.rules[rule.Role] = resources
		}
		methods, ok := resources[rule.Resource]
		if !ok {
			methods = make(map[string]bool)
			resources[rule.Resource] = methods
		}
		for _, m := range rule.Methods {
			methods[strings.ToUpper(m)] = true
		}
	}
	return nil
}

// Seal freezes the registry. Lookups before Seal are lookup errors.
func (r *Registry) Seal() {
	if r != nil {
		r.sealed.Store(true)
	}
}

func (r *Registry) Sealed() bool {
	return r != nil && r.sealed.Load()
}

// Check reports whether any of roles may call method on resource.
func (r *Registry) Check(roles []string, resource, method string) (Decision, error) {
	switch {
	case r == nil:
		return LookupError, ErrNilRegistry
	case !r.sealed.Load():
		return LookupError, ErrNotSealed
	case len(roles) == 0:
		return LookupError, ErrNoRoles
	}

	method = strings.ToUpper(method)
	for _, role := range roles {
		resources, ok := r.rules[role]
		if !ok {
			continue
		}
		for pattern, methods := range resources {
			if !matchResource(pattern, resource) {
				continue
			}
			if methods[Wildcard] || methods[method] {
				return Allowed, nil
			}
		}
	}
	return Denied, nil
}

// Rules lists the registered rules sorted by role then resource.
func (r *Registry) Rules() []Rule {
	if r == nil {
		return nil
	}
	var out []Rule
	for role, resources := range r.rules {
		for resource, methods := range resources {
			rule := Rule{Role: role, Resource: resource}
			for m := range methods {
				rule.Methods = append(rule.Methods, m)
			}
			sort.Strings(rule.Methods)
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Resource < out[j].Resource
	})
	return out
}

func matchResource(pattern, resource string) bool {
	if pattern == Wildcard || pattern == resource {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return resource == prefix || strings.HasPrefix(resource, prefix+"/")
	}
	return false
}
