package acl

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sealedRegistry(t *testing.T, rules ...Rule) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Allow(rules...))
	r.Seal()
	return r
}

var taskRules = []Rule{
	{Role: RoleUser, Resource: "/api/tasks", Methods: []string{http.MethodGet, http.MethodPost}},
	{Role: RoleUser, Resource: "/api/tasks/:taskId", Methods: []string{"get", "put", "delete"}},
	{Role: RoleGuest, Resource: "/api/tasks", Methods: []string{http.MethodGet}},
	{Role: RoleAdmin, Resource: "/api/*", Methods: []string{Wildcard}},
}

func TestCheck_Decisions(t *testing.T) {
	r := sealedRegistry(t, taskRules...)

	tests := []struct {
		name     string
		roles    []string
		resource string
		method   string
		want     Decision
	}{
		{"guest may list", []string{RoleGuest}, "/api/tasks", http.MethodGet, Allowed},
		{"guest may not create", []string{RoleGuest}, "/api/tasks", http.MethodPost, Denied},
		{"user may create", []string{RoleUser}, "/api/tasks", http.MethodPost, Allowed},
		{"method is case insensitive", []string{RoleUser}, "/api/tasks/:taskId", "delete", Allowed},
		{"user has no patch", []string{RoleUser}, "/api/tasks/:taskId", http.MethodPatch, Denied},
		{"admin prefix wildcard", []string{RoleAdmin}, "/api/users/:userId", http.MethodDelete, Allowed},
		{"prefix does not match siblings", []string{RoleAdmin}, "/apis", http.MethodGet, Denied},
		{"unknown role", []string{"robot"}, "/api/tasks", http.MethodGet, Denied},
		{"any role matches", []string{"robot", RoleGuest}, "/api/tasks", http.MethodGet, Allowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Check(tt.roles, tt.resource, tt.method)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck_MonotoneInRoles(t *testing.T) {
	r := sealedRegistry(t, taskRules...)
	all := []string{RoleGuest, RoleUser, RoleAdmin, "robot"}
	resources := []string{"/api/tasks", "/api/tasks/:taskId", "/api/users", "/health"}
	methods := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

	// every subset of all, encoded as a bitmask
	subsets := func(mask int) []string {
		var out []string
		for i, role := range all {
			if mask&(1<<i) != 0 {
				out = append(out, role)
			}
		}
		return out
	}

	for mask := 1; mask < 1<<len(all); mask++ {
		for super := mask; super < 1<<len(all); super++ {
			if super&mask != mask {
				continue
			}
			for _, res := range resources {
				for _, m := range methods {
					base, err := r.Check(subsets(mask), res, m)
					require.NoError(t, err)
					if base != Allowed {
						continue
					}
					got, err := r.Check(subsets(super), res, m)
					require.NoError(t, err)
					assert.Equal(t, Allowed, got, "roles %v on %s %s", subsets(super), m, res)
				}
			}
		}
	}
}

func TestCheck_LookupErrors(t *testing.T) {
	var nilRegistry *Registry
	unsealed := NewRegistry()
	require.NoError(t, unsealed.Allow(taskRules...))
	sealed := sealedRegistry(t, taskRules...)

	d, err := nilRegistry.Check([]string{RoleUser}, "/api/tasks", http.MethodGet)
	assert.Equal(t, LookupError, d)
	assert.ErrorIs(t, err, ErrNilRegistry)

	d, err = unsealed.Check([]string{RoleUser}, "/api/tasks", http.MethodGet)
	assert.Equal(t, LookupError, d)
	assert.ErrorIs(t, err, ErrNotSealed)

	d, err = sealed.Check(nil, "/api/tasks", http.MethodGet)
	assert.Equal(t, LookupError, d)
	assert.ErrorIs(t, err, ErrNoRoles)
}

func TestAllow_AfterSealFails(t *testing.T) {
	r := sealedRegistry(t, taskRules...)

	err := r.Allow(Rule{Role: RoleGuest, Resource: "/api/users", Methods: []string{http.MethodGet}})

	assert.ErrorIs(t, err, ErrSealed)
	d, _ := r.Check([]string{RoleGuest}, "/api/users", http.MethodGet)
	assert.Equal(t, Denied, d)
}

func TestAllow_RejectsIncompleteRules(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Allow(Rule{Role: RoleUser, Resource: "/api/tasks"}))
	assert.Error(t, r.Allow(Rule{Resource: "/api/tasks", Methods: []string{"GET"}}))
	assert.Error(t, r.Allow(Rule{Role: RoleUser, Methods: []string{"GET"}}))
}

func TestAllow_MergesMethods(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Allow(Rule{Role: RoleUser, Resource: "/api/tasks", Methods: []string{"GET"}}))
	require.NoError(t, r.Allow(Rule{Role: RoleUser, Resource: "/api/tasks", Methods: []string{"post"}}))

	assert.Equal(t, []Rule{{Role: RoleUser, Resource: "/api/tasks", Methods: []string{"GET", "POST"}}}, r.Rules())
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "denied", Denied.String())
	assert.Equal(t, "error", LookupError.String())
}
