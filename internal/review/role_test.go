package review_test

import (
	"testing"

	"accessreview/internal/domain"
	"accessreview/internal/review"
)

func set(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestClassifyRole(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		members map[string]struct{}
		owners  map[string]struct{}
		want    string
	}{
		{"both sets", "alice", set("alice", "bob"), set("carol", "alice"), domain.RoleOwnerMember},
		{"both sets reversed population", "alice", set("carol", "alice"), set("alice", "bob"), domain.RoleOwnerMember},
		{"member only", "bob", set("alice", "bob"), set("carol"), domain.RoleMember},
		{"owner only", "carol", set("alice"), set("carol"), domain.RoleOwner},
		{"neither", "dave", set("alice"), set("carol"), domain.NotAvailable},
		{"nil sets", "dave", nil, nil, domain.NotAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := review.ClassifyRole(tc.id, tc.members, tc.owners); got != tc.want {
				t.Fatalf("ClassifyRole(%q) = %q, want %q", tc.id, got, tc.want)
			}
		})
	}
}

func TestRoleForAccessLevel(t *testing.T) {
	cases := map[int]string{
		10: "guest",
		20: "reporter",
		30: "developer",
		40: "maintainer",
		50: "owner",
		0:  domain.RoleUnknown,
		35: domain.RoleUnknown,
		60: domain.RoleUnknown,
	}
	for level, want := range cases {
		if got := review.RoleForAccessLevel(level); got != want {
			t.Errorf("RoleForAccessLevel(%d) = %q, want %q", level, got, want)
		}
	}
}
