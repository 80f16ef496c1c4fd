package directory

import "testing"

func TestParseUID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain dn", "uid=jdoe,ou=users,dc=example,dc=com", "jdoe", true},
		{"uid only", "uid=jdoe", "jdoe", true},
		{"leading space", "  uid=jdoe,ou=users", "jdoe", true},
		{"extra commas", "uid=jdoe,,ou=users,,", "jdoe", true},
		{"empty", "", "", false},
		{"no uid prefix", "cn=John Doe,ou=users", "", false},
		{"uid not first", "cn=boss,uid=jdoe", "", false},
		{"empty value", "uid=,ou=users", "", false},
		{"bare identifier", "jdoe", "", false},
		{"prefix without equals", "uidjdoe,ou=users", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseUID(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ParseUID(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}
