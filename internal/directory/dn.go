package directory

import "strings"

// ParseUID extracts the uid attribute value from the leading segment of
// a DN-like string, e.g. "uid=jdoe,ou=users,dc=example,dc=com" yields
// "jdoe". The second return is false when the input does not start with
// a uid attribute or the value is empty.
func ParseUID(dn string) (string, bool) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return "", false
	}
	first := dn
	if i := strings.IndexByte(dn, ','); i >= 0 {
		first = dn[:i]
	}
	first = strings.TrimSpace(first)
	const prefix = "uid="
	if !strings.HasPrefix(first, prefix) {
		return "", false
	}
	uid := strings.TrimSpace(first[len(prefix):])
	if uid == "" {
		return "", false
	}
	return uid, true
}
