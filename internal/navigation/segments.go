// Package navigation models the shell's route location: path segments, a
// history-backed router and the declared screen stack.
package navigation

import (
	"strings"
)

// Segments is the ordered list of path segments of the active route.
// Route groups keep their parentheses, e.g. ["(auth)", "login"].
type Segments []string

// ParsePath splits path into segments, dropping empty parts.
func ParsePath(path string) Segments {
	parts := strings.Split(strings.TrimSpace(path), "/")
	segs := make(Segments, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// Path joins the segments into an absolute path.
func (s Segments) Path() string {
	return "/" + strings.Join(s, "/")
}

// First returns the first segment, or "" when empty.
func (s Segments) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// InGroup reports whether the route lives under the (name) group.
func (s Segments) InGroup(name string) bool {
	return s.First() == "("+name+")"
}

// Equal reports whether both segment lists are identical.
func (s Segments) Equal(other Segments) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share the backing array.
func (s Segments) Clone() Segments {
	out := make(Segments, len(s))
	copy(out, s)
	return out
}

// IsGroup reports whether seg is a route group such as "(tabs)".
func IsGroup(seg string) bool {
	return len(seg) > 2 && strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")")
}

func isParam(seg string) (string, bool) {
	if len(seg) > 2 && strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}
