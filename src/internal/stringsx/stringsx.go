package stringsx

import "slices"

// Set is an unordered collection of distinct strings.
type Set map[string]struct{}

// NewSet returns a set holding vals.
func NewSet(vals ...string) Set {
	s := make(Set, len(vals))
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

// Add inserts v into the set.
func (s Set) Add(v string) { s[v] = struct{}{} }

// Has reports whether v is in the set.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of elements.
func (s Set) Len() int { return len(s) }

// Union returns a new set with the elements of s and every other set.
func (s Set) Union(others ...Set) Set {
	out := make(Set, len(s))
	for v := range s {
		out.Add(v)
	}
	for _, o := range others {
		for v := range o {
			out.Add(v)
		}
	}
	return out
}

// Minus returns a new set with the elements of s that are not in o.
func (s Set) Minus(o Set) Set {
	out := make(Set, len(s))
	for v := range s {
		if !o.Has(v) {
			out.Add(v)
		}
	}
	return out
}

// Sorted returns the elements in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
