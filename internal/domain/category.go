package domain

import (
	"strings"
)

// DefaultCategories is the spending category set used when none is
// configured. The set is configuration, not structure: the pipeline works
// with any closed set of names.
var DefaultCategories = []string{"Beverage", "House Items", "Transport", "Groceries", "Other"}

// DefaultFallbackCategory is assigned when the categorizer returns a name
// outside the set, omits it, or fails entirely.
const DefaultFallbackCategory = "Other"

// CategorySet is an ordered, closed set of spending categories.
// Membership is case-insensitive; the canonical casing is the one the set
// was constructed with.
type CategorySet struct {
	names     []string
	canonical map[string]string // lowercase -> configured casing
	fallback  string
}

// NewCategorySet builds a category set from the configured names and
// fallback. Duplicate names (ignoring case) keep their first casing. The
// fallback is appended to the set if it is not already a member.
func NewCategorySet(names []string, fallback string) *CategorySet {
	if len(names) == 0 {
		names = DefaultCategories
	}
	if fallback == "" {
		fallback = DefaultFallbackCategory
	}

	s := &CategorySet{
		canonical: make(map[string]string, len(names)+1),
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := s.canonical[key]; ok {
			continue
		}
		s.canonical[key] = name
		s.names = append(s.names, name)
	}

	if c, ok := s.canonical[strings.ToLower(fallback)]; ok {
		s.fallback = c
	} else {
		s.canonical[strings.ToLower(fallback)] = fallback
		s.names = append(s.names, fallback)
		s.fallback = fallback
	}

	return s
}

// Names returns the categories in configured order.
func (s *CategorySet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Fallback returns the category assigned to anything outside the set.
func (s *CategorySet) Fallback() string {
	return s.fallback
}

// Normalize maps a name to its canonical casing. The second return value
// reports whether the name was a member of the set.
func (s *CategorySet) Normalize(name string) (string, bool) {
	if c, ok := s.canonical[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c, true
	}
	return s.fallback, false
}

// Contains reports case-insensitive membership.
func (s *CategorySet) Contains(name string) bool {
	_, ok := s.canonical[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
