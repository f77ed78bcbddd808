package corpus

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/starford/bharathvani/internal/models"
)

// Filter is a conjunction of optional predicates. Empty fields are ignored.
type Filter struct {
	// Text is a case-insensitive substring matched against title or description.
	Text string `json:"q,omitempty"`
	// Category must equal the entry category exactly.
	Category string `json:"category,omitempty"`
	// Contributor must equal the entry contributor exactly.
	Contributor string `json:"contributor,omitempty"`
}

// Empty reports whether no predicate is set.
func (f Filter) Empty() bool {
	return f.Text == "" && f.Category == "" && f.Contributor == ""
}

// Match reports whether e satisfies every predicate of f.
func (f Filter) Match(e *models.Entry) bool {
	return f.matcher().match(e)
}

type matcher struct {
	f      Filter
	folder cases.Caser
	needle string
}

// matcher prepares f for repeated evaluation. A matcher must not be shared
// between goroutines.
func (f Filter) matcher() *matcher {
	m := &matcher{f: f}
	if f.Text != "" {
		m.folder = cases.Fold()
		m.needle = m.folder.String(f.Text)
	}
	return m
}

func (m *matcher) match(e *models.Entry) bool {
	if m.f.Category != "" && string(e.Category) != m.f.Category {
		return false
	}
	if m.f.Contributor != "" && e.Contributor != m.f.Contributor {
		return false
	}
	if m.needle != "" {
		return strings.Contains(m.folder.String(e.Title), m.needle) ||
			strings.Contains(m.folder.String(e.Description), m.needle)
	}
	return true
}
