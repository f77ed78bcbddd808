// Package corpus persists heritage entries and answers filtered, paginated
// listings over them. Two backends exist: an append-only JSON Lines log and
// a relational table (SQLite or PostgreSQL).
package corpus

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/bharathvani/internal/models"
)

// Store is the persistence contract for entries.
type Store interface {
	// Create assigns the identifier and timestamps, persists e and returns the stored copy.
	Create(ctx context.Context, e models.Entry) (*models.Entry, error)
	// Get returns the entry with id, or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Entry, error)
	// List returns the entries matching q.
	List(ctx context.Context, q Query) (*Result, error)
	// AddAttachments appends attachment references to the entry.
	AddAttachments(ctx context.Context, id string, atts []models.Attachment) error
	// SetVerified sets the verification flag.
	SetVerified(ctx context.Context, id string, verified bool) error
	// Delete removes the entry record.
	Delete(ctx context.Context, id string) error
	Close() error
}

// Order selects the listing order.
type Order string

const (
	// OrderInsertion lists entries in the order they were created.
	OrderInsertion Order = ""
	// OrderRecent lists the newest entries first.
	OrderRecent Order = "recent"
)

// Page is a 1-indexed fixed-size window. A zero Size disables pagination.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"size"`
}

// Offset returns the index of the first item in the window. It saturates at
// math.MaxInt instead of overflowing.
func (p Page) Offset() int {
	if p.Size <= 0 {
		return 0
	}
	n := p.Number
	if n < 1 {
		n = 1
	}
	if n-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (n - 1) * p.Size
}

// Query combines a filter, an order and a page.
type Query struct {
	Filter Filter
	Order  Order
	Page   Page
}

// Result is one page of entries plus the size of the whole filtered set.
type Result struct {
	Entries []models.Entry `json:"entries"`
	Total   int            `json:"total"`
}

// stamp assigns the store-owned fields of a new entry.
func stamp(e *models.Entry, now time.Time) {
	now = now.UTC()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.CreatedDate = now.Format(models.DateLayout)
	e.Verified = false
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Attachments == nil {
		e.Attachments = []models.Attachment{}
	}
}

// paginate cuts the window described by p out of entries.
func paginate(entries []models.Entry, p Page) []models.Entry {
	if p.Size <= 0 {
		return entries
	}
	off := p.Offset()
	if off >= len(entries) {
		return []models.Entry{}
	}
	end := len(entries)
	if p.Size < end-off {
		end = off + p.Size
	}
	return entries[off:end]
}

// sortRecent orders entries newest first. Entries must arrive in insertion
// order; later insertions win ties.
func sortRecent(entries []models.Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

// apply evaluates q over entries held in insertion order.
func apply(entries []models.Entry, q Query) *Result {
	m := q.Filter.matcher()
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if m.match(&e) {
			out = append(out, e)
		}
	}
	if q.Order == OrderRecent {
		sortRecent(out)
	}
	return &Result{Entries: paginate(out, q.Page), Total: len(out)}
}
