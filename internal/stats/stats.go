// Package stats derives aggregate views over the entry collection. Nothing
// is persisted; every call recomputes from the entries it is given.
package stats

import (
	"sort"

	"github.com/starford/bharathvani/internal/models"
)

// Count is one labelled tally.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary is the corpus browser header.
type Summary struct {
	Entries    int `json:"entries"`
	Categories int `json:"categories"`
	Locations  int `json:"locations"`
	MediaFiles int `json:"media_files"`
}

// Report bundles every aggregate.
type Report struct {
	Summary      Summary `json:"summary"`
	ByCategory   []Count `json:"by_category"`
	ByDate       []Count `json:"by_date"`
	Contributors []Count `json:"contributors"`
}

// Compute aggregates entries. Category counts follow the fixed category
// order, date counts ascend by date, and contributors are ranked by count
// with ties kept in first-encounter order.
func Compute(entries []models.Entry) Report {
	byCategory := make(map[models.Category]int)
	locations := make(map[string]struct{})
	dates := newTally()
	contributors := newTally()
	media := 0

	for _, e := range entries {
		byCategory[e.Category]++
		if e.Location != "" {
			locations[e.Location] = struct{}{}
		}
		dates.add(e.CreatedDate)
		contributors.add(e.Contributor)
		media += len(e.Attachments)
	}

	r := Report{
		Summary: Summary{
			Entries:    len(entries),
			Categories: len(byCategory),
			Locations:  len(locations),
			MediaFiles: media,
		},
		ByCategory:   categoryCounts(byCategory),
		ByDate:       dates.counts(),
		Contributors: contributors.counts(),
	}
	sort.SliceStable(r.ByDate, func(i, j int) bool { return r.ByDate[i].Key < r.ByDate[j].Key })
	sort.SliceStable(r.Contributors, func(i, j int) bool { return r.Contributors[i].Count > r.Contributors[j].Count })
	return r
}

func categoryCounts(m map[models.Category]int) []Count {
	out := []Count{}
	seen := make(map[models.Category]bool, len(models.Categories))
	for _, c := range models.Categories {
		seen[c] = true
		if n := m[c]; n > 0 {
			out = append(out, Count{Key: string(c), Count: n})
		}
	}
	// Categories outside the vocabulary (legacy rows) go last, by name.
	var extra []Count
	for c, n := range m {
		if !seen[c] {
			extra = append(extra, Count{Key: string(c), Count: n})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Key < extra[j].Key })
	return append(out, extra...)
}

// tally counts keys and remembers the order they were first seen.
type tally struct {
	index map[string]int
	out   []Count
}

func newTally() *tally {
	return &tally{index: make(map[string]int), out: []Count{}}
}

func (t *tally) add(key string) {
	if i, ok := t.index[key]; ok {
		t.out[i].Count++
		return
	}
	t.index[key] = len(t.out)
	t.out = append(t.out, Count{Key: key, Count: 1})
}

func (t *tally) counts() []Count {
	return t.out
}
