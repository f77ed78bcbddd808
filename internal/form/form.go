// Package form turns raw entry submissions into validated domain entries.
package form

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/models"
)

// Submission is the contributor-supplied part of an entry.
type Submission struct {
	PlaceName    string   `json:"place_name"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Significance string   `json:"significance"`
	Sources      string   `json:"sources"`
	Category     string   `json:"category"`
	Period       string   `json:"historical_period"`
	Language     string   `json:"language"`
	Location     string   `json:"location"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Tags         []string `json:"tags"`
}

// Parse normalises and validates s. The returned entry has no identifier,
// contributor or timestamps; those are assigned later.
func Parse(s Submission) (*models.Entry, error) {
	e := &models.Entry{
		PlaceName:    strings.TrimSpace(s.PlaceName),
		Title:        strings.TrimSpace(s.Title),
		Description:  strings.TrimSpace(s.Description),
		Significance: strings.TrimSpace(s.Significance),
		Sources:      strings.TrimSpace(s.Sources),
		Category:     models.Category(strings.TrimSpace(s.Category)),
		Period:       models.Period(strings.TrimSpace(s.Period)),
		Language:     strings.TrimSpace(s.Language),
		Location:     strings.TrimSpace(s.Location),
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		Tags:         NormalizeTags(s.Tags),
		Attachments:  []models.Attachment{},
	}
	if e.Category == "" {
		e.Category = models.CategoryOther
	}
	if e.Period == "" {
		e.Period = models.PeriodUnknown
	}

	err := validation.ValidateStruct(e,
		validation.Field(&e.PlaceName, validation.Required.Error("place name is required")),
		validation.Field(&e.Title, validation.Required.Error("title is required")),
		validation.Field(&e.Description, validation.Required.Error("description is required")),
		validation.Field(&e.Category, validation.In(categoryValues()...).Error("unknown category")),
		validation.Field(&e.Period, validation.In(periodValues()...).Error("unknown historical period")),
		validation.Field(&e.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&e.Longitude, validation.Min(-180.0), validation.Max(180.0)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return e, nil
}

// SplitTags splits comma-separated tag input.
func SplitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims every tag, drops empty ones and removes duplicates,
// keeping the first occurrence.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ValidCategory reports whether c belongs to the fixed category set.
func ValidCategory(c string) bool {
	for _, v := range models.Categories {
		if string(v) == c {
			return true
		}
	}
	return false
}

func categoryValues() []any {
	out := make([]any, len(models.Categories))
	for i, c := range models.Categories {
		out[i] = c
	}
	return out
}

func periodValues() []any {
	out := make([]any, len(models.Periods))
	for i, p := range models.Periods {
		out[i] = p
	}
	return out
}
