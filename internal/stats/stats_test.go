package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bharathvani/internal/models"
)

func entry(contributor string, cat models.Category, date, location string, files int) models.Entry {
	return models.Entry{
		Contributor: contributor,
		Category:    cat,
		CreatedDate: date,
		Location:    location,
		Attachments: make([]models.Attachment, files),
	}
}

func TestComputeEmpty(t *testing.T) {
	r := Compute(nil)
	assert.Equal(t, Summary{}, r.Summary)
	assert.Empty(t, r.ByCategory)
	assert.Empty(t, r.ByDate)
	assert.Empty(t, r.Contributors)
	assert.NotNil(t, r.ByCategory)
	assert.NotNil(t, r.ByDate)
	assert.NotNil(t, r.Contributors)
}

func TestContributorRanking(t *testing.T) {
	entries := []models.Entry{
		entry("A", models.CategoryMonument, "2024-01-02", "", 0),
		entry("B", models.CategoryMonument, "2024-01-01", "", 0),
		entry("A", models.CategoryTemple, "2024-01-02", "", 0),
		entry("A", models.CategoryTemple, "2024-01-03", "", 0),
	}
	r := Compute(entries)
	assert.Equal(t, []Count{{"A", 3}, {"B", 1}}, r.Contributors)
}

func TestContributorTiesKeepEncounterOrder(t *testing.T) {
	entries := []models.Entry{
		entry("zoe", models.CategoryOther, "2024-01-01", "", 0),
		entry("amit", models.CategoryOther, "2024-01-01", "", 0),
		entry("lin", models.CategoryOther, "2024-01-01", "", 0),
		entry("amit", models.CategoryOther, "2024-01-01", "", 0),
	}
	r := Compute(entries)
	require.Len(t, r.Contributors, 3)
	assert.Equal(t, []Count{{"amit", 2}, {"zoe", 1}, {"lin", 1}}, r.Contributors)
}

func TestCategoryAndDateCounts(t *testing.T) {
	entries := []models.Entry{
		entry("a", models.CategoryFestival, "2024-03-02", "Madurai", 2),
		entry("b", models.CategoryMonument, "2024-03-01", "Hampi", 1),
		entry("c", models.CategoryFestival, "2024-03-02", "Madurai", 0),
		entry("d", models.Category("Legacy"), "2024-02-28", "", 0),
	}
	r := Compute(entries)
	assert.Equal(t, []Count{{"Monument", 1}, {"Festival", 2}, {"Legacy", 1}}, r.ByCategory)
	assert.Equal(t, []Count{{"2024-02-28", 1}, {"2024-03-01", 1}, {"2024-03-02", 2}}, r.ByDate)
	assert.Equal(t, Summary{Entries: 4, Categories: 3, Locations: 2, MediaFiles: 3}, r.Summary)
}
