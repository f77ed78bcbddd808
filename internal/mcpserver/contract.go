package mcpserver

import (
	"strings"

	"github.com/starford/bharathvani/internal/models"
)

// EntryFormatContract describes a heritage entry for LLM consumers. The
// vocabularies are rendered from models so they never drift.
var EntryFormatContract = buildContract()

func buildContract() string {
	var b strings.Builder
	b.WriteString(`# BharathVani Entry Format

Each entry records one piece of Indian cultural heritage contributed by a
registered user.

## Fields

| Field | Required | Notes |
|---|---|---|
| id | assigned | random identifier |
| contributor | assigned | username of the submitting user |
| place_name | yes | place the entry is about |
| title | yes | short display title |
| description | yes | Markdown text |
| significance | no | why the place or practice matters |
| sources | no | references, free text |
| category | no | one of the categories below, default Other |
| historical_period | no | one of the periods below, default Unknown |
| language | no | language of the description |
| location | no | free-text address |
| latitude, longitude | no | decimal degrees, 0 when unknown |
| tags | no | list of trimmed, de-duplicated strings |
| attachments | no | uploaded files with name, locator, size, checksum |
| verified | assigned | set by administrators only |
| created_at, created_date | assigned | UTC instant and its YYYY-MM-DD date |

## Categories

`)
	for _, c := range models.Categories {
		b.WriteString("- " + string(c) + "\n")
	}
	b.WriteString("\n## Historical periods\n\n")
	for _, p := range models.Periods {
		b.WriteString("- " + string(p) + "\n")
	}
	b.WriteString(`
## Notes

- Entries are never edited in place. Only the verified flag and the
  attachment list change after creation.
- Duplicate submissions are kept as separate entries.
`)
	return b.String()
}
