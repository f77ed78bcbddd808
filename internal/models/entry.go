// Package models defines the domain types for BharathVani.
package models

import "time"

// DateLayout is the day-precision layout of Entry.CreatedDate.
const DateLayout = "2006-01-02"

// Category classifies a heritage entry.
type Category string

const (
	CategoryMonument     Category = "Monument"
	CategoryTemple       Category = "Temple"
	CategoryFestival     Category = "Festival"
	CategoryTradition    Category = "Tradition"
	CategoryCraft        Category = "Craft"
	CategoryMusic        Category = "Music"
	CategoryDance        Category = "Dance"
	CategoryLiterature   Category = "Literature"
	CategoryArchitecture Category = "Architecture"
	CategoryOther        Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryMonument, CategoryTemple, CategoryFestival, CategoryTradition, CategoryCraft,
	CategoryMusic, CategoryDance, CategoryLiterature, CategoryArchitecture, CategoryOther,
}

// Period is the historical period an entry belongs to.
type Period string

const (
	PeriodAncient      Period = "Ancient"
	PeriodMedieval     Period = "Medieval"
	PeriodColonial     Period = "Colonial"
	PeriodModern       Period = "Modern"
	PeriodContemporary Period = "Contemporary"
	PeriodUnknown      Period = "Unknown"
)

// Periods lists every period in chronological order.
var Periods = []Period{
	PeriodAncient, PeriodMedieval, PeriodColonial, PeriodModern, PeriodContemporary, PeriodUnknown,
}

// Entry is one contributed heritage record.
type Entry struct {
	ID           string       `json:"id"`
	Contributor  string       `json:"contributor"`
	PlaceName    string       `json:"place_name"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Significance string       `json:"significance"`
	Sources      string       `json:"sources"`
	Category     Category     `json:"category"`
	Period       Period       `json:"historical_period"`
	Language     string       `json:"language"`
	Location     string       `json:"location"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Tags         []string     `json:"tags"`
	Attachments  []Attachment `json:"attachments"`
	Verified     bool         `json:"verified"`
	CreatedAt    time.Time    `json:"created_at"`
	CreatedDate  string       `json:"created_date"`
}

// Attachment is one uploaded file owned by an Entry.
type Attachment struct {
	// Name is the storage key inside the media provider.
	Name        string `json:"name"`
	Locator     string `json:"locator"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Checksum    string `json:"checksum,omitempty"`
}

// Credential is one username/secret authentication record.
type Credential struct {
	Username     string
	PasswordHash string
}
