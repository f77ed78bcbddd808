package api

import (
	"github.com/starford/bharathvani/internal/entryservice"
	"github.com/starford/bharathvani/internal/lookup"
	"github.com/starford/bharathvani/internal/models"
)

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Username string `json:"username" example:"asha"`
	Password string `json:"password" example:"s3cret"`
}

// RefreshRequest is the body of a token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// VerificationRequest is the body of PUT /entries/{id}/verification.
type VerificationRequest struct {
	Verified *bool `json:"verified"`
}

// EntryListResponse wraps a page of entries.
type EntryListResponse struct {
	Entries []models.Entry `json:"entries"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Size    int            `json:"size"`
	Pages   int            `json:"pages"`
}

// EntryDetail is an entry with its description rendered to HTML.
type EntryDetail struct {
	models.Entry
	DescriptionHTML string `json:"description_html"`
}

// CreateEntryResponse is returned by POST /entries. Attachments and Lookup
// are present only when files or a lookup were requested.
type CreateEntryResponse struct {
	Entry       *models.Entry              `json:"entry"`
	Attachments *entryservice.AttachResult `json:"attachments,omitempty"`
	Lookup      *lookup.SearchResult       `json:"lookup,omitempty"`
}

// LookupResponse wraps a best-effort lookup.
type LookupResponse struct {
	Found  bool `json:"found"`
	Result any  `json:"result,omitempty"`
}

// VocabularyResponse lists the fixed category and period sets.
type VocabularyResponse struct {
	Categories []models.Category `json:"categories"`
	Periods    []models.Period   `json:"periods"`
}

// StatusResponse reports connectivity.
type StatusResponse struct {
	Online        bool `json:"online"`
	LookupEnabled bool `json:"lookup_enabled"`
}
