package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bharathvani/internal/account"
	"github.com/starford/bharathvani/internal/entryservice"
	"github.com/starford/bharathvani/internal/lookup"
	"github.com/starford/bharathvani/internal/session"
)

// Deps are the collaborators of the API router.
type Deps struct {
	Accounts *account.Service
	Entries  *entryservice.Service
	Sessions *session.Manager
	Lookup   *lookup.Client
	// Events, if non-nil, is mounted at GET /events inside the authenticated group.
	Events http.Handler
	// MaxUploadBytes caps multipart request bodies.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 50 << 20
	}
	if d.Lookup == nil {
		d.Lookup = lookup.New(lookup.Config{}, d.Logger)
	}
	h := &Handler{
		accounts:  d.Accounts,
		entries:   d.Entries,
		lookup:    d.Lookup,
		maxUpload: d.MaxUploadBytes,
		logger:    d.Logger,
	}

	r := chi.NewRouter()

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(d.Sessions))

		r.Post("/auth/logout", h.Logout)
		r.Get("/me", h.Me)

		// Entries.
		r.Get("/entries", h.ListEntries)
		r.Post("/entries", h.CreateEntry)
		r.Get("/entries/{id}", h.GetEntry)
		r.Delete("/entries/{id}", h.DeleteEntry)
		r.Post("/entries/{id}/attachments", h.AttachFiles)
		r.Put("/entries/{id}/verification", h.SetVerification)

		r.Get("/stats", h.Stats)
		r.Get("/vocabulary", h.Vocabulary)

		// Best-effort external lookups.
		r.Get("/lookup/place", h.LookupPlace)
		r.Get("/lookup/reverse", h.LookupReverse)
		r.Get("/lookup/locate", h.LookupLocate)
		r.Get("/status", h.Status)

		if d.Events != nil {
			r.Get("/events", d.Events.ServeHTTP)
		}
	})

	return r
}
