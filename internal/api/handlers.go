package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bharathvani/internal/account"
	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/corpus"
	"github.com/starford/bharathvani/internal/entryservice"
	"github.com/starford/bharathvani/internal/form"
	"github.com/starford/bharathvani/internal/lookup"
	"github.com/starford/bharathvani/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxJSONBytes    = 1 << 20
)

// Handler holds API route handlers.
type Handler struct {
	accounts  *account.Service
	entries   *entryservice.Service
	lookup    *lookup.Client
	maxUpload int64
	logger    *slog.Logger
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	sess, err := h.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	sess, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Refresh handles POST /api/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("refresh_token is required"))
		return
	}
	sess, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, h.logger, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.accounts.Logout(r.Context(), currentSession(r))
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.entries.Profile(r.Context(), currentSession(r))
	if err != nil {
		writeError(w, h.logger, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListEntries handles GET /api/entries.
//
// Query parameters: q, category, contributor, order=recent, page, size.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("size"))
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	order := corpus.OrderInsertion
	if q.Get("order") == string(corpus.OrderRecent) {
		order = corpus.OrderRecent
	}

	res, err := h.entries.ListEntries(r.Context(), corpus.Query{
		Filter: corpus.Filter{
			Text:        strings.TrimSpace(q.Get("q")),
			Category:    q.Get("category"),
			Contributor: q.Get("contributor"),
		},
		Order: order,
		Page:  corpus.Page{Number: page, Size: size},
	})
	if err != nil {
		writeError(w, h.logger, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{
		Entries: res.Entries,
		Total:   res.Total,
		Page:    page,
		Size:    size,
		Pages:   (res.Total + size - 1) / size,
	})
}

// GetEntry handles GET /api/entries/{id}.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.entries.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryDetail{Entry: *e, DescriptionHTML: renderMarkdown(e.Description)})
}

// CreateEntry handles POST /api/entries. The body is either a JSON
// submission or a multipart form whose "files" parts become attachments.
// With lookup=true the encyclopedia and geocoding lookups run after saving.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var (
		sub     form.Submission
		uploads []entryservice.Upload
		wantsLU = r.URL.Query().Get("lookup") == "true"
	)
	if isMultipart(r) {
		mf, ok := h.parseMultipart(w, r)
		if !ok {
			return
		}
		defer mf.RemoveAll() //nolint:errcheck
		var err error
		sub, err = submissionFromForm(mf)
		if err != nil {
			writeError(w, h.logger, "create entry", err)
			return
		}
		if mf.Value["lookup"] != nil && mf.Value["lookup"][0] == "true" {
			wantsLU = true
		}
		var closeAll func()
		uploads, closeAll, err = openUploads(mf)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid file part"))
			return
		}
		defer closeAll()
	} else if !decodeJSON(w, r, maxJSONBytes, &sub) {
		return
	}

	sess := currentSession(r)
	e, err := h.entries.CreateEntry(r.Context(), sess, sub)
	if err != nil {
		writeError(w, h.logger, "create entry", err)
		return
	}
	resp := CreateEntryResponse{Entry: e}

	if len(uploads) > 0 {
		res, err := h.entries.AttachFiles(r.Context(), sess, e.ID, uploads)
		if err != nil {
			// The entry is already saved; report it without attachments.
			h.logger.Warn("attach after create failed", slog.String("id", e.ID), slog.String("error", err.Error()))
		} else {
			resp.Attachments = res
			e.Attachments = append(e.Attachments, res.Attached...)
		}
	}
	if wantsLU && h.lookup != nil && h.lookup.Enabled() {
		res := h.lookup.Search(r.Context(), e.PlaceName)
		resp.Lookup = &res
	}
	writeJSON(w, http.StatusCreated, resp)
}

// AttachFiles handles POST /api/entries/{id}/attachments.
func (h *Handler) AttachFiles(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeJSON(w, http.StatusBadRequest, errorBody("multipart/form-data required"))
		return
	}
	mf, ok := h.parseMultipart(w, r)
	if !ok {
		return
	}
	defer mf.RemoveAll() //nolint:errcheck
	uploads, closeAll, err := openUploads(mf)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid file part"))
		return
	}
	defer closeAll()

	res, err := h.entries.AttachFiles(r.Context(), currentSession(r), chi.URLParam(r, "id"), uploads)
	if err != nil {
		writeError(w, h.logger, "attach files", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SetVerification handles PUT /api/entries/{id}/verification.
func (h *Handler) SetVerification(w http.ResponseWriter, r *http.Request) {
	var req VerificationRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	if req.Verified == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("verified is required"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.entries.UpdateVerification(r.Context(), currentSession(r), id, *req.Verified); err != nil {
		writeError(w, h.logger, "update verification", err)
		return
	}
	e, err := h.entries.GetEntry(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntry handles DELETE /api/entries/{id}.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.entries.DeleteEntry(r.Context(), currentSession(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, "delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rep, err := h.entries.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Vocabulary handles GET /api/vocabulary.
func (h *Handler) Vocabulary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VocabularyResponse{Categories: models.Categories, Periods: models.Periods})
}

// LookupPlace handles GET /api/lookup/place?q=.
func (h *Handler) LookupPlace(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	res := h.lookup.Search(r.Context(), q)
	writeJSON(w, http.StatusOK, LookupResponse{
		Found:  res.Wikipedia != nil || res.OpenStreetMap != nil,
		Result: res,
	})
}

// LookupReverse handles GET /api/lookup/reverse?lat=&lon=.
func (h *Handler) LookupReverse(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("lat and lon must be numbers"))
		return
	}
	p, ok := h.lookup.Reverse(r.Context(), lat, lon)
	writeLookup(w, ok, p)
}

// LookupLocate handles GET /api/lookup/locate. The caller's address is
// geolocated.
func (h *Handler) LookupLocate(w http.ResponseWriter, r *http.Request) {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	loc, ok := h.lookup.Locate(r.Context(), ip)
	writeLookup(w, ok, loc)
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Online:        h.lookup.Online(r.Context()),
		LookupEnabled: h.lookup.Enabled(),
	})
}

func writeLookup[T any](w http.ResponseWriter, ok bool, v *T) {
	if !ok {
		writeJSON(w, http.StatusOK, LookupResponse{})
		return
	}
	writeJSON(w, http.StatusOK, LookupResponse{Found: true, Result: v})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("upload too large"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		}
		return nil, false
	}
	return r.MultipartForm, true
}

func submissionFromForm(mf *multipart.Form) (form.Submission, error) {
	get := func(k string) string {
		if v := mf.Value[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	sub := form.Submission{
		PlaceName:    get("place_name"),
		Title:        get("title"),
		Description:  get("description"),
		Significance: get("significance"),
		Sources:      get("sources"),
		Category:     get("category"),
		Period:       get("historical_period"),
		Language:     get("language"),
		Location:     get("location"),
		Tags:         form.SplitTags(get("tags")),
	}
	var err error
	if sub.Latitude, err = parseCoord(get("latitude")); err != nil {
		return sub, err
	}
	if sub.Longitude, err = parseCoord(get("longitude")); err != nil {
		return sub, err
	}
	return sub, nil
}

func parseCoord(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid coordinate %q", apperr.ErrInvalidInput, s)
	}
	return v, nil
}

// openUploads opens every "files" part. The returned func closes them all.
func openUploads(mf *multipart.Form) ([]entryservice.Upload, func(), error) {
	var (
		uploads []entryservice.Upload
		files   []multipart.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, fh := range mf.File["files"] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		uploads = append(uploads, entryservice.Upload{
			Filename:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}
