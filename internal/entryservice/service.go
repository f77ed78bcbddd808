// Package entryservice coordinates the corpus store, media provider, session
// manager and live feed for every entry operation.
package entryservice

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/checksum"
	"github.com/starford/bharathvani/internal/corpus"
	"github.com/starford/bharathvani/internal/form"
	"github.com/starford/bharathvani/internal/media"
	"github.com/starford/bharathvani/internal/models"
	"github.com/starford/bharathvani/internal/session"
	"github.com/starford/bharathvani/internal/sse"
	"github.com/starford/bharathvani/internal/stats"
)

// RecentLimit is the number of entries shown in a profile.
const RecentLimit = 5

// Notifier receives entry change events.
type Notifier interface {
	PublishEntryEvent(kind, id string)
}

// Upload is one file submitted for attachment.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Skipped describes an upload that could not be stored.
type Skipped struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// AttachResult lists what was stored and what was not.
type AttachResult struct {
	Attached []models.Attachment `json:"attached"`
	Skipped  []Skipped           `json:"skipped"`
}

// Profile summarises one contributor.
type Profile struct {
	Username          string         `json:"username"`
	Admin             bool           `json:"admin"`
	Entries           int            `json:"entries"`
	CategoriesCovered int            `json:"categories_covered"`
	FilesUploaded     int            `json:"files_uploaded"`
	Recent            []models.Entry `json:"recent"`
	CorpusTotal       int            `json:"corpus_total"`
}

// Service coordinates storage, media and sessions.
type Service struct {
	store    corpus.Store
	media    media.Provider
	sessions *session.Manager
	events   Notifier
	naming   media.Naming
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes entry changes to n.
func WithEvents(n Notifier) Option {
	return func(s *Service) { s.events = n }
}

// WithNaming selects how attachment storage names are built.
func WithNaming(n media.Naming) Option {
	return func(s *Service) { s.naming = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new entry service.
func NewService(store corpus.Store, mp media.Provider, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		store:    store,
		media:    mp,
		sessions: sessions,
		naming:   media.NamingOriginal,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateEntry validates sub and stores it under the session's user.
func (s *Service) CreateEntry(ctx context.Context, sess *session.Session, sub form.Submission) (*models.Entry, error) {
	if err := s.requireSession(sess); err != nil {
		return nil, err
	}
	e, err := form.Parse(sub)
	if err != nil {
		return nil, err
	}
	e.Contributor = sess.Username
	created, err := s.store.Create(ctx, *e)
	if err != nil {
		return nil, err
	}
	s.logger.Info("entry created", slog.String("id", created.ID), slog.String("contributor", created.Contributor))
	s.publish(sse.KindCreated, created.ID)
	return created, nil
}

// AttachFiles stores uploads for entry id. Only the contributor or an admin
// may attach. Uploads that fail are reported in Skipped; the rest are kept.
func (s *Service) AttachFiles(ctx context.Context, sess *session.Session, id string, uploads []Upload) (*AttachResult, error) {
	if err := s.requireSession(sess); err != nil {
		return nil, err
	}
	res := &AttachResult{Attached: []models.Attachment{}, Skipped: []Skipped{}}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Contributor != sess.Username && !sess.Admin {
		return nil, apperr.ErrForbidden
	}
	if len(uploads) == 0 {
		return res, nil
	}

	taken := make(map[string]bool, len(e.Attachments)+len(uploads))
	for _, a := range e.Attachments {
		taken[a.Name] = true
	}
	for _, u := range uploads {
		name := media.UniqueStorageName(id, u.Filename, s.naming, taken)
		cr := checksum.NewReader(u.Body)
		loc, err := s.media.Put(ctx, name, cr, u.Size, u.ContentType)
		if err != nil {
			s.logger.Warn("attachment upload failed",
				slog.String("id", id), slog.String("filename", u.Filename), slog.String("error", err.Error()))
			res.Skipped = append(res.Skipped, Skipped{Filename: u.Filename, Reason: "upload failed"})
			continue
		}
		res.Attached = append(res.Attached, models.Attachment{
			Name:        name,
			Locator:     loc,
			Filename:    u.Filename,
			Size:        cr.Count(),
			ContentType: u.ContentType,
			Checksum:    cr.Sum(),
		})
	}
	if len(res.Attached) == 0 {
		return res, nil
	}
	if err := s.store.AddAttachments(ctx, id, res.Attached); err != nil {
		for _, a := range res.Attached {
			s.removeObject(ctx, id, a.Name)
		}
		return nil, err
	}
	s.publish(sse.KindAttached, id)
	return res, nil
}

// ListEntries returns the entries matching q.
func (s *Service) ListEntries(ctx context.Context, q corpus.Query) (*corpus.Result, error) {
	return s.store.List(ctx, q)
}

// GetEntry returns one entry.
func (s *Service) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	return s.store.Get(ctx, id)
}

// UpdateVerification sets the verified flag. Admin only.
func (s *Service) UpdateVerification(ctx context.Context, sess *session.Session, id string, verified bool) error {
	if err := s.requireAdmin(sess); err != nil {
		return err
	}
	if err := s.store.SetVerified(ctx, id, verified); err != nil {
		return err
	}
	s.logger.Info("entry verification changed",
		slog.String("id", id), slog.Bool("verified", verified), slog.String("by", sess.Username))
	s.publish(sse.KindVerified, id)
	return nil
}

// DeleteEntry removes the entry and every attachment it owns. Admin only.
// Attachment removal failures are logged and do not stop the deletion.
func (s *Service) DeleteEntry(ctx context.Context, sess *session.Session, id string) error {
	if err := s.requireAdmin(sess); err != nil {
		return err
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, a := range e.Attachments {
		s.removeObject(ctx, id, a.Name)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("entry deleted", slog.String("id", id), slog.String("by", sess.Username))
	s.publish(sse.KindDeleted, id)
	return nil
}

// Stats aggregates the whole corpus.
func (s *Service) Stats(ctx context.Context) (*stats.Report, error) {
	res, err := s.store.List(ctx, corpus.Query{})
	if err != nil {
		return nil, err
	}
	r := stats.Compute(res.Entries)
	return &r, nil
}

// Profile summarises the entries contributed by username.
func (s *Service) Profile(ctx context.Context, sess *session.Session) (*Profile, error) {
	own, err := s.store.List(ctx, corpus.Query{
		Filter: corpus.Filter{Contributor: sess.Username},
		Order:  corpus.OrderRecent,
	})
	if err != nil {
		return nil, err
	}
	all, err := s.store.List(ctx, corpus.Query{Page: corpus.Page{Number: 1, Size: 1}})
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Username:    sess.Username,
		Admin:       sess.Admin,
		Entries:     own.Total,
		CorpusTotal: all.Total,
		Recent:      own.Entries,
	}
	cats := make(map[models.Category]struct{})
	for _, e := range own.Entries {
		cats[e.Category] = struct{}{}
		p.FilesUploaded += len(e.Attachments)
	}
	p.CategoriesCovered = len(cats)
	if len(p.Recent) > RecentLimit {
		p.Recent = p.Recent[:RecentLimit]
	}
	return p, nil
}

// requireSession confirms sess before a mutation. A failed check revokes
// the session so the caller must authenticate again.
func (s *Service) requireSession(sess *session.Session) error {
	if err := s.sessions.Validate(sess); err != nil {
		s.sessions.Revoke(sess)
		if sess != nil {
			s.logger.Info("session rejected", slog.String("username", sess.Username))
		}
		if errors.Is(err, apperr.ErrSessionExpired) {
			return err
		}
		return apperr.ErrSessionExpired
	}
	return nil
}

func (s *Service) requireAdmin(sess *session.Session) error {
	if err := s.requireSession(sess); err != nil {
		return err
	}
	if !sess.Admin {
		return apperr.ErrForbidden
	}
	return nil
}

func (s *Service) removeObject(ctx context.Context, id, name string) {
	if err := s.media.Delete(ctx, name); err != nil {
		s.logger.Warn("attachment removal failed",
			slog.String("id", id), slog.String("name", name), slog.String("error", err.Error()))
	}
}

func (s *Service) publish(kind, id string) {
	if s.events != nil {
		s.events.PublishEntryEvent(kind, id)
	}
}
