package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/models"
)

// Operation kinds recorded in the log.
const (
	opCreate = "create"
	opAttach = "attach"
	opVerify = "verify"
	opDelete = "delete"
)

// maxRecordBytes bounds a single log line.
const maxRecordBytes = 4 << 20

type record struct {
	Op          string              `json:"op"`
	At          time.Time           `json:"at"`
	ID          string              `json:"id,omitempty"`
	Entry       *models.Entry       `json:"entry,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	Verified    *bool               `json:"verified,omitempty"`
}

// JSONL is a Store backed by an append-only JSON Lines operation log.
//
// Every mutation is one line appended with O_APPEND, so concurrent writers
// never overwrite each other. Readers replay the log incrementally from the
// last consumed offset, which also picks up lines appended by other processes.
type JSONL struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	offset  int64
	file    os.FileInfo
	order   []string
	entries map[string]*models.Entry

	// While a watcher runs, records written by other processes queue in
	// pending no matter which call replayed them. own holds lines this
	// process appended that have not been replayed yet.
	watching bool
	own      map[string]int
	pending  []record
}

// NewJSONL opens the log at path, creating it (and its directory) if needed.
func NewJSONL(path string, logger *slog.Logger) (*JSONL, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("corpus: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("corpus: open log: %w", err)
	}
	_ = f.Close()

	s := &JSONL{
		path:    path,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*models.Entry),
		own:     make(map[string]int),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.catchUp(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the log file location.
func (s *JSONL) Path() string {
	return s.path
}

// Create appends a create record.
func (s *JSONL) Create(_ context.Context, e models.Entry) (*models.Entry, error) {
	stamp(&e, s.now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendLocked(record{Op: opCreate, At: e.CreatedAt, Entry: &e}); err != nil {
		return nil, err
	}
	out := e
	return &out, nil
}

// Get returns a copy of the entry with id.
func (s *JSONL) Get(_ context.Context, id string) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.catchUp(); err != nil {
		return nil, err
	}
	e, ok := s.entries[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := cloneEntry(e)
	return &out, nil
}

// List scans every live entry and evaluates q in memory.
func (s *JSONL) List(_ context.Context, q Query) (*Result, error) {
	s.mu.Lock()
	if err := s.catchUp(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	all := make([]models.Entry, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, cloneEntry(s.entries[id]))
	}
	s.mu.Unlock()
	return apply(all, q), nil
}

// AddAttachments appends an attach record.
func (s *JSONL) AddAttachments(_ context.Context, id string, atts []models.Attachment) error {
	if len(atts) == 0 {
		return nil
	}
	return s.mutate(id, record{Op: opAttach, ID: id, Attachments: atts})
}

// SetVerified appends a verify record.
func (s *JSONL) SetVerified(_ context.Context, id string, verified bool) error {
	return s.mutate(id, record{Op: opVerify, ID: id, Verified: &verified})
}

// Delete appends a delete record.
func (s *JSONL) Delete(_ context.Context, id string) error {
	return s.mutate(id, record{Op: opDelete, ID: id})
}

// Close is a no-op; the log file is opened per write.
func (s *JSONL) Close() error {
	return nil
}

func (s *JSONL) mutate(id string, rec record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.catchUp(); err != nil {
		return err
	}
	if _, ok := s.entries[id]; !ok {
		return apperr.ErrNotFound
	}
	rec.At = s.now().UTC()
	return s.appendLocked(rec)
}

// appendLocked writes rec as a single line and replays it (together with
// anything other writers appended) into memory. Caller holds s.mu.
func (s *JSONL) appendLocked(rec record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("corpus: encode record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("corpus: open log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("corpus: append: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("corpus: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("corpus: close log: %w", err)
	}
	if s.watching {
		s.own[string(line)]++
	}
	return s.catchUp()
}

// catchUp replays records appended since the last read. A log that is
// shorter than the consumed offset, or is a different file than last time,
// was replaced, so state is rebuilt from scratch. Caller holds s.mu.
func (s *JSONL) catchUp() error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.reset()
			s.file = nil
			return nil
		}
		return fmt.Errorf("corpus: open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("corpus: stat log: %w", err)
	}
	switch {
	case s.file != nil && !os.SameFile(s.file, info):
		s.logger.Warn("corpus: log replaced, replaying from start", slog.String("path", s.path))
		s.reset()
	case info.Size() < s.offset:
		s.logger.Warn("corpus: log shrank, replaying from start", slog.String("path", s.path))
		s.reset()
	}
	s.file = info
	if info.Size() == s.offset {
		return nil
	}
	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return fmt.Errorf("corpus: seek log: %w", err)
	}

	r := bufio.NewReaderSize(f, 64<<10)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] != '\n' {
			// Partial line from a writer still in progress; pick it up next time.
			break
		}
		if len(line) > 0 {
			s.offset += int64(len(line))
			if len(line) > maxRecordBytes {
				s.logger.Warn("corpus: oversized record skipped", slog.Int("bytes", len(line)))
			} else if rec, ok := s.decode(line); ok {
				own := s.consumeOwn(line)
				if s.applyRecord(rec) && !own && s.watching {
					s.pending = append(s.pending, rec)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("corpus: read log: %w", err)
		}
	}
	return nil
}

// consumeOwn reports whether line was appended by this process.
func (s *JSONL) consumeOwn(line []byte) bool {
	key := string(line)
	n := s.own[key]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(s.own, key)
	} else {
		s.own[key] = n - 1
	}
	return true
}

func (s *JSONL) decode(line []byte) (record, bool) {
	var rec record
	if len(line) == 1 {
		return rec, false
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		s.logger.Warn("corpus: malformed record skipped",
			slog.Int64("offset", s.offset), slog.String("error", err.Error()))
		return rec, false
	}
	return rec, true
}

// applyRecord folds rec into memory and reports whether it changed state.
func (s *JSONL) applyRecord(rec record) bool {
	switch rec.Op {
	case opCreate:
		if rec.Entry == nil || rec.Entry.ID == "" {
			return false
		}
		if _, dup := s.entries[rec.Entry.ID]; dup {
			return false
		}
		e := cloneEntry(rec.Entry)
		s.entries[e.ID] = &e
		s.order = append(s.order, e.ID)
	case opAttach:
		e, ok := s.entries[rec.ID]
		if !ok {
			return false
		}
		e.Attachments = append(e.Attachments, rec.Attachments...)
	case opVerify:
		e, ok := s.entries[rec.ID]
		if !ok || rec.Verified == nil {
			return false
		}
		e.Verified = *rec.Verified
	case opDelete:
		if _, ok := s.entries[rec.ID]; !ok {
			return false
		}
		delete(s.entries, rec.ID)
		for i, id := range s.order {
			if id == rec.ID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	default:
		s.logger.Warn("corpus: unknown record op", slog.String("op", rec.Op))
		return false
	}
	return true
}

func (s *JSONL) reset() {
	s.offset = 0
	s.order = nil
	s.entries = make(map[string]*models.Entry)
}

func cloneEntry(e *models.Entry) models.Entry {
	out := *e
	out.Tags = append([]string{}, e.Tags...)
	out.Attachments = append([]models.Attachment{}, e.Attachments...)
	return out
}
