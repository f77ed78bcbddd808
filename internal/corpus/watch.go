package corpus

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called for every entry change another process appended
// to the log. kind is one of "created", "attached", "verified", "deleted".
type EventCallback func(kind, id string)

var opKinds = map[string]string{
	opCreate: "created",
	opAttach: "attached",
	opVerify: "verified",
	opDelete: "deleted",
}

// Watch follows the log with fsnotify until ctx is cancelled. cb only sees
// changes from other writers, including those an in-process read replayed
// before the notification arrived.
func (s *JSONL) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	s.mu.Lock()
	if err := s.catchUp(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.watching = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.watching = false
		s.pending = nil
		s.own = make(map[string]int)
		s.mu.Unlock()
	}()

	// Watch the directory so replacement of the log file is noticed too.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(s.path)
	s.logger.Info("corpus watcher: started", slog.String("path", target))

	// Bursts of appends are coalesced into one replay.
	var debounce *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			s.logger.Info("corpus watcher: stopped")
			return nil

		case <-debounceCh:
			debounceCh = nil
			s.replayForeign(cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(50 * time.Millisecond)
			} else {
				debounce.Reset(50 * time.Millisecond)
			}
			debounceCh = debounce.C

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("corpus watcher: error", slog.String("error", werr.Error()))
		}
	}
}

func (s *JSONL) replayForeign(cb EventCallback) {
	s.mu.Lock()
	err := s.catchUp()
	changes := s.pending
	s.pending = nil
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("corpus watcher: replay failed", slog.String("error", err.Error()))
	}
	if cb == nil {
		return
	}
	for _, rec := range changes {
		id := rec.ID
		if rec.Op == opCreate && rec.Entry != nil {
			id = rec.Entry.ID
		}
		s.logger.Debug("corpus watcher: foreign change", slog.String("op", rec.Op), slog.String("id", id))
		cb(opKinds[rec.Op], id)
	}
}
