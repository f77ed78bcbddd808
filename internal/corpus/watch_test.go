package corpus

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/bharathvani/internal/models"
)

type changeLog struct {
	mu      sync.Mutex
	changes []string
}

func (c *changeLog) record(kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, kind+":"+id)
}

func (c *changeLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.changes...)
}

// startWatch runs s.Watch until the test ends and waits for it to be armed.
func startWatch(t *testing.T, s *JSONL) *changeLog {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	log := &changeLog{}
	go func() { done <- s.Watch(ctx, log.record) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		armed := s.watching
		s.mu.Unlock()
		if armed {
			return log
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitChanges(t *testing.T, log *changeLog, want int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		got := log.snapshot()
		if len(got) >= want || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatchReportsForeignWrites(t *testing.T) {
	a := tempLog(t)
	log := startWatch(t, a)
	b, err := NewJSONL(a.Path(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	e, err := b.Create(ctx, sample("b", "Konark", models.CategoryMonument))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetVerified(ctx, e.ID, true); err != nil {
		t.Fatal(err)
	}

	got := waitChanges(t, log, 2)
	if len(got) != 2 || got[0] != "created:"+e.ID || got[1] != "verified:"+e.ID {
		t.Errorf("changes = %v", got)
	}
}

func TestWatchSurvivesInterleavedReads(t *testing.T) {
	a := tempLog(t)
	log := startWatch(t, a)
	b, err := NewJSONL(a.Path(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	e, err := b.Create(ctx, sample("b", "Sanchi", models.CategoryMonument))
	if err != nil {
		t.Fatal(err)
	}
	// The read replays the foreign record before the watcher's debounce fires.
	res, err := a.List(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 {
		t.Fatalf("total = %d, want 1", res.Total)
	}

	got := waitChanges(t, log, 1)
	if len(got) != 1 || got[0] != "created:"+e.ID {
		t.Errorf("changes = %v", got)
	}
}

func TestWatchIgnoresOwnWrites(t *testing.T) {
	a := tempLog(t)
	log := startWatch(t, a)
	b, err := NewJSONL(a.Path(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := a.Create(ctx, sample("a", "own", models.CategoryOther)); err != nil {
		t.Fatal(err)
	}
	foreign, err := b.Create(ctx, sample("b", "foreign", models.CategoryOther))
	if err != nil {
		t.Fatal(err)
	}

	waitChanges(t, log, 1)
	// Give a stray notification for the own write time to arrive.
	time.Sleep(200 * time.Millisecond)
	got := log.snapshot()
	if len(got) != 1 || got[0] != "created:"+foreign.ID {
		t.Errorf("changes = %v", got)
	}
}

func TestJSONLDetectsReplacedLog(t *testing.T) {
	a := tempLog(t)
	ctx := context.Background()
	if _, err := a.Create(ctx, sample("a", "old", models.CategoryOther)); err != nil {
		t.Fatal(err)
	}

	// Build a replacement log at least as large as the original and rename
	// it over the original.
	other, err := NewJSONL(a.Path()+".new", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"replacement one", "replacement two"} {
		if _, err := other.Create(ctx, sample("b", title, models.CategoryOther)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Rename(other.Path(), a.Path()); err != nil {
		t.Fatal(err)
	}

	res, err := a.List(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(res.Entries); len(got) != 2 || got[0] != "replacement one" || got[1] != "replacement two" {
		t.Errorf("after replacement = %v", got)
	}
}
