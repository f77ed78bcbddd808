package corpus

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/database"
	"github.com/starford/bharathvani/internal/models"
)

func tempSQL(t *testing.T) *SQL {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQL(db)
}

func TestSQLCreateGetRoundTrip(t *testing.T) {
	s := tempSQL(t)
	ctx := context.Background()
	e := sample("asha", "Hampi", models.CategoryMonument)
	e.Latitude, e.Longitude = 15.335, 76.46
	e.Tags = []string{"unesco"}

	created, err := s.Create(ctx, e)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Hampi" || got.Category != models.CategoryMonument || got.Latitude != 15.335 {
		t.Errorf("got %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "unesco" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Attachments == nil || len(got.Attachments) != 0 {
		t.Errorf("attachments = %v, want empty slice", got.Attachments)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created.CreatedAt)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get missing: %v", err)
	}
}

func TestSQLListFiltersAndPages(t *testing.T) {
	s := tempSQL(t)
	s.now = tick(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	for i, title := range []string{"Hampi Ruins", "Pongal", "Temple of Hampi", "Kathak"} {
		cat := models.CategoryMonument
		if i%2 == 1 {
			cat = models.CategoryFestival
		}
		if _, err := s.Create(ctx, sample("u", title, cat)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := s.List(ctx, Query{Page: Page{Number: 2, Size: 3}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 4 || len(res.Entries) != 1 || res.Entries[0].Title != "Kathak" {
		t.Errorf("page 2 = %v total %d", titles(res.Entries), res.Total)
	}

	res, _ = s.List(ctx, Query{Filter: Filter{Text: "HAMPI"}})
	if got := titles(res.Entries); len(got) != 2 || got[0] != "Hampi Ruins" || got[1] != "Temple of Hampi" {
		t.Errorf("text filter = %v", got)
	}

	res, _ = s.List(ctx, Query{Filter: Filter{Category: "Festival"}, Order: OrderRecent})
	if got := titles(res.Entries); len(got) != 2 || got[0] != "Kathak" || got[1] != "Pongal" {
		t.Errorf("category+recent = %v", got)
	}

	res, _ = s.List(ctx, Query{Filter: Filter{Text: "hampi"}, Page: Page{Number: 2, Size: 1}})
	if res.Total != 2 || len(res.Entries) != 1 || res.Entries[0].Title != "Temple of Hampi" {
		t.Errorf("text filter page 2 = %v total %d", titles(res.Entries), res.Total)
	}

	for _, f := range []Filter{{}, {Text: "hampi"}} {
		res, err = s.List(ctx, Query{Filter: f, Page: Page{Number: math.MaxInt, Size: 10}})
		if err != nil {
			t.Fatalf("List far page: %v", err)
		}
		if len(res.Entries) != 0 || res.Total == 0 {
			t.Errorf("far page with %+v = %v total %d", f, titles(res.Entries), res.Total)
		}
	}
}

func TestSQLMutations(t *testing.T) {
	s := tempSQL(t)
	ctx := context.Background()
	e, err := s.Create(ctx, sample("u", "Konark", models.CategoryTemple))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetVerified(ctx, e.ID, true); err != nil {
		t.Fatalf("SetVerified: %v", err)
	}
	if err := s.AddAttachments(ctx, e.ID, []models.Attachment{{Name: "a", Filename: "a.jpg"}}); err != nil {
		t.Fatalf("AddAttachments: %v", err)
	}
	if err := s.AddAttachments(ctx, e.ID, []models.Attachment{{Name: "b", Filename: "b.jpg"}}); err != nil {
		t.Fatalf("AddAttachments: %v", err)
	}
	got, _ := s.Get(ctx, e.ID)
	if !got.Verified || len(got.Attachments) != 2 || got.Attachments[1].Name != "b" {
		t.Errorf("after mutations: %+v", got)
	}

	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, e.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if err := s.SetVerified(ctx, e.ID, false); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("verify deleted: %v", err)
	}
	if err := s.AddAttachments(ctx, e.ID, []models.Attachment{{Name: "c"}}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("attach deleted: %v", err)
	}
}

// TestPostgresStore runs against a live server when BHARATHVANI_TEST_POSTGRES_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("BHARATHVANI_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BHARATHVANI_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer db.Close()
	s := NewSQL(db)

	e, err := s.Create(ctx, sample("pg", "Ellora", models.CategoryMonument))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Delete(ctx, e.ID) //nolint:errcheck
	if err := s.AddAttachments(ctx, e.ID, []models.Attachment{{Name: "x"}}); err != nil {
		t.Fatalf("AddAttachments: %v", err)
	}
	res, err := s.List(ctx, Query{Filter: Filter{Contributor: "pg", Text: "ellora"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total < 1 {
		t.Errorf("expected at least one entry, got %d", res.Total)
	}
}
