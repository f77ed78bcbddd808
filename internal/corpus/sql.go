package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/database"
	"github.com/starford/bharathvani/internal/models"
)

const entryColumns = `id, contributor, place_name, title, description, significance, sources,
	category, historical_period, language, location, latitude, longitude,
	tags, attachments, verified, created_at, created_date`

// SQL is a Store backed by the entries table of a SQLite or PostgreSQL database.
type SQL struct {
	db  *database.DB
	now func() time.Time
}

// NewSQL returns a store on an already migrated database.
func NewSQL(db *database.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

// Create inserts a new row; the store assigns the identifier.
func (s *SQL) Create(ctx context.Context, e models.Entry) (*models.Entry, error) {
	stamp(&e, s.now())
	tags, atts, err := encodeLists(&e)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.Contributor, e.PlaceName, e.Title, e.Description, e.Significance, e.Sources,
		string(e.Category), string(e.Period), e.Language, e.Location, e.Latitude, e.Longitude,
		tags, atts, e.Verified, e.CreatedAt.UnixNano(), e.CreatedDate)
	if err != nil {
		return nil, fmt.Errorf("corpus: insert entry: %w", err)
	}
	return &e, nil
}

// Get returns one entry by identifier.
func (s *SQL) Get(ctx context.Context, id string) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+entryColumns+` FROM entries WHERE id = ?`), id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("corpus: get entry: %w", err)
	}
	return e, nil
}

// List evaluates exact predicates and ordering in SQL. The text predicate is
// applied in Go with the same case folding as the file store, so pagination
// is only pushed down to SQL when no text predicate is set.
func (s *SQL) List(ctx context.Context, q Query) (*Result, error) {
	var (
		where []string
		args  []any
	)
	if q.Filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Filter.Category)
	}
	if q.Filter.Contributor != "" {
		where = append(where, "contributor = ?")
		args = append(args, q.Filter.Contributor)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}
	order := " ORDER BY seq ASC"
	if q.Order == OrderRecent {
		order = " ORDER BY created_at DESC, seq DESC"
	}

	if q.Filter.Text != "" || q.Page.Size <= 0 {
		entries, err := s.query(ctx, `SELECT `+entryColumns+` FROM entries`+cond+order, args...)
		if err != nil {
			return nil, err
		}
		if q.Filter.Text != "" {
			m := q.Filter.matcher()
			kept := entries[:0]
			for _, e := range entries {
				if m.match(&e) {
					kept = append(kept, e)
				}
			}
			entries = kept
		}
		return &Result{Entries: paginate(entries, q.Page), Total: len(entries)}, nil
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT count(*) FROM entries`+cond), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("corpus: count entries: %w", err)
	}
	pageArgs := append(append([]any{}, args...), q.Page.Size, q.Page.Offset())
	entries, err := s.query(ctx, `SELECT `+entryColumns+` FROM entries`+cond+order+` LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, err
	}
	return &Result{Entries: entries, Total: total}, nil
}

// AddAttachments appends to the attachments column inside a transaction.
func (s *SQL) AddAttachments(ctx context.Context, id string, atts []models.Attachment) error {
	if len(atts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("corpus: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	lock := ""
	if s.db.Dialect == database.Postgres {
		lock = " FOR UPDATE"
	}
	var raw string
	err = tx.QueryRowContext(ctx, s.db.Rebind(`SELECT attachments FROM entries WHERE id = ?`+lock), id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("corpus: read attachments: %w", err)
	}
	var existing []models.Attachment
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return fmt.Errorf("corpus: decode attachments: %w", err)
	}
	merged, err := json.Marshal(append(existing, atts...))
	if err != nil {
		return fmt.Errorf("corpus: encode attachments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`UPDATE entries SET attachments = ? WHERE id = ?`), string(merged), id); err != nil {
		return fmt.Errorf("corpus: update attachments: %w", err)
	}
	return tx.Commit()
}

// SetVerified flips the verification flag.
func (s *SQL) SetVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE entries SET verified = ? WHERE id = ?`), verified, id)
	if err != nil {
		return fmt.Errorf("corpus: set verified: %w", err)
	}
	return requireRow(res)
}

// Delete removes the row.
func (s *SQL) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM entries WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("corpus: delete entry: %w", err)
	}
	return requireRow(res)
}

// Close is a no-op; the database handle is owned by the caller.
func (s *SQL) Close() error {
	return nil
}

func (s *SQL) query(ctx context.Context, q string, args ...any) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("corpus: list entries: %w", err)
	}
	defer rows.Close()

	out := []models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("corpus: scan entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*models.Entry, error) {
	var (
		e         models.Entry
		category  string
		period    string
		tags      string
		atts      string
		createdAt int64
	)
	err := sc.Scan(&e.ID, &e.Contributor, &e.PlaceName, &e.Title, &e.Description, &e.Significance, &e.Sources,
		&category, &period, &e.Language, &e.Location, &e.Latitude, &e.Longitude,
		&tags, &atts, &e.Verified, &createdAt, &e.CreatedDate)
	if err != nil {
		return nil, err
	}
	e.Category = models.Category(category)
	e.Period = models.Period(period)
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(atts), &e.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Attachments == nil {
		e.Attachments = []models.Attachment{}
	}
	return &e, nil
}

func encodeLists(e *models.Entry) (string, string, error) {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return "", "", fmt.Errorf("corpus: encode tags: %w", err)
	}
	atts, err := json.Marshal(e.Attachments)
	if err != nil {
		return "", "", fmt.Errorf("corpus: encode attachments: %w", err)
	}
	return string(tags), string(atts), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("corpus: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

var (
	_ Store = (*SQL)(nil)
	_ Store = (*JSONL)(nil)
)
