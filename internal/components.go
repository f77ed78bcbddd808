package internal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/bharathvani/internal/account"
	"github.com/starford/bharathvani/internal/corpus"
	"github.com/starford/bharathvani/internal/credentials"
	"github.com/starford/bharathvani/internal/database"
	"github.com/starford/bharathvani/internal/entryservice"
	"github.com/starford/bharathvani/internal/lookup"
	"github.com/starford/bharathvani/internal/media"
	"github.com/starford/bharathvani/internal/session"
)

// components are the long-lived collaborators shared by every command.
type components struct {
	db       *database.DB
	store    corpus.Store
	log      *corpus.JSONL // non-nil for the file corpus backend
	creds    credentials.Store
	media    media.Provider
	fs       *media.FS // non-nil for the fs media backend
	sessions *session.Manager
	lookup   *lookup.Client
	accounts *account.Service
}

// newComponents opens storage according to cfg. Anything already opened is
// closed again when a later step fails.
func newComponents(ctx context.Context, cfg *Config, logger *slog.Logger) (*components, error) {
	c := &components{}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	var err error
	if cfg.UsesDatabase() {
		if c.db, err = openDatabase(ctx, cfg); err != nil {
			return nil, err
		}
	}

	switch cfg.Corpus.Backend {
	case CorpusBackendFile:
		if c.log, err = corpus.NewJSONL(cfg.Corpus.Path, logger); err != nil {
			return nil, fmt.Errorf("init corpus: %w", err)
		}
		c.store = c.log
	default:
		c.store = corpus.NewSQL(c.db)
	}

	var credOpts []credentials.Option
	if cfg.Auth.BcryptCost != 0 {
		credOpts = append(credOpts, credentials.WithBcryptCost(cfg.Auth.BcryptCost))
	}
	switch cfg.Auth.Backend {
	case AuthBackendSQL:
		c.creds, err = credentials.NewSQL(c.db, credOpts...)
	default:
		c.creds, err = credentials.NewFile(cfg.Auth.UsersFile, credOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("init credentials: %w", err)
	}

	if c.media, err = openMedia(ctx, cfg, c); err != nil {
		return nil, err
	}

	secret, err := jwtSecret(cfg.Auth.JWTSecret, logger)
	if err != nil {
		return nil, err
	}
	c.sessions = session.NewManager(cfg.Auth.Session(secret))
	c.lookup = lookup.New(cfg.Lookup.Client(), logger)
	c.accounts = account.NewService(c.creds, c.sessions, logger)
	ok = true
	return c, nil
}

// entries builds the entry service over the opened components.
func (c *components) entries(cfg *Config, logger *slog.Logger, opts ...entryservice.Option) *entryservice.Service {
	opts = append([]entryservice.Option{
		entryservice.WithNaming(cfg.Media.Naming),
		entryservice.WithLogger(logger),
	}, opts...)
	return entryservice.NewService(c.store, c.media, c.sessions, opts...)
}

// Close releases the corpus store and the database.
func (c *components) Close() error {
	var errs []error
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}

func openDatabase(ctx context.Context, cfg *Config) (*database.DB, error) {
	if cfg.Dialect() == CorpusBackendPostgres {
		db, err := database.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		return db, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := database.OpenSQLite(ctx, cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return db, nil
}

func openMedia(ctx context.Context, cfg *Config, c *components) (media.Provider, error) {
	switch cfg.Media.Backend {
	case MediaBackendS3:
		p, err := media.NewS3(ctx, cfg.Media.Object())
		if err != nil {
			return nil, fmt.Errorf("init s3 media: %w", err)
		}
		return p, nil
	case MediaBackendMinIO:
		p, err := media.NewMinIO(cfg.Media.Object())
		if err != nil {
			return nil, fmt.Errorf("init minio media: %w", err)
		}
		if err := p.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("init minio media: %w", err)
		}
		return p, nil
	default:
		fs, err := media.NewFS(cfg.Media.Dir, "/media")
		if err != nil {
			return nil, fmt.Errorf("init fs media: %w", err)
		}
		c.fs = fs
		return fs, nil
	}
}

// jwtSecret returns the configured signing key, or a random one when none
// is configured.
func jwtSecret(configured string, logger *slog.Logger) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	logger.Warn("auth.jwt_secret is empty; using a random key, sessions will not survive a restart")
	return buf, nil
}
