package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bharathvani/internal/lookup"
	"github.com/starford/bharathvani/internal/media"
	"github.com/starford/bharathvani/internal/session"
)

// Corpus backends.
const (
	CorpusBackendFile     = "file"
	CorpusBackendSQLite   = "sqlite"
	CorpusBackendPostgres = "postgres"
)

// Credential backends.
const (
	AuthBackendFile = "file"
	AuthBackendSQL  = "sql"
)

// Media backends.
const (
	MediaBackendFS    = "fs"
	MediaBackendS3    = "s3"
	MediaBackendMinIO = "minio"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app" toml:"app"`
	Auth     AuthConfig        `yaml:"auth" toml:"auth"`
	Corpus   CorpusConfig      `yaml:"corpus" toml:"corpus"`
	SQLite   SQLiteConfig      `yaml:"sqlite" toml:"sqlite"`
	Postgres PostgresConfig    `yaml:"postgres" toml:"postgres"`
	Media    MediaConfig       `yaml:"media" toml:"media"`
	Lookup   LookupConfig      `yaml:"lookup" toml:"lookup"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Corpus.Validate(); err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if c.UsesDatabase() {
		if c.Dialect() == CorpusBackendPostgres {
			if err := c.Postgres.Validate(); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		} else if err := c.SQLite.Validate(); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	}
	if err := c.Media.Validate(); err != nil {
		return fmt.Errorf("media: %w", err)
	}
	if err := c.Lookup.Validate(); err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	return nil
}

// UsesDatabase reports whether any component needs the relational database.
func (c *Config) UsesDatabase() bool {
	return c.Corpus.Backend != CorpusBackendFile || c.Auth.Backend == AuthBackendSQL
}

// Dialect returns the database that SQL-backed components share: PostgreSQL
// when the corpus lives there, SQLite otherwise.
func (c *Config) Dialect() string {
	if c.Corpus.Backend == CorpusBackendPostgres {
		return CorpusBackendPostgres
	}
	return CorpusBackendSQLite
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel       slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP           HTTPConfig `yaml:"http" toml:"http"`
	MaxUploadBytes int64      `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds credential and session configuration.
//
// An empty JWTSecret is allowed; a random one is generated at startup, which
// invalidates every session on restart.
type AuthConfig struct {
	Backend    string        `yaml:"backend" toml:"backend"`
	UsersFile  string        `yaml:"users_file" toml:"users_file"`
	JWTSecret  string        `yaml:"jwt_secret" toml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl" toml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" toml:"refresh_ttl"`
	Admins     []string      `yaml:"admins" toml:"admins"`
	BcryptCost int           `yaml:"bcrypt_cost" toml:"bcrypt_cost"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = AuthBackendFile
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(AuthBackendFile, AuthBackendSQL)),
		validation.Field(&c.UsersFile, validation.When(c.Backend == AuthBackendFile, validation.Required)),
		validation.Field(&c.AccessTTL, validation.Min(time.Second)),
		validation.Field(&c.RefreshTTL, validation.Min(c.AccessTTL)),
		validation.Field(&c.BcryptCost, validation.When(c.BcryptCost != 0, validation.Min(4), validation.Max(31))),
	)
}

// Session converts the section into session manager settings.
func (c *AuthConfig) Session(secret []byte) session.Config {
	return session.Config{
		Secret:     secret,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
		Admins:     c.Admins,
	}
}

// CorpusConfig selects where entries are stored.
type CorpusConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	// Path is the JSONL operation log used by the file backend.
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = CorpusBackendFile
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(CorpusBackendFile, CorpusBackendSQLite, CorpusBackendPostgres)),
		validation.Field(&c.Path, validation.When(c.Backend == CorpusBackendFile, validation.Required)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PostgresConfig holds the PostgreSQL connection string.
type PostgresConfig struct {
	DSN string `yaml:"dsn" toml:"dsn"`
}

// Validate validates the PostgreSQL configuration.
func (c *PostgresConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DSN, validation.Required),
	)
}

// MediaConfig selects where attachments are stored.
type MediaConfig struct {
	Backend       string        `yaml:"backend" toml:"backend"`
	Naming        media.Naming  `yaml:"naming" toml:"naming"`
	Dir           string        `yaml:"dir" toml:"dir"`
	Endpoint      string        `yaml:"endpoint" toml:"endpoint"`
	Region        string        `yaml:"region" toml:"region"`
	Bucket        string        `yaml:"bucket" toml:"bucket"`
	AccessKey     string        `yaml:"access_key" toml:"access_key"`
	SecretKey     string        `yaml:"secret_key" toml:"secret_key"`
	UseSSL        bool          `yaml:"use_ssl" toml:"use_ssl"`
	PublicBaseURL string        `yaml:"public_base_url" toml:"public_base_url"`
	PresignTTL    time.Duration `yaml:"presign_ttl" toml:"presign_ttl"`
}

// Validate validates the media configuration.
func (c *MediaConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = MediaBackendFS
	}
	if c.Naming == "" {
		c.Naming = media.NamingOriginal
	}
	object := c.Backend == MediaBackendS3 || c.Backend == MediaBackendMinIO
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(MediaBackendFS, MediaBackendS3, MediaBackendMinIO)),
		validation.Field(&c.Naming, validation.In(media.NamingOriginal, media.NamingRandom)),
		validation.Field(&c.Dir, validation.When(c.Backend == MediaBackendFS, validation.Required)),
		validation.Field(&c.Endpoint, validation.When(object, validation.Required)),
		validation.Field(&c.Bucket, validation.When(object, validation.Required)),
		validation.Field(&c.AccessKey, validation.When(object, validation.Required)),
		validation.Field(&c.SecretKey, validation.When(object, validation.Required)),
	)
}

// Object converts the section into object-store settings.
func (c *MediaConfig) Object() media.ObjectConfig {
	return media.ObjectConfig{
		Endpoint:      c.Endpoint,
		Region:        c.Region,
		Bucket:        c.Bucket,
		AccessKey:     c.AccessKey,
		SecretKey:     c.SecretKey,
		UseSSL:        c.UseSSL,
		PublicBaseURL: c.PublicBaseURL,
		PresignTTL:    c.PresignTTL,
	}
}

// LookupConfig holds the external reference services.
type LookupConfig struct {
	Enabled      bool          `yaml:"enabled" toml:"enabled"`
	Timeout      time.Duration `yaml:"timeout" toml:"timeout"`
	UserAgent    string        `yaml:"user_agent" toml:"user_agent"`
	WikipediaURL string        `yaml:"wikipedia_url" toml:"wikipedia_url"`
	NominatimURL string        `yaml:"nominatim_url" toml:"nominatim_url"`
	IPAPIURL     string        `yaml:"ipapi_url" toml:"ipapi_url"`
	ProbeURL     string        `yaml:"probe_url" toml:"probe_url"`
}

// Validate validates the lookup configuration.
func (c *LookupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.When(c.Enabled, validation.Required, validation.Max(time.Minute))),
		validation.Field(&c.WikipediaURL, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.NominatimURL, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.IPAPIURL, validation.When(c.Enabled, validation.Required)),
	)
}

// Client converts the section into lookup client settings.
func (c *LookupConfig) Client() lookup.Config {
	return lookup.Config{
		Enabled:      c.Enabled,
		Timeout:      c.Timeout,
		UserAgent:    c.UserAgent,
		WikipediaURL: c.WikipediaURL,
		NominatimURL: c.NominatimURL,
		IPAPIURL:     c.IPAPIURL,
		ProbeURL:     c.ProbeURL,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			MaxUploadBytes: 50 << 20,
		},
		Auth: AuthConfig{
			Backend:    AuthBackendFile,
			UsersFile:  "./data/users.csv",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Corpus: CorpusConfig{
			Backend: CorpusBackendFile,
			Path:    "./data/entries.jsonl",
		},
		SQLite: SQLiteConfig{
			Path: "./data/bharathvani.db",
		},
		Media: MediaConfig{
			Backend: MediaBackendFS,
			Naming:  media.NamingOriginal,
			Dir:     "./data/media",
			Region:  "us-east-1",
		},
		Lookup: LookupConfig{
			Enabled:      true,
			Timeout:      5 * time.Second,
			UserAgent:    "BharathVani/1.0",
			WikipediaURL: "https://en.wikipedia.org/api/rest_v1",
			NominatimURL: "https://nominatim.openstreetmap.org",
			IPAPIURL:     "https://ipapi.co",
			ProbeURL:     "https://www.google.com",
		},
	}
}
