package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type BackendKind string

const (
	BackendSupabase BackendKind = "supabase" // Hosted PostgREST + Realtime + Storage (default)
	BackendLocal    BackendKind = "local"    // SQLite table, in-process change feed, covers on disk
)

// ErrMissingBackendCredentials is returned by Validate when the hosted backend
// is selected but its endpoint or key is not configured.
var ErrMissingBackendCredentials = errors.New("missing Supabase config: set SUPABASE_URL and SUPABASE_ANON_KEY")

// ErrMissingPasscode is returned by Validate when no gate passcode is set.
var ErrMissingPasscode = errors.New("missing passcode: set PASSCODE or PASSCODE_HASH")

type (
	Config struct {
		HTTP
		Global
		Backend
		Supabase
		Database
		Covers
		Auth
		Metadata
		Tags
		Sync
		UI
		Log
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Backend struct {
		Kind BackendKind
	}
	Supabase struct {
		URL     string
		AnonKey string
		Table   string // Logical books table (default: "books")
		Schema  string // Postgres schema for realtime filters (default: "public")
		Bucket  string // Storage bucket for uploaded covers (default: "book-covers")
		Channel string // Realtime channel name (default: "books_channel")
	}
	Database struct {
		Path string // SQLite file for sessions and the local backend
	}
	Covers struct {
		Dir     string // Local bucket directory (local backend only)
		BaseURL string // Public URL prefix for local covers
	}
	Auth struct {
		Passcode        string // Plain shared passcode, hashed at startup
		PasscodeHash    string // Pre-computed bcrypt hash, wins over Passcode
		SessionSecret   string
		SessionLifetime time.Duration
		SecureCookies   bool
		ErrorWindow     time.Duration // How long a wrong attempt keeps the gate in error state

		MaxAttempts     int
		RateLimitWindow time.Duration
		LockoutDuration time.Duration
	}
	Metadata struct {
		Timeout             time.Duration
		GoogleBooksAPIKey   string
		OpenLibraryFallback bool
	}
	Tags struct {
		Provider        string // "anthropic" or "openai"
		AnthropicAPIKey string
		OpenAIAPIKey    string
		Model           string
	}
	Sync struct {
		ResyncSchedule  string        // Cron format, empty disables periodic full fetch
		FormIdleTimeout time.Duration // Add-book forms idle longer than this are closed
	}
	UI struct {
		StaticPath string
	}
	Log struct {
		File       string
		MaxSizeMB  int
		MaxBackups int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("backend", string(BackendSupabase))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("static_path", "./static")

	// Supabase defaults
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_anon_key", "")
	v.SetDefault("supabase_table", "books")
	v.SetDefault("supabase_schema", "public")
	v.SetDefault("supabase_bucket", "book-covers")
	v.SetDefault("supabase_channel", "books_channel")

	// Local backend defaults
	v.SetDefault("local_covers_dir", "./covers")
	v.SetDefault("local_covers_base_url", "/covers")

	// Gate defaults
	v.SetDefault("passcode", "")
	v.SetDefault("passcode_hash", "")
	v.SetDefault("auth_session_secret", "")      // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "720h") // 30 days
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("gate_error_window", "800ms")
	v.SetDefault("auth_max_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Metadata defaults
	v.SetDefault("metadata_timeout", "10s")
	v.SetDefault("google_books_api_key", "")
	v.SetDefault("metadata_openlibrary", false)

	// Tag suggestion defaults
	v.SetDefault("tags_provider", "anthropic")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("tags_model", "")

	// Sync defaults
	v.SetDefault("resync_schedule", "*/15 * * * *")
	v.SetDefault("form_idle_timeout", "30m")

	// Logging defaults
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Backend: Backend{
			Kind: BackendKind(v.GetString("BACKEND")),
		},
		Supabase: Supabase{
			URL:     v.GetString("SUPABASE_URL"),
			AnonKey: v.GetString("SUPABASE_ANON_KEY"),
			Table:   v.GetString("SUPABASE_TABLE"),
			Schema:  v.GetString("SUPABASE_SCHEMA"),
			Bucket:  v.GetString("SUPABASE_BUCKET"),
			Channel: v.GetString("SUPABASE_CHANNEL"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Covers: Covers{
			Dir:     v.GetString("LOCAL_COVERS_DIR"),
			BaseURL: v.GetString("LOCAL_COVERS_BASE_URL"),
		},
		Auth: Auth{
			Passcode:        v.GetString("PASSCODE"),
			PasscodeHash:    v.GetString("PASSCODE_HASH"),
			SessionSecret:   v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime: v.GetDuration("AUTH_SESSION_LIFETIME"),
			SecureCookies:   v.GetBool("AUTH_SECURE_COOKIES"),
			ErrorWindow:     v.GetDuration("GATE_ERROR_WINDOW"),
			MaxAttempts:     v.GetInt("AUTH_MAX_ATTEMPTS"),
			RateLimitWindow: v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration: v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Metadata: Metadata{
			Timeout:             v.GetDuration("METADATA_TIMEOUT"),
			GoogleBooksAPIKey:   v.GetString("GOOGLE_BOOKS_API_KEY"),
			OpenLibraryFallback: v.GetBool("METADATA_OPENLIBRARY"),
		},
		Tags: Tags{
			Provider:        v.GetString("TAGS_PROVIDER"),
			AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
			OpenAIAPIKey:    v.GetString("OPENAI_API_KEY"),
			Model:           v.GetString("TAGS_MODEL"),
		},
		Sync: Sync{
			ResyncSchedule:  v.GetString("RESYNC_SCHEDULE"),
			FormIdleTimeout: v.GetDuration("FORM_IDLE_TIMEOUT"),
		},
		UI: UI{
			StaticPath: v.GetString("STATIC_PATH"),
		},
		Log: Log{
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		},
	}
}

// Validate reports configuration errors that make startup impossible.
// Optional integrations (tag suggestion, Google Books key) are never errors.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendSupabase, "":
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return ErrMissingBackendCredentials
		}
	case BackendLocal:
	default:
		return errors.New("unknown BACKEND " + string(c.Backend.Kind) + ": expected supabase or local")
	}

	if c.Auth.Passcode == "" && c.Auth.PasscodeHash == "" {
		return ErrMissingPasscode
	}

	return nil
}
