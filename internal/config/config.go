// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the Discord session
// settings, backend selection, reminder scheduling, the ops HTTP server,
// logging, and observability.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DiscordConfig defines gateway session and command registration settings.
type DiscordConfig struct {
	Token            string // TOKEN or DISCORD_TOKEN
	GuildID          string // DISCORD_GUILD_ID, empty = global commands
	RegisterCommands bool   // DISCORD_REGISTER_COMMANDS
	CommandRPS       float64
	CommandBurst     int
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	DatabaseURL string // empty selects the JSON file backend
	DatabaseSSL bool
	DataDir     string // directory holding reminders.json and raaah.json
}

// UseDatabase reports whether the SQL backend is selected.
func (s StorageConfig) UseDatabase() bool { return s.DatabaseURL != "" }

// ReminderConfig defines dispatcher and command-facing reminder settings.
type ReminderConfig struct {
	TickInterval    time.Duration // REMINDER_TICK
	DeliveryTimeout time.Duration // DELIVERY_TIMEOUT
	PageSize        int           // REMINDER_PAGE_SIZE
	Timezone        string        // TZ_NAME, empty = process local time
	MaxTextRunes    int
}

// Location resolves the configured time zone. An empty name yields time.Local.
func (r ReminderConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(r.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(r.Timezone)
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-discord-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	Discord  DiscordConfig
	Storage  StorageConfig
	Reminder ReminderConfig

	// Ops HTTP server
	HTTPEnabled       bool
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	GinMode           string // debug|release|test

	// REST mirror of the slash commands. The caller is whoever X-User-ID
	// names and nothing verifies it, so enable it only when PORT is reachable
	// from trusted networks (loopback, a private interface, or behind a proxy
	// that authenticates and sets the header). Off by default.
	APIEnabled  bool
	APIBasePath string

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool

	// Rate limiting (HTTP)
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	dbURL := firstEnv("DATABASE_URL", "SCALINGO_POSTGRESQL_URL", "POSTGRESQL_URL")

	cfg := Config{
		Discord: DiscordConfig{
			Token:            strings.TrimSpace(firstEnv("TOKEN", "DISCORD_TOKEN")),
			GuildID:          strings.TrimSpace(getenv("DISCORD_GUILD_ID", "")),
			RegisterCommands: getbool("DISCORD_REGISTER_COMMANDS", true),
			CommandRPS:       getfloat("COMMAND_RATE_RPS", 1.0),
			CommandBurst:     getint("COMMAND_RATE_BURST", 5),
		},
		Storage: StorageConfig{
			DatabaseURL: strings.TrimSpace(dbURL),
			DatabaseSSL: strings.EqualFold(getenv("PGSSLMODE", ""), "require") ||
				getbool("DATABASE_SSL", false) ||
				getenv("SCALINGO_POSTGRESQL_URL", "") != "",
			DataDir: getenv("DATA_DIR", "data"),
		},
		Reminder: ReminderConfig{
			TickInterval:    getdur("REMINDER_TICK", 15*time.Second),
			DeliveryTimeout: getdur("DELIVERY_TIMEOUT", 10*time.Second),
			PageSize:        getint("REMINDER_PAGE_SIZE", 5),
			Timezone:        getenv("TZ_NAME", ""),
			MaxTextRunes:    2000,
		},

		HTTPEnabled:       getbool("HTTP_ENABLED", true),
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		APIEnabled:  getbool("API_ENABLED", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-discord-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Storage.DatabaseSSL {
		cfg.Storage.DatabaseURL = withSSLMode(cfg.Storage.DatabaseURL)
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.Discord.Token == "" {
		return cfg, errors.New("TOKEN must not be empty")
	}
	if cfg.Discord.CommandRPS <= 0 {
		return cfg, errors.New("COMMAND_RATE_RPS must be > 0")
	}
	if cfg.Discord.CommandBurst < 1 {
		return cfg, errors.New("COMMAND_RATE_BURST must be >= 1")
	}
	if !cfg.Storage.UseDatabase() && strings.TrimSpace(cfg.Storage.DataDir) == "" {
		return cfg, errors.New("DATA_DIR must not be empty when no database is configured")
	}
	if cfg.Reminder.TickInterval <= 0 || cfg.Reminder.DeliveryTimeout <= 0 {
		return cfg, errors.New("REMINDER_TICK and DELIVERY_TIMEOUT must be positive durations")
	}
	if cfg.Reminder.PageSize < 1 || cfg.Reminder.PageSize > 25 {
		return cfg, errors.New("REMINDER_PAGE_SIZE must be between 1 and 25")
	}
	if _, err := cfg.Reminder.Location(); err != nil {
		return cfg, errors.New("TZ_NAME must be a valid IANA time zone")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// withSSLMode adds sslmode=require to a postgres URL that does not already
// carry an sslmode. Non-URL DSNs and non-postgres schemes are returned as is.
func withSSLMode(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return dsn
	}
	q := u.Query()
	if q.Get("sslmode") != "" {
		return dsn
	}
	q.Set("sslmode", "require")
	u.RawQuery = q.Encode()
	return u.String()
}
