package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// clearStorageEnv blanks every variable that selects the SQL backend so a
// developer's shell does not leak into the assertions.
func clearStorageEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "SCALINGO_POSTGRESQL_URL", "POSTGRESQL_URL", "PGSSLMODE", "DATABASE_SSL"} {
		t.Setenv(k, "")
	}
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("TOKEN", "tok")
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("TOKEN", "tok")
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Defaults(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("TOKEN", " tok ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Discord.Token != "tok" || !cfg.Discord.RegisterCommands || cfg.Discord.GuildID != "" {
		t.Fatalf("discord defaults unexpected: %+v", cfg.Discord)
	}
	if cfg.Storage.UseDatabase() || cfg.Storage.DataDir != "data" {
		t.Fatalf("storage defaults unexpected: %+v", cfg.Storage)
	}
	if cfg.Reminder.TickInterval != 15*time.Second || cfg.Reminder.DeliveryTimeout != 10*time.Second ||
		cfg.Reminder.PageSize != 5 || cfg.Reminder.MaxTextRunes != 2000 {
		t.Fatalf("reminder defaults unexpected: %+v", cfg.Reminder)
	}
	loc, err := cfg.Reminder.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("expected time.Local, got %v err=%v", loc, err)
	}
	if cfg.APIEnabled || cfg.APIBasePath != "/api/v1" || !cfg.HTTPEnabled || cfg.Port != "8080" {
		t.Fatalf("http defaults unexpected: %+v", cfg)
	}
}

func TestLoad_Success_Overrides(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("TOKEN", "")
	t.Setenv("DISCORD_TOKEN", "from-discord-token")
	t.Setenv("DISCORD_GUILD_ID", "123")
	t.Setenv("DISCORD_REGISTER_COMMANDS", "off")
	t.Setenv("COMMAND_RATE_RPS", "2.5")
	t.Setenv("COMMAND_RATE_BURST", "3")

	t.Setenv("DATA_DIR", "/var/lib/bot")
	t.Setenv("REMINDER_TICK", "5s")
	t.Setenv("DELIVERY_TIMEOUT", "2s")
	t.Setenv("REMINDER_PAGE_SIZE", "10")
	t.Setenv("TZ_NAME", "UTC")

	t.Setenv("PORT", "9090")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"
	t.Setenv("API_ENABLED", "yes")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "1")

	t.Setenv("RATE_RPS", "x") // -> default 5.0
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Discord.Token != "from-discord-token" || cfg.Discord.GuildID != "123" || cfg.Discord.RegisterCommands ||
		cfg.Discord.CommandRPS != 2.5 || cfg.Discord.CommandBurst != 3 {
		t.Fatalf("discord unexpected: %+v", cfg.Discord)
	}
	if cfg.Storage.DataDir != "/var/lib/bot" {
		t.Fatalf("storage unexpected: %+v", cfg.Storage)
	}
	if cfg.Reminder.TickInterval != 5*time.Second || cfg.Reminder.DeliveryTimeout != 2*time.Second || cfg.Reminder.PageSize != 10 {
		t.Fatalf("reminder unexpected: %+v", cfg.Reminder)
	}
	if loc, err := cfg.Reminder.Location(); err != nil || loc.String() != "UTC" {
		t.Fatalf("location unexpected: %v err=%v", loc, err)
	}
	if cfg.Port != "9090" || cfg.GinMode != "release" || !cfg.APIEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("http unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: %+v", cfg)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_DatabaseURLPrecedence(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("TOKEN", "tok")
	t.Setenv("POSTGRESQL_URL", "postgres://c/db")
	t.Setenv("SCALINGO_POSTGRESQL_URL", "postgres://b/db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	// Scalingo wins over POSTGRESQL_URL and forces SSL.
	if !cfg.Storage.UseDatabase() || !cfg.Storage.DatabaseSSL {
		t.Fatalf("expected SSL database backend: %+v", cfg.Storage)
	}
	if cfg.Storage.DatabaseURL != "postgres://b/db?sslmode=require" {
		t.Fatalf("unexpected url %q", cfg.Storage.DatabaseURL)
	}

	t.Setenv("DATABASE_URL", "sqlite:bot.db")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.DatabaseURL != "sqlite:bot.db" {
		t.Fatalf("DATABASE_URL should win, got %q", cfg.Storage.DatabaseURL)
	}
}

func TestLoad_SSLFlags(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("TOKEN", "tok")
	t.Setenv("DATABASE_URL", "postgres://u:p@h:5432/db?sslmode=disable")
	t.Setenv("PGSSLMODE", "require")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Storage.DatabaseSSL {
		t.Fatalf("PGSSLMODE=require should enable SSL")
	}
	// An explicit sslmode in the URL is preserved.
	if cfg.Storage.DatabaseURL != "postgres://u:p@h:5432/db?sslmode=disable" {
		t.Fatalf("unexpected url %q", cfg.Storage.DatabaseURL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"missing token", "TOKEN", "", "TOKEN must not be empty"},
		{"command rps", "COMMAND_RATE_RPS", "0", "COMMAND_RATE_RPS"},
		{"command burst", "COMMAND_RATE_BURST", "0", "COMMAND_RATE_BURST"},
		{"empty DATA_DIR", "DATA_DIR", "   ", "DATA_DIR must not be empty"},
		{"tick non-positive", "REMINDER_TICK", "0s", "REMINDER_TICK"},
		{"page size", "REMINDER_PAGE_SIZE", "0", "REMINDER_PAGE_SIZE"},
		{"bad timezone", "TZ_NAME", "Mars/Olympus", "TZ_NAME"},
		{"empty PORT via spaces", "PORT", "   ", "PORT must not be empty"},
		{"non-positive timeouts", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"rate rps negative", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst < 1", "RATE_BURST", "0", "RATE_BURST"},
		{"hsts max age negative", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"otel sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearStorageEnv(t)
			t.Setenv("TOKEN", "tok")
			t.Setenv("DISCORD_TOKEN", "")
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}
}

func TestLoad_DataDirIgnoredWithDatabase(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("TOKEN", "tok")
	t.Setenv("DATA_DIR", "  ")
	t.Setenv("DATABASE_URL", "sqlite:bot.db")
	if _, err := Load(); err != nil {
		t.Fatalf("DATA_DIR should not be required with a database: %v", err)
	}
}

// --- helpers ---

func TestHelpers_getenv_firstEnv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
	if firstEnv("X_EMPTY", "X_SET") != "val" {
		t.Fatalf("firstEnv should skip empty values")
	}
	if firstEnv("X_EMPTY") != "" {
		t.Fatalf("firstEnv should return empty when nothing is set")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		t.Setenv("B_T", v)
		if !getbool("B_T", false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		t.Setenv("B_F", v)
		if getbool("B_F", true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_normalizeBasePath_withSSLMode(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}

	if normalizeBasePath("") != "/" || normalizeBasePath("v1") != "/v1" ||
		normalizeBasePath("/v1/") != "/v1" || normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath unexpected")
	}

	if got := withSSLMode("postgresql://h/db"); got != "postgresql://h/db?sslmode=require" {
		t.Fatalf("withSSLMode postgres: %q", got)
	}
	if got := withSSLMode("sqlite:bot.db"); got != "sqlite:bot.db" {
		t.Fatalf("withSSLMode should ignore non-postgres: %q", got)
	}
}

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
