// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot settings such as
// admin identities, room identifiers, sweep cadence, database path, rate
// limiting, the ops HTTP server, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the ops API.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "onboardbot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the bot process.
type Config struct {
	// Ops HTTP server (read-only dashboard/metrics surface)
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Bot identity and rooms
	AdminIDs    []string // BOT_ADMIN_IDS, CSV of platform identifiers
	EntryRoomID string   // ENTRY_ROOM_ID, where introductions are posted
	TestRoomID  string   // TEST_ROOM_ID, optional second room where !request works

	// Onboarding
	SweepInterval    time.Duration // SWEEP_INTERVAL, sweeper tick cadence
	ProvisionTimeout time.Duration // PROVISION_STEP_TIMEOUT, per external call
	ForumPostEnabled bool          // FORUM_POST_ENABLED
	GroupKeywords    string        // GROUP_KEYWORDS, "keyword=groupID;keyword2=groupID2"
	SSOBaseURL       string        // SSO_BASE_URL, base for password reset links

	// Persistence
	DBPath string // SQLite path

	// Outbound send rate limiting
	SendRPS   float64 // tokens per second (>= 0)
	SendBurst int     // bucket size (>= 1)

	// Web protection
	CORS CORSConfig

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
	cfg := Config{
		// Ops HTTP server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Bot identity and rooms
		AdminIDs:    splitCSV(getenv("BOT_ADMIN_IDS", "")),
		EntryRoomID: getenv("ENTRY_ROOM_ID", ""),
		TestRoomID:  getenv("TEST_ROOM_ID", ""),

		// Onboarding
		SweepInterval:    getdur("SWEEP_INTERVAL", 10*time.Minute),
		ProvisionTimeout: getdur("PROVISION_STEP_TIMEOUT", 15*time.Second),
		ForumPostEnabled: getbool("FORUM_POST_ENABLED", false),
		GroupKeywords:    getenv("GROUP_KEYWORDS", ""),
		SSOBaseURL:       getenv("SSO_BASE_URL", "https://sso.example.org"),

		// Persistence
		DBPath: getenv("DB_PATH", "bot.db"),

		// Outbound send rate limiting
		SendRPS:   getfloat("SEND_RPS", 5.0),
		SendBurst: getint("SEND_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "onboardbot"),
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

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.EntryRoomID) == "" {
		return cfg, errors.New("ENTRY_ROOM_ID must not be empty")
	}
	if cfg.SweepInterval <= 0 {
		return cfg, errors.New("SWEEP_INTERVAL must be > 0")
	}
	if cfg.ProvisionTimeout <= 0 {
		return cfg, errors.New("PROVISION_STEP_TIMEOUT must be > 0")
	}
	if cfg.SendRPS < 0 {
		return cfg, errors.New("SEND_RPS must be >= 0")
	}
	if cfg.SendBurst < 1 {
		return cfg, errors.New("SEND_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// GroupKeywordTable parses GROUP_KEYWORDS ("keyword=groupID;keyword2=groupID2")
// into a lookup map. Malformed pairs are skipped; keywords are lowercased.
func (c Config) GroupKeywordTable() map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(c.GroupKeywords, ";") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
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
