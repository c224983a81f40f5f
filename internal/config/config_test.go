package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads; viper treats empty values as
// unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "HTTP_ADDR", "GRPC_PORT", "GRPC_ADDR", "DATABASE_URL", "REDIS_ADDR",
		"SHUTDOWN_TIMEOUT", "LOG_LEVEL",
		"STUDIOBOOK_CONFIG", "STUDIOBOOK_HTTP_PORT", "STUDIOBOOK_HTTP_ADDR", "STUDIOBOOK_HTTP_CORS_ORIGINS",
		"STUDIOBOOK_GRPC_ADDR", "STUDIOBOOK_GRPC_REQUEST_TIMEOUT", "STUDIOBOOK_STORE_DRIVER",
		"STUDIOBOOK_STORE_DATA_DIR", "STUDIOBOOK_OCCURRENCES_WINDOW_DAYS", "STUDIOBOOK_STUDIO_TIMEZONE",
		"STUDIOBOOK_CALENDAR_EVENT_DURATION", "STUDIOBOOK_DATABASE_SQLITE_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("HTTPAddr = %q, want :3000", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != "0.0.0.0:50051" || !cfg.GRPCEnabled {
		t.Fatalf("grpc = %q enabled=%v", cfg.GRPCAddr, cfg.GRPCEnabled)
	}
	if cfg.StoreDriver != DriverCSV || cfg.DataDir != "data" {
		t.Fatalf("store = %q in %q", cfg.StoreDriver, cfg.DataDir)
	}
	if cfg.SQLitePath != filepath.Join("data", "studiobook.db") {
		t.Fatalf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.WindowDays != 30 || cfg.Location != time.Local {
		t.Fatalf("window = %d location = %v", cfg.WindowDays, cfg.Location)
	}
	if cfg.GRPCRequestTimeout != 10*time.Second || cfg.ShutdownTimeout != 10*time.Second || cfg.CalendarEventDuration != time.Hour {
		t.Fatalf("durations = %v %v %v", cfg.GRPCRequestTimeout, cfg.ShutdownTimeout, cfg.CalendarEventDuration)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Fatalf("CORSOrigins = %v, want none", cfg.CORSOrigins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("STUDIOBOOK_GRPC_ADDR", "127.0.0.1:9000")
	t.Setenv("STUDIOBOOK_STORE_DRIVER", "SQLite")
	t.Setenv("STUDIOBOOK_HTTP_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STUDIOBOOK_STUDIO_TIMEZONE", "Europe/Istanbul")
	t.Setenv("STUDIOBOOK_OCCURRENCES_WINDOW_DAYS", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != "127.0.0.1:9000" {
		t.Fatalf("GRPCAddr = %q", cfg.GRPCAddr)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Fatalf("StoreDriver = %q", cfg.StoreDriver)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
	if cfg.Location.String() != "Europe/Istanbul" || cfg.WindowDays != 90 {
		t.Fatalf("location = %v window = %d", cfg.Location, cfg.WindowDays)
	}
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "studiobook.yaml")
	doc := `
store:
  driver: redis
redis:
  key_prefix: "test:"
http:
  cors_origins: ["https://a.example", "https://b.example"]
occurrences:
  window_days: 60
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	t.Setenv("STUDIOBOOK_CONFIG", path)
	t.Setenv("STUDIOBOOK_OCCURRENCES_WINDOW_DAYS", "45")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.StoreDriver != DriverRedis || cfg.RedisKeyPrefix != "test:" {
		t.Fatalf("store = %q prefix = %q", cfg.StoreDriver, cfg.RedisKeyPrefix)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	// Environment wins over the file.
	if cfg.WindowDays != 45 {
		t.Fatalf("WindowDays = %d, want 45", cfg.WindowDays)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := map[string][2]string{
		"duration": {"STUDIOBOOK_GRPC_REQUEST_TIMEOUT", "soon"},
		"driver":   {"STUDIOBOOK_STORE_DRIVER", "mongo"},
		"window":   {"STUDIOBOOK_OCCURRENCES_WINDOW_DAYS", "400"},
		"timezone": {"STUDIOBOOK_STUDIO_TIMEZONE", "Mars/Olympus"},
		"file":     {"STUDIOBOOK_CONFIG", "/nonexistent/studiobook.yaml"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
