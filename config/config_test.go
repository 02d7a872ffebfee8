package config

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	oldArgs := os.Args
	oldFlag := flag.CommandLine
	t.Cleanup(func() {
		os.Args = oldArgs
		flag.CommandLine = oldFlag
	})
	flag.CommandLine = flag.NewFlagSet("cmd", flag.ExitOnError)
	os.Args = append([]string{"cmd"}, args...)
}

func TestParseCommaSeparated(t *testing.T) {
	res := parseCommaSeparated("a,b , c")
	if len(res) != 3 || res[1] != "b" {
		t.Fatalf("unexpected result: %v", res)
	}
	if res := parseCommaSeparated(""); len(res) != 0 {
		t.Fatalf("expected empty slice")
	}
	if res := parseCommaSeparated("a,,b,"); len(res) != 2 {
		t.Fatalf("expected blanks to be dropped: %v", res)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	data := `{"start_paths":["/tmp"],"concurrency_level":2,"output_format":"json","classify_unknown":true}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := defaults()
	if err := cfg.loadFromFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StartPaths[0] != "/tmp" || cfg.OutputFormat != "json" || !cfg.ClassifyUnknown {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.ConcurrencySet || cfg.ConcurrencyLevel != 2 {
		t.Fatalf("concurrency from file not honored: %+v", cfg)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := defaults()
	if err := cfg.loadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0o600)
	if err := cfg.loadFromFile(path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaults()
		cfg.ConcurrencyLevel = 1
		return cfg
	}
	if err := base().validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no paths", func(c *Config) { c.StartPaths = nil }},
		{"bad format", func(c *Config) { c.OutputFormat = "xml" }},
		{"bad read mode", func(c *Config) { c.ContentReadMode = "fast" }},
		{"negative mmap size", func(c *Config) { c.MmapMinSize = -1 }},
		{"negative max size", func(c *Config) { c.MaxFileSize = -1 }},
		{"negative io limit", func(c *Config) { c.MaxIOPerSecond = -5 }},
		{"zero concurrency", func(c *Config) { c.ConcurrencyLevel = 0 }},
		{"bad nice", func(c *Config) { c.NiceLevel = "bad" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"negative otel timeout", func(c *Config) { c.OtelTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := defaults()
	cfg.OutputFormat = ""
	cfg.ContentReadMode = " "
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.OutputFormat != "text" || cfg.ContentReadMode != "auto" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestPositionalPaths(t *testing.T) {
	withArgs(t, "-j", "1", "/usr/bin", "/usr/lib")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.StartPaths) != 2 || cfg.StartPaths[0] != "/usr/bin" || cfg.StartPaths[1] != "/usr/lib" {
		t.Fatalf("unexpected start paths: %v", cfg.StartPaths)
	}
	if cfg.ConcurrencyLevel != 1 || !cfg.ConcurrencySet {
		t.Fatalf("-j not applied: %+v", cfg)
	}
}

func TestPathFlagAndPositionalCombine(t *testing.T) {
	withArgs(t, "--path", "/a,/b", "/c")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.StartPaths) != 3 || cfg.StartPaths[2] != "/c" {
		t.Fatalf("unexpected start paths: %v", cfg.StartPaths)
	}
}

func TestConcurrencyCappedAtCPUCount(t *testing.T) {
	withArgs(t, "--concurrency", "100000")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConcurrencyLevel != runtime.NumCPU() {
		t.Fatalf("expected concurrency capped at %d, got %d", runtime.NumCPU(), cfg.ConcurrencyLevel)
	}
}

func TestZeroJobsRejected(t *testing.T) {
	withArgs(t, "-j", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for zero jobs")
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	os.WriteFile(path, []byte(`{"output_format":"csv","lenient_text":false,"log_level":"debug"}`), 0o600)

	withArgs(t, "--config", path, "--format", "JSON", "--lenient-text", "--follow-symlinks")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OutputFormat != "json" {
		t.Fatalf("flag should override file format: %s", cfg.OutputFormat)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("file value should survive when flag unset: %s", cfg.LogLevel)
	}
	if !cfg.LenientText || !cfg.FollowSymlinks {
		t.Fatalf("boolean flags not applied: %+v", cfg)
	}
}

func TestDefaultSkipCountEnabled(t *testing.T) {
	withArgs(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.SkipCount {
		t.Fatal("expected skip count to default to true")
	}
	if cfg.OutputFormat != "text" || cfg.OutputFileName != "" {
		t.Fatalf("unexpected output defaults: %+v", cfg)
	}
	if len(cfg.StartPaths) != 1 || cfg.StartPaths[0] != "." {
		t.Fatalf("unexpected default paths: %v", cfg.StartPaths)
	}
}

func TestOtelFlags(t *testing.T) {
	withArgs(t,
		"--otel-endpoint", " https://otel.example.com/v1/logs ",
		"--otel-headers", "Authorization=Bearer test, Env=prod,broken",
		"--otel-service-name", "tally-agent",
		"--otel-timeout", "10s",
	)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OtelEndpoint != "https://otel.example.com/v1/logs" {
		t.Fatalf("unexpected otel endpoint: %q", cfg.OtelEndpoint)
	}
	if cfg.OtelServiceName != "tally-agent" || cfg.OtelTimeout != 10*time.Second {
		t.Fatalf("unexpected otel settings: %+v", cfg)
	}
	if len(cfg.OtelHeaders) != 2 || cfg.OtelHeaders["Authorization"] != "Bearer test" || cfg.OtelHeaders["Env"] != "prod" {
		t.Fatalf("unexpected otel headers: %v", cfg.OtelHeaders)
	}
}

func TestOtelDisabledByDefault(t *testing.T) {
	withArgs(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OtelEndpoint != "" || cfg.OtelFromEnv {
		t.Fatalf("expected otel export off: %+v", cfg)
	}
	if cfg.OtelServiceName != "filetally" || cfg.OtelTimeout != 5*time.Second {
		t.Fatalf("unexpected otel defaults: %+v", cfg)
	}
}
