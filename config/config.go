package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"filetally/version"
)

type Config struct {
	StartPaths        []string `json:"start_paths"`
	ConcurrencyLevel  int      `json:"concurrency_level"`
	NiceLevel         string   `json:"nice_level"`
	IncludePatterns   []string `json:"include_patterns"`
	ExcludePatterns   []string `json:"exclude_patterns"`
	MaxFileSize       int64    `json:"max_file_size"`
	MaxIOPerSecond    int      `json:"max_io_per_second"`
	LogLevel          string   `json:"log_level"`
	OutputFormat      string   `json:"output_format"`
	OutputFileName    string   `json:"output_file_name"`
	SkipCount         bool     `json:"skip_count"`
	ContentReadMode   string   `json:"content_read_mode"`
	MmapMinSize       int64    `json:"mmap_min_size"`
	ClassifyUnknown   bool     `json:"classify_unknown"`
	LenientText       bool     `json:"lenient_text"`
	CollectSystemInfo bool     `json:"collect_system_info"`
	FollowSymlinks    bool     `json:"follow_symlinks"`
	ConfigFile        string   `json:"config_file"`
	ConcurrencySet    bool     `json:"-"`

	OtelEndpoint    string            `json:"otel_endpoint"`
	OtelFromEnv     bool              `json:"otel_from_env"`
	OtelHeaders     map[string]string `json:"otel_headers"`
	OtelServiceName string            `json:"otel_service_name"`
	OtelTimeout     time.Duration     `json:"otel_timeout"`
}

func defaults() *Config {
	return &Config{
		StartPaths:       []string{"."},
		ConcurrencyLevel: runtime.NumCPU(),
		NiceLevel:        "medium",
		IncludePatterns:  []string{},
		ExcludePatterns:  []string{},
		LogLevel:         "info",
		OutputFormat:     "text",
		SkipCount:        true,
		ContentReadMode:  "auto",
		MmapMinSize:      128 * 1024,
		OtelHeaders:      map[string]string{},
		OtelServiceName:  "filetally",
		OtelTimeout:      5 * time.Second,
	}
}

// LoadConfig builds the configuration from defaults, an optional JSON file
// and the command line, in that order of precedence.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	startPath := flag.String("path", strings.Join(cfg.StartPaths, ","), fmt.Sprintf("Comma-separated list of start paths to scan (default: %s). Positional arguments are added to this list.", strings.Join(cfg.StartPaths, ",")))
	concurrency := flag.Int("concurrency", cfg.ConcurrencyLevel, fmt.Sprintf("Number of parallel detection jobs, capped at the CPU count (default: %d).", cfg.ConcurrencyLevel))
	jobs := flag.Int("j", cfg.ConcurrencyLevel, "Shorthand for -concurrency.")
	nice := flag.String("nice", cfg.NiceLevel, fmt.Sprintf("Nice level: high, medium, or low (default: %s).", cfg.NiceLevel))
	includes := flag.String("include", "", "Comma-separated list of include patterns (globs with ** or regexes) (default: none).")
	excludes := flag.String("exclude", "", "Comma-separated list of exclude patterns (globs with ** or regexes) (default: none).")
	maxFileSize := flag.Int64("max-file-size", cfg.MaxFileSize, "Skip files larger than this many bytes (default: 0, unlimited).")
	maxIO := flag.Int("max-io-per-second", cfg.MaxIOPerSecond, "Maximum files opened per second (default: 0, unlimited).")
	logLevel := flag.String("log-level", cfg.LogLevel, fmt.Sprintf("Log level: debug, info, warn, error, fatal, or panic (default: %s).", cfg.LogLevel))
	format := flag.String("format", cfg.OutputFormat, fmt.Sprintf("Report format: text, json, or csv (default: %s).", cfg.OutputFormat))
	output := flag.String("output", cfg.OutputFileName, "Report file name (default: standard output).")
	skipCount := flag.Bool("skip-count", cfg.SkipCount, "Skip initial file counting to start scanning immediately")
	readMode := flag.String("content-read-mode", cfg.ContentReadMode, "How file content is accessed: auto, stream, or mmap (default: auto).")
	mmapMinSize := flag.Int64("mmap-min-size", cfg.MmapMinSize, fmt.Sprintf("Minimum file size for memory mapping in auto mode (default: %d).", cfg.MmapMinSize))
	classifyUnknown := flag.Bool("classify-unknown", cfg.ClassifyUnknown, "Report MIME hints for files no probe recognized (default: false).")
	lenientText := flag.Bool("lenient-text", cfg.LenientText, "Accept ESC as a text control character (default: false).")
	collectSystemInfo := flag.Bool("collect-system-info", cfg.CollectSystemInfo, "Include host information in json and csv reports (default: false).")
	followSymlinks := flag.Bool("follow-symlinks", cfg.FollowSymlinks, "Follow symbolic links to regular files (default: false).")
	otelEndpoint := flag.String("otel-endpoint", cfg.OtelEndpoint, "OTLP/HTTP logs endpoint for exporting the summary (default: none).")
	otelFromEnv := flag.Bool("otel-from-env", cfg.OtelFromEnv, "Allow OTEL endpoint fallback from OTEL environment variables (default: false).")
	otelHeaders := flag.String("otel-headers", "", "Comma-separated OTEL headers (key=value) for export (default: none).")
	otelServiceName := flag.String("otel-service-name", cfg.OtelServiceName, fmt.Sprintf("OTEL service name for export (default: %s).", cfg.OtelServiceName))
	otelTimeout := flag.Duration("otel-timeout", cfg.OtelTimeout, "OTEL export timeout (default: 5s).")
	configFile := flag.String("config", "", "Path to JSON configuration file (default: none).")
	showVersion := flag.Bool("version", false, "Print version and exit.")

	flag.Usage = displayHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("filetally version %s\n", version.Version)
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	pathSet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.StartPaths = parseCommaSeparated(*startPath)
			pathSet = true
		case "concurrency":
			cfg.ConcurrencyLevel = *concurrency
			cfg.ConcurrencySet = true
		case "j":
			cfg.ConcurrencyLevel = *jobs
			cfg.ConcurrencySet = true
		case "nice":
			cfg.NiceLevel = *nice
		case "include":
			cfg.IncludePatterns = parseCommaSeparated(*includes)
		case "exclude":
			cfg.ExcludePatterns = parseCommaSeparated(*excludes)
		case "max-file-size":
			cfg.MaxFileSize = *maxFileSize
		case "max-io-per-second":
			cfg.MaxIOPerSecond = *maxIO
		case "log-level":
			cfg.LogLevel = *logLevel
		case "format":
			cfg.OutputFormat = strings.ToLower(*format)
		case "output":
			cfg.OutputFileName = *output
		case "skip-count":
			cfg.SkipCount = *skipCount
		case "content-read-mode":
			cfg.ContentReadMode = strings.ToLower(*readMode)
		case "mmap-min-size":
			cfg.MmapMinSize = *mmapMinSize
		case "classify-unknown":
			cfg.ClassifyUnknown = *classifyUnknown
		case "lenient-text":
			cfg.LenientText = *lenientText
		case "collect-system-info":
			cfg.CollectSystemInfo = *collectSystemInfo
		case "follow-symlinks":
			cfg.FollowSymlinks = *followSymlinks
		case "otel-endpoint":
			cfg.OtelEndpoint = strings.TrimSpace(*otelEndpoint)
		case "otel-from-env":
			cfg.OtelFromEnv = *otelFromEnv
		case "otel-headers":
			cfg.OtelHeaders = parseHeaders(*otelHeaders)
		case "otel-service-name":
			cfg.OtelServiceName = strings.TrimSpace(*otelServiceName)
		case "otel-timeout":
			cfg.OtelTimeout = *otelTimeout
		}
	})

	if args := flag.Args(); len(args) > 0 {
		if pathSet {
			cfg.StartPaths = append(cfg.StartPaths, args...)
		} else {
			cfg.StartPaths = append([]string{}, args...)
		}
	}
	if len(cfg.StartPaths) == 0 {
		cfg.StartPaths = []string{"."}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if numCPU := runtime.NumCPU(); cfg.ConcurrencyLevel > numCPU {
		cfg.ConcurrencyLevel = numCPU
	}

	return cfg, nil
}

func displayHelp() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "filetally - count files by detected content type")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  filetally [options] [PATH...]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  filetally -j 4 /usr/bin /usr/lib")
	fmt.Fprintln(out, "  filetally --path \"/opt,/srv\" --format json --output report.json")
	fmt.Fprintln(out, "  filetally --exclude \"**/.git/**\" --classify-unknown .")
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid config file format: %w", err)
	}
	if _, ok := raw["concurrency_level"]; ok {
		cfg.ConcurrencySet = true
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %w", err)
	}
	return nil
}

func (cfg *Config) validate() error {
	if strings.TrimSpace(cfg.ContentReadMode) == "" {
		cfg.ContentReadMode = "auto"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "text"
	}

	if len(cfg.StartPaths) == 0 {
		return fmt.Errorf("at least one start path must be specified")
	}
	if cfg.OutputFormat != "text" && cfg.OutputFormat != "json" && cfg.OutputFormat != "csv" {
		return fmt.Errorf("invalid output format: %s (text, json or csv)", cfg.OutputFormat)
	}
	if cfg.ContentReadMode != "stream" && cfg.ContentReadMode != "mmap" && cfg.ContentReadMode != "auto" {
		return fmt.Errorf("invalid content-read-mode value: %s", cfg.ContentReadMode)
	}
	if cfg.MmapMinSize < 0 {
		return fmt.Errorf("mmap-min-size must be zero or positive")
	}
	if cfg.MaxFileSize < 0 {
		return fmt.Errorf("max-file-size must be zero or positive")
	}
	if cfg.MaxIOPerSecond < 0 {
		return fmt.Errorf("max-io-per-second must be zero or positive")
	}
	if cfg.OtelTimeout < 0 {
		return fmt.Errorf("otel-timeout must be zero or positive")
	}
	if cfg.ConcurrencyLevel <= 0 {
		return fmt.Errorf("concurrency level must be positive")
	}
	if cfg.NiceLevel != "high" && cfg.NiceLevel != "medium" && cfg.NiceLevel != "low" {
		return fmt.Errorf("invalid nice level: %s", cfg.NiceLevel)
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" &&
		cfg.LogLevel != "error" && cfg.LogLevel != "fatal" && cfg.LogLevel != "panic" {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	return nil
}

func parseCommaSeparated(input string) []string {
	if input == "" {
		return []string{}
	}
	items := strings.Split(input, ",")
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseHeaders(input string) map[string]string {
	headers := make(map[string]string)
	for _, item := range parseCommaSeparated(input) {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		if key = strings.TrimSpace(key); key != "" {
			headers[key] = strings.TrimSpace(value)
		}
	}
	return headers
}
