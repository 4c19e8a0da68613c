package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"javaidx/hasher"
	"javaidx/version"
)

// Sort keys accepted by --sort.
const (
	SortURL        = "url"
	SortLength     = "length"
	SortModified   = "modified"
	SortExpiration = "expiration"
	SortValidation = "validation"
)

var sortKeys = []string{SortURL, SortLength, SortModified, SortExpiration, SortValidation}

type Config struct {
	File              string            `json:"file"`
	Directory         string            `json:"directory"`
	Delimiter         string            `json:"delimiter"`
	SortBy            string            `json:"sort"`
	OutputFileName    string            `json:"output_file_name"`
	OutputFormat      string            `json:"output_format"`
	IncludePatterns   []string          `json:"include_patterns"`
	ExcludePatterns   []string          `json:"exclude_patterns"`
	ConcurrencyLevel  int               `json:"concurrency_level"`
	NiceLevel         string            `json:"nice_level"`
	MaxIOPerSecond    int               `json:"max_io_per_second"`
	ReadMode          string            `json:"read_mode"`
	MmapMinSize       int64             `json:"mmap_min_size"`
	SkipUnsupported   bool              `json:"skip_unsupported"`
	SkipCount         bool              `json:"skip_count"`
	Quiet             bool              `json:"quiet"`
	HashAlgorithms    []string          `json:"hash_algorithms"`
	CollectXattrs     bool              `json:"collect_xattrs"`
	XattrMaxValueSize int               `json:"xattr_max_value_size"`
	InspectContent    bool              `json:"inspect_content"`
	MetadataMaxBytes  int64             `json:"metadata_max_bytes"`
	FuzzyHash         bool              `json:"fuzzy_hash"`
	FuzzyMinSize      int64             `json:"fuzzy_min_size"`
	SearchTerms       []string          `json:"search_terms"`
	WatchlistFile     string            `json:"watchlist_file"`
	CollectSystemInfo bool              `json:"collect_system_info"`
	LogLevel          string            `json:"log_level"`
	ConfigFile        string            `json:"config_file"`
	OtelEndpoint      string            `json:"otel_endpoint"`
	OtelFromEnv       bool              `json:"otel_from_env"`
	OtelHeaders       map[string]string `json:"otel_headers"`
	OtelServiceName   string            `json:"otel_service_name"`
	OtelTimeout       time.Duration     `json:"otel_timeout"`
	OtelExportPaths   bool              `json:"otel_export_paths"`
	OtelExportHeaders bool              `json:"otel_export_headers"`

	// DelimiterRune is the resolved single-rune form of Delimiter.
	DelimiterRune  rune     `json:"-"`
	Warnings       []string `json:"-"`
	ConcurrencySet bool     `json:"-"`
	MaxIOSet       bool     `json:"-"`
}

// Default returns the configuration used when no flags or file are given.
func Default() *Config {
	return &Config{
		Delimiter:         ",",
		DelimiterRune:     ',',
		SortBy:            SortURL,
		OutputFormat:      "csv",
		IncludePatterns:   []string{"*.idx"},
		ExcludePatterns:   []string{},
		ConcurrencyLevel:  runtime.NumCPU(),
		NiceLevel:         "medium",
		MaxIOPerSecond:    0,
		ReadMode:          "auto",
		MmapMinSize:       64 * 1024,
		SkipCount:         true,
		HashAlgorithms:    []string{},
		XattrMaxValueSize: 1024,
		InspectContent:    true,
		MetadataMaxBytes:  1 * 1024 * 1024,
		FuzzyMinSize:      256,
		SearchTerms:       []string{},
		LogLevel:          "info",
		OtelHeaders:       map[string]string{},
		OtelServiceName:   "javaidx",
		OtelTimeout:       5 * time.Second,
	}
}

func LoadConfig() (*Config, error) {
	cfg := Default()

	var file, directory, delimiter, sortBy, output string
	flag.StringVar(&file, "file", "", "Path to a single IDX file to parse.")
	flag.StringVar(&file, "f", "", "Shorthand for --file.")
	flag.StringVar(&directory, "directory", "", "Directory to search recursively for IDX files.")
	flag.StringVar(&directory, "d", "", "Shorthand for --directory.")
	flag.StringVar(&delimiter, "delimiter", cfg.Delimiter, `Field delimiter for the output table; "\t" selects tab (default: ",").`)
	flag.StringVar(&delimiter, "l", cfg.Delimiter, "Shorthand for --delimiter.")
	flag.StringVar(&sortBy, "sort", cfg.SortBy, fmt.Sprintf("Sort records by: %s (default: %s).", strings.Join(sortKeys, ", "), cfg.SortBy))
	flag.StringVar(&sortBy, "s", cfg.SortBy, "Shorthand for --sort.")
	flag.StringVar(&output, "output", "", "Output file. Records are printed to the console when omitted.")
	flag.StringVar(&output, "o", "", "Shorthand for --output.")
	format := flag.String("format", cfg.OutputFormat, fmt.Sprintf("Output format: csv or json (default: %s).", cfg.OutputFormat))
	includes := flag.String("include", strings.Join(cfg.IncludePatterns, ","), fmt.Sprintf("Comma-separated include patterns for directory mode (default: %s).", strings.Join(cfg.IncludePatterns, ",")))
	excludes := flag.String("exclude", "", "Comma-separated exclude patterns for directory mode (default: none).")
	concurrency := flag.Int("concurrency", cfg.ConcurrencyLevel, fmt.Sprintf("Number of files decoded in parallel (default: %d).", cfg.ConcurrencyLevel))
	nice := flag.String("nice", cfg.NiceLevel, fmt.Sprintf("Nice level: high, medium, or low (default: %s).", cfg.NiceLevel))
	maxIO := flag.Int("max-io-per-second", cfg.MaxIOPerSecond, "Maximum files opened per second, 0 for unlimited (default: 0).")
	readMode := flag.String("read-mode", cfg.ReadMode, "IDX read mode: auto, stream, or mmap (default: auto).")
	mmapMinSize := flag.Int64("mmap-min-size", cfg.MmapMinSize, fmt.Sprintf("Minimum file size in bytes mapped in auto read mode (default: %d).", cfg.MmapMinSize))
	skipUnsupported := flag.Bool("skip-unsupported", cfg.SkipUnsupported, "Leave records with unsupported cache versions out of the output (default: false).")
	skipCount := flag.Bool("skip-count", cfg.SkipCount, "Skip initial file counting to start decoding immediately (default: true).")
	quiet := flag.Bool("quiet", cfg.Quiet, "Hide the progress bar and informational logs (default: false).")
	hashes := flag.String("hashes", "", "Comma-separated evidence hashes of each IDX file: md5, sha1, sha256, blake3, xxh64 (default: none).")
	collectXattrs := flag.Bool("collect-xattrs", cfg.CollectXattrs, fmt.Sprintf("Collect extended attributes of IDX files (default: %t).", cfg.CollectXattrs))
	xattrMaxValueSize := flag.Int("xattr-max-value-size", cfg.XattrMaxValueSize, fmt.Sprintf("Max bytes of xattr values to capture (default: %d).", cfg.XattrMaxValueSize))
	inspectContent := flag.Bool("inspect-content", cfg.InspectContent, fmt.Sprintf("Inspect the cached resource stored next to each IDX file (default: %t).", cfg.InspectContent))
	metadataMaxBytes := flag.Int64("metadata-max-bytes", cfg.MetadataMaxBytes, fmt.Sprintf("Maximum bytes metadata parsers may read per cached resource (default: %d, 0 means unlimited).", cfg.MetadataMaxBytes))
	fuzzyHash := flag.Bool("fuzzy-hash", cfg.FuzzyHash, fmt.Sprintf("Compute TLSH of cached resources (default: %t).", cfg.FuzzyHash))
	fuzzyMinSize := flag.Int64("fuzzy-min-size", cfg.FuzzyMinSize, fmt.Sprintf("Minimum resource size in bytes for fuzzy hashing (default: %d).", cfg.FuzzyMinSize))
	searches := flag.String("search", "", "Comma-separated terms matched against URLs and headers (default: none).")
	watchlist := flag.String("watchlist", "", "File listing hosts or IPs to flag, one per line (default: none).")
	collectSystemInfo := flag.Bool("collect-system-info", cfg.CollectSystemInfo, fmt.Sprintf("Include examiner host information in JSON reports (default: %t).", cfg.CollectSystemInfo))
	logLevel := flag.String("log-level", cfg.LogLevel, fmt.Sprintf("Log level: debug, info, warn, error, fatal, or panic (default: %s).", cfg.LogLevel))
	configFile := flag.String("config", "", "Path to JSON configuration file (default: none).")
	otelEndpoint := flag.String("otel-endpoint", cfg.OtelEndpoint, "OTLP/HTTP logs endpoint (default: none).")
	otelFromEnv := flag.Bool("otel-from-env", cfg.OtelFromEnv, "Allow OTEL endpoint fallback from OTEL environment variables (default: false).")
	otelHeaders := flag.String("otel-headers", "", "Comma-separated OTEL headers (key=value) for export (default: none).")
	otelServiceName := flag.String("otel-service-name", cfg.OtelServiceName, fmt.Sprintf("OTEL service name for export (default: %s).", cfg.OtelServiceName))
	otelTimeout := flag.Duration("otel-timeout", cfg.OtelTimeout, "OTEL export timeout (default: 5s).")
	otelExportPaths := flag.Bool("otel-export-paths", cfg.OtelExportPaths, "Include raw file paths in OTEL payloads (default: false).")
	otelExportHeaders := flag.Bool("otel-export-headers", cfg.OtelExportHeaders, "Include captured HTTP headers in OTEL payloads (default: false).")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = displayHelp
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "file", "f":
			cfg.File = file
		case "directory", "d":
			cfg.Directory = directory
		case "delimiter", "l":
			cfg.Delimiter = delimiter
		case "sort", "s":
			cfg.SortBy = sortBy
		case "output", "o":
			cfg.OutputFileName = output
		case "format":
			cfg.OutputFormat = *format
		case "include":
			cfg.IncludePatterns = parseCommaSeparated(*includes)
		case "exclude":
			cfg.ExcludePatterns = parseCommaSeparated(*excludes)
		case "concurrency":
			cfg.ConcurrencyLevel = *concurrency
			cfg.ConcurrencySet = true
		case "nice":
			cfg.NiceLevel = *nice
		case "max-io-per-second":
			cfg.MaxIOPerSecond = *maxIO
			cfg.MaxIOSet = true
		case "read-mode":
			cfg.ReadMode = *readMode
		case "mmap-min-size":
			cfg.MmapMinSize = *mmapMinSize
		case "skip-unsupported":
			cfg.SkipUnsupported = *skipUnsupported
		case "skip-count":
			cfg.SkipCount = *skipCount
		case "quiet":
			cfg.Quiet = *quiet
		case "hashes":
			cfg.HashAlgorithms = parseCommaSeparated(*hashes)
		case "collect-xattrs":
			cfg.CollectXattrs = *collectXattrs
		case "xattr-max-value-size":
			cfg.XattrMaxValueSize = *xattrMaxValueSize
		case "inspect-content":
			cfg.InspectContent = *inspectContent
		case "metadata-max-bytes":
			cfg.MetadataMaxBytes = *metadataMaxBytes
		case "fuzzy-hash":
			cfg.FuzzyHash = *fuzzyHash
		case "fuzzy-min-size":
			cfg.FuzzyMinSize = *fuzzyMinSize
		case "search":
			cfg.SearchTerms = parseCommaSeparated(*searches)
		case "watchlist":
			cfg.WatchlistFile = strings.TrimSpace(*watchlist)
		case "collect-system-info":
			cfg.CollectSystemInfo = *collectSystemInfo
		case "log-level":
			cfg.LogLevel = *logLevel
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
		case "otel-export-paths":
			cfg.OtelExportPaths = *otelExportPaths
		case "otel-export-headers":
			cfg.OtelExportHeaders = *otelExportHeaders
		}
	})
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func displayHelp() {
	fmt.Println(version.String() + " - Java cache IDX parser")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  javaidx -f <file.idx> [options]")
	fmt.Println("  javaidx -d <directory> [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  javaidx -f 1a2b3c4d-5e6f7a8b.idx")
	fmt.Println("  javaidx -d ~/.java/deployment/cache -l \"\\t\" -s modified -o cache.tsv")
	fmt.Println("  javaidx -d cache --format json --hashes sha256 -o report.json")
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
	if _, ok := raw["max_io_per_second"]; ok {
		cfg.MaxIOSet = true
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %w", err)
	}
	return nil
}

// normalize lowercases enumerations and resolves the delimiter. A delimiter
// that cannot be used falls back to a comma with a warning.
func (cfg *Config) normalize() {
	cfg.OutputFormat = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
	cfg.SortBy = strings.ToLower(strings.TrimSpace(cfg.SortBy))
	cfg.ReadMode = strings.ToLower(strings.TrimSpace(cfg.ReadMode))
	cfg.NiceLevel = strings.ToLower(strings.TrimSpace(cfg.NiceLevel))
	cfg.HashAlgorithms = normalizeAlgorithms(cfg.HashAlgorithms)
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "csv"
	}
	if cfg.SortBy == "" {
		cfg.SortBy = SortURL
	}
	if cfg.ReadMode == "" {
		cfg.ReadMode = "auto"
	}
	if cfg.MmapMinSize <= 0 {
		cfg.MmapMinSize = 64 * 1024
	}
	if cfg.OtelHeaders == nil {
		cfg.OtelHeaders = map[string]string{}
	}

	r, ok := ParseDelimiter(cfg.Delimiter)
	if !ok {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("Invalid delimiter %q, using ','", cfg.Delimiter))
		cfg.Delimiter = ","
		r = ','
	}
	cfg.DelimiterRune = r
}

// ParseDelimiter resolves a delimiter argument. The escapes \t and '\t'
// select a tab. Anything else must be one rune that a CSV writer accepts.
func ParseDelimiter(s string) (rune, bool) {
	switch s {
	case `\t`, `'\t'`, "\t":
		return '\t', true
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' || r == 0 {
		return 0, false
	}
	return r, true
}

func (cfg *Config) validate() error {
	if cfg.File == "" && cfg.Directory == "" {
		return fmt.Errorf("either the file (-f) or directory (-d) parameter value must be set")
	}
	if cfg.File != "" && cfg.Directory != "" {
		return fmt.Errorf("the file (-f) and directory (-d) parameters cannot be set at the same time")
	}
	if !slices.Contains(sortKeys, cfg.SortBy) {
		return fmt.Errorf("invalid sort value: %s (expected one of %s)", cfg.SortBy, strings.Join(sortKeys, ", "))
	}
	if cfg.OutputFormat != "csv" && cfg.OutputFormat != "json" {
		return fmt.Errorf("invalid output format: %s (csv or json)", cfg.OutputFormat)
	}
	if cfg.ReadMode != "auto" && cfg.ReadMode != "stream" && cfg.ReadMode != "mmap" {
		return fmt.Errorf("invalid read-mode value: %s", cfg.ReadMode)
	}
	if cfg.ConcurrencyLevel <= 0 {
		return fmt.Errorf("concurrency level must be positive")
	}
	if cfg.NiceLevel != "high" && cfg.NiceLevel != "medium" && cfg.NiceLevel != "low" {
		return fmt.Errorf("invalid nice level: %s", cfg.NiceLevel)
	}
	if cfg.MaxIOPerSecond < 0 {
		return fmt.Errorf("max-io-per-second must be zero or positive")
	}
	for _, alg := range cfg.HashAlgorithms {
		if !hasher.Supported(alg) {
			return fmt.Errorf("unsupported hash algorithm: %s", alg)
		}
	}
	if cfg.XattrMaxValueSize < 0 {
		return fmt.Errorf("xattr-max-value-size must be zero or positive")
	}
	if cfg.MetadataMaxBytes < 0 {
		return fmt.Errorf("metadata-max-bytes must be zero or positive")
	}
	if cfg.FuzzyMinSize < 0 {
		return fmt.Errorf("fuzzy-min-size must be zero or positive")
	}
	if cfg.OtelTimeout < 0 {
		return fmt.Errorf("otel-timeout must be zero or positive")
	}
	if cfg.OtelEndpoint != "" {
		if !strings.HasPrefix(cfg.OtelEndpoint, "http://") && !strings.HasPrefix(cfg.OtelEndpoint, "https://") {
			return fmt.Errorf("otel-endpoint must include scheme (http or https)")
		}
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
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}

func parseHeaders(input string) map[string]string {
	headers := make(map[string]string)
	if input == "" {
		return headers
	}
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}

func normalizeAlgorithms(items []string) []string {
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" || slices.Contains(normalized, item) {
			continue
		}
		normalized = append(normalized, item)
	}
	return normalized
}
