package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nicktill/ipedscomps/pkg/years"
)

// EnvPrefix prefixes every environment variable, e.g. COMPS_CACHE_SIZE.
const EnvPrefix = "comps"

// Server defaults
const (
	DefaultPort            = "8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Dataset defaults
const (
	DefaultDataDir       = "./data"
	DefaultDirectoryFile = "hd2022.csv"
	DefaultYearPattern   = years.DefaultPattern
)

// Query defaults
const (
	DefaultCacheSize       = 100
	DefaultCacheBackend    = "memory"
	DefaultCacheMaxMemory  = 64
	DefaultScanParallelism = 4
	DefaultQueryTimeout    = 2 * time.Minute
)

// Background task intervals
const (
	DatasetCheckInterval = 1 * time.Minute
	BadgerGCInterval     = 10 * time.Minute
)

// Flag and viper keys
const (
	KeyPort            = "port"
	KeyDataDir         = "data-dir"
	KeyDirectoryFile   = "directory-file"
	KeyYearPattern     = "year-pattern"
	KeyYears           = "years"
	KeyCacheSize       = "cache-size"
	KeyCacheBackend    = "cache-backend"
	KeyCacheDir        = "cache-dir"
	KeyCacheMaxMemory  = "cache-max-memory-mb"
	KeyScanParallelism = "scan-parallelism"
	KeyQueryTimeout    = "query-timeout"
	KeyAllowedOrigins  = "allowed-origins"
)

// Config holds server configuration.
type Config struct {
	Port string

	// DataDir holds the directory file and, unless Years is set, the
	// per-year completions files
	DataDir       string
	DirectoryFile string
	YearPattern   string

	// Years is an explicit year mapping, e.g. "2019=/data/c2019_a.csv,2020=...".
	// When set, discovery is skipped.
	Years string

	CacheSize      int
	CacheBackend   string
	CacheDir       string
	CacheMaxMemory int64

	ScanParallelism int
	QueryTimeout    time.Duration
	AllowedOrigins  []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// RegisterFlags adds every configuration flag to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyPort, DefaultPort, "Port to listen on (PORT overrides)")
	fs.String(KeyDataDir, DefaultDataDir, "Directory holding the dataset files")
	fs.String(KeyDirectoryFile, DefaultDirectoryFile, "Institution directory file, relative to the data directory unless absolute")
	fs.String(KeyYearPattern, DefaultYearPattern, "Filename pattern for completions files; the first capture group is the year")
	fs.String(KeyYears, "", "Explicit year mapping YEAR=PATH,... (disables discovery)")
	fs.Int(KeyCacheSize, DefaultCacheSize, "Maximum number of cached responses")
	fs.String(KeyCacheBackend, DefaultCacheBackend, "Cache payload backend (memory, badger)")
	fs.String(KeyCacheDir, "", "Directory for the badger backend; empty keeps it in memory")
	fs.Int64(KeyCacheMaxMemory, DefaultCacheMaxMemory, "Memory budget for the badger backend in MB")
	fs.Int(KeyScanParallelism, DefaultScanParallelism, "Number of years scanned concurrently per query")
	fs.Duration(KeyQueryTimeout, DefaultQueryTimeout, "Upper bound on one uncached query")
	fs.StringSlice(KeyAllowedOrigins, []string{"*"}, "CORS origins allowed to call the API")
}

// InitEnv loads .env files and makes v read COMPS_* environment variables.
func InitEnv(v *viper.Viper) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:            v.GetString(KeyPort),
		DataDir:         v.GetString(KeyDataDir),
		DirectoryFile:   v.GetString(KeyDirectoryFile),
		YearPattern:     v.GetString(KeyYearPattern),
		Years:           v.GetString(KeyYears),
		CacheSize:       v.GetInt(KeyCacheSize),
		CacheBackend:    strings.ToLower(v.GetString(KeyCacheBackend)),
		CacheDir:        v.GetString(KeyCacheDir),
		CacheMaxMemory:  v.GetInt64(KeyCacheMaxMemory),
		ScanParallelism: v.GetInt(KeyScanParallelism),
		QueryTimeout:    v.GetDuration(KeyQueryTimeout),
		AllowedOrigins:  v.GetStringSlice(KeyAllowedOrigins),
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}

	// PORT is the single listening-port knob most platforms inject
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.DirectoryFile == "" {
		cfg.DirectoryFile = DefaultDirectoryFile
	}
	if cfg.YearPattern == "" {
		cfg.YearPattern = DefaultYearPattern
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = DefaultCacheBackend
	}

	if cfg.CacheSize < 1 {
		return Config{}, fmt.Errorf("invalid %s %d: must be at least 1", KeyCacheSize, cfg.CacheSize)
	}
	if cfg.ScanParallelism < 1 {
		return Config{}, fmt.Errorf("invalid %s %d: must be at least 1", KeyScanParallelism, cfg.ScanParallelism)
	}
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "badger" {
		return Config{}, fmt.Errorf("invalid %s %q (expected memory or badger)", KeyCacheBackend, cfg.CacheBackend)
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}

	return cfg, nil
}

// DirectoryPath resolves the directory file against the data directory.
func (c Config) DirectoryPath() string {
	if filepath.IsAbs(c.DirectoryFile) {
		return c.DirectoryFile
	}
	return filepath.Join(c.DataDir, c.DirectoryFile)
}

// Registry builds the year registry: the explicit mapping when Years is
// set, otherwise discovery in DataDir.
func (c Config) Registry() (*years.Registry, error) {
	if strings.TrimSpace(c.Years) != "" {
		mapping, err := years.ParseMapping(c.Years)
		if err != nil {
			return nil, err
		}
		return years.FromMapping(mapping), nil
	}
	return years.Discover(c.DataDir, c.YearPattern)
}
