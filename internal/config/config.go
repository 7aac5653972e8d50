package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config holds application configuration.
type Config struct {
	// Bind is the interface the dashboard listens on.
	Bind string `json:"bind,omitempty"`

	// Port is the TCP port the dashboard listens on.
	Port int `json:"port,omitempty"`

	// TasksFile is the durable snapshot path for the file store.
	// Empty means <baseDir>/tasks.json.
	TasksFile string `json:"tasks_file,omitempty"`

	// StaticDir serves dashboard assets from disk instead of the embedded copy.
	StaticDir string `json:"static_dir,omitempty"`

	// Store selects the durable backend: "file" (default) or "sqlite".
	Store string `json:"store,omitempty"`

	// KeepaliveSeconds is the interval between keep-alive pulses on /stream.
	KeepaliveSeconds int `json:"keepalive_seconds,omitempty"`

	// MaxBodyBytes caps POST/PATCH request bodies. Larger bodies get a 413.
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty"`

	// BodyReadTimeoutSeconds bounds how long a client may take to send a body.
	BodyReadTimeoutSeconds int `json:"body_read_timeout_seconds,omitempty"`

	// SubscriberBuffer is the number of pending events held per stream subscriber.
	// A subscriber whose buffer is full misses pushed snapshots until it drains.
	SubscriberBuffer int `json:"subscriber_buffer,omitempty"`

	// DisablePush stops snapshots being pushed to subscribers on every mutation.
	// Subscribers then only receive the snapshot at connect time plus keep-alives.
	DisablePush bool `json:"disable_push,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits open connections for the sqlite store. 0 = sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits idle connections for the sqlite store. 0 = sql.DB default.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names to disable entirely.
	// Known types: "status", "tasks", "request".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bind:                   "127.0.0.1",
		Port:                   3000,
		Store:                  StoreFile,
		KeepaliveSeconds:       30,
		MaxBodyBytes:           1 << 20,
		BodyReadTimeoutSeconds: 10,
		SubscriberBuffer:       16,
		LogLevel:               "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.lookout.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.lookout) and repo (.lookout) directories.
// Repo config is found by walking upward from startDir to find the nearest .lookout/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .lookout/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".lookout", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// TasksPath resolves the durable snapshot path for the file store.
func (c *Config) TasksPath(baseDir string) string {
	if c.TasksFile != "" {
		return c.TasksFile
	}
	return filepath.Join(baseDir, "tasks.json")
}

// Keepalive returns the keep-alive interval as a duration.
func (c *Config) Keepalive() time.Duration {
	return time.Duration(c.KeepaliveSeconds) * time.Second
}

// BodyReadTimeout returns the body read timeout as a duration.
func (c *Config) BodyReadTimeout() time.Duration {
	return time.Duration(c.BodyReadTimeoutSeconds) * time.Second
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Bind = firstString(overlay.Bind, base.Bind)
	result.TasksFile = firstString(overlay.TasksFile, base.TasksFile)
	result.StaticDir = firstString(overlay.StaticDir, base.StaticDir)
	result.Store = firstString(overlay.Store, base.Store)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)

	result.Port = firstInt(overlay.Port, base.Port)
	result.KeepaliveSeconds = firstInt(overlay.KeepaliveSeconds, base.KeepaliveSeconds)
	result.BodyReadTimeoutSeconds = firstInt(overlay.BodyReadTimeoutSeconds, base.BodyReadTimeoutSeconds)
	result.SubscriberBuffer = firstInt(overlay.SubscriberBuffer, base.SubscriberBuffer)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.MaxBodyBytes = overlay.MaxBodyBytes
	if result.MaxBodyBytes == 0 {
		result.MaxBodyBytes = base.MaxBodyBytes
	}

	// Booleans: overlay wins if true, else base
	result.DisablePush = base.DisablePush || overlay.DisablePush

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
