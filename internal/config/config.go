package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration tree. Values come from, in increasing
// precedence: built-in defaults, the config file, SEMCODE_* environment
// variables, and command-line flags bound by the caller.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Embedder EmbedderConfig `mapstructure:"embedder"`
	Index    IndexConfig    `mapstructure:"index"`
	Log      LogConfig      `mapstructure:"log"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Backend        string `mapstructure:"backend"` // memory, sqlite, pgvector
	Path           string `mapstructure:"path"`    // sqlite database file
	DSN            string `mapstructure:"dsn"`     // postgres connection string
	MaxCollections int    `mapstructure:"max_collections"`
}

// EmbedderConfig selects and tunes the embedding provider.
type EmbedderConfig struct {
	Provider  string `mapstructure:"provider"` // openai, jina, gemini, local; empty = auto-detect
	APIKey    string `mapstructure:"api_key"`
	CacheSize int    `mapstructure:"cache_size"`
	BatchSize int    `mapstructure:"batch_size"`
}

// IndexConfig tunes the indexing pipeline.
type IndexConfig struct {
	Workers           int           `mapstructure:"workers"`
	MaxChunkSize      int           `mapstructure:"max_chunk_size"`
	OverlapLines      int           `mapstructure:"overlap_lines"`
	IgnorePatterns    []string      `mapstructure:"ignore_patterns"`
	IncludeExtensions []string      `mapstructure:"include_extensions"`
	SnapshotDir       string        `mapstructure:"snapshot_dir"`
	ProgressInterval  time.Duration `mapstructure:"progress_interval"`
	GracePeriod       time.Duration `mapstructure:"grace_period"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level       string `mapstructure:"level"` // debug, info, warn, error
	Development bool   `mapstructure:"development"`
}

// DefaultIgnorePatterns is the baseline ignore set applied when the config
// provides none.
var DefaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"*.min.js",
}

// DefaultIncludeExtensions is the baseline source extension set.
var DefaultIncludeExtensions = []string{
	".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".cs",
	".rb", ".rs", ".c", ".h", ".cpp", ".hpp", ".md",
}

// Load reads configuration from the given file (optional; empty means
// search the default locations) and the environment.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SEMCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("semcode")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".semcode"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyFallbacks(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.max_collections", 0)
	v.SetDefault("embedder.cache_size", 10000)
	v.SetDefault("embedder.batch_size", 20)
	v.SetDefault("index.workers", runtime.NumCPU())
	v.SetDefault("index.max_chunk_size", 2000)
	v.SetDefault("index.overlap_lines", 5)
	v.SetDefault("index.progress_interval", 200*time.Millisecond)
	v.SetDefault("index.grace_period", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func applyFallbacks(cfg *Config) {
	home, _ := os.UserHomeDir()
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" && home != "" {
		cfg.Store.Path = filepath.Join(home, ".semcode", "index.db")
	}
	if cfg.Index.SnapshotDir == "" && home != "" {
		cfg.Index.SnapshotDir = filepath.Join(home, ".semcode", "snapshots")
	}
	if len(cfg.Index.IgnorePatterns) == 0 {
		cfg.Index.IgnorePatterns = DefaultIgnorePatterns
	}
	if len(cfg.Index.IncludeExtensions) == 0 {
		cfg.Index.IncludeExtensions = DefaultIncludeExtensions
	}
}
