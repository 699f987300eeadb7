package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DefaultMaxFiles   = 20
	DefaultStreamTTL  = 6 * time.Hour
	DefaultURLTTL     = 6 * time.Hour
	DefaultGenericTTL = time.Hour
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	YouTube     YouTubeConfig     `toml:"youtube"`
	Cache       CacheConfig       `toml:"cache"`
	Redis       RedisConfig       `toml:"redis"`
	Database    DatabaseConfig    `toml:"database"`
	Prefetch    PrefetchConfig    `toml:"prefetch"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API client credentials.
type SpotifyConfig struct {
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	Market            string  `toml:"market"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// YouTubeConfig contains video search and extraction settings.
type YouTubeConfig struct {
	ProxyURL          string  `toml:"proxy_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	YTDLPPath         string  `toml:"ytdlp_path"`
	PlayerClient      string  `toml:"player_client"`
}

// CacheConfig controls the tiered cache store.
//
// A zero MetadataTTL keeps track metadata forever.
type CacheConfig struct {
	Dir         string        `toml:"dir"`
	Snapshot    string        `toml:"snapshot"`
	AudioDir    string        `toml:"audio_dir"`
	MaxFiles    int           `toml:"max_files"`
	StreamTTL   time.Duration `toml:"stream_ttl"`
	URLTTL      time.Duration `toml:"url_ttl"`
	GenericTTL  time.Duration `toml:"generic_ttl"`
	MetadataTTL time.Duration `toml:"metadata_ttl"`
	Backend     string        `toml:"backend"` // "file" or "redis"
}

// RedisConfig is used when the cache backend is "redis".
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PrefetchConfig controls background prefetch work.
type PrefetchConfig struct {
	Timeout time.Duration `toml:"timeout"`
	Workers int           `toml:"workers"`
}

// LogConfig controls log level and an optional rotating log file.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Missing values are filled by [Config.ApplyDefaults] and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyDefaults()
	config.ApplyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.ApplyDefaults()
	config.ApplyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Cache.Dir == "" {
		c.Cache.Dir = "./onyx-data"
	}
	if c.Cache.Snapshot == "" {
		c.Cache.Snapshot = filepath.Join(c.Cache.Dir, "cache.json")
	}
	if c.Cache.AudioDir == "" {
		c.Cache.AudioDir = filepath.Join(c.Cache.Dir, "audio_cache")
	}
	if c.Cache.MaxFiles <= 0 {
		c.Cache.MaxFiles = DefaultMaxFiles
	}
	if c.Cache.StreamTTL <= 0 {
		c.Cache.StreamTTL = DefaultStreamTTL
	}
	if c.Cache.URLTTL <= 0 {
		c.Cache.URLTTL = DefaultURLTTL
	}
	if c.Cache.GenericTTL <= 0 {
		c.Cache.GenericTTL = DefaultGenericTTL
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Redis.Key == "" {
		c.Redis.Key = "onyx:cache"
	}
	if c.YouTube.YTDLPPath == "" {
		c.YouTube.YTDLPPath = "yt-dlp"
	}
	if c.YouTube.PlayerClient == "" {
		c.YouTube.PlayerClient = "android"
	}
	if c.Credentials.Spotify.Market == "" {
		c.Credentials.Spotify.Market = "US"
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.Cache.Dir, "onyx.db")
	}
	if c.Prefetch.Timeout <= 0 {
		c.Prefetch.Timeout = 5 * time.Minute
	}
	if c.Prefetch.Workers <= 0 {
		c.Prefetch.Workers = 3
	}
}

// ApplyEnv overrides credentials and the data directory from the environment.
//
// ONYX_DATA_DIR relocates paths that live under the configured cache dir.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if dir := os.Getenv("ONYX_DATA_DIR"); dir != "" {
		prefix := filepath.Clean(c.Cache.Dir) + string(filepath.Separator)
		for _, p := range []*string{&c.Cache.Snapshot, &c.Cache.AudioDir, &c.Database.Path} {
			if clean := filepath.Clean(*p); strings.HasPrefix(clean, prefix) {
				*p = filepath.Join(dir, strings.TrimPrefix(clean, prefix))
			}
		}
		c.Cache.Dir = dir
	}
}

// HasSpotifyCredentials reports whether both client id and secret are set to non-placeholder values.
func (c *Config) HasSpotifyCredentials() bool {
	id, secret := c.Credentials.Spotify.ClientID, c.Credentials.Spotify.ClientSecret
	return id != "" && secret != "" && id != "your_spotify_client_id"
}
