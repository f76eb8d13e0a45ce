package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "hopperbot"

// Config holds all application configuration
type Config struct {
	Version     int            `toml:"version"`
	DefaultBlog string         `toml:"default_blog"`
	Twitter     TwitterConfig  `toml:"twitter"`
	Tumblr      TumblrConfig   `toml:"tumblr"`
	Renderer    RendererConfig `toml:"renderer"`
	Database    DatabaseConfig `toml:"database"`
	Logging     LoggingConfig  `toml:"logging"`
	Schedule    ScheduleConfig `toml:"schedule"`
	Youtube     YoutubeConfig  `toml:"youtube"`
	Pipeline    PipelineConfig `toml:"pipeline"`
	Updates     []UpdateConfig `toml:"update"`
}

type TwitterConfig struct {
	BearerToken       string   `toml:"bearer_token"`
	APIBase           string   `toml:"api_base"`
	RequestTimeout    Duration `toml:"request_timeout"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	RuleTag           string   `toml:"rule_tag"`
}

type TumblrConfig struct {
	ConsumerKey    string `toml:"consumer_key"`
	ConsumerSecret string `toml:"consumer_secret"`
	OAuthToken     string `toml:"oauth_token"`
	OAuthSecret    string `toml:"oauth_secret"`
	APIBase        string `toml:"api_base"`
}

type RendererConfig struct {
	Headless       bool     `toml:"headless"`
	WindowWidth    int      `toml:"window_width"`
	WindowHeight   int      `toml:"window_height"`
	OutputDir      string   `toml:"output_dir"` // empty means <cache>/renders
	ElementTimeout Duration `toml:"element_timeout"`
	ArtifactMaxAge Duration `toml:"artifact_max_age"`
}

type DatabaseConfig struct {
	Path string `toml:"path"` // empty means <config>/hopperbot.db
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "auto", "text" or "json"
}

type ScheduleConfig struct {
	Timezone string `toml:"timezone"`
	Sweep    string `toml:"sweep"` // cron expression
	Stats    string `toml:"stats"` // cron expression
}

type YoutubeConfig struct {
	Enabled     bool   `toml:"enabled"`
	ListenAddr  string `toml:"listen_addr"`
	CallbackURL string `toml:"callback_url"`
	HubURL      string `toml:"hub_url"`
}

type PipelineConfig struct {
	UpdateTimeout Duration `toml:"update_timeout"`
	DumpFailures  bool     `toml:"dump_failures"`
}

// UpdateConfig is one [[update]] block: a destination blog and the sources routed to it.
type UpdateConfig struct {
	Blogname string          `toml:"blogname"`
	Tags     []string        `toml:"tags"`
	Twitter  []TwitterSource `toml:"twitter"`
	Youtube  []YoutubeSource `toml:"youtube"`
}

type TwitterSource struct {
	Username string `toml:"username"`
}

type YoutubeSource struct {
	ChannelID string `toml:"channel_id"`
}

// Duration wraps time.Duration so it can be written as "30s" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Twitter: TwitterConfig{
			APIBase:           "https://api.twitter.com/2",
			RequestTimeout:    Duration{15 * time.Second},
			RequestsPerMinute: 20,
			RuleTag:           appName,
		},
		Tumblr: TumblrConfig{
			APIBase: "https://api.tumblr.com/v2",
		},
		Renderer: RendererConfig{
			Headless:       true,
			WindowWidth:    2000,
			WindowHeight:   2000,
			ElementTimeout: Duration{20 * time.Second},
			ArtifactMaxAge: Duration{6 * time.Hour},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Schedule: ScheduleConfig{
			Timezone: "UTC",
			Sweep:    "0 * * * *",
			Stats:    "*/30 * * * *",
		},
		Youtube: YoutubeConfig{
			ListenAddr: ":8089",
			HubURL:     "https://pubsubhubbub.appspot.com/subscribe",
		},
		Pipeline: PipelineConfig{
			UpdateTimeout: Duration{5 * time.Minute},
		},
		Updates: []UpdateConfig{},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory.
// Render artifacts and failure dumps live here.
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// Load reads config from the default location
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadPath reads config from path, or from the default location when path is empty
func LoadPath(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	return LoadFile(path)
}

// LoadFile reads config from path. Missing keys keep their defaults and
// secrets may be overridden from the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"HOPPERBOT_TWITTER_BEARER_TOKEN", &c.Twitter.BearerToken},
		{"HOPPERBOT_TUMBLR_CONSUMER_KEY", &c.Tumblr.ConsumerKey},
		{"HOPPERBOT_TUMBLR_CONSUMER_SECRET", &c.Tumblr.ConsumerSecret},
		{"HOPPERBOT_TUMBLR_OAUTH_TOKEN", &c.Tumblr.OAuthToken},
		{"HOPPERBOT_TUMBLR_OAUTH_SECRET", &c.Tumblr.OAuthSecret},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.target = v
		}
	}
}

// Validate checks the values the bot cannot run without a sane setting for
func (c *Config) Validate() error {
	if c.Twitter.RequestsPerMinute <= 0 {
		return errors.New("twitter.requests_per_minute must be > 0")
	}
	if c.Twitter.RequestTimeout.Duration <= 0 {
		return errors.New("twitter.request_timeout must be > 0")
	}
	if c.Renderer.WindowWidth <= 0 || c.Renderer.WindowHeight <= 0 {
		return errors.New("renderer window size must be > 0")
	}
	for i, u := range c.Updates {
		if u.Blogname == "" {
			return fmt.Errorf("update[%d]: blogname is required", i)
		}
	}
	return nil
}

// DatabasePath resolves the configured database path
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName+".db"), nil
}

// RenderDir resolves the directory render artifacts are written to
func (c *Config) RenderDir() (string, error) {
	if c.Renderer.OutputDir != "" {
		return c.Renderer.OutputDir, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "renders"), nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
