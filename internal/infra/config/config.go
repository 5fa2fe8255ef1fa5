// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Catalog providers.
const (
	CatalogSpotify = "spotify"
	CatalogProxy   = "proxy"
)

// Config represents the application configuration.
type Config struct {
	Nodes    []NodeConfig   `yaml:"nodes" validate:"required,min=1,dive"`
	Client   ClientConfig   `yaml:"client"`
	Discord  DiscordConfig  `yaml:"discord"`
	Player   PlayerConfig   `yaml:"player"`
	Resolver ResolverConfig `yaml:"resolver"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	LastFM   LastFMConfig   `yaml:"lastfm"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
	Hooks    HooksConfig    `yaml:"hooks"`
}

// NodeConfig represents one execution node.
type NodeConfig struct {
	Identifier       string        `yaml:"identifier"`
	Host             string        `yaml:"host" validate:"required"`
	Port             int           `yaml:"port" default:"2333" validate:"min=1,max=65535"`
	Password         string        `yaml:"password"`
	Secure           bool          `yaml:"secure"`
	Priority         int           `yaml:"priority" validate:"min=0"`
	Resume           bool          `yaml:"resume"`
	SessionTimeout   time.Duration `yaml:"session_timeout" default:"60s" validate:"min=0"`
	MaxRetryAttempts int           `yaml:"max_retry_attempts" default:"5" validate:"min=0"`
	RetryDelay       time.Duration `yaml:"retry_delay" default:"5s" validate:"min=0"`
}

// ClientConfig identifies this client to the nodes.
type ClientConfig struct {
	Name string `yaml:"name" default:"magmastream-custom"`
	// UserID defaults to the bot user of the Discord token.
	UserID string `yaml:"user_id"`
}

// DiscordConfig represents Discord gateway configuration.
type DiscordConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlayerConfig represents player defaults.
type PlayerConfig struct {
	DefaultVolume         int           `yaml:"default_volume" default:"100" validate:"min=0,max=1000"`
	SelfMute              bool          `yaml:"self_mute"`
	SelfDeafen            bool          `yaml:"self_deafen"`
	AutoplayTries         int           `yaml:"autoplay_tries" default:"3" validate:"min=1"`
	DynamicRepeatInterval time.Duration `yaml:"dynamic_repeat_interval" default:"3s" validate:"gt=0"`
	RequestTimeout        time.Duration `yaml:"request_timeout" default:"10s" validate:"gt=0"`
}

// ResolverConfig represents track resolver configuration.
type ResolverConfig struct {
	Catalog           string   `yaml:"catalog" default:"spotify" validate:"oneof=spotify proxy"`
	ProxyURL          string   `yaml:"proxy_url" validate:"required_if=Catalog proxy"`
	Limit             int      `yaml:"limit" validate:"min=0"`
	RequestsPerSecond float64  `yaml:"requests_per_second" validate:"min=0"`
	Burst             int      `yaml:"burst" default:"1" validate:"min=1"`
	PartialFields     []string `yaml:"partial_fields"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// LastFMConfig represents Last.fm API configuration. An empty key disables similar-track
// lookups.
type LastFMConfig struct {
	APIKey string `yaml:"api_key"`
}

// MQTTConfig represents the state update publisher.
type MQTTConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Broker      string        `yaml:"broker" validate:"required_if=Enabled true"`
	ClientID    string        `yaml:"client_id" default:"magmastream-custom"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TLS         bool          `yaml:"tls"`
	TopicPrefix string        `yaml:"topic_prefix" default:"magmastream"`
	QoS         byte          `yaml:"qos" validate:"max=2"`
	Timeout     time.Duration `yaml:"timeout" default:"2s"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
	if v := os.Getenv("LAVALINK_PASSWORD"); v != "" {
		for i := range c.Nodes {
			if c.Nodes[i].Password == "" {
				c.Nodes[i].Password = v
			}
		}
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Resolver.Catalog == CatalogSpotify && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
		return errors.New("spotify client_id and client_secret are required for the spotify catalog")
	}

	seen := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		id := n.ID()
		if _, dup := seen[id]; dup {
			return errors.Newf("duplicate node identifier %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ID returns the node identifier, defaulting to the host.
func (n NodeConfig) ID() string {
	if n.Identifier != "" {
		return n.Identifier
	}
	return n.Host
}
