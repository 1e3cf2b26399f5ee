// Package config loads runtime settings from defaults, an optional YAML file
// and the environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	SourceDiscord = "discord"
	SourceMQTT    = "mqtt"
)

type Config struct {
	Source   string         `yaml:"source" validate:"oneof=discord mqtt"`
	Discord  DiscordConfig  `yaml:"discord"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Server   ServerConfig   `yaml:"server"`
	Resolver ResolverConfig `yaml:"resolver"`
	Console  ConsoleConfig  `yaml:"console"`
	Log      LogConfig      `yaml:"log"`
}

type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
	APIURL    string `yaml:"api_url" validate:"required,url"`
	Limit     int    `yaml:"limit" validate:"min=1,max=100"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id" validate:"required"`
	Topic    string `yaml:"topic" validate:"required"`
}

type ServerConfig struct {
	ListenAddr        string        `yaml:"listen_addr" validate:"required,hostname_port"`
	TCPAddr           string        `yaml:"tcp_addr" validate:"omitempty,hostname_port"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval" validate:"min=100ms"`
	PollInterval      time.Duration `yaml:"poll_interval" validate:"min=100ms"`
}

type ResolverConfig struct {
	URL               string  `yaml:"url" validate:"required,url"`
	UserAgent         string  `yaml:"user_agent" validate:"required"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	Workers           int     `yaml:"workers" validate:"min=1,max=64"`
}

type ConsoleConfig struct {
	Interval time.Duration `yaml:"interval" validate:"min=100ms"`
	Viewer   string        `yaml:"viewer"`
	Hotkeys  bool          `yaml:"hotkeys"`
}

type LogConfig struct {
	File   string `yaml:"file" validate:"required"`
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error"`
	Stderr bool   `yaml:"stderr"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Source: SourceDiscord,
		Discord: DiscordConfig{
			APIURL: "https://discord.com/api/v9",
			Limit:  50,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "geolock",
			Topic:    "geolock/location",
		},
		Server: ServerConfig{
			ListenAddr:        "localhost:8765",
			BroadcastInterval: 5 * time.Second,
			PollInterval:      5 * time.Second,
		},
		Resolver: ResolverConfig{
			URL:               "https://nominatim.openstreetmap.org",
			UserAgent:         "GeoLock",
			RequestsPerSecond: 1,
			Workers:           4,
		},
		Console: ConsoleConfig{
			Interval: 10 * time.Second,
			Viewer:   "index.html",
			Hotkeys:  true,
		},
		Log: LogConfig{
			File:  "geolock.log",
			Level: "info",
		},
	}
}

// Load reads an optional .env file, then GEOLOCK_CONFIG (YAML) if set, then
// the environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("GEOLOCK_CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		d, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	integer := func(key string, def int) int {
		n, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	boolean := func(key string, def bool) bool {
		b, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return b
	}

	c.Source = strings.ToLower(getEnv("GEOLOCK_SOURCE", c.Source))

	c.Discord.Token = getEnv("DISCORD_BOT_TOKEN", c.Discord.Token)
	c.Discord.ChannelID = getEnv("DISCORD_CHANNEL_ID", c.Discord.ChannelID)
	c.Discord.APIURL = getEnv("DISCORD_API_URL", c.Discord.APIURL)
	c.Discord.Limit = integer("DISCORD_FETCH_LIMIT", c.Discord.Limit)

	c.MQTT.Broker = getEnv("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Topic = getEnv("MQTT_TOPIC", c.MQTT.Topic)

	c.Server.ListenAddr = getEnv("GEOLOCK_LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.TCPAddr = getEnv("GEOLOCK_TCP_ADDR", c.Server.TCPAddr)
	c.Server.BroadcastInterval = duration("GEOLOCK_BROADCAST_INTERVAL", c.Server.BroadcastInterval)
	c.Server.PollInterval = duration("GEOLOCK_POLL_INTERVAL", c.Server.PollInterval)

	c.Resolver.URL = getEnv("NOMINATIM_URL", c.Resolver.URL)
	c.Resolver.UserAgent = getEnv("GEOLOCK_USER_AGENT", c.Resolver.UserAgent)
	if v := os.Getenv("GEOLOCK_RESOLVER_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GEOLOCK_RESOLVER_RPS: %w", err))
		} else {
			c.Resolver.RequestsPerSecond = rps
		}
	}
	c.Resolver.Workers = integer("GEOLOCK_RESOLVER_WORKERS", c.Resolver.Workers)

	c.Console.Interval = duration("GEOLOCK_CONSOLE_INTERVAL", c.Console.Interval)
	c.Console.Viewer = getEnv("GEOLOCK_VIEWER", c.Console.Viewer)
	c.Console.Hotkeys = boolean("GEOLOCK_HOTKEYS", c.Console.Hotkeys)

	c.Log.File = getEnv("GEOLOCK_LOG_FILE", c.Log.File)
	c.Log.Level = strings.ToLower(getEnv("GEOLOCK_LOG_LEVEL", c.Log.Level))
	c.Log.Stderr = boolean("GEOLOCK_LOG_STDERR", c.Log.Stderr)

	return errors.Join(errs...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the settings the chosen source needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch c.Source {
	case SourceDiscord:
		if c.Discord.ChannelID == "" {
			return fmt.Errorf("%w: DISCORD_CHANNEL_ID is required for the discord source", ErrInvalid)
		}
		if c.Discord.Token == "" {
			return fmt.Errorf("%w: DISCORD_BOT_TOKEN is required for the discord source", ErrInvalid)
		}
	case SourceMQTT:
		if c.MQTT.Broker == "" {
			return fmt.Errorf("%w: MQTT_BROKER is required for the mqtt source", ErrInvalid)
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getEnvDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
