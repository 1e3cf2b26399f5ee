package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setDiscordEnv(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "1234")
}

func TestLoad_Defaults(t *testing.T) {
	setDiscordEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceDiscord, cfg.Source)
	assert.Equal(t, "localhost:8765", cfg.Server.ListenAddr)
	assert.Empty(t, cfg.Server.TCPAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.BroadcastInterval)
	assert.Equal(t, 5*time.Second, cfg.Server.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Console.Interval)
	assert.Equal(t, "GeoLock", cfg.Resolver.UserAgent)
	assert.Equal(t, "geolock.log", cfg.Log.File)
	assert.True(t, cfg.Console.Hotkeys)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEOLOCK_SOURCE", "MQTT")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("GEOLOCK_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("GEOLOCK_TCP_ADDR", "localhost:9001")
	t.Setenv("GEOLOCK_BROADCAST_INTERVAL", "2s")
	t.Setenv("GEOLOCK_CONSOLE_INTERVAL", "3")
	t.Setenv("GEOLOCK_RESOLVER_RPS", "0.5")
	t.Setenv("GEOLOCK_HOTKEYS", "false")
	t.Setenv("GEOLOCK_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceMQTT, cfg.Source)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, "localhost:9001", cfg.Server.TCPAddr)
	assert.Equal(t, 2*time.Second, cfg.Server.BroadcastInterval)
	assert.Equal(t, 3*time.Second, cfg.Console.Interval)
	assert.Equal(t, 0.5, cfg.Resolver.RequestsPerSecond)
	assert.False(t, cfg.Console.Hotkeys)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geolock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: mqtt
mqtt:
  broker: tcp://yaml:1883
  topic: from/yaml
server:
  broadcast_interval: 1s
log:
  file: /tmp/from-yaml.log
`), 0o600))
	t.Setenv("GEOLOCK_CONFIG", path)
	t.Setenv("MQTT_TOPIC", "from/env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceMQTT, cfg.Source)
	assert.Equal(t, "tcp://yaml:1883", cfg.MQTT.Broker)
	assert.Equal(t, "from/env", cfg.MQTT.Topic)
	assert.Equal(t, time.Second, cfg.Server.BroadcastInterval)
	assert.Equal(t, 5*time.Second, cfg.Server.PollInterval)
	assert.Equal(t, "/tmp/from-yaml.log", cfg.Log.File)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"discord without channel", map[string]string{"DISCORD_BOT_TOKEN": "token"}},
		{"discord without token", map[string]string{"DISCORD_CHANNEL_ID": "1"}},
		{"unknown source", map[string]string{"GEOLOCK_SOURCE": "carrier-pigeon"}},
		{"bad duration", map[string]string{"GEOLOCK_SOURCE": "mqtt", "GEOLOCK_POLL_INTERVAL": "soon"}},
		{"interval too short", map[string]string{"GEOLOCK_SOURCE": "mqtt", "GEOLOCK_BROADCAST_INTERVAL": "1ms"}},
		{"bad listen address", map[string]string{"GEOLOCK_SOURCE": "mqtt", "GEOLOCK_LISTEN_ADDR": "nowhere"}},
		{"bad log level", map[string]string{"GEOLOCK_SOURCE": "mqtt", "GEOLOCK_LOG_LEVEL": "loud"}},
		{"bad workers", map[string]string{"GEOLOCK_SOURCE": "mqtt", "GEOLOCK_RESOLVER_WORKERS": "0"}},
		{"missing yaml", map[string]string{"GEOLOCK_SOURCE": "mqtt", "GEOLOCK_CONFIG": "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_WrapsErrInvalid(t *testing.T) {
	cfg := Defaults()
	cfg.Source = "nope"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "1.5")
	d, err := getEnvDuration("TEST_DURATION", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = getEnvDuration("TEST_DURATION_UNSET", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}
