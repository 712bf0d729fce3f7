package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/ws/connect", cfg.WSPath)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.PongTimeout)
	assert.Equal(t, time.Second, cfg.ReconnectBase)
	assert.Equal(t, 30*time.Second, cfg.ReconnectMax)
	assert.Equal(t, 10, cfg.MaxReconnectAttempts)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SERYVO_API_URL", "https://api.seryvo.test")
	t.Setenv("SERYVO_PING_INTERVAL", "15")
	t.Setenv("SERYVO_RECONNECT_ATTEMPTS", "3")

	cfg := FromEnv()
	assert.Equal(t, "https://api.seryvo.test", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.PingInterval)
	assert.Equal(t, 3, cfg.MaxReconnectAttempts)
	// Untouched values keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.ReconnectMax)
}

func TestFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("SERYVO_PING_INTERVAL", "soon")
	cfg := FromEnv()
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
}

func TestWSURLSchemeSubstitution(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8000": "ws://localhost:8000/ws/connect?token=tok",
		"https://api.seryvo.io": "wss://api.seryvo.io/ws/connect?token=tok",
		"ws://localhost:8000":   "ws://localhost:8000/ws/connect?token=tok",
		"wss://api.seryvo.io":   "wss://api.seryvo.io/ws/connect?token=tok",
	}
	for base, want := range cases {
		cfg := Default()
		cfg.APIBaseURL = base
		got, err := cfg.WSURL("tok")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestWSURLRejectsUnknownScheme(t *testing.T) {
	cfg := Default()
	cfg.APIBaseURL = "ftp://api.seryvo.io"
	_, err := cfg.WSURL("tok")
	require.Error(t, err)
}
