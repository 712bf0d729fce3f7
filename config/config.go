package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds client transport configuration.
type Config struct {
	APIBaseURL string // HTTP(S) base address of the Seryvo API
	WSPath     string // WebSocket endpoint path, default "/ws/connect"

	HandshakeTimeout time.Duration // dial deadline per attempt
	WriteTimeout     time.Duration // deadline for one outbound frame
	PingInterval     time.Duration // liveness probe period; 0 disables probing
	PongTimeout      time.Duration // deadline for the probe response

	ReconnectBase        time.Duration // first automatic retry delay
	ReconnectMax         time.Duration // retry delay cap
	MaxReconnectAttempts int           // automatic attempts before giving up
}

// Default returns the default client configuration.
func Default() Config {
	return Config{
		APIBaseURL:           "http://localhost:8000",
		WSPath:               "/ws/connect",
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		PingInterval:         30 * time.Second,
		PongTimeout:          10 * time.Second,
		ReconnectBase:        time.Second,
		ReconnectMax:         30 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// FromEnv loads configuration from environment variables, falling back to
// defaults for any missing values.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("SERYVO_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("SERYVO_WS_PATH"); v != "" {
		cfg.WSPath = v
	}
	if d, ok := envSeconds("SERYVO_PING_INTERVAL"); ok {
		cfg.PingInterval = d
	}
	if d, ok := envSeconds("SERYVO_PONG_TIMEOUT"); ok {
		cfg.PongTimeout = d
	}
	if d, ok := envSeconds("SERYVO_RECONNECT_BASE"); ok {
		cfg.ReconnectBase = d
	}
	if d, ok := envSeconds("SERYVO_RECONNECT_MAX"); ok {
		cfg.ReconnectMax = d
	}
	if v := os.Getenv("SERYVO_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxReconnectAttempts = n
		}
	}
	return cfg
}

func envSeconds(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// WSURL derives the websocket endpoint from the API base address: the
// http(s) scheme becomes ws(s), the configured path is appended, and the
// bearer token rides along as a query parameter.
func (c Config) WSURL(token string) (string, error) {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in api base url", u.Scheme)
	}
	u.Path = c.WSPath
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
