// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

const DefaultTopic = "staferb/web_alerts"

// Config holds the settings shared by every binary. Service specific
// requirements are checked by the Require* methods.
type Config struct {
	// MQTT
	MQTTClusterID         string
	MQTTBrokerURL         string
	MQTTUsername          string
	MQTTPassword          string
	MQTTTopic             string
	MQTTClientID          string
	MQTTReconnectInterval time.Duration
	MQTTConnectTimeout    time.Duration
	PublishTimeout        time.Duration

	// Collaboratori esterni
	MapboxToken    string
	RemoteBaseURL  string
	RemoteTimeout  time.Duration
	SOSEnabled     bool
	TelegramToken  string
	TelegramAPIURL string

	HTTPAddr        string
	GRPCAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	DedupTTL        time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	durations := map[string]*time.Duration{}
	cfg := &Config{
		MQTTClusterID:  strings.TrimSpace(os.Getenv("MQTT_CLUSTER_ID")),
		MQTTBrokerURL:  strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
		MQTTUsername:   os.Getenv("MQTT_USERNAME"),
		MQTTPassword:   os.Getenv("MQTT_PASSWORD"),
		MQTTTopic:      envOrDefault("MQTT_TOPIC", DefaultTopic),
		MQTTClientID:   os.Getenv("MQTT_CLIENT_ID"),
		MapboxToken:    os.Getenv("MAPBOX_TOKEN"),
		RemoteBaseURL:  strings.TrimRight(envOrDefault("REMOTE_BASE_URL", "http://localhost:5000"), "/"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramAPIURL: strings.TrimRight(envOrDefault("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
		HTTPAddr:       envOrDefault("HTTP_ADDR", ":8080"),
		GRPCAddr:       os.Getenv("GRPC_ADDR"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("LOG_FORMAT", "json"),
	}

	durations["MQTT_RECONNECT_INTERVAL"] = &cfg.MQTTReconnectInterval
	durations["MQTT_CONNECT_TIMEOUT"] = &cfg.MQTTConnectTimeout
	durations["PUBLISH_TIMEOUT"] = &cfg.PublishTimeout
	durations["REMOTE_TIMEOUT"] = &cfg.RemoteTimeout
	durations["SHUTDOWN_TIMEOUT"] = &cfg.ShutdownTimeout
	durations["DEDUP_TTL"] = &cfg.DedupTTL
	defaults := map[string]string{
		"MQTT_RECONNECT_INTERVAL": "5s",
		"MQTT_CONNECT_TIMEOUT":    "8s",
		"PUBLISH_TIMEOUT":         "10s",
		"REMOTE_TIMEOUT":          "5s",
		"SHUTDOWN_TIMEOUT":        "10s",
		"DEDUP_TTL":               "10m",
	}
	for key, dst := range durations {
		d, err := parseDuration(key, defaults[key])
		if err != nil {
			return nil, err
		}
		*dst = d
	}

	sos, err := parseBool("SOS_ENABLED", true)
	if err != nil {
		return nil, err
	}
	cfg.SOSEnabled = sos

	if strings.TrimSpace(cfg.MQTTTopic) == "" {
		return nil, errors.New("MQTT_TOPIC is required")
	}
	return cfg, nil
}

// RequireBroker checks that a broker address is configured.
func (c *Config) RequireBroker() error {
	if c.MQTTBrokerURL == "" && c.MQTTClusterID == "" {
		return errors.New("MQTT_CLUSTER_ID or MQTT_BROKER_URL is required")
	}
	return nil
}

// RequireMapbox is a precondition of the report form: without a token the map
// cannot be shown.
func (c *Config) RequireMapbox() error {
	if strings.TrimSpace(c.MapboxToken) == "" {
		return errors.New("MAPBOX_TOKEN is required")
	}
	return nil
}

func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.TelegramToken) == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}

// Broker maps the MQTT settings onto the connection manager config.
func (c *Config) Broker() broker.Config {
	return broker.Config{
		URL:               c.MQTTBrokerURL,
		ClusterID:         c.MQTTClusterID,
		Username:          c.MQTTUsername,
		Password:          c.MQTTPassword,
		ClientID:          c.MQTTClientID,
		ReconnectInterval: c.MQTTReconnectInterval,
		ConnectTimeout:    c.MQTTConnectTimeout,
	}
}

func envOrDefault(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
