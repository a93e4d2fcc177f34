package msg

import (
	"os"
	"strings"
)

// Config holds Kafka configuration. No brokers means publishing is off.
type Config struct {
	Brokers  []string
	ClientID string
}

// Topic names
const (
	TopicFills       = "venue.fills"
	TopicOrderEvents = "venue.order-events"
)

// LoadConfig loads Kafka configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Brokers:  splitBrokers(os.Getenv("KAFKA_BROKERS")),
		ClientID: getEnvAsString("KAFKA_CLIENT_ID", "agent-trading-gateway"),
	}
}

// Enabled reports whether any broker is configured
func (c *Config) Enabled() bool {
	return len(c.Brokers) > 0
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
