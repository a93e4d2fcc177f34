package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ismaiel54/agent-trading-gateway/internal/session"
)

// Config holds configuration for all binaries
type Config struct {
	// Service name
	ServiceName string

	// gRPC health port
	GRPCPort int

	// HTTP API and health port
	HTTPPort int

	// Log level: debug, info, warn, error
	LogLevel string

	// FIX session to the venue
	FIX session.Config

	// Venue REST base URL and per-request timeout
	VenueRESTURL     string
	VenueRESTTimeout time.Duration

	// Cash each episode starts with unless the scenario overrides it
	InitialCash float64

	// sqlite journal path; empty disables journaling
	JournalPath string

	// Toolkit background pump interval
	PumpInterval time.Duration
	// Ask the venue to reload its market when an episode starts
	ResetVenueOnStart bool
	// Cap on each poll buffer
	MaxBuffered int
	// Fraction above the reference price a MARKET buy locks
	MarketSlippage float64
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig(serviceName string) *Config {
	fix := session.DefaultConfig()
	fix.Host = getEnvAsString("FIX_HOST", fix.Host)
	fix.Port = getEnvAsInt("FIX_PORT", fix.Port)
	fix.BeginString = getEnvAsString("FIX_BEGIN_STRING", fix.BeginString)
	fix.SenderCompID = getEnvAsString("FIX_SENDER_COMP_ID", fix.SenderCompID)
	fix.TargetCompID = getEnvAsString("FIX_TARGET_COMP_ID", fix.TargetCompID)
	fix.HeartBtInt = getEnvAsInt("FIX_HEARTBEAT_SECONDS", fix.HeartBtInt)
	fix.DefaultApplVerID = getEnvAsString("FIX_APPL_VER_ID", fix.DefaultApplVerID)
	fix.LogonTimeout = getEnvAsMillis("FIX_LOGON_TIMEOUT_MS", fix.LogonTimeout)
	fix.PollTimeout = getEnvAsMillis("FIX_POLL_TIMEOUT_MS", fix.PollTimeout)
	fix.RequireLogonAck = getEnvAsBool("FIX_REQUIRE_LOGON_ACK", fix.RequireLogonAck)

	cfg := &Config{
		ServiceName:       serviceName,
		GRPCPort:          getEnvAsInt("PORT_GRPC", 50051),
		HTTPPort:          getEnvAsInt("PORT_HTTP", 8080),
		LogLevel:          getEnvAsString("LOG_LEVEL", "info"),
		FIX:               fix,
		VenueRESTURL:      getEnvAsString("VENUE_REST_URL", "http://localhost:9050"),
		VenueRESTTimeout:  getEnvAsMillis("VENUE_REST_TIMEOUT_MS", 10*time.Second),
		InitialCash:       getEnvAsFloat("INITIAL_CASH", 15000),
		JournalPath:       getEnvAsString("JOURNAL_PATH", ""),
		PumpInterval:      getEnvAsMillis("TOOLKIT_PUMP_INTERVAL_MS", 250*time.Millisecond),
		ResetVenueOnStart: getEnvAsBool("TOOLKIT_RESET_VENUE", false),
		MaxBuffered:       getEnvAsInt("TOOLKIT_MAX_BUFFERED", 1000),
		MarketSlippage:    getEnvAsFloat("TOOLKIT_MARKET_SLIPPAGE", 0.05),
	}

	return cfg
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
