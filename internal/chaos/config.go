package chaos

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds transport fault-injection settings
type Config struct {
	Enabled bool
	Profile string
	// Target restricts injection to one named transport ("fix", "venue-rest"); empty means all
	Target string
	// StallPct is the chance a read returns a synthetic timeout instead of data
	StallPct   int
	DelayMsMin int
	DelayMsMax int
	Seed       int64
	WindowMs   int
}

// LoadConfig loads chaos configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Enabled:    getEnvAsBool("CHAOS_ENABLED", false),
		Profile:    getEnvAsString("CHAOS_PROFILE", ""),
		Target:     getEnvAsString("CHAOS_TARGET", ""),
		StallPct:   getEnvAsInt("CHAOS_STALL_PCT", 0),
		DelayMsMin: getEnvAsInt("CHAOS_DELAY_MS_MIN", 0),
		DelayMsMax: getEnvAsInt("CHAOS_DELAY_MS_MAX", 0),
		Seed:       getEnvAsInt64("CHAOS_SEED", 1),
		WindowMs:   getEnvAsInt("CHAOS_WINDOW_MS", 0),
	}
}

// ParseProfile parses a profile string like "stall-pct=30,delay=5-20"
func ParseProfile(profile string) (stallPct int, delayMin int, delayMax int, err error) {
	if profile == "" {
		return 0, 0, 0, nil
	}

	for _, part := range strings.Split(profile, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "stall-pct="):
			stallPct, err = strconv.Atoi(strings.TrimPrefix(part, "stall-pct="))
			if err != nil {
				return 0, 0, 0, fmt.Errorf("invalid stall-pct: %w", err)
			}
		case strings.HasPrefix(part, "delay="):
			bounds := strings.Split(strings.TrimPrefix(part, "delay="), "-")
			if len(bounds) != 2 {
				return 0, 0, 0, fmt.Errorf("invalid delay range %q", part)
			}
			if delayMin, err = strconv.Atoi(bounds[0]); err != nil {
				return 0, 0, 0, fmt.Errorf("invalid delay min: %w", err)
			}
			if delayMax, err = strconv.Atoi(bounds[1]); err != nil {
				return 0, 0, 0, fmt.Errorf("invalid delay max: %w", err)
			}
			if delayMax < delayMin {
				return 0, 0, 0, fmt.Errorf("invalid delay range %q", part)
			}
		default:
			return 0, 0, 0, fmt.Errorf("unknown profile entry %q", part)
		}
	}

	return stallPct, delayMin, delayMax, nil
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
