package session

import (
	"net"
	"strconv"
	"time"
)

// Config describes one FIX session to the venue
type Config struct {
	Host             string
	Port             int
	BeginString      string
	SenderCompID     string
	TargetCompID     string
	HeartBtInt       int
	DefaultApplVerID string

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// LogonTimeout bounds the wait for the venue's Logon acknowledgement
	LogonTimeout time.Duration
	// PollTimeout is the read deadline used by Drain. It must be positive:
	// a deadline in the past fails the read before any buffered bytes are returned.
	PollTimeout time.Duration
	// RequireLogonAck fails Connect instead of proceeding when no ack arrives
	RequireLogonAck bool
	// MaxReadsPerDrain caps the reads one Drain call performs against a chatty venue
	MaxReadsPerDrain int
}

// DefaultConfig returns the settings of the simulated XETRA venue
func DefaultConfig() Config {
	return Config{
		Host:             "localhost",
		Port:             9051,
		BeginString:      "FIXT.1.1",
		SenderCompID:     "CLIENT_XETRA",
		TargetCompID:     "SIM_XETRA",
		HeartBtInt:       30,
		DefaultApplVerID: "9",
		DialTimeout:      10 * time.Second,
		WriteTimeout:     5 * time.Second,
		LogonTimeout:     5 * time.Second,
		PollTimeout:      time.Millisecond,
		MaxReadsPerDrain: 64,
	}
}

// Addr returns host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BeginString == "" {
		c.BeginString = d.BeginString
	}
	if c.DefaultApplVerID == "" {
		c.DefaultApplVerID = d.DefaultApplVerID
	}
	if c.HeartBtInt <= 0 {
		c.HeartBtInt = d.HeartBtInt
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.LogonTimeout <= 0 {
		c.LogonTimeout = d.LogonTimeout
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.MaxReadsPerDrain <= 0 {
		c.MaxReadsPerDrain = d.MaxReadsPerDrain
	}
	return c
}
