package chaos

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Chaos decides, from a seeded RNG, when to inject faults
type Chaos struct {
	cfg    *Config
	logger *zap.Logger
	rng    *rand.Rand
	mu     sync.Mutex
	start  time.Time
}

// New creates a new Chaos instance. A valid profile overrides the individual settings.
func New(cfg *Config, logger *zap.Logger) *Chaos {
	c := &Chaos{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		start:  time.Now(),
	}

	if cfg.Profile != "" {
		stallPct, delayMin, delayMax, err := ParseProfile(cfg.Profile)
		if err != nil {
			logger.Warn("failed to parse chaos profile", zap.Error(err))
		} else {
			if stallPct > 0 {
				cfg.StallPct = stallPct
			}
			if delayMin > 0 || delayMax > 0 {
				cfg.DelayMsMin = delayMin
				cfg.DelayMsMax = delayMax
			}
		}
	}

	return c
}

// EnabledFor checks if chaos applies to the named transport
func (c *Chaos) EnabledFor(target string) bool {
	if !c.cfg.Enabled {
		return false
	}

	if c.cfg.WindowMs > 0 && time.Since(c.start).Milliseconds() > int64(c.cfg.WindowMs) {
		return false
	}

	return c.cfg.Target == "" || c.cfg.Target == target
}

// MaybeDelay sleeps for a random delay within the configured range
func (c *Chaos) MaybeDelay(ctx context.Context, target, op string) error {
	if !c.EnabledFor(target) {
		return nil
	}
	if c.cfg.DelayMsMin == 0 && c.cfg.DelayMsMax == 0 {
		return nil
	}

	c.mu.Lock()
	delayMs := c.cfg.DelayMsMin
	if c.cfg.DelayMsMax > c.cfg.DelayMsMin {
		delayMs += c.rng.Intn(c.cfg.DelayMsMax - c.cfg.DelayMsMin + 1)
	}
	c.mu.Unlock()

	if delayMs <= 0 {
		return nil
	}

	c.logger.Warn("chaos delay injected",
		zap.String("target", target),
		zap.String("op", op),
		zap.Int("delay_ms", delayMs),
	)

	timer := time.NewTimer(time.Duration(delayMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MaybeStall reports whether the operation should fail with a transient timeout
func (c *Chaos) MaybeStall(target, op string) bool {
	if !c.EnabledFor(target) || c.cfg.StallPct == 0 {
		return false
	}

	c.mu.Lock()
	stall := c.rng.Intn(100) < c.cfg.StallPct
	c.mu.Unlock()

	if stall {
		c.logger.Warn("chaos stall injected",
			zap.String("target", target),
			zap.String("op", op),
		)
	}

	return stall
}
