package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/grading"
	"github.com/ismaiel54/agent-trading-gateway/internal/journal"
	"github.com/ismaiel54/agent-trading-gateway/internal/router"
	"github.com/ismaiel54/agent-trading-gateway/internal/scenario"
)

type episode struct {
	id       string
	scenario scenario.Scenario
	params   scenario.Params
	steps    int
}

// EpisodeInfo is returned when an episode starts
type EpisodeInfo struct {
	ID       string          `json:"episode_id"`
	Scenario string          `json:"scenario"`
	Prompt   string          `json:"prompt"`
	Params   scenario.Params `json:"params"`
}

// GradeResult is a finished episode's score
type GradeResult struct {
	ID       string        `json:"episode_id"`
	Scenario string        `json:"scenario"`
	Score    float64       `json:"score"`
	Steps    int           `json:"steps"`
	Grade    grading.Grade `json:"grade"`
}

// StartEpisode resets the ledger for the named scenario and returns the task
// prompt. Events still queued on the session are applied first so they do not
// leak into the new episode.
func (t *Toolkit) StartEpisode(ctx context.Context, name string, overrides map[string]any) (EpisodeInfo, error) {
	sc, err := scenario.Lookup(name)
	if err != nil {
		return EpisodeInfo{}, err
	}
	params, err := sc.Resolve(overrides)
	if err != nil {
		return EpisodeInfo{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.pumpLocked(ctx)

	if t.cfg.ResetVenueOnStart && t.venue != nil {
		if !t.venue.Reset(ctx) {
			t.logger.Warn("venue reset failed, continuing with live market state")
		}
	}

	sc.Setup(t.ledger, params)
	t.fills, t.orderEvents, t.marketData, t.securityStatus = nil, nil, nil, nil
	t.episode = &episode{id: router.NewID(), scenario: sc, params: params}

	if t.sink != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return EpisodeInfo{}, fmt.Errorf("failed to marshal params: %w", err)
		}
		if err := t.sink.BeginEpisode(ctx, journal.Episode{
			ID:          t.episode.id,
			Scenario:    sc.Name,
			Params:      raw,
			InitialCash: params.InitialCash,
			StartedAt:   t.now(),
		}); err != nil {
			t.logger.Error("failed to journal episode start", zap.Error(err))
		}
		// seeded positions must replay identically offline
		for _, f := range t.ledger.Fills() {
			if err := t.sink.RecordFill(ctx, t.episode.id, f); err != nil {
				t.logger.Error("failed to journal setup fill", zap.Error(err))
			}
		}
	}

	t.logger.Info("episode started",
		zap.String("episode_id", t.episode.id),
		zap.String("scenario", sc.Name),
		zap.Float64("initial_cash", params.InitialCash),
	)

	return EpisodeInfo{
		ID:       t.episode.id,
		Scenario: sc.Name,
		Prompt:   sc.Prompt(params),
		Params:   params,
	}, nil
}

// GradeEpisode applies pending events and scores the running episode. It may
// be called more than once; the latest score is journaled.
func (t *Toolkit) GradeEpisode(ctx context.Context) (GradeResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.episode == nil {
		return GradeResult{}, ErrNoEpisode
	}
	t.pumpLocked(ctx)

	ep := t.episode
	g, err := ep.scenario.Grade(grading.FromLedger(t.ledger), ep.params, ep.steps)
	if err != nil {
		return GradeResult{}, fmt.Errorf("failed to grade episode %s: %w", ep.id, err)
	}
	score := g.Score()

	if t.sink != nil {
		if err := t.sink.EndEpisode(ctx, ep.id, ep.steps, score); err != nil {
			t.logger.Error("failed to journal grade", zap.Error(err))
		}
	}

	t.logger.Info("episode graded",
		zap.String("episode_id", ep.id),
		zap.String("scenario", ep.scenario.Name),
		zap.Float64("score", score),
		zap.Int("steps", ep.steps),
	)

	return GradeResult{
		ID:       ep.id,
		Scenario: ep.scenario.Name,
		Score:    score,
		Steps:    ep.steps,
		Grade:    g,
	}, nil
}
