package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/grading"
	"github.com/ismaiel54/agent-trading-gateway/internal/journal"
	"github.com/ismaiel54/agent-trading-gateway/internal/logging"
	"github.com/ismaiel54/agent-trading-gateway/internal/scenario"
)

// Report is the grader's JSON output
type Report struct {
	Episode   string         `json:"episode_id"`
	Scenario  string         `json:"scenario"`
	StartedAt time.Time      `json:"started_at"`
	Steps     int            `json:"steps"`
	Fills     int            `json:"fills"`
	Score     float64        `json:"score"`
	LiveScore *float64       `json:"live_score,omitempty"`
	Grade     grading.Grade  `json:"grade"`
	Portfolio map[string]any `json:"portfolio"`
}

func main() {
	journalPath := flag.String("journal", os.Getenv("JOURNAL_PATH"), "path to the sqlite journal")
	episodeID := flag.String("episode", "", "episode id (default: latest)")
	scenarioName := flag.String("scenario", "", "grade against this scenario instead of the recorded one")
	flag.Parse()

	if *journalPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -journal <path> [-episode <id>] [-scenario <name>]\n", os.Args[0])
		os.Exit(1)
	}

	logger, err := logging.NewLogger("grader", "warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := journal.Open(*journalPath)
	if err != nil {
		logger.Fatal("failed to open journal", zap.Error(err))
	}
	defer store.Close()

	report, err := gradeRecorded(context.Background(), store, *episodeID, *scenarioName)
	if err != nil {
		logger.Fatal("failed to grade episode", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("failed to write report", zap.Error(err))
	}
}

// gradeRecorded replays an episode's journaled fills and grades them
func gradeRecorded(ctx context.Context, store *journal.Store, episodeID, scenarioName string) (Report, error) {
	var ep journal.Episode
	var err error
	if episodeID == "" {
		ep, err = store.LatestEpisode(ctx)
	} else {
		ep, err = store.Episode(ctx, episodeID)
	}
	if err != nil {
		return Report{}, err
	}

	name := ep.Scenario
	if scenarioName != "" {
		name = scenarioName
	}
	sc, err := scenario.Lookup(name)
	if err != nil {
		return Report{}, err
	}

	params := sc.Defaults
	if len(ep.Params) > 0 && name == ep.Scenario {
		if err := json.Unmarshal(ep.Params, &params); err != nil {
			return Report{}, fmt.Errorf("failed to decode recorded params: %w", err)
		}
	}

	fills, err := store.Fills(ctx, ep.ID)
	if err != nil {
		return Report{}, err
	}

	pf := grading.Replay(ep.InitialCash, fills)
	g, err := sc.Grade(pf, params, ep.Steps)
	if err != nil {
		return Report{}, fmt.Errorf("failed to grade episode %s: %w", ep.ID, err)
	}

	return Report{
		Episode:   ep.ID,
		Scenario:  sc.Name,
		StartedAt: ep.StartedAt,
		Steps:     ep.Steps,
		Fills:     len(fills),
		Score:     g.Score(),
		LiveScore: ep.Score,
		Grade:     g,
		Portfolio: map[string]any{
			"cash":       pf.Snapshot.Cash,
			"net_profit": pf.Snapshot.NetProfit,
			"positions":  pf.Snapshot.Positions,
		},
	}, nil
}
