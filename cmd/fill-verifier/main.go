package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/logging"
	"github.com/ismaiel54/agent-trading-gateway/internal/msg"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <duration_seconds> [brokers]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s 30 127.0.0.1:9092\n", os.Args[0])
		os.Exit(1)
	}

	var durationSeconds int
	if _, err := fmt.Sscanf(os.Args[1], "%d", &durationSeconds); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid duration: %v\n", err)
		os.Exit(1)
	}

	cfg := msg.LoadConfig()
	if len(os.Args) >= 3 {
		cfg.Brokers = strings.Split(os.Args[2], ",")
		for i := range cfg.Brokers {
			cfg.Brokers[i] = strings.TrimSpace(cfg.Brokers[i])
		}
	}
	if !cfg.Enabled() {
		cfg.Brokers = []string{"127.0.0.1:9092"}
	}

	logger, err := logging.NewLogger("fill-verifier", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting fill verifier",
		zap.Int("duration_seconds", durationSeconds),
		zap.Strings("brokers", cfg.Brokers),
	)

	// no group: read the topic from the start without committing
	consumer, err := msg.NewConsumer(cfg, "", []string{msg.TopicFills}, logger)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(durationSeconds)*time.Second)
	defer cancel()

	t := newTally()
	err = consumer.Run(ctx, func(ctx context.Context, rec msg.Record) error {
		var fill msg.FillMsg
		if err := rec.Decode(&fill); err != nil {
			logger.Warn("failed to decode fill", zap.Error(err))
			return nil
		}
		t.add(fill)

		logger.Debug("consumed fill",
			zap.String("episode", fill.Episode),
			zap.String("exec_id", fill.ExecID),
			zap.String("order_id", fill.OrderID),
			zap.Int32("partition", rec.Partition),
			zap.Int64("offset", rec.Offset),
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("consumer error", zap.Error(err))
	}

	dups := t.duplicates()

	fmt.Println("\n=== Fill Verification ===")
	fmt.Printf("Fills consumed: %d\n", t.total)
	fmt.Printf("Episodes: %d\n", len(t.episodes))
	fmt.Printf("Distinct executions: %d\n", len(t.counts))
	fmt.Printf("Duplicated executions: %d\n", len(dups))

	if len(dups) > 0 {
		fmt.Println("\nDuplicates found:")
		for _, d := range dups {
			fmt.Printf("  %s, Count: %d\n", d.key, d.count)
		}
		fmt.Println("\nVERIFICATION FAILED: duplicate executions published")
		os.Exit(1)
	}

	fmt.Println("\nVERIFICATION PASSED: every execution published once")
}

type tally struct {
	total    int
	counts   map[string]int
	episodes map[string]bool
}

type duplicate struct {
	key   string
	count int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int), episodes: make(map[string]bool)}
}

// add counts a fill under episode and exec id. Fills without an exec id
// (seeded positions) are keyed by their event id.
func (t *tally) add(f msg.FillMsg) {
	id := f.ExecID
	if id == "" {
		id = "event:" + f.EventID
	}
	t.total++
	t.episodes[f.Episode] = true
	t.counts[f.Episode+"/"+id]++
}

func (t *tally) duplicates() []duplicate {
	var out []duplicate
	for key, n := range t.counts {
		if n > 1 {
			out = append(out, duplicate{key: key, count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}
