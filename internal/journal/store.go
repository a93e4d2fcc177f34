package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/msg"
)

// ErrEpisodeNotFound is returned for an unknown episode id
var ErrEpisodeNotFound = errors.New("episode not found")

const kindFill = "fill"

// Store is the append-only episode journal with its outbox
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Episode describes one graded run
type Episode struct {
	ID          string          `json:"id"`
	Scenario    string          `json:"scenario"`
	Params      json.RawMessage `json:"params"`
	InitialCash float64         `json:"initial_cash"`
	StartedAt   time.Time       `json:"started_at"`
	Steps       int             `json:"steps"`
	// Score is nil until the episode is graded
	Score *float64 `json:"score,omitempty"`
}

// OutboxEvent represents an event waiting to be published
type OutboxEvent struct {
	ID                  int64
	Episode             string
	EventID             string
	Topic               string
	Key                 string
	PayloadJSON         string
	CreatedUnixMillis   int64
	PublishedUnixMillis sql.NullInt64
}

// Open creates or opens the journal database
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			params_json TEXT NOT NULL,
			initial_cash REAL NOT NULL,
			started_unix_millis INTEGER NOT NULL,
			steps INTEGER NOT NULL DEFAULT 0,
			score REAL NULL
		)`,
		`CREATE TABLE IF NOT EXISTS episode_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			episode TEXT NOT NULL,
			kind TEXT NOT NULL,
			order_id TEXT NOT NULL,
			exec_id TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_unix_millis INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_episode_events_exec
			ON episode_events(episode, kind, exec_id)
			WHERE exec_id <> ''`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			episode TEXT NOT NULL,
			event_id TEXT NOT NULL UNIQUE,
			topic TEXT NOT NULL,
			key TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_unix_millis INTEGER NOT NULL,
			published_unix_millis INTEGER NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
			ON outbox_events(published_unix_millis)
			WHERE published_unix_millis IS NULL`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// BeginEpisode records a new episode
func (s *Store) BeginEpisode(ctx context.Context, ep Episode) error {
	params := ep.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	started := ep.StartedAt
	if started.IsZero() {
		started = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (id, scenario, params_json, initial_cash, started_unix_millis)
		 VALUES (?, ?, ?, ?, ?)`,
		ep.ID, ep.Scenario, string(params), ep.InitialCash, started.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert episode %s: %w", ep.ID, err)
	}
	return nil
}

// EndEpisode stores the step count and final score
func (s *Store) EndEpisode(ctx context.Context, episode string, steps int, score float64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE episodes SET steps = ?, score = ? WHERE id = ?",
		steps, score, episode,
	)
	if err != nil {
		return fmt.Errorf("failed to update episode %s: %w", episode, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrEpisodeNotFound, episode)
	}
	return nil
}

// Episode loads one episode
func (s *Store) Episode(ctx context.Context, id string) (Episode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scenario, params_json, initial_cash, started_unix_millis, steps, score
		 FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Episode{}, fmt.Errorf("%w: %s", ErrEpisodeNotFound, id)
	}
	return ep, err
}

// LatestEpisode returns the most recently started episode
func (s *Store) LatestEpisode(ctx context.Context) (Episode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scenario, params_json, initial_cash, started_unix_millis, steps, score
		 FROM episodes ORDER BY started_unix_millis DESC, rowid DESC LIMIT 1`)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Episode{}, ErrEpisodeNotFound
	}
	return ep, err
}

func scanEpisode(row *sql.Row) (Episode, error) {
	var ep Episode
	var params string
	var started int64
	var score sql.NullFloat64
	if err := row.Scan(&ep.ID, &ep.Scenario, &params, &ep.InitialCash, &started, &ep.Steps, &score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Episode{}, err
		}
		return Episode{}, fmt.Errorf("failed to scan episode: %w", err)
	}
	ep.Params = json.RawMessage(params)
	ep.StartedAt = time.UnixMilli(started)
	if score.Valid {
		v := score.Float64
		ep.Score = &v
	}
	return ep, nil
}

// RecordFill journals a ledger fill and queues it for venue.fills. A fill
// whose exec id was already journaled for the episode is skipped.
func (s *Store) RecordFill(ctx context.Context, episode string, f ledger.Fill) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal fill: %w", err)
	}

	now := s.now().UnixMilli()
	eventID := uuid.NewString()
	if f.ExecID != "" {
		eventID = "fill-" + episode + "-" + f.ExecID
	}
	out := msg.FillMsg{
		EventID:      eventID,
		Episode:      episode,
		OrderID:      f.OrderID,
		ExecID:       f.ExecID,
		Symbol:       f.Symbol,
		Side:         string(f.Side),
		Qty:          f.Qty,
		Price:        f.Price,
		TsUnixMillis: now,
	}
	return s.append(ctx, row{
		episode: episode,
		kind:    kindFill,
		orderID: f.OrderID,
		execID:  f.ExecID,
		payload: payload,
		outbox:  &outboxRow{eventID: eventID, topic: msg.TopicFills, key: f.Symbol, value: out},
		now:     now,
	})
}

// RecordEvent journals a domain event. Order lifecycle events are also queued
// for venue.order-events; fills travel through RecordFill instead.
func (s *Store) RecordEvent(ctx context.Context, episode string, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", ev.Kind(), err)
	}
	now := s.now().UnixMilli()
	r := row{episode: episode, kind: string(ev.Kind()), payload: payload, now: now}

	switch e := ev.(type) {
	case *events.ExecutionReport:
		r.orderID, r.execID = e.ClOrdID, e.ExecID
		if !e.IsFill() {
			eventID := uuid.NewString()
			r.outbox = &outboxRow{eventID: eventID, topic: msg.TopicOrderEvents, key: e.ClOrdID, value: msg.OrderEventMsg{
				EventID:      eventID,
				Episode:      episode,
				Kind:         string(ev.Kind()),
				OrderID:      e.ClOrdID,
				OrigOrderID:  e.OrigClOrdID,
				ExecType:     e.ExecType.String(),
				Status:       e.OrdStatus.String(),
				Symbol:       e.Symbol,
				Reason:       rejectReason(e),
				TsUnixMillis: now,
			}}
		}
	case *events.OrderCancelReject:
		r.orderID = e.ClOrdID
		eventID := uuid.NewString()
		r.outbox = &outboxRow{eventID: eventID, topic: msg.TopicOrderEvents, key: e.ClOrdID, value: msg.OrderEventMsg{
			EventID:      eventID,
			Episode:      episode,
			Kind:         string(ev.Kind()),
			OrderID:      e.ClOrdID,
			OrigOrderID:  e.OrigClOrdID,
			Status:       e.OrdStatus.String(),
			Reason:       e.CxlRejReason.String(),
			TsUnixMillis: now,
		}}
	}
	return s.append(ctx, r)
}

func rejectReason(e *events.ExecutionReport) string {
	if e.Text != "" {
		return e.Text
	}
	if !e.OrdRejReason.IsZero() {
		return e.OrdRejReason.String()
	}
	return ""
}

type outboxRow struct {
	eventID string
	topic   string
	key     string
	value   any
}

type row struct {
	episode string
	kind    string
	orderID string
	execID  string
	payload []byte
	outbox  *outboxRow
	now     int64
}

// append writes the journal row and its outbox row in one transaction
func (s *Store) append(ctx context.Context, r row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO episode_events (episode, kind, order_id, exec_id, payload_json, created_unix_millis)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		r.episode, r.kind, r.orderID, r.execID, string(r.payload), r.now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", r.kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// exec id already journaled
		return nil
	}

	if r.outbox != nil {
		value, err := json.Marshal(r.outbox.value)
		if err != nil {
			return fmt.Errorf("failed to marshal outbox payload: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox_events (episode, event_id, topic, key, payload_json, created_unix_millis, published_unix_millis)
			 VALUES (?, ?, ?, ?, ?, ?, NULL)
			 ON CONFLICT(event_id) DO NOTHING`,
			r.episode, r.outbox.eventID, r.outbox.topic, r.outbox.key, string(value), r.now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Fills reloads an episode's fill history in journal order
func (s *Store) Fills(ctx context.Context, episode string) ([]ledger.Fill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload_json FROM episode_events
		 WHERE episode = ? AND kind = ?
		 ORDER BY id ASC`,
		episode, kindFill,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var fills []ledger.Fill
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		var f ledger.Fill
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			return nil, fmt.Errorf("failed to decode fill: %w", err)
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// CountEvents returns the number of journaled rows of kind for an episode
func (s *Store) CountEvents(ctx context.Context, episode, kind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM episode_events WHERE episode = ? AND kind = ?",
		episode, kind,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// ListUnpublished returns unpublished outbox events, oldest first
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, episode, event_id, topic, key, payload_json, created_unix_millis, published_unix_millis
		 FROM outbox_events
		 WHERE published_unix_millis IS NULL
		 ORDER BY id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(
			&e.ID, &e.Episode, &e.EventID, &e.Topic, &e.Key,
			&e.PayloadJSON, &e.CreatedUnixMillis, &e.PublishedUnixMillis,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// MarkPublished marks an event as published
func (s *Store) MarkPublished(ctx context.Context, eventID string, nowMillis int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET published_unix_millis = ? WHERE event_id = ?",
		nowMillis, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
