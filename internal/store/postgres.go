// Package store persists finished episodes to Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"energy-net/internal/episode"
	"energy-net/internal/logging"
	"energy-net/internal/model"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("episode not found")

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	id               UUID PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	steps            INTEGER NOT NULL,
	total_iso_reward DOUBLE PRECISION NOT NULL,
	total_pcs_reward DOUBLE PRECISION NOT NULL,
	energy_bought    DOUBLE PRECISION NOT NULL,
	energy_sold      DOUBLE PRECISION NOT NULL,
	final_level      DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS episode_steps (
	episode_id       UUID NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
	step             INTEGER NOT NULL,
	time             DOUBLE PRECISION NOT NULL,
	predicted_demand DOUBLE PRECISION NOT NULL,
	realized_demand  DOUBLE PRECISION NOT NULL,
	actual_demand    DOUBLE PRECISION NOT NULL,
	pcs_demand       DOUBLE PRECISION NOT NULL,
	buy_price        DOUBLE PRECISION NOT NULL,
	sell_price       DOUBLE PRECISION NOT NULL,
	dispatch         DOUBLE PRECISION NOT NULL,
	shortfall        DOUBLE PRECISION NOT NULL,
	reserve_cost     DOUBLE PRECISION NOT NULL,
	dispatch_cost    DOUBLE PRECISION NOT NULL,
	battery_action   DOUBLE PRECISION NOT NULL,
	level_start      DOUBLE PRECISION NOT NULL,
	level_end        DOUBLE PRECISION NOT NULL,
	iso_reward       DOUBLE PRECISION NOT NULL,
	pcs_reward       DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (episode_id, step)
);`

// Summary is an episode row without its ledger.
type Summary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	Steps          int       `json:"steps"`
	TotalISOReward float64   `json:"total_iso_reward"`
	TotalPCSReward float64   `json:"total_pcs_reward"`
	EnergyBought   float64   `json:"energy_bought"`
	EnergySold     float64   `json:"energy_sold"`
	FinalLevel     float64   `json:"final_level"`
}

type Store struct {
	db  *sql.DB
	log logrus.FieldLogger
	now func() time.Time
}

// Open connects to Postgres and makes sure the schema exists.
func Open(ctx context.Context, dsn string, log logrus.FieldLogger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := New(db, log)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection.
func New(db *sql.DB, log logrus.FieldLogger) *Store {
	return &Store{db: db, log: logging.OrDiscard(log), now: time.Now}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveEpisode writes the episode and its ledger in one transaction. An empty
// res.ID is filled with a new UUID.
func (s *Store) SaveEpisode(ctx context.Context, res *episode.Result) error {
	if res == nil {
		return fmt.Errorf("episode is nil")
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO episodes (
			id, name, created_at, steps,
			total_iso_reward, total_pcs_reward,
			energy_bought, energy_sold, final_level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.ID, res.Name, s.now().UTC(), res.Steps,
		res.TotalISOReward, res.TotalPCSReward,
		res.EnergyBought, res.EnergySold, res.FinalLevel,
	)
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO episode_steps (
			episode_id, step, time,
			predicted_demand, realized_demand, actual_demand, pcs_demand,
			buy_price, sell_price, dispatch,
			shortfall, reserve_cost, dispatch_cost,
			battery_action, level_start, level_end,
			iso_reward, pcs_reward
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range res.Ledger {
		_, err := stmt.ExecContext(ctx,
			res.ID, r.Step, r.Time,
			r.PredictedDemand, r.RealizedDemand, r.ActualDemand, r.PCSDemand,
			r.BuyPrice, r.SellPrice, r.Dispatch,
			r.Shortfall, r.ReserveCost, r.DispatchCost,
			r.BatteryAction, r.LevelStart, r.LevelEnd,
			r.ISOReward, r.PCSReward,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", r.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{"episode": res.ID, "steps": len(res.Ledger)}).Info("episode saved")
	return nil
}

// ListEpisodes returns the most recent episodes first.
func (s *Store) ListEpisodes(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, steps, total_iso_reward, total_pcs_reward,
		       energy_bought, energy_sold, final_level
		FROM episodes
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var e Summary
		if err := rows.Scan(&e.ID, &e.Name, &e.CreatedAt, &e.Steps, &e.TotalISOReward, &e.TotalPCSReward,
			&e.EnergyBought, &e.EnergySold, &e.FinalLevel); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadEpisode returns the episode totals and its ledger. Labels and cumulative
// rewards are rebuilt from the stored columns.
func (s *Store) LoadEpisode(ctx context.Context, id string) (*episode.Result, error) {
	res := &episode.Result{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, steps, total_iso_reward, total_pcs_reward, energy_bought, energy_sold, final_level
		FROM episodes WHERE id = $1`, id).
		Scan(&res.Name, &res.Steps, &res.TotalISOReward, &res.TotalPCSReward, &res.EnergyBought, &res.EnergySold, &res.FinalLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load episode: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, time, predicted_demand, realized_demand, actual_demand, pcs_demand,
		       buy_price, sell_price, dispatch, shortfall, reserve_cost, dispatch_cost,
		       battery_action, level_start, level_end, iso_reward, pcs_reward
		FROM episode_steps WHERE episode_id = $1 ORDER BY step`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var cumISO, cumPCS float64
	for rows.Next() {
		var r episode.LedgerRow
		if err := rows.Scan(&r.Step, &r.Time, &r.PredictedDemand, &r.RealizedDemand, &r.ActualDemand, &r.PCSDemand,
			&r.BuyPrice, &r.SellPrice, &r.Dispatch, &r.Shortfall, &r.ReserveCost, &r.DispatchCost,
			&r.BatteryAction, &r.LevelStart, &r.LevelEnd, &r.ISOReward, &r.PCSReward); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		cumISO += r.ISOReward
		cumPCS += r.PCSReward
		r.CumISOReward, r.CumPCSReward = cumISO, cumPCS
		r.Clock = episode.Clock(r.Time)
		r.Action = model.ActionFromEnergyChange(r.LevelEnd - r.LevelStart)
		r.Exchange = model.ExchangeFromNet(r.PCSDemand)
		res.Ledger = append(res.Ledger, r)
	}
	return res, rows.Err()
}

func (s *Store) DeleteEpisode(ctx context.Context, id string) error {
	out, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete episode: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
