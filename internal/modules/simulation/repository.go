package simulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Run is a stored simulation result.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Result    *Result   `json:"result"`
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Seed            uint64    `json:"seed"`
	Trials          int       `json:"trials"`
	TotalLength     float64   `json:"total_length_km"`
	Repeaters       int       `json:"repeaters"`
	Mode            string    `json:"mode"`
	FixedFidelity   *float64  `json:"fixed_fidelity,omitempty"`
	FinalFidelity   *float64  `json:"final_fidelity"`
	Degenerate      bool      `json:"degenerate"`
	SuccessRateMean float64   `json:"success_rate_mean"`
	AttemptsMean    float64   `json:"attempts_mean"`
	TimeMean        float64   `json:"time_mean_s"`
	ElapsedMs       int64     `json:"elapsed_ms"`
}

// Repository persists simulation runs in the simulations database
// (simulation_runs table). Per-trial samples and the attempt matrix are not
// stored.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "simulation").Logger(),
	}
}

// Save stores res under a fresh id
func (r *Repository) Save(ctx context.Context, res *Result) (*Run, error) {
	summary := res.Summary()
	blob, err := msgpack.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode simulation result: %w", err)
	}

	run := &Run{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Result:    summary,
	}

	var fixed sql.NullFloat64
	if res.Params.UseFixedFidelity {
		fixed = sql.NullFloat64{Float64: res.Params.FixedFidelity, Valid: true}
	}

	total := 0.0
	for _, l := range res.LinkLengths {
		total += l
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO simulation_runs
		(id, created_at, seed, trials, total_length_km, repeaters, mode,
		 fixed_fidelity, final_fidelity, degenerate, success_rate_mean,
		 attempts_mean, time_mean, elapsed_ms, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt.UnixMilli(),
		strconv.FormatUint(res.Seed, 10),
		res.Params.Trials,
		total,
		res.Params.Repeaters,
		string(res.Params.Mode()),
		fixed,
		nullableFloat(res.FinalFidelity()),
		res.Degenerate,
		res.OverallSuccessRate.Mean,
		res.BottleneckAttempts.Mean,
		res.BottleneckTime.Mean,
		res.Elapsed.Milliseconds(),
		blob,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert simulation run: %w", err)
	}

	r.log.Debug().Str("id", run.ID).Msg("Stored simulation run")
	return run, nil
}

// Get loads a stored run with its full result bundle
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	var (
		createdAt int64
		blob      []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT created_at, result FROM simulation_runs WHERE id = ?`, id,
	).Scan(&createdAt, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation run: %w", err)
	}

	var res Result
	if err := msgpack.Unmarshal(blob, &res); err != nil {
		return nil, fmt.Errorf("failed to decode simulation run %s: %w", id, err)
	}

	return &Run{
		ID:        id,
		CreatedAt: time.UnixMilli(createdAt).UTC(),
		Result:    &res,
	}, nil
}

// List returns the most recent runs first. limit <= 0 returns all runs.
func (r *Repository) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, seed, trials, total_length_km, repeaters, mode,
		       fixed_fidelity, final_fidelity, degenerate, success_rate_mean,
		       attempts_mean, time_mean, elapsed_ms
		FROM simulation_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation runs: %w", err)
	}
	defer rows.Close()

	summaries := []RunSummary{}
	for rows.Next() {
		var (
			s         RunSummary
			createdAt int64
			seed      string
			fixed     sql.NullFloat64
			final     sql.NullFloat64
		)
		if err := rows.Scan(
			&s.ID,
			&createdAt,
			&seed,
			&s.Trials,
			&s.TotalLength,
			&s.Repeaters,
			&s.Mode,
			&fixed,
			&final,
			&s.Degenerate,
			&s.SuccessRateMean,
			&s.AttemptsMean,
			&s.TimeMean,
			&s.ElapsedMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan simulation run: %w", err)
		}

		s.CreatedAt = time.UnixMilli(createdAt).UTC()
		if s.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid seed %q for run %s: %w", seed, s.ID, err)
		}
		if fixed.Valid {
			s.FixedFidelity = &fixed.Float64
		}
		if final.Valid {
			s.FinalFidelity = &final.Float64
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate simulation runs: %w", err)
	}

	return summaries, nil
}

// Delete removes a stored run
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM simulation_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete simulation run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count returns the number of stored runs
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM simulation_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count simulation runs: %w", err)
	}
	return n, nil
}

// nullableFloat stores NaN as NULL.
func nullableFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}
