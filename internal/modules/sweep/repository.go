package sweep

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/database"
)

// Status is the lifecycle state of a sweep.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned for an unknown sweep id.
var ErrNotFound = errors.New("sweep not found")

// Point is the outcome of one simulation in a sweep.
type Point struct {
	Index           int     `json:"index"`
	Value           float64 `json:"value"`
	Variant         Variant `json:"variant"`
	Seed            uint64  `json:"seed"`
	FinalFidelity   float64 `json:"final_fidelity"`
	SuccessRateMean float64 `json:"success_rate_mean"`
	AttemptsMean    float64 `json:"attempts_mean"`
	TimeMean        float64 `json:"time_mean_s"`
	MetricValue     float64 `json:"metric_value"`
}

// Sweep is a stored sweep with its points in index order.
type Sweep struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Plan        Plan       `json:"plan"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Points      []Point    `json:"points"`
}

// Repository persists sweeps in the simulations database (sweeps and
// sweep_points tables)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new sweep repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "sweep").Logger(),
	}
}

// Create inserts a sweep header
func (r *Repository) Create(ctx context.Context, s *Sweep) error {
	plan, err := json.Marshal(s.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode sweep plan: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sweeps (id, created_at, kind, metric, status, plan)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		s.ID,
		s.CreatedAt.UnixMilli(),
		string(s.Plan.Kind),
		string(s.Plan.Metric),
		string(s.Status),
		string(plan),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sweep: %w", err)
	}
	return nil
}

// Finish stores the points and final status of a sweep in one transaction
func (r *Repository) Finish(ctx context.Context, s *Sweep) error {
	var completedAt sql.NullInt64
	if s.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: s.CompletedAt.UnixMilli(), Valid: true}
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sweeps SET status = ?, completed_at = ?, error = ? WHERE id = ?
		`, string(s.Status), completedAt, nullableString(s.Error), s.ID)
		if err != nil {
			return fmt.Errorf("failed to update sweep: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO sweep_points
			(sweep_id, idx, value, variant, seed, final_fidelity, success_rate_mean,
			 attempts_mean, time_mean, metric_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare point insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range s.Points {
			final := sql.NullFloat64{Float64: p.FinalFidelity, Valid: !math.IsNaN(p.FinalFidelity)}
			if _, err := stmt.ExecContext(ctx,
				s.ID,
				p.Index,
				p.Value,
				string(p.Variant),
				strconv.FormatUint(p.Seed, 10),
				final,
				p.SuccessRateMean,
				p.AttemptsMean,
				p.TimeMean,
				p.MetricValue,
			); err != nil {
				return fmt.Errorf("failed to insert sweep point %d: %w", p.Index, err)
			}
		}
		return nil
	})
}

// Get loads a sweep and its points
func (r *Repository) Get(ctx context.Context, id string) (*Sweep, error) {
	var (
		s           Sweep
		createdAt   int64
		completedAt sql.NullInt64
		status      string
		plan        string
		errText     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at, completed_at, status, plan, error FROM sweeps WHERE id = ?
	`, id).Scan(&s.ID, &createdAt, &completedAt, &status, &plan, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep: %w", err)
	}

	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		s.CompletedAt = &t
	}
	s.Status = Status(status)
	s.Error = errText.String
	if err := json.Unmarshal([]byte(plan), &s.Plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan of sweep %s: %w", id, err)
	}

	points, err := r.points(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Points = points
	return &s, nil
}

func (r *Repository) points(ctx context.Context, id string) ([]Point, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT idx, value, variant, seed, final_fidelity, success_rate_mean,
		       attempts_mean, time_mean, metric_value
		FROM sweep_points WHERE sweep_id = ? ORDER BY idx
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep points: %w", err)
	}
	defer rows.Close()

	points := []Point{}
	for rows.Next() {
		var (
			p       Point
			variant string
			seed    string
			final   sql.NullFloat64
		)
		if err := rows.Scan(&p.Index, &p.Value, &variant, &seed, &final,
			&p.SuccessRateMean, &p.AttemptsMean, &p.TimeMean, &p.MetricValue); err != nil {
			return nil, fmt.Errorf("failed to scan sweep point: %w", err)
		}
		p.Variant = Variant(variant)
		if p.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid seed %q in sweep %s: %w", seed, id, err)
		}
		p.FinalFidelity = math.NaN()
		if final.Valid {
			p.FinalFidelity = final.Float64
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sweep points: %w", err)
	}
	return points, nil
}

// List returns the most recent sweeps first, without points
func (r *Repository) List(ctx context.Context, limit int) ([]Sweep, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, completed_at, status, plan, error
		FROM sweeps ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweeps: %w", err)
	}
	defer rows.Close()

	sweeps := []Sweep{}
	for rows.Next() {
		var (
			s           Sweep
			createdAt   int64
			completedAt sql.NullInt64
			status      string
			plan        string
			errText     sql.NullString
		)
		if err := rows.Scan(&s.ID, &createdAt, &completedAt, &status, &plan, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		s.CreatedAt = time.UnixMilli(createdAt).UTC()
		if completedAt.Valid {
			t := time.UnixMilli(completedAt.Int64).UTC()
			s.CompletedAt = &t
		}
		s.Status = Status(status)
		s.Error = errText.String
		if err := json.Unmarshal([]byte(plan), &s.Plan); err != nil {
			return nil, fmt.Errorf("failed to decode plan of sweep %s: %w", s.ID, err)
		}
		sweeps = append(sweeps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sweeps: %w", err)
	}
	return sweeps, nil
}

// Count returns the number of stored sweeps
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sweeps`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sweeps: %w", err)
	}
	return n, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
