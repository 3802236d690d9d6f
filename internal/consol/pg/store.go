// Package pg persists consolidation runs in PostgreSQL. Run documents are
// stored as versioned JSON alongside queryable columns; the in-progress
// slot per (group, period) is enforced with a unique constraint.
package pg

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianfin/meridian/internal/consol"
)

// Store implements consol.RunStore on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs the run store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type runHandle struct {
	pool      *pgxpool.Pool
	groupID   string
	periodKey string
}

// Release frees the (group, period) slot claimed by TryBeginRun.
func (h *runHandle) Release(ctx context.Context) error {
	_, err := h.pool.Exec(ctx,
		`DELETE FROM consolidation_run_slots WHERE group_id = $1 AND period_key = $2`,
		h.groupID, h.periodKey)
	return err
}

// TryBeginRun claims the single active slot for the group and period. The
// unique constraint on (group_id, period_key) makes the claim atomic across
// processes; a duplicate insert means another run is already active.
func (s *Store) TryBeginRun(ctx context.Context, groupID string, period consol.Period) (consol.RunHandle, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("pg: run store not initialised")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO consolidation_run_slots (group_id, period_key, claimed_at) VALUES ($1, $2, now())`,
		groupID, period.Key())
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return nil, &consol.ConflictError{
				GroupID: groupID,
				Period:  period,
				Reason:  "a run is already pending or in progress",
			}
		}
		return nil, err
	}
	return &runHandle{pool: s.pool, groupID: groupID, periodKey: period.Key()}, nil
}

// HasCompletedRun backs the idempotence guard.
func (s *Store) HasCompletedRun(ctx context.Context, groupID string, period consol.Period) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM consolidation_runs
			WHERE group_id = $1 AND period_key = $2 AND status = $3
		)`,
		groupID, period.Key(), consol.RunCompleted).Scan(&exists)
	return exists, err
}

// Save upserts the run document. The status and period columns mirror the
// document for indexed lookups.
func (s *Store) Save(ctx context.Context, run consol.ConsolidationRun) error {
	doc, err := consol.EncodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO consolidation_runs (id, group_id, period_key, status, initiated_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, doc = EXCLUDED.doc`,
		run.ID, run.GroupID, run.Period.Key(), run.Status, run.InitiatedAt, doc)
	return err
}

// Load fetches a run by id.
func (s *Store) Load(ctx context.Context, runID string) (consol.ConsolidationRun, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM consolidation_runs WHERE id = $1`, runID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return consol.ConsolidationRun{}, consol.ErrRunNotFound
		}
		return consol.ConsolidationRun{}, err
	}
	return consol.DecodeRun(doc)
}

// ListRuns returns the run history for a group, newest first.
func (s *Store) ListRuns(ctx context.Context, groupID string) ([]consol.ConsolidationRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM consolidation_runs WHERE group_id = $1 ORDER BY initiated_at DESC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []consol.ConsolidationRun
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		run, err := consol.DecodeRun(doc)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Audit records terminal runs in the audit log. Failures are logged and
// swallowed so audit never fails a run.
type Audit struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAudit constructs the audit sink.
func NewAudit(pool *pgxpool.Pool, logger *slog.Logger) *Audit {
	return &Audit{pool: pool, logger: logger}
}

// RunFinished appends one audit row for a terminal run.
func (a *Audit) RunFinished(ctx context.Context, run consol.ConsolidationRun) {
	if a == nil || a.pool == nil {
		return
	}
	_, err := a.pool.Exec(ctx,
		`INSERT INTO consolidation_audit_log (run_id, group_id, period_key, status, initiated_by, error_message, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		run.ID, run.GroupID, run.Period.Key(), run.Status, run.InitiatedBy, run.ErrorMessage)
	if err != nil && a.logger != nil {
		a.logger.Warn("audit write failed",
			slog.String("run_id", run.ID),
			slog.Any("error", err))
	}
}
