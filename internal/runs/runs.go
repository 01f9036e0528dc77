// Package runs persists booking runs and their attempts.
package runs

import (
	"context"
	"time"

	"github.com/example/slotbooker/internal/db"
	"github.com/example/slotbooker/internal/domain/booking"
)

const (
	StatusRunning = "running"
	StatusBooked  = "booked"
	StatusFailed  = "failed"
)

type Run struct {
	ID               string
	Status           string
	AttemptsMade     int
	ClassSlot        string
	TimeSlot         string
	ArtifactLocation string
	LastError        *string
	StartedAt        time.Time
	FinishedAt       *time.Time
}

type Attempt struct {
	RunID      string
	Attempt    int
	Outcome    string
	Error      *string
	ClassSlot  string
	TimeSlot   string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Create(ctx context.Context, runID string, startedAt time.Time) error {
	return r.db.Exec(ctx, `INSERT INTO runs(id, status, started_at) VALUES ($1,$2,$3)`, runID, StatusRunning, startedAt.UTC())
}

func (r *Repo) MarkAttempt(ctx context.Context, runID string, rec booking.AttemptRecord) error {
	return r.db.InTx(ctx, func(tx db.Execer) error {
		if err := tx.Exec(ctx, `
INSERT INTO run_attempts(run_id, attempt, outcome, error, class_slot, time_slot, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			runID, rec.Attempt, rec.Outcome.String(), errText(rec.Err), rec.ClassSlot, rec.TimeSlot, rec.StartedAt.UTC(), rec.FinishedAt.UTC()); err != nil {
			return err
		}
		return tx.Exec(ctx, `UPDATE runs SET attempts_made=$2, last_error=$3 WHERE id=$1`, runID, rec.Attempt, errText(rec.Err))
	})
}

func (r *Repo) Finish(ctx context.Context, runID string, outcome booking.RunOutcome, artifactLocation string) error {
	return r.db.Exec(ctx, `
UPDATE runs
SET status=$2, attempts_made=$3, class_slot=$4, time_slot=$5, artifact_location=$6, last_error=$7, finished_at=now()
WHERE id=$1`,
		runID, StatusFor(outcome), outcome.AttemptsMade, outcome.LastAttempt.ClassSlot, outcome.LastAttempt.TimeSlot,
		artifactLocation, errText(outcome.LastAttempt.Err))
}

const runColumns = `id::text,status,attempts_made,class_slot,time_slot,artifact_location,last_error,started_at,finished_at`

func (r *Repo) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if err != nil {
		return Run{}, db.WrapNotFound(err)
	}
	return run, nil
}

func (r *Repo) Attempts(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := r.db.Query(ctx, `
SELECT run_id::text, attempt, outcome, error, class_slot, time_slot, started_at, finished_at
FROM run_attempts
WHERE run_id=$1
ORDER BY attempt ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.RunID, &a.Attempt, &a.Outcome, &a.Error, &a.ClassSlot, &a.TimeSlot, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanRun(row db.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Status, &run.AttemptsMade, &run.ClassSlot, &run.TimeSlot,
		&run.ArtifactLocation, &run.LastError, &run.StartedAt, &run.FinishedAt)
	return run, err
}

// StatusFor maps a finished run onto its stored status.
func StatusFor(o booking.RunOutcome) string {
	if o.Booked {
		return StatusBooked
	}
	return StatusFailed
}

func errText(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
