package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"emr_etl/internal/orchestrator"
)

type Run struct {
	RunID      string
	ConfigPath string
	ClusterID  string
	CreatedOn  time.Time
}

type Submission struct {
	RunID          string
	StepIndex      int
	StepName       string
	JobID          string
	Script         string
	InputLocation  string
	OutputLocation string
	Status         string
	SubmittedOn    *time.Time
	FinishedOn     *time.Time
	UpdatedOn      time.Time
}

// Ledger is the audit trail of runs and their job submissions.
type Ledger struct {
	rdb, rwdb *sql.DB
}

func NewLedger(rdb, rwdb *sql.DB) *Ledger {
	return &Ledger{rdb, rwdb}
}

func (l *Ledger) CreateRun(ctx context.Context, configPath, clusterID string) (*Run, error) {
	r := &Run{RunID: uuid.NewString(), ConfigPath: configPath, ClusterID: clusterID}
	query := `insert into runs (
		run_id,
		config_path,
		cluster_id
	)
	values ($1, $2, $3)
	returning created_on`
	if err := sqlscan.Get(ctx, l.rwdb, r, query, r.RunID, r.ConfigPath, r.ClusterID); err != nil {
		return nil, err
	}
	return r, nil
}

func (l *Ledger) ReadRun(ctx context.Context, runID string) (*Run, error) {
	r := new(Run)
	if err := sqlscan.Get(ctx, l.rdb, r, "select * from runs where run_id = $1", runID); err != nil {
		return nil, err
	}
	return r, nil
}

func (l *Ledger) ListRuns(ctx context.Context) ([]*Run, error) {
	var runs []*Run
	err := sqlscan.Select(ctx, l.rdb, &runs, "select * from runs order by created_on desc, run_id")
	return runs, err
}

// RecordSubmission inserts or updates the row for (runID, s.Index).
func (l *Ledger) RecordSubmission(ctx context.Context, runID string, s *orchestrator.Submission) error {
	query := `insert into submissions (
		run_id,
		step_index,
		step_name,
		job_id,
		script,
		input_location,
		output_location,
		status,
		submitted_on,
		finished_on
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	on conflict (run_id, step_index) do update set
		job_id = excluded.job_id,
		status = excluded.status,
		submitted_on = excluded.submitted_on,
		finished_on = excluded.finished_on,
		updated_on = current_timestamp`
	_, err := l.rwdb.ExecContext(ctx, query,
		runID,
		s.Index,
		s.Name,
		s.JobID,
		s.Script,
		s.Input,
		s.Output,
		string(s.Status),
		nullableTime(s.SubmittedAt),
		nullableTime(s.FinishedAt),
	)
	return err
}

func (l *Ledger) ListSubmissions(ctx context.Context, runID string) ([]*Submission, error) {
	var subs []*Submission
	err := sqlscan.Select(ctx, l.rdb, &subs,
		"select * from submissions where run_id = $1 order by step_index", runID)
	return subs, err
}

// Recorder binds the ledger to one run so the orchestrator can report into
// it.
func (l *Ledger) Recorder(runID string) orchestrator.Recorder {
	return &runRecorder{ledger: l, runID: runID}
}

type runRecorder struct {
	ledger *Ledger
	runID  string
}

func (r *runRecorder) Record(ctx context.Context, s *orchestrator.Submission) error {
	return r.ledger.RecordSubmission(ctx, r.runID, s)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(dbTimestampLayout)
}
