package db

import (
	"fmt"

	"github.com/livinlefevreloca/hookdeploy/internal/jobs"
)

// =============================================================================
// Job Record Store
// =============================================================================

var _ jobs.Store = (*JobStore)(nil)

// JobStore implements jobs.Store on top of a SQL database. Each transition
// is a read-check-write inside one transaction, so concurrent readers see
// either the old or the new record, never a mix.
type JobStore struct {
	db    *DB
	clock jobs.Clock
}

// NewJobStore creates the job_records table if needed and returns a store
func NewJobStore(db *DB, clock jobs.Clock) (*JobStore, error) {
	if err := db.EnsureSchema(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = jobs.SystemClock{}
	}
	return &JobStore{db: db, clock: clock}, nil
}

// Create inserts a queued record
func (s *JobStore) Create(eventType, repository string) (jobs.Record, error) {
	rec := jobs.NewRecord(eventType, repository, s.clock.Now())

	query := s.db.Rebind(`
		INSERT INTO job_records (` + jobRecordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	row := rowFromRecord(rec)
	_, err := s.db.Exec(query,
		row.ID, row.Status, row.EventType, row.Repository, row.CreatedAt,
		row.StartedAt, row.CompletedAt, row.FailedAt,
		row.FailedCommand, row.Error, row.Reason,
	)
	if err != nil {
		return jobs.Record{}, fmt.Errorf("failed to insert job record: %w", err)
	}

	return rec, nil
}

// Transition moves a record to a new status
func (s *JobStore) Transition(id string, to jobs.Status, opts ...jobs.TransitionOption) (jobs.Record, error) {
	var result jobs.Record

	err := s.db.WithTransaction(func(tx *Tx) error {
		current, err := tx.getJobRecord(id, s.db.driver == DriverPostgres)
		if err != nil {
			return err
		}
		result = current

		updated := current.Clone()
		if err := jobs.ApplyTransition(&updated, to, s.clock.Now(), opts...); err != nil {
			return err
		}
		if err := tx.updateJobRecord(updated); err != nil {
			return err
		}

		result = updated
		return nil
	})

	if IsNotFound(err) {
		return jobs.Record{}, jobs.ErrNotFound
	}
	return result, err
}

// Get retrieves a record by job ID
func (s *JobStore) Get(id string) (jobs.Record, error) {
	var row jobRecordRow
	query := s.db.Rebind(`SELECT ` + jobRecordColumns + ` FROM job_records WHERE id = ?`)

	if err := s.db.Get(&row, query, id); err != nil {
		if IsNotFound(err) {
			return jobs.Record{}, jobs.ErrNotFound
		}
		return jobs.Record{}, err
	}

	return row.toRecord()
}

// List retrieves all records in creation order
func (s *JobStore) List() ([]jobs.Record, error) {
	var rows []jobRecordRow
	query := `SELECT ` + jobRecordColumns + ` FROM job_records ORDER BY seq ASC`

	if err := s.db.Select(&rows, query); err != nil {
		return nil, err
	}

	// Return empty slice instead of nil
	records := make([]jobs.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// getJobRecord reads one record inside a transaction, taking a row lock
// where the driver supports it
func (tx *Tx) getJobRecord(id string, forUpdate bool) (jobs.Record, error) {
	query := `SELECT ` + jobRecordColumns + ` FROM job_records WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row jobRecordRow
	if err := tx.Get(&row, tx.Rebind(query), id); err != nil {
		return jobs.Record{}, err
	}
	return row.toRecord()
}

// updateJobRecord writes every mutable column of a record
func (tx *Tx) updateJobRecord(rec jobs.Record) error {
	query := tx.Rebind(`
		UPDATE job_records
		SET status = ?, started_at = ?, completed_at = ?, failed_at = ?,
			failed_command = ?, error = ?, reason = ?
		WHERE id = ?
	`)

	row := rowFromRecord(rec)
	result, err := tx.Exec(query,
		row.Status, row.StartedAt, row.CompletedAt, row.FailedAt,
		row.FailedCommand, row.Error, row.Reason, row.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
