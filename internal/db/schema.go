package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/livinlefevreloca/hookdeploy/internal/jobs"
)

// sqliteSchema and postgresSchema differ only in how the insertion sequence
// is generated; seq gives List a stable creation order when timestamps tie.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS job_records (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	status         TEXT NOT NULL,
	event_type     TEXT NOT NULL DEFAULT '',
	repository     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	started_at     TIMESTAMP NULL,
	completed_at   TIMESTAMP NULL,
	failed_at      TIMESTAMP NULL,
	failed_command TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT ''
)`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS job_records (
	seq            BIGSERIAL PRIMARY KEY,
	id             TEXT NOT NULL UNIQUE,
	status         TEXT NOT NULL,
	event_type     TEXT NOT NULL DEFAULT '',
	repository     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	started_at     TIMESTAMPTZ NULL,
	completed_at   TIMESTAMPTZ NULL,
	failed_at      TIMESTAMPTZ NULL,
	failed_command TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT ''
)`

// EnsureSchema creates the job_records table if it does not exist
func (db *DB) EnsureSchema() error {
	var schema string
	switch db.driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return fmt.Errorf("db: no schema for driver %s", db.driver)
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create job_records table: %w", err)
	}
	return nil
}

// jobRecordRow is the row shape of job_records
type jobRecordRow struct {
	ID            string       `db:"id"`
	Status        string       `db:"status"`
	EventType     string       `db:"event_type"`
	Repository    string       `db:"repository"`
	CreatedAt     time.Time    `db:"created_at"`
	StartedAt     sql.NullTime `db:"started_at"`
	CompletedAt   sql.NullTime `db:"completed_at"`
	FailedAt      sql.NullTime `db:"failed_at"`
	FailedCommand string       `db:"failed_command"`
	Error         string       `db:"error"`
	Reason        string       `db:"reason"`
}

const jobRecordColumns = `id, status, event_type, repository, created_at, started_at,
	completed_at, failed_at, failed_command, error, reason`

func rowFromRecord(rec jobs.Record) jobRecordRow {
	return jobRecordRow{
		ID:            rec.ID,
		Status:        rec.Status.String(),
		EventType:     rec.EventType,
		Repository:    rec.Repository,
		CreatedAt:     rec.CreatedAt,
		StartedAt:     nullTime(rec.StartedAt),
		CompletedAt:   nullTime(rec.CompletedAt),
		FailedAt:      nullTime(rec.FailedAt),
		FailedCommand: rec.FailedCommand,
		Error:         rec.Error,
		Reason:        rec.Reason,
	}
}

func (r jobRecordRow) toRecord() (jobs.Record, error) {
	status, err := jobs.ParseStatus(r.Status)
	if err != nil {
		return jobs.Record{}, fmt.Errorf("job %s: %w", r.ID, err)
	}

	return jobs.Record{
		ID:            r.ID,
		Status:        status,
		EventType:     r.EventType,
		Repository:    r.Repository,
		CreatedAt:     r.CreatedAt,
		StartedAt:     timePtr(r.StartedAt),
		CompletedAt:   timePtr(r.CompletedAt),
		FailedAt:      timePtr(r.FailedAt),
		FailedCommand: r.FailedCommand,
		Error:         r.Error,
		Reason:        r.Reason,
	}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
