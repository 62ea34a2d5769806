// package runlog records the outcome of program runs in a SQL database.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/tai64"

	"myceliumweb.org/um/internal/dbutil"
	"myceliumweb.org/um/umvm"
)

type Status string

const (
	StatusHalted   Status = "halted"
	StatusFault    Status = "fault"
	StatusLimit    Status = "limit"
	StatusCanceled Status = "canceled"
)

// Record is one run of a program image.
type Record struct {
	ID          int64  `db:"id" json:"id"`
	Image       string `db:"image" json:"image"`
	Fingerprint string `db:"fingerprint" json:"fingerprint"`
	Status      Status `db:"status" json:"status"`
	Fault       string `db:"fault" json:"fault,omitempty"`
	Steps       int64  `db:"steps" json:"steps"`
	// StartedAt is a TAI64N label, see Timestamp
	StartedAt string `db:"started_at" json:"started_at"`
	Duration  int64  `db:"duration_ns" json:"duration_ns"`
}

// Timestamp formats ts as a TAI64N label: '@' followed by the seconds and nanoseconds in hex.
// Labels sort in time order.
func Timestamp(ts tai64.TAI64N) string {
	return fmt.Sprintf("@%016x%08x", ts.Seconds, ts.Nanoseconds)
}

type ErrNotFound struct {
	ID int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("run %d not found", e.ID)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		status TEXT NOT NULL,
		fault TEXT NOT NULL DEFAULT '',
		steps INTEGER NOT NULL,
		started_at TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL
	) STRICT`,
	`CREATE INDEX IF NOT EXISTS runs_fingerprint ON runs (fingerprint)`,
}

// Setup creates the tables used by the run log
func Setup(ctx context.Context, db *sqlx.DB) error {
	return dbutil.Migrate(ctx, db, schema)
}

// Open opens the database at p and sets it up
func Open(ctx context.Context, p string) (*sqlx.DB, error) {
	db, err := dbutil.Open(p)
	if err != nil {
		return nil, err
	}
	if err := Setup(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Insert adds rec to the log and returns its ID.  rec.ID is ignored.
func Insert(ctx context.Context, db *sqlx.DB, rec Record) (id int64, err error) {
	err = db.GetContext(ctx, &id, `INSERT INTO runs (image, fingerprint, status, fault, steps, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		rec.Image, rec.Fingerprint, string(rec.Status), rec.Fault, rec.Steps, rec.StartedAt, rec.Duration,
	)
	return id, err
}

const selectRuns = `SELECT id, image, fingerprint, status, fault, steps, started_at, duration_ns FROM runs`

func Get(ctx context.Context, db *sqlx.DB, id int64) (*Record, error) {
	var rec Record
	if err := db.GetContext(ctx, &rec, selectRuns+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound{ID: id}
		}
		return nil, err
	}
	return &rec, nil
}

// List returns up to limit records, most recent first
func List(ctx context.Context, db *sqlx.DB, limit int) ([]Record, error) {
	recs := []Record{}
	if err := db.SelectContext(ctx, &recs, selectRuns+` ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	return recs, nil
}

// ListByFingerprint returns up to limit runs of the image with fingerprint fp, most recent first
func ListByFingerprint(ctx context.Context, db *sqlx.DB, fp string, limit int) ([]Record, error) {
	recs := []Record{}
	if err := db.SelectContext(ctx, &recs, selectRuns+` WHERE fingerprint = ? ORDER BY id DESC LIMIT ?`, fp, limit); err != nil {
		return nil, err
	}
	return recs, nil
}

// StatusOf classifies the error returned by umvm.Machine.Exec
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusHalted
	case errors.Is(err, umvm.ErrStepLimit):
		return StatusLimit
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusFault
	}
}
