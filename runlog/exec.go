package runlog

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.brendoncarroll.net/tai64"
	"go.uber.org/zap"

	"myceliumweb.org/um/umimage"
	"myceliumweb.org/um/umvm"
)

// Outcome is the result of Exec
type Outcome struct {
	Record  Record
	Machine *umvm.Machine
	// Err is the error returned by the machine. nil means it halted.
	Err error
}

// Exec runs img until it halts, faults, or takes maxSteps steps (0 is unlimited),
// then records the outcome in db.
// The returned error is only for failing to write the record; see Outcome.Err for the run.
func Exec(ctx context.Context, db *sqlx.DB, name string, img *umimage.Image, cfg umvm.Config, maxSteps uint64) (*Outcome, error) {
	vm := umvm.New(img.Words, cfg)
	startedAt := tai64.Now()
	start := time.Now()
	runErr := vm.Exec(ctx, maxSteps)
	rec := Record{
		Image:       name,
		Fingerprint: img.Fingerprint.String(),
		Status:      StatusOf(runErr),
		Steps:       int64(vm.Steps()),
		StartedAt:   Timestamp(startedAt),
		Duration:    int64(time.Since(start)),
	}
	if rec.Status == StatusFault {
		rec.Fault = runErr.Error()
	}
	out := &Outcome{Machine: vm, Err: runErr}
	// the run is recorded even if ctx has been cancelled
	id, err := Insert(context.WithoutCancel(ctx), db, rec)
	if err != nil {
		return out, err
	}
	rec.ID = id
	out.Record = rec
	logctx.Info(ctx, "run recorded",
		zap.Int64("id", id),
		zap.String("image", name),
		zap.String("status", string(rec.Status)),
		zap.Int64("steps", rec.Steps),
	)
	return out, nil
}
