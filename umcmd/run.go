package umcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/star"
	"golang.org/x/sync/errgroup"

	"myceliumweb.org/um/runlog"
	"myceliumweb.org/um/umimage"
	"myceliumweb.org/um/umvm"
)

var run = star.Command{
	Metadata: star.Metadata{
		Short: "run a program image with this process's stdin and stdout",
	},
	Flags: append([]star.IParam{statsParam, dumpParam}, machineFlags...),
	Pos:   []star.IParam{imageParam},
	F: func(c star.Context) error {
		ctx, done, err := newContext(c)
		if err != nil {
			return err
		}
		defer done()
		db := DBParam.Load(c)
		defer db.Close()

		p := imageParam.Load(c)
		img, err := imageCache.Get(ctx, p)
		if err != nil {
			return err
		}
		cfg := machineConfig(c)
		cfg.Input = c.StdIn
		cfg.Output = unbuffered{c.StdOut}
		out, err := runlog.Exec(ctx, db, p, img, cfg, maxStepsParam.Load(c))
		if err != nil {
			return err
		}
		if err := report(unbuffered{c.StdErr}, out, statsParam.Load(c)); err != nil {
			return err
		}
		if p := dumpParam.Load(c); p != "" {
			if err := dumpProgram(p, out.Machine); err != nil {
				return err
			}
		}
		return out.Err
	},
}

// report writes the statistics, if requested, and the backtrace of a fault to w.
func report(w io.Writer, out *runlog.Outcome, stats bool) error {
	if stats {
		if _, err := out.Machine.Stats().WriteTo(w); err != nil {
			return err
		}
	}
	var fault *umvm.Fault
	if errors.As(out.Err, &fault) {
		if _, err := io.WriteString(w, fault.Backtrace()); err != nil {
			return err
		}
	}
	return nil
}

// dumpProgram writes the program segment of vm to an image file at p.
func dumpProgram(p string, vm *umvm.Machine) error {
	prog, _ := vm.Segment(0)
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if err := umimage.Write(f, prog); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var runAll = star.Command{
	Metadata: star.Metadata{
		Short: "run program images concurrently, each with empty input, and print their outputs",
	},
	Flags: machineFlags,
	Pos:   []star.IParam{imagesParam},
	F: func(c star.Context) error {
		ctx, done, err := newContext(c)
		if err != nil {
			return err
		}
		defer done()
		db := DBParam.Load(c)
		defer db.Close()

		paths := imagesParam.LoadAll(c)
		imgs := make([]*umimage.Image, len(paths))
		for i, p := range paths {
			if imgs[i], err = imageCache.Get(ctx, p); err != nil {
				return err
			}
		}
		results, err := execAll(ctx, db, paths, imgs, machineConfig(c), maxStepsParam.Load(c))
		if err != nil {
			return err
		}
		var failed int
		for _, res := range results {
			rec := res.Outcome.Record
			c.Printf("== %s %s steps=%d\n", rec.Image, rec.Status, rec.Steps)
			if _, err := c.StdOut.Write(res.Output); err != nil {
				return err
			}
			if res.Outcome.Err != nil {
				failed++
				c.Printf("\n%v\n", res.Outcome.Err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d runs did not halt", failed, len(results))
		}
		return nil
	},
}

type execResult struct {
	Outcome *runlog.Outcome
	Output  []byte
}

// execAll runs each image on its own machine, concurrently.
// A run which does not halt does not stop the others.
func execAll(ctx context.Context, db *sqlx.DB, names []string, imgs []*umimage.Image, cfg umvm.Config, maxSteps uint64) ([]execResult, error) {
	results := make([]execResult, len(imgs))
	eg, ctx := errgroup.WithContext(ctx)
	for i := range imgs {
		i := i
		eg.Go(func() error {
			out := bytes.Buffer{}
			cfg := cfg
			cfg.Input = nil
			cfg.Output = &out
			res, err := runlog.Exec(ctx, db, names[i], imgs[i], cfg, maxSteps)
			if err != nil {
				return err
			}
			results[i] = execResult{Outcome: res, Output: out.Bytes()}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// unbuffered flushes w after every write, if w is buffered.
type unbuffered struct {
	w io.Writer
}

func (u unbuffered) Write(p []byte) (int, error) {
	n, err := u.w.Write(p)
	if err != nil {
		return n, err
	}
	if f, ok := u.w.(interface{ Flush() error }); ok {
		err = f.Flush()
	}
	return n, err
}
