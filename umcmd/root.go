// package umcmd implements the um command line tool.
package umcmd

import (
	"context"
	"net"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"myceliumweb.org/um/runlog"
	"myceliumweb.org/um/umhttp"
	"myceliumweb.org/um/umimage"
	"myceliumweb.org/um/umvm"
)

func Root() star.Command {
	return root
}

var root = star.NewDir(star.Metadata{
	Short: "Universal Machine",
}, map[star.Symbol]star.Command{
	"run":     run,
	"run-all": runAll,
	"inspect": inspect,
	"history": history,
	"serve":   serve,
})

// images are shared between the commands run by a process
var imageCache = umimage.NewCache(64)

var DBParam = star.Param[*sqlx.DB]{
	Name:    "db",
	Default: star.Ptr(":memory:"),
	Parse: func(x string) (*sqlx.DB, error) {
		return runlog.Open(context.Background(), x)
	},
}

var imageParam = star.Param[string]{Name: "image", Parse: star.ParseString}

var imagesParam = star.Param[string]{
	Name:     "image",
	Repeated: true,
	Parse:    star.ParseString,
}

var maxStepsParam = star.Param[uint64]{
	Name:    "max-steps",
	Default: star.Ptr("0"),
	Parse: func(x string) (uint64, error) {
		return strconv.ParseUint(x, 10, 64)
	},
}

var traceParam = star.Param[int]{
	Name:    "trace",
	Default: star.Ptr(strconv.Itoa(umvm.DefaultTraceDepth)),
	Parse:   strconv.Atoi,
}

var maxSegmentParam = star.Param[uint32]{
	Name:    "max-segment",
	Default: star.Ptr("0"),
	Parse: func(x string) (uint32, error) {
		n, err := strconv.ParseUint(x, 10, 32)
		return uint32(n), err
	},
}

var statsParam = star.Param[bool]{
	Name:    "stats",
	Default: star.Ptr("false"),
	Parse:   strconv.ParseBool,
}

// dumpParam names a file which receives segment 0 after the run
var dumpParam = star.Param[string]{
	Name:    "dump",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}

var logLevelParam = star.Param[zapcore.Level]{
	Name:    "log-level",
	Default: star.Ptr("warn"),
	Parse:   zapcore.ParseLevel,
}

var limitParam = star.Param[int]{
	Name:    "n",
	Default: star.Ptr("20"),
	Parse:   strconv.Atoi,
}

var ListenerParam = star.Param[net.Listener]{
	Name:    "l",
	Default: star.Ptr("127.0.0.1:6667"),
	Parse: func(x string) (net.Listener, error) {
		return net.Listen("tcp", x)
	},
}

// machineFlags are accepted by every command which runs images
var machineFlags = []star.IParam{DBParam, maxStepsParam, traceParam, maxSegmentParam, logLevelParam}

func machineConfig(c star.Context) umvm.Config {
	return umvm.Config{
		TraceDepth:      traceParam.Load(c),
		MaxSegmentWords: maxSegmentParam.Load(c),
	}
}

// newContext returns a context carrying a logger which writes to stderr,
// leaving stdout to the machine.
func newContext(c star.Context) (context.Context, func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(logLevelParam.Load(c))
	l, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	ctx := logctx.NewContext(c.Context, l)
	return ctx, func() { l.Sync() }, nil
}

var serve = star.Command{
	Metadata: star.Metadata{
		Short: "serve the run history, and run uploaded images, over HTTP",
	},
	Flags: []star.IParam{DBParam, ListenerParam, maxStepsParam, maxSegmentParam, logLevelParam},
	F: func(c star.Context) error {
		ctx, done, err := newContext(c)
		if err != nil {
			return err
		}
		defer done()
		db := DBParam.Load(c)
		defer db.Close()
		lis := ListenerParam.Load(c)

		cfg := umhttp.DefaultConfig()
		if n := maxStepsParam.Load(c); n > 0 {
			cfg.MaxSteps = n
		}
		if n := maxSegmentParam.Load(c); n > 0 {
			cfg.MaxSegmentWords = n
		}
		return umhttp.Serve(ctx, lis, db, cfg)
	},
}
