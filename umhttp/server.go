// package umhttp serves the run log over HTTP, and runs uploaded images.
package umhttp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"myceliumweb.org/um/runlog"
	"myceliumweb.org/um/umimage"
	"myceliumweb.org/um/umvm"
)

type Config struct {
	// MaxSteps bounds every run.  Requests may ask for less.
	MaxSteps uint64
	// MaxOutput is the number of bytes a run may output before it faults.
	MaxOutput int
	// MaxSegmentWords is passed to the machine
	MaxSegmentWords uint32
}

func DefaultConfig() Config {
	return Config{
		MaxSteps:        1 << 30,
		MaxOutput:       1 << 20,
		MaxSegmentWords: 1 << 24,
	}
}

func Serve(ctx context.Context, l net.Listener, db *sqlx.DB, cfg Config) error {
	return New(db, cfg).Serve(ctx, l)
}

type Server struct {
	db    *sqlx.DB
	cfg   Config
	app   *fiber.App
	bgCtx context.Context
}

func New(db *sqlx.DB, cfg Config) *Server {
	s := &Server{db: db, cfg: cfg, bgCtx: context.Background()}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	v1 := app.Group("/v1")
	v1.Get("/runs", s.listRuns)
	v1.Get("/runs/:id", s.getRun)
	v1.Post("/run", s.postRun)
	s.app = app
	return s
}

// Serve handles requests on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.bgCtx = ctx
	logctx.Infof(ctx, "serving on %v", l.Addr())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			logctx.Error(ctx, "shutting down", zap.Error(err))
		}
	}()
	err := s.app.Listener(l)
	cancel()
	<-stopped
	return err
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	ctx := s.bgCtx
	limit := c.QueryInt("limit", 50)
	var recs []runlog.Record
	var err error
	if fp := c.Query("fingerprint"); fp != "" {
		recs, err = runlog.ListByFingerprint(ctx, s.db, fp, limit)
	} else {
		recs, err = runlog.List(ctx, s.db, limit)
	}
	if err != nil {
		return err
	}
	return c.JSON(recs)
}

func (s *Server) getRun(c *fiber.Ctx) error {
	ctx := s.bgCtx
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	rec, err := runlog.Get(ctx, s.db, id)
	if err != nil {
		var nf runlog.ErrNotFound
		if errors.As(err, &nf) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(rec)
}

type runResponse struct {
	Run    runlog.Record `json:"run"`
	Output string        `json:"output"`
	Stats  umvm.Stats    `json:"stats"`
}

// postRun runs the image in the request body.
// The query parameters are max_steps, input (bytes for the Input operation), and name.
func (s *Server) postRun(c *fiber.Ctx) error {
	ctx := s.bgCtx
	img, err := umimage.FromBytes(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	maxSteps := s.cfg.MaxSteps
	if n := c.QueryInt("max_steps", 0); n > 0 && (maxSteps == 0 || uint64(n) < maxSteps) {
		maxSteps = uint64(n)
	}
	out := &limitedBuffer{max: s.cfg.MaxOutput}
	cfg := umvm.DefaultConfig()
	cfg.Input = strings.NewReader(c.Query("input"))
	cfg.Output = out
	cfg.MaxSegmentWords = s.cfg.MaxSegmentWords

	res, err := runlog.Exec(ctx, s.db, c.Query("name", "upload"), img, cfg, maxSteps)
	if err != nil {
		return err
	}
	return c.JSON(runResponse{
		Run:    res.Record,
		Output: string(out.buf),
		Stats:  res.Machine.Stats(),
	})
}

var errOutputLimit = errors.New("output limit reached")

// limitedBuffer fails writes past max bytes.  max <= 0 is unlimited.
type limitedBuffer struct {
	buf []byte
	max int
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	if lb.max > 0 && len(lb.buf)+len(p) > lb.max {
		return 0, errOutputLimit
	}
	lb.buf = append(lb.buf, p...)
	return len(p), nil
}
