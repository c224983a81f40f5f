package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"studiobook/backend/internal/domain"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// Publisher writes the feed to a file, on demand or on a cron schedule.
type Publisher struct {
	src      SnapshotSource
	path     string
	opts     FeedOptions
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
	schedule *cron.Cron
}

func NewPublisher(src SnapshotSource, path string, opts FeedOptions, loc *time.Location, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Publisher{
		src:     src,
		path:    path,
		opts:    opts,
		loc:     loc,
		timeout: 30 * time.Second,
		now:     time.Now,
		log:     log.With(slog.String("component", "calendar.publisher")),
	}
}

func (p *Publisher) Publish(ctx context.Context) error {
	snap, err := p.src.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	opts := p.opts
	opts.Now = p.now().In(p.loc)
	return writeAtomic(p.path, []byte(BuildFeed(snap, opts)))
}

// Start publishes once and then on every tick of spec, a standard five-field
// cron expression or a descriptor such as "@every 15m".
func (p *Publisher) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(p.loc))
	if _, err := c.AddFunc(spec, func() { p.run(ctx) }); err != nil {
		return fmt.Errorf("invalid publish schedule %q: %w", spec, err)
	}
	p.run(ctx)
	c.Start()
	p.schedule = c
	p.log.Info("calendar publishing scheduled", slog.String("path", p.path), slog.String("schedule", spec))
	return nil
}

// Stop halts the schedule and waits for a running publish to finish.
func (p *Publisher) Stop() {
	if p.schedule == nil {
		return
	}
	<-p.schedule.Stop().Done()
}

func (p *Publisher) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	if err := p.Publish(ctx); err != nil {
		p.log.Error("calendar publish failed", slog.Any("err", err), slog.String("path", p.path))
		return
	}
	p.log.Debug("calendar published", slog.String("path", p.path), slog.Duration("took", time.Since(start)))
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
