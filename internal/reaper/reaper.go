// Package reaper removes love pages whose retention window has elapsed,
// together with the media they reference.
package reaper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	applog "github.com/call-me-mahi/valentine/internal/log"
	"github.com/call-me-mahi/valentine/internal/love"
)

// DefaultSchedule runs the sweep daily at 03:00.
const DefaultSchedule = "0 3 * * *"

// PageStore is the slice of the page store the reaper needs.
type PageStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]love.Page, error)
	Delete(ctx context.Context, id uint) error
}

// MediaDeleter removes a stored media object by id.
type MediaDeleter interface {
	Delete(ctx context.Context, id string) error
}

// Options wires the reaper.
type Options struct {
	Store     PageStore
	Media     MediaDeleter
	Schedule  string
	Location  *time.Location
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	Now       func() time.Time
}

// Result summarises one sweep.
type Result struct {
	Expired       int
	Deleted       int
	MediaFailures int
	Failures      int
	Duration      time.Duration
}

// Reaper deletes expired pages on a cron schedule.
type Reaper struct {
	store     PageStore
	media     MediaDeleter
	schedule  string
	location  *time.Location
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	now       func() time.Time

	mu sync.Mutex // serialises RunOnce

	lifecycle sync.Mutex
	cron      *cron.Cron
	done      chan struct{} // closed when the current scheduler stops
}

// New validates the schedule and builds a reaper.
func New(opts Options) (*Reaper, error) {
	if opts.Store == nil {
		return nil, eris.New("page store is required")
	}

	schedule := strings.TrimSpace(opts.Schedule)
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, eris.Wrapf(err, "invalid reaper schedule: %s", schedule)
	}

	location := opts.Location
	if location == nil {
		location = time.UTC
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	return &Reaper{
		store:     opts.Store,
		media:     opts.Media,
		schedule:  schedule,
		location:  location,
		logger:    logger,
		sentryHub: opts.SentryHub,
		now:       now,
	}, nil
}

// Start registers the sweep with a cron scheduler. The scheduler stops when
// ctx is cancelled or Stop is called.
func (r *Reaper) Start(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.cron != nil {
		return eris.New("reaper already started")
	}

	c := cron.New(
		cron.WithLocation(r.location),
		cron.WithLogger(cron.PrintfLogger(r.printf())),
		cron.WithChain(cron.Recover(cron.PrintfLogger(r.printf())), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(r.schedule, func() { r.RunOnce(ctx) }); err != nil {
		return eris.Wrapf(err, "scheduling reaper: %s", r.schedule)
	}

	c.Start()
	done := make(chan struct{})
	r.cron = c
	r.done = done

	r.entry().WithFields(logrus.Fields{
		"schedule": r.schedule,
		"timezone": r.location.String(),
	}).Info("expiry reaper started")

	go func() {
		select {
		case <-ctx.Done():
			r.halt(c)
		case <-done:
		}
	}()

	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	r.halt(nil)
}

// halt stops the running scheduler. A non-nil only restricts it to that
// scheduler so a watcher from an earlier Start cannot stop a later one.
func (r *Reaper) halt(only *cron.Cron) {
	r.lifecycle.Lock()
	c := r.cron
	if c == nil || (only != nil && c != only) {
		r.lifecycle.Unlock()
		return
	}
	r.cron = nil
	close(r.done)
	r.done = nil
	r.lifecycle.Unlock()

	<-c.Stop().Done()
	r.entry().Info("expiry reaper stopped")
}

// RunOnce performs one sweep. Individual failures are logged and counted;
// the sweep carries on with the remaining pages.
func (r *Reaper) RunOnce(ctx context.Context) (result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			result.Failures++
			r.report(eris.New(fmt.Sprintf("reaper panic: %v", recovered)), logrus.Fields{}, "expiry sweep panicked")
		}

		result.Duration = time.Since(start)
		runsTotal.Inc()
		durationSeconds.Observe(result.Duration.Seconds())
	}()

	now := r.now().UTC()
	pages, err := r.store.ListExpired(ctx, now)
	if err != nil {
		result.Failures++
		r.report(err, logrus.Fields{"cutoff": now.Format(time.RFC3339)}, "listing expired pages")
		return result
	}

	result.Expired = len(pages)
	if len(pages) == 0 {
		r.entry().Debug("no expired pages")
		return result
	}

	for i := range pages {
		page := &pages[i]
		fields := logrus.Fields{"slug": page.Slug, "page_id": page.ID}

		result.MediaFailures += r.deleteMedia(ctx, page, fields)

		if err := r.store.Delete(ctx, page.ID); err != nil {
			result.Failures++
			recordFailuresTotal.Inc()
			r.report(err, fields, "deleting expired page")
			continue
		}

		result.Deleted++
		pagesDeletedTotal.Inc()
	}

	r.entry().WithFields(logrus.Fields{
		"expired":        result.Expired,
		"deleted":        result.Deleted,
		"media_failures": result.MediaFailures,
		"failures":       result.Failures,
	}).Info("expired pages reaped")

	return result
}

func (r *Reaper) deleteMedia(ctx context.Context, page *love.Page, fields logrus.Fields) int {
	if r.media == nil {
		return 0
	}

	failures := 0
	for _, photo := range page.Photos {
		if strings.TrimSpace(photo.ID) == "" {
			continue
		}
		if err := r.media.Delete(ctx, photo.ID); err != nil {
			failures++
			mediaFailuresTotal.Inc()
			r.entry().WithFields(fields).WithFields(logrus.Fields{
				"media_id": photo.ID,
				"error":    err.Error(),
			}).Warn("deleting page media failed")
		}
	}
	return failures
}

func (r *Reaper) report(err error, fields logrus.Fields, message string) {
	r.entry().WithFields(fields).WithField("error", err.Error()).Error(message)
	if r.sentryHub != nil {
		r.sentryHub.CaptureException(err)
	}
}

func (r *Reaper) entry() *logrus.Entry {
	return r.logger.WithField("component", "reaper")
}

func (r *Reaper) printf() *logrus.Entry {
	return r.entry().WithField("source", "cron")
}
