// Package cycle drives a report cycle: one analysis per window, paced to the
// hour boundaries (or back to back in burst mode), followed by an optional
// bulk deletion.
package cycle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nghyane/opsramp-reports/internal/analysis"
	"github.com/nghyane/opsramp-reports/internal/config"
	"github.com/nghyane/opsramp-reports/internal/resilience"
	"github.com/nghyane/opsramp-reports/internal/schedule"
)

const tracerName = "github.com/nghyane/opsramp-reports/internal/cycle"

// TokenSource hands out a bearer token valid for the next request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AnalysisAPI creates and deletes analyses.
type AnalysisAPI interface {
	Create(ctx context.Context, token, name string, w schedule.Window) (analysis.Record, error)
	Delete(ctx context.Context, token, id string) (int, error)
}

type Runner struct {
	cfg    *config.Config
	tokens TokenSource
	api    AnalysisAPI
	log    *log.Entry
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	dryRun bool
	retry  resilience.RetryConfig
	tracer trace.Tracer
}

type Option func(*Runner)

func WithLogger(entry *log.Entry) Option {
	return func(r *Runner) { r.log = entry }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSleep replaces the wait between windows. It must return ctx.Err()
// when the context is cancelled.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithDryRun skips every wait. Callers pair it with a dry-run API client.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Runner) { r.retry = cfg }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

func New(cfg *config.Config, tokens TokenSource, api AnalysisAPI, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		tokens: tokens,
		api:    api,
		log:    log.NewEntry(log.StandardLogger()),
		now:    time.Now,
		sleep:  resilience.WaitWithContext,
		retry:  resilience.NoRetry,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	r.retry.ShouldRetry = Retryable
	if r.retry.OnRetry == nil {
		r.retry.OnRetry = func(attempt int, err error) {
			r.log.WithError(err).Warnf("attempt %d failed, retrying in %s", attempt, r.retry.Delay)
		}
	}
	return r
}

// Retryable reports whether err is a transient failure: a transport error
// or a 429/5xx answer. Token failures are never retried.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch Classify(err) {
	case KindAuth:
		return false
	case KindAPI:
		status := statusOf(err)
		return status == http.StatusTooManyRequests || status >= 500
	default:
		return true
	}
}

// RunDaily creates one analysis per window of the cycle starting on day,
// waiting for each following window to close before creating it. When
// cleanup_after_all is set every created analysis is deleted at the end.
func (r *Runner) RunDaily(ctx context.Context, day time.Time) Report {
	s := r.cfg.Schedule
	windows := schedule.Windows(day, s.DailyStartHourUTC, s.TotalReportsPerDay, r.cfg.Interval())
	rep := Report{Mode: ModeDaily, Day: schedule.Day(day)}

	r.log.Infof("starting daily cycle for %s: %d reports every %s from %02d:00 UTC",
		rep.Day.Format("2006-01-02"), len(windows), r.cfg.Interval(), s.DailyStartHourUTC)

	for h, w := range windows {
		if ctx.Err() != nil {
			rep.Interrupted = true
			break
		}
		rep.Creates = append(rep.Creates, r.create(ctx, h, rep.Day, w))

		if h == len(windows)-1 || r.dryRun {
			continue
		}
		wait := schedule.WaitUntil(r.now(), windows[h+1].End)
		if wait <= 0 {
			continue
		}
		r.log.Infof("waiting %s until %s for report %d/%d",
			wait.Round(time.Second), windows[h+1].End.Format(time.RFC3339), h+2, len(windows))
		if err := r.sleep(ctx, wait); err != nil {
			rep.Interrupted = true
			break
		}
	}

	if rep.Interrupted {
		r.logInterrupted(rep)
		return rep
	}
	if s.CleanupAfterAll {
		ids := rep.CreatedIDs()
		rep.Deletes = r.deleteAll(ctx, ids)
		r.checkUndeleted(&rep, ids)
	} else if ids := rep.CreatedIDs(); len(ids) > 0 {
		r.log.Infof("cleanup disabled, keeping %d analyses: %s", len(ids), strings.Join(ids, " "))
	}
	r.log.Infof("daily cycle finished: %s", rep.Summary())
	return rep
}

// RunBurst creates every window of the cycle back to back, pausing only
// burst_delay_seconds between creates. Nothing is deleted; the created ids
// are logged for a later cleanup run.
func (r *Runner) RunBurst(ctx context.Context, day time.Time) Report {
	s := r.cfg.Schedule
	windows := schedule.Windows(day, s.DailyStartHourUTC, s.TotalReportsPerDay, r.cfg.Interval())
	rep := Report{Mode: ModeBurst, Day: schedule.Day(day)}

	r.log.Infof("starting burst run for %s: %d reports", rep.Day.Format("2006-01-02"), len(windows))

	for h, w := range windows {
		if ctx.Err() != nil {
			rep.Interrupted = true
			break
		}
		rep.Creates = append(rep.Creates, r.create(ctx, h, rep.Day, w))

		if h == len(windows)-1 || r.dryRun {
			continue
		}
		if err := r.sleep(ctx, r.cfg.BurstDelay()); err != nil {
			rep.Interrupted = true
			break
		}
	}

	if rep.Interrupted {
		r.logInterrupted(rep)
		return rep
	}
	if ids := rep.CreatedIDs(); len(ids) > 0 {
		r.log.Infof("created analyses (remove with --cleanup): %s", strings.Join(ids, " "))
	}
	r.log.Infof("burst run finished: %s", rep.Summary())
	return rep
}

// Cleanup deletes the given analyses. A failed delete does not stop the
// remaining ones.
func (r *Runner) Cleanup(ctx context.Context, ids []string) Report {
	rep := Report{Mode: ModeCleanup, Day: schedule.Day(r.now())}
	rep.Deletes = r.deleteAll(ctx, ids)
	r.checkUndeleted(&rep, ids)
	r.log.Infof("cleanup finished: %s", rep.Summary())
	return rep
}

func (r *Runner) create(ctx context.Context, h int, day time.Time, w schedule.Window) Outcome {
	name := schedule.ReportName(r.cfg.Report.ReportNamePrefix, day, w)
	entry := r.log.WithFields(log.Fields{"hour": h, "name": name})
	entry.Infof("creating analysis for %s", w)

	ctx, span := r.tracer.Start(ctx, "analysis.create", trace.WithAttributes(
		attribute.String("tenant.id", r.cfg.TenantID),
		attribute.Int("report.hour", h),
		attribute.String("report.name", name),
	))
	defer span.End()

	exec := resilience.NewExecutor[analysis.Record](r.retry)
	rec, err := exec.Execute(ctx, func() (analysis.Record, error) {
		token, errToken := r.tokens.Token(ctx)
		if errToken != nil {
			return analysis.Record{}, errToken
		}
		return r.api.Create(ctx, token, name, w)
	})

	out := Outcome{Op: OpCreate, Index: h, Name: name, Err: err}
	if err != nil {
		out.Status = statusOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logFailure(entry, out)
		return out
	}
	out.ID = rec.ID
	if rec.Name != "" {
		out.Name = rec.Name
	}
	span.SetAttributes(attribute.String("analysis.id", rec.ID))
	entry.WithField("id", rec.ID).Info("analysis created")
	return out
}

func (r *Runner) deleteAll(ctx context.Context, ids []string) []Outcome {
	if len(ids) == 0 {
		return nil
	}
	r.log.Infof("deleting %d analyses", len(ids))
	out := make([]Outcome, 0, len(ids))
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		out = append(out, r.delete(ctx, i, id))
	}
	return out
}

// checkUndeleted marks rep interrupted when deleteAll stopped before the
// end of ids and logs the ids left behind.
func (r *Runner) checkUndeleted(rep *Report, ids []string) {
	if len(rep.Deletes) >= len(ids) {
		return
	}
	rep.Interrupted = true
	remaining := ids[len(rep.Deletes):]
	r.log.Warnf("%s run interrupted during cleanup, %d analyses not deleted; remove them with --cleanup %s",
		rep.Mode, len(remaining), strings.Join(remaining, " "))
}

func (r *Runner) delete(ctx context.Context, i int, id string) Outcome {
	entry := r.log.WithField("id", id)

	ctx, span := r.tracer.Start(ctx, "analysis.delete", trace.WithAttributes(
		attribute.String("tenant.id", r.cfg.TenantID),
		attribute.String("analysis.id", id),
	))
	defer span.End()

	exec := resilience.NewExecutor[int](r.retry)
	status, err := exec.Execute(ctx, func() (int, error) {
		token, errToken := r.tokens.Token(ctx)
		if errToken != nil {
			return 0, errToken
		}
		return r.api.Delete(ctx, token, id)
	})

	out := Outcome{Op: OpDelete, Index: i, ID: id, Status: status, Err: err}
	if out.Status == 0 {
		out.Status = statusOf(err)
	}
	span.SetAttributes(attribute.Int("http.status_code", out.Status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logFailure(entry, out)
		return out
	}
	entry.WithField("status", status).Info("analysis deleted")
	return out
}

func (r *Runner) logFailure(entry *log.Entry, out Outcome) {
	fields := log.Fields{"op": out.Op, "kind": out.Kind()}
	if out.Status != 0 {
		fields["status"] = out.Status
	}
	if body := bodyOf(out.Err); body != "" {
		fields["body"] = strings.TrimSpace(body)
	}
	entry.WithFields(fields).WithError(out.Err).Error("analysis request failed")
}

func (r *Runner) logInterrupted(rep Report) {
	ids := rep.CreatedIDs()
	if len(ids) == 0 {
		r.log.Warnf("%s run interrupted, no analyses were created", rep.Mode)
		return
	}
	r.log.Warnf("%s run interrupted, skipping automatic deletion of %d analyses; remove them with --cleanup %s",
		rep.Mode, len(ids), strings.Join(ids, " "))
}
