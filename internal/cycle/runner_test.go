package cycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nghyane/opsramp-reports/internal/analysis"
	"github.com/nghyane/opsramp-reports/internal/auth"
	"github.com/nghyane/opsramp-reports/internal/config"
	"github.com/nghyane/opsramp-reports/internal/resilience"
	"github.com/nghyane/opsramp-reports/internal/schedule"
)

var testDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	// cancelAt cancels the run on the given sleep call (1-based).
	cancelAt int
	cancel   context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.cancelAt > 0 && len(c.sleeps) == c.cancelAt {
		c.cancel()
		return ctx.Err()
	}
	c.now = c.now.Add(d)
	return nil
}

type fakeTokens struct {
	calls int
	errAt map[int]error
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.calls++
	if err, ok := f.errAt[f.calls]; ok {
		return "", err
	}
	return "tok", nil
}

type createCall struct {
	name   string
	window schedule.Window
}

type fakeAPI struct {
	creates    []createCall
	deletes    []string
	createErrs map[int]error
	deleteErrs map[string]error
	onDelete   func(id string)
}

func (f *fakeAPI) Create(_ context.Context, token, name string, w schedule.Window) (analysis.Record, error) {
	n := len(f.creates)
	f.creates = append(f.creates, createCall{name: name, window: w})
	if token != "tok" {
		return analysis.Record{}, fmt.Errorf("unexpected token %q", token)
	}
	if err, ok := f.createErrs[n]; ok {
		return analysis.Record{}, err
	}
	return analysis.Record{ID: fmt.Sprintf("a%d", n), Name: name}, nil
}

func (f *fakeAPI) Delete(_ context.Context, _, id string) (int, error) {
	f.deletes = append(f.deletes, id)
	if f.onDelete != nil {
		f.onDelete(id)
	}
	if err, ok := f.deleteErrs[id]; ok {
		return statusOf(err), err
	}
	return http.StatusNoContent, nil
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.BaseURL = "https://api.example.com"
	cfg.TenantID = "tenant-1"
	cfg.Auth.ClientID = "cid"
	cfg.Auth.ClientSecret = "secret"
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func quietLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

func newRunner(cfg *config.Config, tokens TokenSource, api AnalysisAPI, clock *fakeClock, opts ...Option) *Runner {
	base := []Option{
		WithLogger(quietLogger()),
		WithClock(clock.Now),
		WithSleep(clock.Sleep),
	}
	return New(cfg, tokens, api, append(base, opts...)...)
}

func TestRunDaily_CreatesEveryHourThenDeletesInOrder(t *testing.T) {
	clock := &fakeClock{now: testDay.Add(30 * time.Second)}
	api := &fakeAPI{}
	r := newRunner(testConfig(), &fakeTokens{}, api, clock)

	rep := r.RunDaily(context.Background(), testDay)

	if len(api.creates) != 24 {
		t.Fatalf("expected 24 creates, got %d", len(api.creates))
	}
	for h, c := range api.creates {
		want := schedule.WindowFor(testDay, 0, h, time.Hour)
		if c.window != want {
			t.Errorf("create %d window = %s, want %s", h, c.window, want)
		}
	}
	if api.creates[0].name != "hourly-perf-report-2025-03-10-2300-0000" {
		t.Errorf("unexpected first name %q", api.creates[0].name)
	}
	if api.creates[23].name != "hourly-perf-report-2025-03-10-2200-2300" {
		t.Errorf("unexpected last name %q", api.creates[23].name)
	}

	if len(clock.sleeps) != 23 {
		t.Fatalf("expected 23 waits, got %d", len(clock.sleeps))
	}
	if clock.sleeps[0] != time.Hour-30*time.Second {
		t.Errorf("first wait = %s", clock.sleeps[0])
	}
	for i, d := range clock.sleeps[1:] {
		if d != time.Hour {
			t.Errorf("wait %d = %s, want 1h", i+1, d)
		}
	}

	if len(api.deletes) != 24 {
		t.Fatalf("expected 24 deletes, got %d", len(api.deletes))
	}
	for i, id := range api.deletes {
		if want := fmt.Sprintf("a%d", i); id != want {
			t.Errorf("delete %d = %q, want %q", i, id, want)
		}
	}
	if rep.Failed() != 0 || rep.Interrupted {
		t.Errorf("unexpected report %s", rep.Summary())
	}
	if got := rep.Summary(); got != "mode=daily created=24/24 deleted=24/24 failed=0" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestRunDaily_LateStartDoesNotWait(t *testing.T) {
	clock := &fakeClock{now: testDay.Add(48 * time.Hour)}
	api := &fakeAPI{}
	r := newRunner(testConfig(), &fakeTokens{}, api, clock)

	r.RunDaily(context.Background(), testDay)

	if len(api.creates) != 24 {
		t.Errorf("expected 24 creates, got %d", len(api.creates))
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("expected no waits for past windows, got %d", len(clock.sleeps))
	}
}

func TestRunDaily_FailuresAreNotFatal(t *testing.T) {
	clock := &fakeClock{now: testDay}
	tokens := &fakeTokens{errAt: map[int]error{
		3: &auth.Error{Status: http.StatusUnauthorized, Body: "bad creds"},
	}}
	api := &fakeAPI{createErrs: map[int]error{
		5: &analysis.APIError{Method: http.MethodPost, Status: http.StatusBadRequest, Body: "invalid"},
		9: errors.New("connection reset"),
	}}
	r := newRunner(testConfig(), tokens, api, clock)

	rep := r.RunDaily(context.Background(), testDay)

	if len(rep.Creates) != 24 {
		t.Fatalf("expected 24 create outcomes, got %d", len(rep.Creates))
	}
	wantKinds := map[int]ErrorKind{2: KindAuth, 6: KindAPI, 10: KindNetwork}
	for h, o := range rep.Creates {
		if got := o.Kind(); got != wantKinds[h] {
			t.Errorf("hour %d kind = %q, want %q", h, got, wantKinds[h])
		}
	}
	if rep.Creates[2].Status != http.StatusUnauthorized {
		t.Errorf("auth failure status = %d", rep.Creates[2].Status)
	}
	if rep.Creates[6].Status != http.StatusBadRequest {
		t.Errorf("api failure status = %d", rep.Creates[6].Status)
	}
	if len(rep.Created()) != 21 {
		t.Errorf("expected 21 created, got %d", len(rep.Created()))
	}
	if len(api.deletes) != 21 {
		t.Errorf("expected 21 deletes, got %d", len(api.deletes))
	}
	if rep.Failed() != 3 {
		t.Errorf("Failed() = %d, want 3", rep.Failed())
	}
}

func TestRunDaily_CleanupDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.CleanupAfterAll = false
	api := &fakeAPI{}
	r := newRunner(cfg, &fakeTokens{}, api, &fakeClock{now: testDay})

	rep := r.RunDaily(context.Background(), testDay)

	if len(api.deletes) != 0 || len(rep.Deletes) != 0 {
		t.Errorf("expected no deletes, got %d", len(api.deletes))
	}
	if len(rep.Created()) != 24 {
		t.Errorf("expected 24 created, got %d", len(rep.Created()))
	}
}

func TestRunDaily_CustomSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.IntervalHours = 2
	cfg.Schedule.TotalReportsPerDay = 3
	cfg.Schedule.DailyStartHourUTC = 6
	api := &fakeAPI{}
	r := newRunner(cfg, &fakeTokens{}, api, &fakeClock{now: testDay})

	r.RunDaily(context.Background(), testDay)

	wantNames := []string{
		"hourly-perf-report-2025-03-10-0400-0600",
		"hourly-perf-report-2025-03-10-0600-0800",
		"hourly-perf-report-2025-03-10-0800-1000",
	}
	if len(api.creates) != len(wantNames) {
		t.Fatalf("expected %d creates, got %d", len(wantNames), len(api.creates))
	}
	for i, want := range wantNames {
		if api.creates[i].name != want {
			t.Errorf("create %d = %q, want %q", i, api.creates[i].name, want)
		}
	}
}

func TestRunDaily_DryRun(t *testing.T) {
	cfg := testConfig()
	clock := &fakeClock{now: testDay}
	api := analysis.NewDryRunClient(cfg, quietLogger())
	r := newRunner(cfg, auth.Static("tok"), api, clock, WithDryRun(true))

	rep := r.RunDaily(context.Background(), testDay)

	if len(clock.sleeps) != 0 {
		t.Errorf("dry run must not wait, got %d sleeps", len(clock.sleeps))
	}
	created := rep.Created()
	if len(created) != 24 {
		t.Fatalf("expected 24 synthetic records, got %d", len(created))
	}
	for _, rec := range created {
		if !strings.HasPrefix(rec.ID, "dry-run-") {
			t.Errorf("unexpected id %q", rec.ID)
		}
	}
	if len(rep.Deletes) != 24 {
		t.Errorf("expected 24 simulated deletes, got %d", len(rep.Deletes))
	}
}

func TestRunDaily_InterruptedSkipsCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := &fakeClock{now: testDay, cancelAt: 3, cancel: cancel}
	api := &fakeAPI{}
	r := newRunner(testConfig(), &fakeTokens{}, api, clock)

	rep := r.RunDaily(ctx, testDay)

	if !rep.Interrupted {
		t.Error("expected interrupted report")
	}
	if len(api.creates) != 3 {
		t.Errorf("expected 3 creates before interruption, got %d", len(api.creates))
	}
	if len(api.deletes) != 0 {
		t.Errorf("interrupted run must not delete, got %d", len(api.deletes))
	}
	if got := strings.Join(rep.CreatedIDs(), ","); got != "a0,a1,a2" {
		t.Errorf("CreatedIDs() = %q", got)
	}
}

func TestRunDaily_InterruptedDuringCleanupReportsLeftovers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig()
	cfg.Schedule.TotalReportsPerDay = 4

	var logs strings.Builder
	logger := log.New()
	logger.SetOutput(&logs)
	api := &fakeAPI{onDelete: func(string) { cancel() }}
	r := newRunner(cfg, &fakeTokens{}, api, &fakeClock{now: testDay}, WithLogger(log.NewEntry(logger)))

	rep := r.RunDaily(ctx, testDay)

	if got := strings.Join(api.deletes, ","); got != "a0" {
		t.Errorf("deletes = %q, want a0", got)
	}
	if !rep.Interrupted {
		t.Error("expected interrupted report")
	}
	if !strings.Contains(rep.Summary(), "interrupted=true") {
		t.Errorf("Summary() = %q", rep.Summary())
	}
	if !strings.Contains(logs.String(), "--cleanup a1 a2 a3") {
		t.Errorf("expected undeleted ids in the log:\n%s", logs.String())
	}
}

func TestRunBurst(t *testing.T) {
	cfg := testConfig()
	clock := &fakeClock{now: testDay}
	api := &fakeAPI{}
	r := newRunner(cfg, &fakeTokens{}, api, clock)

	rep := r.RunBurst(context.Background(), testDay)

	if len(api.creates) != 24 {
		t.Fatalf("expected 24 creates, got %d", len(api.creates))
	}
	if len(api.deletes) != 0 {
		t.Errorf("burst must not delete, got %d", len(api.deletes))
	}
	if len(clock.sleeps) != 23 {
		t.Errorf("expected 23 pauses, got %d", len(clock.sleeps))
	}
	for i, d := range clock.sleeps {
		if d != cfg.BurstDelay() {
			t.Errorf("pause %d = %s, want %s", i, d, cfg.BurstDelay())
		}
	}
	if rep.Mode != ModeBurst || len(rep.Created()) != 24 {
		t.Errorf("unexpected report %s", rep.Summary())
	}
}

func TestRunBurst_DryRunDoesNotPause(t *testing.T) {
	cfg := testConfig()
	clock := &fakeClock{now: testDay}
	r := newRunner(cfg, auth.Static("tok"), analysis.NewDryRunClient(cfg, quietLogger()), clock, WithDryRun(true))

	rep := r.RunBurst(context.Background(), testDay)

	if len(clock.sleeps) != 0 {
		t.Errorf("expected no pauses, got %d", len(clock.sleeps))
	}
	if len(rep.Created()) != 24 {
		t.Errorf("expected 24 created, got %d", len(rep.Created()))
	}
}

func TestCleanup_ContinuesPastFailures(t *testing.T) {
	api := &fakeAPI{deleteErrs: map[string]error{
		"a2": &analysis.APIError{Method: http.MethodDelete, Status: http.StatusNotFound, Body: "gone"},
	}}
	r := newRunner(testConfig(), &fakeTokens{}, api, &fakeClock{now: testDay})

	rep := r.Cleanup(context.Background(), []string{"a1", "a2", "a3"})

	if got := strings.Join(api.deletes, ","); got != "a1,a2,a3" {
		t.Errorf("deletes = %q, want a1,a2,a3", got)
	}
	if rep.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", rep.Failed())
	}
	if rep.Deletes[1].Status != http.StatusNotFound || rep.Deletes[1].Kind() != KindAPI {
		t.Errorf("unexpected outcome %+v", rep.Deletes[1])
	}
	if rep.Deletes[0].Status != http.StatusNoContent {
		t.Errorf("first delete status = %d", rep.Deletes[0].Status)
	}
}

func TestCleanup_Empty(t *testing.T) {
	api := &fakeAPI{}
	r := newRunner(testConfig(), &fakeTokens{}, api, &fakeClock{now: testDay})

	rep := r.Cleanup(context.Background(), nil)
	if len(api.deletes) != 0 || rep.Failed() != 0 || rep.Interrupted {
		t.Errorf("unexpected report %s", rep.Summary())
	}
}

func TestRetry_TransientCreateIsRepeated(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.TotalReportsPerDay = 1
	api := &fakeAPI{createErrs: map[int]error{
		0: &analysis.APIError{Method: http.MethodPost, Status: http.StatusServiceUnavailable},
	}}
	r := newRunner(cfg, &fakeTokens{}, api, &fakeClock{now: testDay},
		WithRetry(resilience.RetryConfig{MaxRetries: 2}))

	rep := r.RunDaily(context.Background(), testDay)

	if len(api.creates) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(api.creates))
	}
	if len(rep.Created()) != 1 || rep.Created()[0].ID != "a1" {
		t.Errorf("unexpected created records %+v", rep.Created())
	}
}

func TestRetry_AuthFailureIsNotRepeated(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.TotalReportsPerDay = 1
	cfg.Schedule.CleanupAfterAll = false
	tokens := &fakeTokens{errAt: map[int]error{1: &auth.Error{Status: http.StatusUnauthorized}}}
	api := &fakeAPI{}
	r := newRunner(cfg, tokens, api, &fakeClock{now: testDay},
		WithRetry(resilience.RetryConfig{MaxRetries: 3}))

	rep := r.RunDaily(context.Background(), testDay)

	if tokens.calls != 1 {
		t.Errorf("expected 1 token request, got %d", tokens.calls)
	}
	if len(api.creates) != 0 {
		t.Errorf("expected no create calls, got %d", len(api.creates))
	}
	if rep.Creates[0].Kind() != KindAuth {
		t.Errorf("kind = %q", rep.Creates[0].Kind())
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "network", err: errors.New("dial tcp: refused"), want: true},
		{name: "canceled", err: fmt.Errorf("post: %w", context.Canceled), want: false},
		{name: "auth", err: &auth.Error{Status: 500}, want: false},
		{name: "too many requests", err: &analysis.APIError{Status: 429}, want: true},
		{name: "server error", err: &analysis.APIError{Status: 502}, want: true},
		{name: "bad request", err: &analysis.APIError{Status: 400}, want: false},
		{name: "missing id", err: &analysis.APIError{Status: 200}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
