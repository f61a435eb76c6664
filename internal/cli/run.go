package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nghyane/opsramp-reports/internal/analysis"
	"github.com/nghyane/opsramp-reports/internal/auth"
	"github.com/nghyane/opsramp-reports/internal/buildinfo"
	"github.com/nghyane/opsramp-reports/internal/cycle"
	"github.com/nghyane/opsramp-reports/internal/logging"
	"github.com/nghyane/opsramp-reports/internal/resilience"
	"github.com/nghyane/opsramp-reports/internal/telemetry"
	"github.com/nghyane/opsramp-reports/internal/transport"
)

const (
	serviceName = "report-scheduler"
	tracerName  = "github.com/nghyane/opsramp-reports"
	// dryRunToken stands in for a bearer token when nothing is sent.
	dryRunToken = "dry-run-token"
)

// now is swapped in tests.
var now = time.Now

func run(ctx context.Context, cmd *cobra.Command, opts *runOptions, args []string) error {
	result, err := Bootstrap(BootstrapOptions{
		ConfigPath: opts.configPath,
		LogLevel:   opts.logLevel,
		Output:     cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer result.Close()

	cfg := result.Config
	entry := logging.ForClient(result.Logger, cfg.ClientName)
	entry.Infof("report-scheduler %s, config %s, mode %s, dry-run %v",
		buildinfo.Version, result.ConfigFilePath, opts.mode(), opts.dryRun)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing := setupTracing(ctx, opts.dryRun, entry)
	defer shutdownTracing()

	httpClient := transport.NewClient(transport.Options{
		VerifyTLS: cfg.SSLVerify,
		Timeout:   cfg.HTTPTimeout(),
	})

	var (
		tokens cycle.TokenSource
		api    cycle.AnalysisAPI
	)
	if opts.dryRun {
		tokens = auth.Static(dryRunToken)
		api = analysis.NewDryRunClient(cfg, entry.WithField("component", "analysis"))
	} else {
		tokens = auth.NewTokenManager(cfg.TokenURL(), cfg.Auth.ClientID, cfg.Auth.ClientSecret, cfg.RefreshMargin(),
			auth.WithHTTPClient(httpClient),
			auth.WithLogger(entry.WithField("component", "auth")),
		)
		api = analysis.NewClient(cfg,
			analysis.WithHTTPClient(httpClient),
			analysis.WithLogger(entry.WithField("component", "analysis")),
		)
	}

	runner := cycle.New(cfg, tokens, api,
		cycle.WithLogger(entry.WithField("component", "cycle")),
		cycle.WithDryRun(opts.dryRun),
		cycle.WithRetry(resilience.RetryConfig{
			MaxRetries: cfg.HTTP.MaxRetries,
			Delay:      cfg.RetryDelay(),
		}),
		cycle.WithTracer(tp.Tracer(tracerName)),
	)

	var rep cycle.Report
	switch opts.mode() {
	case "cleanup":
		rep = runner.Cleanup(ctx, args)
	case "burst":
		rep = runner.RunBurst(ctx, now().UTC())
	default:
		rep = runner.RunDaily(ctx, now().UTC())
	}

	if rep.Failed() > 0 {
		entry.Warnf("finished with %d failed requests: %s", rep.Failed(), rep.Summary())
	} else {
		entry.Infof("finished: %s", rep.Summary())
	}
	return nil
}

// setupTracing returns the tracer provider for the run and a flush func.
// Dry runs never export, so they get a no-op provider.
func setupTracing(ctx context.Context, dryRun bool, entry *log.Entry) (trace.TracerProvider, func()) {
	if dryRun {
		return noop.NewTracerProvider(), func() {}
	}
	provider, shutdown, err := telemetry.Setup(ctx, serviceName, buildinfo.Version)
	if err != nil {
		entry.WithError(err).Warn("tracing disabled")
		return noop.NewTracerProvider(), func() {}
	}
	return provider, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := shutdown(shutdownCtx); errShutdown != nil {
			entry.WithError(errShutdown).Debug("tracer shutdown failed")
		}
	}
}
