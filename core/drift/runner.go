package drift

import (
	"context"
	"fmt"
	"time"

	"github.com/emsgrid/dispatchd/core/alert"
	"github.com/emsgrid/dispatchd/core/dispatch/logging"
	"github.com/emsgrid/dispatchd/core/events"
	"github.com/emsgrid/dispatchd/core/logger"
	"github.com/emsgrid/dispatchd/core/metrics"
	"github.com/emsgrid/dispatchd/core/model"
	"github.com/emsgrid/dispatchd/internal/eventbus"
)

// HealthChecker reports whether the prediction endpoint answers its probe.
// The HTTP prediction client satisfies it.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Runner executes the drift checks on a fixed cadence and turns findings
// into alerts. Beyond the three monitor checks it watches two operational
// thresholds: the fallback rate and the mean learned confidence.
type Runner struct {
	cfg      Config
	monitor  *Monitor
	store    logging.OutcomeStore
	sink     alert.Sink
	recorder metrics.DriftRecorder
	bus      eventbus.EventBus
	log      logger.Logger
	health   HealthChecker
	now      func() time.Time
}

// NewRunner wires a runner. Sink may be nil; bus and recorder are optional.
func NewRunner(cfg Config, monitor *Monitor, store logging.OutcomeStore, sink alert.Sink, recorder metrics.DriftRecorder, bus eventbus.EventBus, log logger.Logger) *Runner {
	cfg.SetDefaults()
	if sink == nil {
		sink = alert.NopSink{}
	}
	return &Runner{
		cfg:      cfg,
		monitor:  monitor,
		store:    store,
		sink:     sink,
		recorder: recorder,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// WatchHealth makes every run probe the prediction endpoint and raise a
// SERVICE_DOWN alert when it stops answering.
func (r *Runner) WatchHealth(h HealthChecker) { r.health = h }

// Run blocks, executing RunOnce every IntervalSeconds until the context is
// cancelled.
func (r *Runner) Run(ctx context.Context) {
	interval := time.Duration(r.cfg.IntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Infof("drift runner started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Infof("drift runner stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.log.Errorf("drift run failed: %v", err)
			}
		}
	}
}

// RunOnce executes every check once and raises alerts for findings. A
// failing check aborts the run; alert sink errors are logged and swallowed.
func (r *Runner) RunOnce(ctx context.Context) error {
	if r.health != nil && !r.health.Healthy(ctx) {
		r.raise(ctx, alert.Alert{
			Type:        alert.TypeServiceDown,
			Severity:    alert.SeverityHigh,
			Title:       "prediction endpoint unreachable",
			Description: "the model serving endpoint failed its health probe; learned assignments are falling back",
			Time:        r.now(),
		})
	}

	checks := []struct {
		run       func(context.Context) (Snapshot, error)
		alertType alert.Type
	}{
		{r.monitor.CheckPredictionDrift, alert.TypeDriftDetected},
		{r.monitor.CheckDegradation, alert.TypeDegradation},
		{r.monitor.CheckDataQuality, alert.TypeDataQuality},
	}
	for _, c := range checks {
		snap, err := c.run(ctx)
		if err != nil {
			return err
		}
		r.report(ctx, snap, c.alertType)
	}
	return r.checkThresholds(ctx)
}

// report publishes one snapshot's findings.
func (r *Runner) report(ctx context.Context, snap Snapshot, typ alert.Type) {
	if snap.InsufficientData {
		r.log.Debugw("drift check skipped", map[string]any{
			"check":   snap.Check,
			"samples": snap.Current.SampleCount,
		})
		return
	}
	if !snap.Drifting {
		return
	}

	if r.bus != nil {
		r.bus.Publish(events.DriftEvent{
			Check:    snap.Check,
			Severity: string(snap.Severity),
			Issues:   len(snap.Issues),
		})
	}
	for _, issue := range snap.Issues {
		if r.recorder != nil {
			if err := r.recorder.RecordDriftIssue(metrics.DriftIssueEvent{
				Check:    snap.Check,
				Type:     string(issue.Type),
				Severity: string(issue.Severity),
				Time:     r.now(),
			}); err != nil {
				r.log.Errorf("drift metrics error: %v", err)
			}
		}
		a := alert.Alert{
			Type:        typ,
			Severity:    alertSeverity(issue.Severity),
			Title:       string(issue.Type),
			Description: issue.Message,
			Details: map[string]any{
				"check":     snap.Check,
				"current":   issue.Current,
				"reference": issue.Reference,
				"delta_pct": issue.DeltaPct,
				"samples":   snap.Current.SampleCount,
			},
			Time: r.now(),
		}
		if err := r.sink.Raise(ctx, a); err != nil {
			r.log.Errorf("alert sink error for %s: %v", issue.Type, err)
		}
	}
}

// checkThresholds raises the operational alerts that do not need baseline
// statistics: fallback rate and mean confidence over the current window.
func (r *Runner) checkThresholds(ctx context.Context) error {
	end := r.now()
	start := end.Add(-time.Duration(r.cfg.WindowHours) * time.Hour)

	counts, err := logging.CountsByOutcome(ctx, r.store, logging.OutcomeQuery{Start: start, End: end})
	if err != nil {
		return err
	}
	if counts.Total >= r.cfg.MinSamples {
		rate := float64(counts.Fallback) / float64(counts.Total)
		if rate > r.cfg.FallbackWarnRate {
			sev := alert.SeverityHigh
			if rate > r.cfg.FallbackCriticalRate {
				sev = alert.SeverityCritical
			}
			r.raise(ctx, alert.Alert{
				Type:        alert.TypeHighFallback,
				Severity:    sev,
				Title:       "fallback rate above threshold",
				Description: fmt.Sprintf("%.1f%% of learned assignments fell back to the deterministic engine", rate*100),
				Details: map[string]any{
					"fallback_rate": rate,
					"threshold":     r.cfg.FallbackWarnRate,
					"samples":       counts.Total,
				},
				Time: r.now(),
			})
		}
	}

	mean, ok, err := logging.MeanConfidence(ctx, r.store, logging.OutcomeQuery{
		Start: start, End: end, Strategy: model.StrategyLearned,
	})
	if err != nil {
		return err
	}
	if ok && mean < r.cfg.MinConfidence {
		r.raise(ctx, alert.Alert{
			Type:        alert.TypeLowConfidence,
			Severity:    alert.SeverityMedium,
			Title:       "mean confidence below threshold",
			Description: fmt.Sprintf("mean learned confidence %.3f is below the %.2f floor", mean, r.cfg.MinConfidence),
			Details: map[string]any{
				"mean_confidence": mean,
				"threshold":       r.cfg.MinConfidence,
			},
			Time: r.now(),
		})
	}
	return nil
}

func (r *Runner) raise(ctx context.Context, a alert.Alert) {
	if err := r.sink.Raise(ctx, a); err != nil {
		r.log.Errorf("alert sink error for %s: %v", a.Type, err)
	}
}

// alertSeverity maps a drift severity onto the alert taxonomy.
func alertSeverity(s Severity) alert.Severity {
	switch s {
	case SeverityHigh:
		return alert.SeverityHigh
	case SeverityMedium:
		return alert.SeverityMedium
	case SeverityLow:
		return alert.SeverityLow
	default:
		return alert.SeverityInfo
	}
}
