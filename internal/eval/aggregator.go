package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"mqleval/internal/domain"
)

// Comparer scores one gold/predicted pair. Satisfied by *Comparator.
type Comparer interface {
	Compare(ctx context.Context, dbID, gold, predicted string) domain.MetricVector
}

// Aggregator walks a dataset, scores every example, and produces the
// six mean rates plus the list of examples whose execution result did
// not match.
type Aggregator struct {
	comparer  Comparer
	logger    *slog.Logger
	workers   int
	progress  bool
	flushSpec string
	timings   *PhaseTimings

	mu        sync.Mutex
	sums      domain.MetricVector
	total     int
	processed int
	failures  []domain.FailedExample
}

// Snapshot reports current progress for status endpoints and interim
// logging.
func (a *Aggregator) Snapshot() (processed, total int, sums domain.MetricVector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processed, a.total, a.sums
}

// AggregatorOptions configures an Aggregator. Workers below 2 selects
// the sequential loop. FlushSpec, when non-empty, is a cron expression
// controlling periodic interim-progress log lines during long runs.
// Timings, when shared with the Comparator, surfaces its per-phase
// buckets in the report.
type AggregatorOptions struct {
	Comparer  Comparer
	Logger    *slog.Logger
	Workers   int
	Progress  bool
	FlushSpec string
	Timings   *PhaseTimings
}

func NewAggregator(opts AggregatorOptions) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		comparer:  opts.Comparer,
		logger:    logger,
		workers:   workers,
		progress:  opts.Progress && term.IsTerminal(int(os.Stderr.Fd())),
		flushSpec: opts.FlushSpec,
		timings:   opts.Timings,
	}
}

// Evaluate scores every record and returns the aggregate report. A
// failed or timed-out example never stops the batch.
func (a *Aggregator) Evaluate(ctx context.Context, records []domain.ExampleRecord) domain.Report {
	start := time.Now()
	total := len(records)

	a.mu.Lock()
	a.sums = domain.MetricVector{}
	a.total = total
	a.processed = 0
	a.failures = nil
	a.mu.Unlock()

	if a.flushSpec != "" {
		c := cron.New()
		if _, err := c.AddFunc(a.flushSpec, func() { a.logInterim(total) }); err != nil {
			a.logger.Warn("invalid flush schedule, interim logging disabled",
				"spec", a.flushSpec, "error", err)
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			a.scoreOne(gctx, rec, total)
			return nil
		})
	}
	_ = g.Wait()

	if a.progress {
		fmt.Fprint(os.Stderr, "\n")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	report := domain.Report{
		RunID:     uuid.NewString(),
		Total:     total,
		Processed: a.processed,
		Failures:  a.failures,
		Timings: map[string]float64{
			"elapsed": time.Since(start).Seconds(),
		},
	}
	for label, secs := range a.timings.Seconds() {
		report.Timings[label] = secs
	}
	if total > 0 {
		report.Means = domain.MetricMeans{
			EM:  float64(a.sums.EM) / float64(total),
			QSM: float64(a.sums.QSM) / float64(total),
			QFC: float64(a.sums.QFC) / float64(total),
			EX:  float64(a.sums.EX) / float64(total),
			EFM: float64(a.sums.EFM) / float64(total),
			EVM: float64(a.sums.EVM) / float64(total),
		}
		report.Timings["per_example"] = report.Timings["elapsed"] / float64(total)
	}
	return report
}

func (a *Aggregator) scoreOne(ctx context.Context, rec domain.ExampleRecord, total int) {
	a.logger.Debug("scoring example",
		"record", rec.RecordID, "db", rec.DBID, "nlq", rec.NLQ)

	v := a.comparer.Compare(ctx, rec.DBID, rec.Gold, rec.Predicted)

	a.mu.Lock()
	a.sums.Add(v)
	a.processed++
	done := a.processed
	if v.EX == 0 {
		a.failures = append(a.failures, domain.FailedExample{
			NLQ:       rec.NLQ,
			DBID:      rec.DBID,
			Predicted: rec.Predicted,
			Gold:      rec.Gold,
			Flag:      v.EX == 1,
		})
	}
	a.mu.Unlock()

	if a.progress {
		fmt.Fprintf(os.Stderr, "\rprocessed %d/%d", done, total)
	}
}

func (a *Aggregator) logInterim(total int) {
	a.mu.Lock()
	processed, sums := a.processed, a.sums
	a.mu.Unlock()
	a.logger.Info("interim progress",
		"processed", processed, "total", total,
		"em", sums.EM, "qsm", sums.QSM, "qfc", sums.QFC,
		"ex", sums.EX, "efm", sums.EFM, "evm", sums.EVM)
}

// WriteReport persists the aggregate report as indented JSON, creating
// parent directories as needed.
func WriteReport(path string, report domain.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteFailures persists the EX=0 example list as indented JSON.
func WriteFailures(path string, failures []domain.FailedExample) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create failures dir: %w", err)
		}
	}
	if failures == nil {
		failures = []domain.FailedExample{}
	}
	data, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write failures: %w", err)
	}
	return nil
}
