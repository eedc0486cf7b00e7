package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mqleval/internal/config"
	"mqleval/internal/eval"
	"mqleval/internal/schema"
)

func newEvaluateCmd() *cobra.Command {
	var (
		predictionsPath string
		reportPath      string
		failuresPath    string
		schemaDir       string
		workers         int
		flushSpec       string
		statusAddr      string
		cleanEscapes    bool
		noProgress      bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate <dataset.json>",
		Short: "Score a dataset of gold/predicted query pairs",
		Long: "Runs the six-metric comparison over every example in the dataset " +
			"and writes an aggregate report plus the list of examples whose " +
			"execution results did not match.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("schema-dir") {
				cfg.SchemaDir = schemaDir
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}

			logger := slog.Default()
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			records, err := eval.LoadExamples(args[0], cleanEscapes)
			if err != nil {
				return err
			}
			if predictionsPath != "" {
				if err := eval.MergePredictions(records, predictionsPath, cleanEscapes); err != nil {
					return err
				}
			}
			logger.Info("dataset loaded", "path", args[0], "examples", len(records))

			runner, cleanup, err := buildRunner(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			var schemas *schema.Store
			if cfg.SchemaDir != "" {
				schemas = schema.NewStore(cfg.SchemaDir)
			}

			timings := eval.NewPhaseTimings()
			comparator := eval.NewComparator(eval.ComparatorOptions{
				Runner:       runner,
				Schemas:      schemas,
				Logger:       logger,
				PreviewChars: cfg.PreviewChars,
				Timings:      timings,
			})
			aggregator := eval.NewAggregator(eval.AggregatorOptions{
				Comparer:  comparator,
				Logger:    logger,
				Workers:   cfg.Workers,
				Progress:  !noProgress,
				FlushSpec: flushSpec,
				Timings:   timings,
			})

			var status *eval.StatusServer
			if statusAddr != "" {
				status = eval.NewStatusServer(statusAddr, aggregator, logger)
				status.Start()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = status.Shutdown(ctx)
				}()
			}

			report := aggregator.Evaluate(cmd.Context(), records)
			if status != nil {
				status.SetReport(report)
			}

			if reportPath != "" {
				if err := eval.WriteReport(reportPath, report); err != nil {
					return err
				}
				logger.Info("report written", "path", reportPath)
			}
			if failuresPath != "" {
				if err := eval.WriteFailures(failuresPath, report.Failures); err != nil {
					return err
				}
				logger.Info("failures written", "path", failuresPath, "count", len(report.Failures))
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, report)
			}
			m := report.Means
			_, _ = fmt.Fprintf(os.Stdout, "run %s: %d/%d examples\n",
				report.RunID, report.Processed, report.Total)
			_, _ = fmt.Fprintf(os.Stdout,
				"EM=%.4f QSM=%.4f QFC=%.4f EX=%.4f EFM=%.4f EVM=%.4f\n",
				m.EM, m.QSM, m.QFC, m.EX, m.EFM, m.EVM)
			_, _ = fmt.Fprintf(os.Stdout, "failures: %d, elapsed: %.1fs\n",
				len(report.Failures), report.Timings["elapsed"])
			return nil
		},
	}

	cmd.Flags().StringVar(&predictionsPath, "predictions", "", "Auxiliary predictions file merged into empty predictions")
	cmd.Flags().StringVar(&reportPath, "report", "report.json", "Path for the aggregate report")
	cmd.Flags().StringVar(&failuresPath, "failures", "failures.json", "Path for the failing-example list")
	cmd.Flags().StringVar(&schemaDir, "schema-dir", "", "Directory of per-database schema files")
	cmd.Flags().IntVar(&workers, "workers", 1, "Comparator workers (1 = sequential)")
	cmd.Flags().StringVar(&flushSpec, "flush", "", "Cron expression for interim progress logging")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Listen address for the HTTP status endpoint")
	cmd.Flags().BoolVar(&cleanEscapes, "clean-escapes", true, "Collapse escaped newlines in query text")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable terminal progress output")

	return cmd
}
