package cli

import (
	"context"
	"log/slog"

	"mqleval/internal/config"
	"mqleval/internal/exec"
)

// buildRunner wires the dual-strategy execution engine from config.
// The native connection is best-effort: when the driver cannot connect,
// evaluation proceeds on the shell fallback alone.
func buildRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*exec.Runner, func(), error) {
	opts := exec.RunnerOptions{
		Shell:     exec.NewShell(cfg.MongoshPath, cfg.MongoURI, cfg.ShellConcurrency),
		CacheSize: cfg.CacheSize,
		Timeout:   cfg.ExecTimeout,
		Logger:    logger,
	}
	cleanup := func() {}

	client, err := exec.Connect(ctx, cfg.MongoURI)
	if err == nil {
		err = client.Ping(ctx, nil)
	}
	if err != nil {
		logger.Warn("native connection failed, shell fallback only",
			"uri", maskURI(cfg.MongoURI), "error", err)
	} else {
		opts.Native = exec.NewNative(client, cfg.AllowDiskUse)
		cleanup = func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("closing native connection", "error", err)
			}
		}
	}

	runner, err := exec.NewRunner(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return runner, cleanup, nil
}
