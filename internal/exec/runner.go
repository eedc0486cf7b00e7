package exec

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"mqleval/internal/domain"
	"mqleval/internal/mql"
)

// NativeStrategy executes a parsed query. Satisfied by *Native.
type NativeStrategy interface {
	Run(ctx context.Context, dbID string, q *mql.Query) ([]mql.Value, error)
}

// ShellStrategy executes raw query text. Satisfied by *Shell.
type ShellStrategy interface {
	Run(ctx context.Context, dbID, query string) ([]mql.Value, error)
}

// Runner executes raw MQL query text against a database. It tries the
// native-driver fast path first and silently demotes to the shell
// fallback when the text cannot be parsed or the driver rejects it.
type Runner struct {
	native  NativeStrategy
	shell   ShellStrategy
	cache   *resultCache
	group   singleflight.Group
	timeout time.Duration
	logger  *slog.Logger
}

// RunnerOptions configures a Runner. Leave Native unset (not a typed
// nil) to run on the shell fallback alone.
type RunnerOptions struct {
	Native    NativeStrategy
	Shell     ShellStrategy
	CacheSize int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewRunner wires the two execution strategies behind a shared result
// cache.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	cache, err := newResultCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		native:  opts.Native,
		shell:   opts.Shell,
		cache:   cache,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Run executes query text against dbID and returns the result
// documents. Outcomes, including failures, are memoized; concurrent
// callers with the same key share a single execution.
func (r *Runner) Run(ctx context.Context, dbID, query string) ([]mql.Value, error) {
	key := cacheKey(dbID, query)
	if res, ok := r.cache.get(key); ok {
		return res.docs, res.err
	}

	out, err, _ := r.group.Do(key, func() (interface{}, error) {
		if res, ok := r.cache.get(key); ok {
			return res, nil
		}
		res := r.execute(ctx, dbID, query)
		r.cache.put(key, res)
		return res, nil
	})
	if err != nil {
		return nil, domain.ErrExecution("execute %s: %v", dbID, err)
	}
	res := out.(execResult)
	return res.docs, res.err
}

// CacheLen reports how many outcomes are currently memoized.
func (r *Runner) CacheLen() int {
	return r.cache.len()
}

func (r *Runner) execute(ctx context.Context, dbID, query string) execResult {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.native != nil {
		if q, err := mql.ParseQuery(query); err == nil {
			docs, err := r.native.Run(runCtx, dbID, q)
			if err == nil {
				return execResult{docs: docs}
			}
			if domain.IsTimeout(err) || runCtx.Err() != nil {
				return execResult{err: domain.ErrTimeout("query against %s exceeded %s", dbID, r.timeout)}
			}
			r.logger.Debug("native execution failed, demoting to shell",
				"db", dbID, "error", err)
		} else {
			r.logger.Debug("query not parseable natively, demoting to shell",
				"db", dbID, "error", err)
		}
	}

	if r.shell == nil {
		return execResult{err: domain.ErrExecution("no shell fallback configured for %s", dbID)}
	}
	docs, err := r.shell.Run(runCtx, dbID, query)
	if err != nil {
		if domain.IsTimeout(err) || runCtx.Err() != nil {
			return execResult{err: domain.ErrTimeout("query against %s exceeded %s", dbID, r.timeout)}
		}
		return execResult{err: err}
	}
	return execResult{docs: docs}
}
