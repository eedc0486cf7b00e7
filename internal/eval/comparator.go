// Package eval scores predicted MQL query text against gold query text
// across six metrics and aggregates per-example scores into dataset
// means.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"mqleval/internal/domain"
	"mqleval/internal/mql"
	"mqleval/internal/schema"
)

// QueryRunner executes raw query text against a database and returns
// result documents.
type QueryRunner interface {
	Run(ctx context.Context, dbID, query string) ([]mql.Value, error)
}

// Comparator computes the six-metric vector for one gold/predicted
// query pair. Every failure is downgraded to a zero for the affected
// metrics; Compare never returns an error.
type Comparator struct {
	runner       QueryRunner
	schemas      *schema.Store
	logger       *slog.Logger
	previewChars int
	timings      *PhaseTimings
}

// ComparatorOptions configures a Comparator. Schemas may be nil, in
// which case field comparison falls back to structural extraction
// without schema resolution. Timings may be nil, in which case no
// phase breakdown is recorded.
type ComparatorOptions struct {
	Runner       QueryRunner
	Schemas      *schema.Store
	Logger       *slog.Logger
	PreviewChars int
	Timings      *PhaseTimings
}

func NewComparator(opts ComparatorOptions) *Comparator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	preview := opts.PreviewChars
	if preview <= 0 {
		preview = 400
	}
	return &Comparator{
		runner:       opts.Runner,
		schemas:      opts.Schemas,
		logger:       logger,
		previewChars: preview,
		timings:      opts.Timings,
	}
}

// Compare scores predicted against gold for the given database.
func (c *Comparator) Compare(ctx context.Context, dbID, gold, predicted string) domain.MetricVector {
	var v domain.MetricVector

	if mql.NormalizeWhitespace(gold) == mql.NormalizeWhitespace(predicted) {
		v.EM = 1
	}

	goldQuery, goldParseErr := mql.ParseQuery(gold)
	predQuery, predParseErr := mql.ParseQuery(predicted)
	if goldParseErr != nil || predParseErr != nil {
		c.logger.Debug("parse failure, structural metrics zeroed",
			"db", dbID, "gold_err", goldParseErr, "pred_err", predParseErr)
	} else {
		stageStart := time.Now()
		goldStages := mql.ExtractStages(goldQuery)
		predStages := mql.ExtractStages(predQuery)
		c.timings.Add("stages", time.Since(stageStart))
		if stringSlicesEqual(goldStages, predStages) {
			v.QSM = 1
		}

		fieldStart := time.Now()
		goldFields := c.extractFields(dbID, goldQuery)
		predFields := c.extractFields(dbID, predQuery)
		c.timings.Add("fields", time.Since(fieldStart))
		if stringSetsEqual(goldFields, predFields) {
			v.QFC = 1
		}

		c.logger.Debug("structural comparison",
			"db", dbID,
			"gold_stages", goldStages, "pred_stages", predStages,
			"gold_fields", goldFields, "pred_fields", predFields)
	}

	goldDocs, goldErr := c.run(ctx, dbID, gold)
	predDocs, predErr := c.run(ctx, dbID, predicted)
	if goldErr != nil || predErr != nil {
		c.logger.Info("execution failure, result metrics zeroed",
			"db", dbID, "gold_err", goldErr, "pred_err", predErr)
		return v
	}

	sampleChars := c.previewChars / 6
	goldPaths, goldSamples := collectFieldSamples(goldDocs, sampleChars)
	predPaths, predSamples := collectFieldSamples(predDocs, sampleChars)
	missing, extra, shared := diffFieldPaths(goldPaths, predPaths)
	c.logger.Debug("result preview",
		"db", dbID,
		"gold", previewDocs(goldDocs, c.previewChars),
		"predicted", previewDocs(predDocs, c.previewChars),
		"gold_path_count", len(goldPaths),
		"pred_path_count", len(predPaths),
		"missing_in_predicted", capPaths(missing),
		"extra_in_predicted", capPaths(extra),
		"shared_samples", sharedFieldSamples(shared, goldSamples, predSamples))

	if resultsEqual(goldDocs, predDocs) {
		v.EX = 1
	}
	if stringSetsEqual(resultFieldNames(goldDocs), resultFieldNames(predDocs)) {
		v.EFM = 1
	}
	if zippedPrefixEqual(goldDocs, predDocs) {
		v.EVM = 1
	}
	return v
}

func (c *Comparator) extractFields(dbID string, q *mql.Query) []string {
	if c.schemas != nil {
		known, err := c.schemas.Fields(dbID)
		if err != nil {
			c.logger.Debug("schema unavailable, using structural extraction",
				"db", dbID, "error", err)
		} else if len(known) > 0 {
			return mql.ExtractFieldsSchema(q, known)
		}
	}
	return mql.ExtractFields(q)
}

func (c *Comparator) run(ctx context.Context, dbID, query string) ([]mql.Value, error) {
	if c.runner == nil {
		return nil, domain.ErrExecution("no runner configured")
	}
	defer func(start time.Time) { c.timings.Add("exec", time.Since(start)) }(time.Now())
	return c.runner.Run(ctx, dbID, query)
}

// resultsEqual applies order-sensitive deep equality across the two
// result sequences.
func resultsEqual(gold, pred []mql.Value) bool {
	if len(gold) != len(pred) {
		return false
	}
	for i := range gold {
		if !mql.DeepEqual(gold[i], pred[i]) {
			return false
		}
	}
	return true
}

// zippedPrefixEqual compares only the min-length prefix, so a result
// containing extra trailing documents still scores on the overlap.
func zippedPrefixEqual(gold, pred []mql.Value) bool {
	n := len(gold)
	if len(pred) < n {
		n = len(pred)
	}
	for i := 0; i < n; i++ {
		if !mql.DeepEqual(gold[i], pred[i]) {
			return false
		}
	}
	return true
}

// resultFieldNames collects the union of field names appearing anywhere
// in the document sequence.
func resultFieldNames(docs []mql.Value) []string {
	set := map[string]bool{}
	for _, d := range docs {
		collectValueFields(d, set)
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func collectValueFields(v mql.Value, set map[string]bool) {
	switch t := v.(type) {
	case *mql.Object:
		for _, m := range t.Members {
			set[m.Key] = true
			collectValueFields(m.Value, set)
		}
	case *mql.Array:
		for _, e := range t.Elements {
			collectValueFields(e, set)
		}
	}
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

// previewDocs renders a bounded-size textual preview of result
// documents for diagnostics.
func previewDocs(docs []mql.Value, limit int) string {
	s := fmt.Sprintf("%d docs: ", len(docs))
	for i, d := range docs {
		if i > 0 {
			s += ", "
		}
		s += mql.Encode(d)
		if len(s) > limit {
			return s[:limit] + "..."
		}
	}
	return s
}
