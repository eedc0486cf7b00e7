package eval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqleval/internal/domain"
)

// fakeComparer scores by predicted text: "good" matches everything,
// "partial" matches structure only, anything else matches nothing.
type fakeComparer struct{}

func (fakeComparer) Compare(_ context.Context, _, _, predicted string) domain.MetricVector {
	switch predicted {
	case "good":
		return domain.MetricVector{EM: 1, QSM: 1, QFC: 1, EX: 1, EFM: 1, EVM: 1}
	case "partial":
		return domain.MetricVector{QSM: 1, QFC: 1}
	default:
		return domain.MetricVector{}
	}
}

func sampleRecords() []domain.ExampleRecord {
	return []domain.ExampleRecord{
		{RecordID: "0", DBID: "hr", NLQ: "q0", Gold: "g0", Predicted: "good"},
		{RecordID: "1", DBID: "hr", NLQ: "q1", Gold: "g1", Predicted: "partial"},
		{RecordID: "2", DBID: "sales", NLQ: "q2", Gold: "g2", Predicted: "good"},
		{RecordID: "3", DBID: "sales", NLQ: "q3", Gold: "g3", Predicted: "bad"},
	}
}

func TestAggregator_Evaluate(t *testing.T) {
	agg := NewAggregator(AggregatorOptions{Comparer: fakeComparer{}})
	report := agg.Evaluate(context.Background(), sampleRecords())

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 4, report.Processed)
	assert.NotEmpty(t, report.RunID)

	assert.InDelta(t, 0.5, report.Means.EM, 1e-9)
	assert.InDelta(t, 0.75, report.Means.QSM, 1e-9)
	assert.InDelta(t, 0.75, report.Means.QFC, 1e-9)
	assert.InDelta(t, 0.5, report.Means.EX, 1e-9)
	assert.InDelta(t, 0.5, report.Means.EFM, 1e-9)
	assert.InDelta(t, 0.5, report.Means.EVM, 1e-9)

	// The two non-matching executions land in the failure list, each
	// flagged by its execution outcome.
	require.Len(t, report.Failures, 2)
	for _, f := range report.Failures {
		assert.Contains(t, []string{"partial", "bad"}, f.Predicted)
		assert.False(t, f.Flag)
	}

	assert.GreaterOrEqual(t, report.Timings["elapsed"], 0.0)
}

func TestAggregator_ReportIncludesPhaseTimings(t *testing.T) {
	timings := NewPhaseTimings()
	timings.Add("exec", 2*time.Second)
	timings.Add("stages", time.Second)

	agg := NewAggregator(AggregatorOptions{Comparer: fakeComparer{}, Timings: timings})
	report := agg.Evaluate(context.Background(), sampleRecords())

	assert.InDelta(t, 2.0, report.Timings["exec"], 1e-9)
	assert.InDelta(t, 1.0, report.Timings["stages"], 1e-9)
	assert.Contains(t, report.Timings, "elapsed")
}

func TestAggregator_EvaluateParallelMatchesSequential(t *testing.T) {
	records := sampleRecords()

	seq := NewAggregator(AggregatorOptions{Comparer: fakeComparer{}, Workers: 1})
	par := NewAggregator(AggregatorOptions{Comparer: fakeComparer{}, Workers: 4})

	a := seq.Evaluate(context.Background(), records)
	b := par.Evaluate(context.Background(), records)

	assert.Equal(t, a.Means, b.Means)
	assert.Equal(t, a.Processed, b.Processed)
	assert.Len(t, b.Failures, len(a.Failures))
}

func TestAggregator_EmptyDataset(t *testing.T) {
	agg := NewAggregator(AggregatorOptions{Comparer: fakeComparer{}})
	report := agg.Evaluate(context.Background(), nil)

	assert.Equal(t, 0, report.Total)
	assert.Equal(t, domain.MetricMeans{}, report.Means)
	assert.Empty(t, report.Failures)
}

func TestAggregator_Snapshot(t *testing.T) {
	agg := NewAggregator(AggregatorOptions{Comparer: fakeComparer{}})
	_ = agg.Evaluate(context.Background(), sampleRecords())

	processed, total, sums := agg.Snapshot()
	assert.Equal(t, 4, processed)
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, sums.EM)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	report := domain.Report{RunID: "r1", Total: 2, Processed: 2}

	require.NoError(t, WriteReport(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back domain.Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, report.RunID, back.RunID)
	assert.Equal(t, report.Total, back.Total)
}

func TestWriteFailures_EmptyListIsValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.json")
	require.NoError(t, WriteFailures(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back []domain.FailedExample
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Empty(t, back)
}
