package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqleval/internal/domain"
	"mqleval/internal/mql"
)

// fakeRunner serves canned results keyed by normalized query text.
type fakeRunner struct {
	results map[string][]mql.Value
	errs    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, _, query string) ([]mql.Value, error) {
	key := mql.NormalizeWhitespace(query)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.results[key], nil
}

func docs(t *testing.T, texts ...string) []mql.Value {
	t.Helper()
	out := make([]mql.Value, 0, len(texts))
	for _, text := range texts {
		v, err := mql.DecodeValue(text)
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func newTestComparator(runner QueryRunner) *Comparator {
	return NewComparator(ComparatorOptions{Runner: runner})
}

func TestCompare_Reflexive(t *testing.T) {
	query := `db.users.find({"status": "active"}, {"name": 1})`
	runner := &fakeRunner{results: map[string][]mql.Value{
		mql.NormalizeWhitespace(query): docs(t, `{"name": "ada"}`),
	}}

	v := newTestComparator(runner).Compare(context.Background(), "hr", query, query)
	assert.Equal(t, domain.MetricVector{EM: 1, QSM: 1, QFC: 1, EX: 1, EFM: 1, EVM: 1}, v)
}

func TestCompare_WhitespaceOnlyDifference(t *testing.T) {
	gold := `db.users.find({"a": 1})`
	pred := "db.users.find({\"a\":    1})"
	runner := &fakeRunner{results: map[string][]mql.Value{
		mql.NormalizeWhitespace(gold): docs(t, `{"a": 1}`),
	}}

	v := newTestComparator(runner).Compare(context.Background(), "hr", gold, pred)
	assert.Equal(t, 1, v.EM)
	assert.Equal(t, 1, v.EX)
}

func TestCompare_StructuralMetrics(t *testing.T) {
	gold := `db.emp.aggregate([{"$match": {"age": {"$gt": 30}}}, {"$group": {"_id": "$dept", "n": {"$sum": 1}}}])`
	samefields := `db.emp.aggregate([{"$group": {"_id": "$dept", "m": {"$max": "$age"}}}])`
	samestages := `db.emp.aggregate([{"$match": {"rank": {"$gt": 2}}}, {"$group": {"_id": "$team", "n": {"$sum": 1}}}])`

	runner := &fakeRunner{results: map[string][]mql.Value{}}
	c := newTestComparator(runner)

	t.Run("same fields different stages", func(t *testing.T) {
		v := c.Compare(context.Background(), "hr", gold, samefields)
		assert.Equal(t, 0, v.EM)
		assert.Equal(t, 0, v.QSM)
		assert.Equal(t, 1, v.QFC)
	})
	t.Run("same stages different fields", func(t *testing.T) {
		v := c.Compare(context.Background(), "hr", gold, samestages)
		assert.Equal(t, 1, v.QSM)
		assert.Equal(t, 0, v.QFC)
	})
}

func TestCompare_ParseFailureZeroesStructuralMetrics(t *testing.T) {
	gold := `db.users.find({"a": 1})`
	pred := `SELECT * FROM users`
	runner := &fakeRunner{
		results: map[string][]mql.Value{
			mql.NormalizeWhitespace(gold): docs(t, `{"a": 1}`),
		},
		errs: map[string]error{
			mql.NormalizeWhitespace(pred): domain.ErrExecution("not a query"),
		},
	}

	v := newTestComparator(runner).Compare(context.Background(), "hr", gold, pred)
	assert.Equal(t, domain.MetricVector{}, v)
}

func TestCompare_RecordsPhaseTimings(t *testing.T) {
	query := `db.users.find({"a": 1})`
	runner := &fakeRunner{results: map[string][]mql.Value{
		mql.NormalizeWhitespace(query): docs(t, `{"a": 1}`),
	}}
	timings := NewPhaseTimings()
	c := NewComparator(ComparatorOptions{Runner: runner, Timings: timings})

	c.Compare(context.Background(), "hr", query, query)

	secs := timings.Seconds()
	for _, label := range []string{"exec", "stages", "fields"} {
		assert.Contains(t, secs, label)
		assert.GreaterOrEqual(t, secs[label], 0.0)
	}
}

func TestCompare_ExecutionMetrics(t *testing.T) {
	gold := `db.users.find({"g": 1})`
	pred := `db.users.find({"p": 1})`
	goldKey := mql.NormalizeWhitespace(gold)
	predKey := mql.NormalizeWhitespace(pred)

	tests := []struct {
		name     string
		goldDocs []mql.Value
		predDocs []mql.Value
		ex, efm  int
		evm      int
	}{
		{
			name:     "identical results",
			goldDocs: docs(t, `{"a": 1}`, `{"a": 2}`),
			predDocs: docs(t, `{"a": 1}`, `{"a": 2}`),
			ex:       1, efm: 1, evm: 1,
		},
		{
			name:     "order mismatch",
			goldDocs: docs(t, `{"a": 1}`, `{"a": 2}`),
			predDocs: docs(t, `{"a": 2}`, `{"a": 1}`),
			ex:       0, efm: 1, evm: 0,
		},
		{
			name:     "prediction truncated, prefix matches",
			goldDocs: docs(t, `{"a": 1}`, `{"a": 2}`),
			predDocs: docs(t, `{"a": 1}`),
			ex:       0, efm: 1, evm: 1,
		},
		{
			name:     "field set differs across documents",
			goldDocs: docs(t, `{"a": 1}`, `{"b": 2}`),
			predDocs: docs(t, `{"a": 1}`),
			ex:       0, efm: 0, evm: 1,
		},
		{
			name:     "value mismatch",
			goldDocs: docs(t, `{"a": 1}`),
			predDocs: docs(t, `{"a": 9}`),
			ex:       0, efm: 1, evm: 0,
		},
		{
			name:     "nested fields counted",
			goldDocs: docs(t, `{"a": {"x": 1}}`),
			predDocs: docs(t, `{"a": {"y": 1}}`),
			ex:       0, efm: 0, evm: 0,
		},
		{
			name:     "both empty",
			goldDocs: nil,
			predDocs: nil,
			ex:       1, efm: 1, evm: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{results: map[string][]mql.Value{
				goldKey: tt.goldDocs,
				predKey: tt.predDocs,
			}}
			v := newTestComparator(runner).Compare(context.Background(), "hr", gold, pred)
			assert.Equal(t, tt.ex, v.EX, "EX")
			assert.Equal(t, tt.efm, v.EFM, "EFM")
			assert.Equal(t, tt.evm, v.EVM, "EVM")
		})
	}
}

func TestCompare_TimeoutZeroesResultMetrics(t *testing.T) {
	gold := `db.users.find({"a": 1})`
	pred := `db.users.find({"b": 1})`
	runner := &fakeRunner{
		results: map[string][]mql.Value{
			mql.NormalizeWhitespace(gold): docs(t, `{"a": 1}`),
		},
		errs: map[string]error{
			mql.NormalizeWhitespace(pred): domain.ErrTimeout("deadline"),
		},
	}

	v := newTestComparator(runner).Compare(context.Background(), "hr", gold, pred)
	assert.Equal(t, 0, v.EX)
	assert.Equal(t, 0, v.EFM)
	assert.Equal(t, 0, v.EVM)
	// Structural metrics are unaffected by execution failure.
	assert.Equal(t, 1, v.QSM)
}
