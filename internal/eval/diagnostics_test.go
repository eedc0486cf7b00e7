package eval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFieldSamples(t *testing.T) {
	results := docs(t,
		`{"name": "ada", "address": {"city": "paris", "zip": 75001}}`,
		`{"name": "alan", "tags": ["x", "y"]}`,
	)

	paths, samples := collectFieldSamples(results, 200)

	assert.Equal(t,
		[]string{"address", "address.city", "address.zip", "name", "tags"},
		paths)
	assert.Equal(t, []string{`"ada"`, `"alan"`}, samples["name"])
	assert.Equal(t, []string{`"paris"`}, samples["address.city"])
	// Array elements sample under the parent path, without indexes.
	assert.Equal(t, []string{`["x", "y"]`, `"x"`, `"y"`}, samples["tags"])
}

func TestCollectFieldSamples_Caps(t *testing.T) {
	results := docs(t,
		`{"n": 1}`, `{"n": 2}`, `{"n": 3}`, `{"n": 4}`, `{"n": 1}`,
		`{"blob": "abcdefghij"}`,
	)

	_, samples := collectFieldSamples(results, 4)

	// At most samplesPerField distinct values per path.
	assert.Equal(t, []string{"1", "2", "3"}, samples["n"])
	// Long values are truncated to the char budget.
	assert.Equal(t, []string{`"abc...`}, samples["blob"])
}

func TestDiffFieldPaths(t *testing.T) {
	gold := []string{"a", "b", "c"}
	pred := []string{"b", "c", "d"}

	missing, extra, shared := diffFieldPaths(gold, pred)
	assert.Equal(t, []string{"a"}, missing)
	assert.Equal(t, []string{"d"}, extra)
	assert.Equal(t, []string{"b", "c"}, shared)
}

func TestCapPaths(t *testing.T) {
	long := make([]string, maxLoggedFields+10)
	assert.Len(t, capPaths(long), maxLoggedFields)
	short := []string{"a"}
	assert.Equal(t, short, capPaths(short))
}

func TestSharedFieldSamples(t *testing.T) {
	out := sharedFieldSamples(
		[]string{"a", "b"},
		map[string][]string{"a": {"1"}, "b": {"2"}},
		map[string][]string{"a": {"9"}},
	)
	require.Len(t, out, 2)
	assert.Equal(t, fieldSamples{Gold: []string{"1"}, Predicted: []string{"9"}}, out["a"])
	assert.Equal(t, fieldSamples{Gold: []string{"2"}}, out["b"])
}

func TestPhaseTimings(t *testing.T) {
	pt := NewPhaseTimings()
	pt.Add("exec", 250*time.Millisecond)
	pt.Add("exec", 250*time.Millisecond)
	pt.Add("stages", time.Second)

	secs := pt.Seconds()
	assert.InDelta(t, 0.5, secs["exec"], 1e-9)
	assert.InDelta(t, 1.0, secs["stages"], 1e-9)
}

func TestPhaseTimings_NilIsNoop(t *testing.T) {
	var pt *PhaseTimings
	pt.Add("exec", time.Second)
	assert.Nil(t, pt.Seconds())
}
