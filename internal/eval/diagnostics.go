package eval

import (
	"sort"
	"sync"
	"time"

	"mqleval/internal/mql"
)

const (
	// maxLoggedFields caps how many field paths one log event carries.
	maxLoggedFields = 50
	// samplesPerField caps distinct sample values retained per path.
	samplesPerField = 3
)

// PhaseTimings accumulates wall time per labeled evaluation phase
// (execution, stage extraction, field extraction) across examples.
// Safe for concurrent use; the nil value discards adds.
type PhaseTimings struct {
	mu     sync.Mutex
	totals map[string]time.Duration
}

func NewPhaseTimings() *PhaseTimings {
	return &PhaseTimings{totals: map[string]time.Duration{}}
}

func (t *PhaseTimings) Add(label string, d time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.totals[label] += d
	t.mu.Unlock()
}

// Seconds returns the accumulated per-label totals in seconds.
func (t *PhaseTimings) Seconds() map[string]float64 {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.totals))
	for label, total := range t.totals {
		out[label] = total.Seconds()
	}
	return out
}

// collectFieldSamples walks a result sequence and returns the sorted
// set of dotted field paths plus up to samplesPerField distinct
// rendered values per path. Array elements share their parent path;
// element indexes never appear in a path.
func collectFieldSamples(docs []mql.Value, maxChars int) ([]string, map[string][]string) {
	if maxChars < 1 {
		maxChars = 1
	}
	paths := map[string]bool{}
	samples := map[string][]string{}

	addSample := func(path string, v mql.Value) {
		s := mql.Encode(v)
		if len(s) > maxChars {
			s = s[:maxChars] + "..."
		}
		for _, prev := range samples[path] {
			if prev == s {
				return
			}
		}
		if len(samples[path]) < samplesPerField {
			samples[path] = append(samples[path], s)
		}
	}

	var walk func(v mql.Value, prefix string)
	walk = func(v mql.Value, prefix string) {
		switch t := v.(type) {
		case *mql.Object:
			for _, m := range t.Members {
				key := m.Key
				if prefix != "" {
					key = prefix + "." + m.Key
				}
				paths[key] = true
				addSample(key, m.Value)
				walk(m.Value, key)
			}
		case *mql.Array:
			for _, e := range t.Elements {
				walk(e, prefix)
			}
		default:
			if prefix != "" {
				addSample(prefix, v)
			}
		}
	}
	for _, d := range docs {
		walk(d, "")
	}

	out := make([]string, 0, len(paths))
	for k := range paths {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, samples
}

// diffFieldPaths splits two sorted path sets into paths only in gold,
// only in predicted, and present in both.
func diffFieldPaths(gold, pred []string) (missing, extra, shared []string) {
	goldSet := make(map[string]bool, len(gold))
	for _, p := range gold {
		goldSet[p] = true
	}
	predSet := make(map[string]bool, len(pred))
	for _, p := range pred {
		predSet[p] = true
	}
	for _, p := range gold {
		if predSet[p] {
			shared = append(shared, p)
		} else {
			missing = append(missing, p)
		}
	}
	for _, p := range pred {
		if !goldSet[p] {
			extra = append(extra, p)
		}
	}
	return missing, extra, shared
}

func capPaths(paths []string) []string {
	if len(paths) > maxLoggedFields {
		return paths[:maxLoggedFields]
	}
	return paths
}

// fieldSamples pairs sample values from both result sets for one
// shared path.
type fieldSamples struct {
	Gold      []string `json:"gold,omitempty"`
	Predicted []string `json:"predicted,omitempty"`
}

func sharedFieldSamples(shared []string, gold, pred map[string][]string) map[string]fieldSamples {
	out := make(map[string]fieldSamples, len(shared))
	for _, p := range capPaths(shared) {
		out[p] = fieldSamples{Gold: gold[p], Predicted: pred[p]}
	}
	return out
}
