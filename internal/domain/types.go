package domain

// ExampleRecord is one evaluation example: a database id, an optional
// natural-language question (kept for diagnostics only), and the gold
// and predicted query text.
type ExampleRecord struct {
	RecordID  string `json:"record_id,omitempty"`
	DBID      string `json:"db_id"`
	NLQ       string `json:"nlq,omitempty"`
	Gold      string `json:"target"`
	Predicted string `json:"prediction"`
}

// MetricVector holds the six 0/1 metric flags for one example.
type MetricVector struct {
	EM  int `json:"EM"`
	QSM int `json:"QSM"`
	QFC int `json:"QFC"`
	EX  int `json:"EX"`
	EFM int `json:"EFM"`
	EVM int `json:"EVM"`
}

// Add accumulates another vector into the receiver.
func (m *MetricVector) Add(o MetricVector) {
	m.EM += o.EM
	m.QSM += o.QSM
	m.QFC += o.QFC
	m.EX += o.EX
	m.EFM += o.EFM
	m.EVM += o.EVM
}

// MetricMeans holds per-metric mean rates in [0,1].
type MetricMeans struct {
	EM  float64 `json:"EM"`
	QSM float64 `json:"QSM"`
	QFC float64 `json:"QFC"`
	EX  float64 `json:"EX"`
	EFM float64 `json:"EFM"`
	EVM float64 `json:"EVM"`
}

// FailedExample records one example whose execution result did not
// match the gold result (EX=0).
type FailedExample struct {
	NLQ       string `json:"NLQ"`
	DBID      string `json:"db_id"`
	Predicted string `json:"prediction"`
	Gold      string `json:"target"`
	Flag      bool   `json:"flag"`
}

// Report is the aggregate output of one batch run.
type Report struct {
	RunID     string             `json:"run_id"`
	Total     int                `json:"total"`
	Processed int                `json:"processed"`
	Means     MetricMeans        `json:"means"`
	Failures  []FailedExample    `json:"failures,omitempty"`
	Timings   map[string]float64 `json:"timings_seconds,omitempty"`
}
