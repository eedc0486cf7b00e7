package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"mqleval/internal/domain"
)

// Key variants seen across benchmark dumps. The first present,
// non-empty variant wins.
var (
	goldKeys      = []string{"target", "MQL", "gold"}
	predictedKeys = []string{"prediction", "MQL_pred", "predicted"}
	nlqKeys       = []string{"NLQ", "nlq", "question"}
	dbKeys        = []string{"db_id", "db"}
	idKeys        = []string{"record_id", "id"}
)

// LoadExamples reads a dataset dump: a JSON array of records carrying
// gold and predicted query text under any of the known key variants.
// When cleanEscapes is set, literal escaped newlines inside query text
// are collapsed to spaces before parsing.
func LoadExamples(path string, cleanEscapes bool) ([]domain.ExampleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}

	records := make([]domain.ExampleRecord, 0, len(raw))
	for i, entry := range raw {
		rec := domain.ExampleRecord{
			RecordID:  firstString(entry, idKeys),
			DBID:      firstString(entry, dbKeys),
			NLQ:       firstString(entry, nlqKeys),
			Gold:      firstString(entry, goldKeys),
			Predicted: firstString(entry, predictedKeys),
		}
		if rec.RecordID == "" {
			rec.RecordID = fmt.Sprintf("%d", i)
		}
		if cleanEscapes {
			rec.Gold = cleanQueryText(rec.Gold)
			rec.Predicted = cleanQueryText(rec.Predicted)
		}
		records = append(records, rec)
	}
	return records, nil
}

// MergePredictions fills empty predicted text from an auxiliary
// predictions file: either a JSON object mapping record id to query
// text, or a JSON array aligned with the dataset by position. Existing
// non-empty predictions are kept.
func MergePredictions(records []domain.ExampleRecord, path string, cleanEscapes bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read predictions: %w", err)
	}

	byID := map[string]string{}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMap); err == nil {
		for id, raw := range asMap {
			byID[id] = rawToString(raw)
		}
	} else {
		var asList []map[string]json.RawMessage
		if err := json.Unmarshal(data, &asList); err != nil {
			return fmt.Errorf("decode predictions %s: %w", path, err)
		}
		for i, entry := range asList {
			id := firstString(entry, idKeys)
			if id == "" {
				id = fmt.Sprintf("%d", i)
			}
			byID[id] = firstString(entry, predictedKeys)
		}
	}

	for i := range records {
		if records[i].Predicted != "" {
			continue
		}
		text := byID[records[i].RecordID]
		if cleanEscapes {
			text = cleanQueryText(text)
		}
		records[i].Predicted = text
	}
	return nil
}

// cleanQueryText collapses literal and escaped newlines into single
// spaces so multi-line model output parses as one query.
func cleanQueryText(s string) string {
	s = strings.ReplaceAll(s, `\n`, " ")
	s = strings.ReplaceAll(s, `\t`, " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

func firstString(entry map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := entry[k]
		if !ok {
			continue
		}
		if s := rawToString(raw); s != "" {
			return s
		}
	}
	return ""
}

// rawToString accepts both string and numeric JSON values, since
// record ids appear as either across dumps.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
