// Package schema loads per-database schema documents and exposes their
// field-name sets to the schema-aware field extractor.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store reads <db_id>.json schema documents from a directory and caches
// the extracted field-name set per database for the run.
type Store struct {
	dir string

	mu     sync.Mutex
	fields map[string]map[string]bool
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, fields: make(map[string]map[string]bool)}
}

// Fields returns the set of field names for the database, loading and
// caching the schema document on first use.
func (s *Store) Fields(dbID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.fields[dbID]; ok {
		return f, nil
	}

	path := filepath.Join(s.dir, dbID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", dbID, err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema for %s: %w", dbID, err)
	}

	f := make(map[string]bool)
	collectFieldNames(doc, f)
	s.fields[dbID] = f
	return f, nil
}

// collectFieldNames gathers every key name in the schema document,
// recursing through nested objects and array elements. Paths are not
// joined: the schema exposes bare field names.
func collectFieldNames(v interface{}, out map[string]bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, sub := range t {
			out[k] = true
			collectFieldNames(sub, out)
		}
	case []interface{}:
		for _, e := range t {
			collectFieldNames(e, out)
		}
	}
}
