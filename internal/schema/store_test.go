package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchema(t *testing.T, dir, dbID, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, dbID+".json"), []byte(content), 0o644)
	require.NoError(t, err)
}

func TestStore_Fields(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "hr", `{
		"employees": {
			"FIRST_NAME": "string",
			"LAST_NAME": "string",
			"jobs": [{"title": "string", "salary": "number"}]
		},
		"departments": {"name": "string"}
	}`)

	s := NewStore(dir)
	fields, err := s.Fields("hr")
	require.NoError(t, err)

	for _, want := range []string{
		"employees", "FIRST_NAME", "LAST_NAME", "jobs", "title", "salary",
		"departments", "name",
	} {
		assert.True(t, fields[want], "missing field %q", want)
	}
	assert.False(t, fields["string"], "values must not be collected")
}

func TestStore_CachesPerDatabase(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "a", `{"x": 1}`)

	s := NewStore(dir)
	first, err := s.Fields("a")
	require.NoError(t, err)

	// Mutating the file after first load must not change the cached set.
	writeSchema(t, dir, "a", `{"y": 1}`)
	second, err := s.Fields("a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, second["x"])
}

func TestStore_MissingSchema(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Fields("nope")
	assert.Error(t, err)
}
