package mql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper to parse query text.
func parseQuery(t *testing.T, text string) *Query {
	t.Helper()
	q, err := ParseQuery(text)
	require.NoError(t, err, "parse query: %s", text)
	return q
}

// stageOps returns the operator names of a parsed query's stages.
func stageOps(q *Query) []string {
	var ops []string
	for _, st := range q.Stages {
		ops = append(ops, st.Op)
	}
	return ops
}

func TestParseQuery_Find(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		collection string
		ops        []string
	}{
		{
			name:       "filter only",
			text:       `db.users.find({"status": "active"})`,
			collection: "users",
			ops:        []string{"match"},
		},
		{
			name:       "filter and projection",
			text:       `db.users.find({"status": "active"}, {"name": 1, "_id": 0})`,
			collection: "users",
			ops:        []string{"match", "project"},
		},
		{
			name:       "empty filter synthesizes no stages",
			text:       `db.users.find({})`,
			collection: "users",
			ops:        nil,
		},
		{
			name:       "no arguments",
			text:       `db.users.find()`,
			collection: "users",
			ops:        nil,
		},
		{
			name:       "chained sort and limit",
			text:       `db.orders.find({"total": {"$gt": 100}}).sort({"total": -1}).limit(5)`,
			collection: "orders",
			ops:        []string{"match", "sort", "limit"},
		},
		{
			name:       "trailing toArray and semicolon",
			text:       `db.orders.find({"total": 3}).toArray();`,
			collection: "orders",
			ops:        []string{"match"},
		},
		{
			name:       "unquoted keys and single quotes",
			text:       `db.users.find({status: 'active'}, {name: 1})`,
			collection: "users",
			ops:        []string{"match", "project"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := parseQuery(t, tt.text)
			assert.Equal(t, KindFind, q.Kind)
			assert.Equal(t, tt.collection, q.Collection)
			assert.Equal(t, tt.ops, stageOps(q))
		})
	}
}

func TestParseQuery_FindStageOrder(t *testing.T) {
	// Synthesized pseudo-stages keep the fixed order regardless of how
	// the chained calls are interleaved with arguments.
	q := parseQuery(t, `db.users.find({"a": 1}, {"b": 1}).sort({"c": 1}).limit(10)`)
	assert.Equal(t, []string{"match", "project", "sort", "limit"}, stageOps(q))
}

func TestParseQuery_Aggregate(t *testing.T) {
	q := parseQuery(t, `db.employees.aggregate([
		{"$match": {"age": {"$gt": 30}}},
		{"$group": {"_id": "$dept", "n": {"$sum": 1}}},
		{"$sort": {"n": -1}},
		{"$limit": 3}
	])`)
	assert.Equal(t, KindAggregate, q.Kind)
	assert.Equal(t, "employees", q.Collection)
	assert.Equal(t, []string{"match", "group", "sort", "limit"}, stageOps(q))

	// Stage documents survive for the native path.
	require.NotNil(t, q.Stages[0].Doc)
	_, ok := q.Stages[0].Doc.Get("$match")
	assert.True(t, ok)
}

func TestParseQuery_FindArgRepair(t *testing.T) {
	// A projection fragment whose braces were mangled still decodes via
	// the structural repair pass.
	q := parseQuery(t, `db.users.find({"a": {"$in": [1, 2]}}, {"b": 1, "c": {"d": 1}})`)
	assert.Equal(t, []string{"match", "project"}, stageOps(q))
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not a db call", `users.find({})`},
		{"unsupported method", `db.users.drop()`},
		{"unbalanced parens", `db.users.find({"a": 1}`},
		{"unsupported chained call", `db.users.find({}).explain()`},
		{"trailing garbage after aggregate", `db.users.aggregate([]).count()`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery(tt.text)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t,
		`db.users.find({"a": 1})`,
		NormalizeWhitespace("  db.users.find({\"a\":\n\t 1})  "))
	assert.Equal(t, "", NormalizeWhitespace("   "))
}
