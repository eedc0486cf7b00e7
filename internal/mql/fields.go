package mql

import (
	"sort"
	"strings"
)

// Field extraction walks stage payloads and collects the source field
// paths a query reads. Output keys introduced by the query itself
// (group accumulators, project expressions, lookup aliases) are tracked
// as computed fields and never credited as sources.

// accumulator names whose operand may be a field reference.
var groupAccumulators = map[string]bool{
	"$sum": true, "$avg": true, "$max": true, "$min": true,
	"$first": true, "$last": true, "$push": true, "$addToSet": true,
}

// fieldContext carries per-call extraction state. A fresh context is
// built for every query so no analysis leaks between calls.
type fieldContext struct {
	fields   map[string]bool
	computed map[string]bool
	schema   map[string]bool // known field names; nil disables schema awareness
}

// ExtractFields returns the sorted set of source field paths referenced
// by the query.
func ExtractFields(q *Query) []string {
	return extractFields(q, nil)
}

// ExtractFieldsSchema is the schema-aware variant used for field
// coverage scoring: paths are resolved against the database's known
// field names so that nesting aliases (e.g. "employees.FIRST_NAME")
// credit the underlying schema fields.
func ExtractFieldsSchema(q *Query, schemaFields map[string]bool) []string {
	return extractFields(q, schemaFields)
}

func extractFields(q *Query, schemaFields map[string]bool) []string {
	ctx := &fieldContext{
		fields:   make(map[string]bool),
		computed: make(map[string]bool),
		schema:   schemaFields,
	}
	if q != nil {
		ctx.walkStages(q.Stages)
	}

	out := make([]string, 0, len(ctx.fields))
	for f := range ctx.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (c *fieldContext) walkStages(stages []Stage) {
	for _, st := range stages {
		switch st.Op {
		case "match":
			c.walkMatch(st.Body)
		case "group":
			c.walkGroup(st.Body)
		case "project":
			c.walkProject(st.Body)
		case "lookup":
			c.walkLookup(st.Body)
		case "unwind":
			c.walkUnwind(st.Body)
		case "sort":
			c.walkSort(st.Body)
		case "count", "limit", "skip":
			// No field contribution.
		}
	}
}

// add records a field path unless an exclusion rule applies: pipeline
// variables ($$), the reserved grouping prefix (_id.), and anything
// equal to or nested under a computed field.
func (c *fieldContext) add(path string) {
	if c.excluded(path) {
		return
	}
	if c.schema != nil {
		c.addSchemaResolved(path)
		return
	}
	c.fields[path] = true
}

func (c *fieldContext) excluded(path string) bool {
	if strings.HasPrefix(path, "$$") || strings.HasPrefix(path, "_id.") {
		return true
	}
	if c.computed[path] {
		return true
	}
	for name := range c.computed {
		if strings.HasPrefix(path, name+".") {
			return true
		}
	}
	return false
}

// addSchemaResolved credits the segments of a dotted path that name
// known schema fields; a path with no schema-known segment is credited
// whole. This disambiguates nesting aliases for coverage scoring.
func (c *fieldContext) addSchemaResolved(path string) {
	segments := strings.Split(path, ".")
	matched := false
	for _, seg := range segments {
		if c.schema[seg] {
			c.fields[seg] = true
			matched = true
		}
	}
	if !matched {
		c.fields[path] = true
	}
}

func (c *fieldContext) markComputed(name string) {
	c.computed[name] = true
}

// walkMatch handles $match payloads and find filters.
func (c *fieldContext) walkMatch(body Value) {
	obj, ok := body.(*Object)
	if !ok {
		return
	}
	c.walkCondition(obj, "")
}

// walkCondition recursively extracts fields from a condition document.
func (c *fieldContext) walkCondition(obj *Object, parent string) {
	for _, m := range obj.Members {
		switch {
		case m.Key == "$expr":
			c.walkExpr(m.Value)
		case m.Key == "$and" || m.Key == "$or" || m.Key == "$nor":
			// Each element is an independent condition document.
			if arr, ok := m.Value.(*Array); ok {
				for _, e := range arr.Elements {
					if sub, ok := e.(*Object); ok {
						c.walkCondition(sub, parent)
					}
				}
			}
		case strings.HasPrefix(m.Key, "$"):
			// Other operators carry no field of their own.
		default:
			fullKey := joinPath(parent, m.Key)
			switch v := m.Value.(type) {
			case *Object:
				// A field keyed to a pure operator document (e.g. a
				// comparison) contributes the key itself.
				if allOperatorKeys(v) {
					c.add(fullKey)
				}
				c.walkCondition(v, fullKey)
			case *Array:
				for _, e := range v.Elements {
					if sub, ok := e.(*Object); ok {
						c.walkCondition(sub, fullKey)
					}
				}
			default:
				c.add(fullKey)
			}
		}
	}
}

// walkExpr handles an $expr subtree: every $-prefixed string inside
// contributes its stripped path; literals are ignored.
func (c *fieldContext) walkExpr(v Value) {
	switch t := v.(type) {
	case *Object:
		for _, m := range t.Members {
			c.walkExpr(m.Value)
		}
	case *Array:
		for _, e := range t.Elements {
			c.walkExpr(e)
		}
	case *Scalar:
		if t.Kind == ScalarString && strings.HasPrefix(t.Str, "$") {
			c.addRef(t.Str)
		}
	}
}

// addRef adds a "$path" reference, preserving the $$ exclusion: only a
// single leading dollar is stripped, so pipeline variables still start
// with "$" and are dropped by the exclusion rules.
func (c *fieldContext) addRef(ref string) {
	if strings.HasPrefix(ref, "$$") {
		return
	}
	c.add(strings.TrimPrefix(ref, "$"))
}

func (c *fieldContext) walkGroup(body Value) {
	obj, ok := body.(*Object)
	if !ok {
		return
	}
	// Mark output keys first so self-referential accumulators in the
	// same stage do not credit their own output name.
	for _, m := range obj.Members {
		if m.Key != "_id" {
			c.markComputed(m.Key)
		}
	}
	for _, m := range obj.Members {
		if m.Key == "_id" {
			switch v := m.Value.(type) {
			case *Scalar:
				if v.Kind == ScalarString && strings.HasPrefix(v.Str, "$") {
					c.addRef(v.Str)
				}
			case *Object:
				// Document of named sub-references.
				for _, sub := range v.Members {
					if s, ok := StringValue(sub.Value); ok && strings.HasPrefix(s, "$") {
						c.addRef(s)
					}
				}
			}
			continue
		}
		if acc, ok := m.Value.(*Object); ok {
			for _, sub := range acc.Members {
				if !groupAccumulators[sub.Key] {
					continue
				}
				if s, ok := StringValue(sub.Value); ok && strings.HasPrefix(s, "$") {
					c.addRef(s)
				}
			}
		}
	}
}

// walkProject handles $project payloads and find projections.
func (c *fieldContext) walkProject(body Value) {
	obj, ok := body.(*Object)
	if !ok {
		return
	}
	for _, m := range obj.Members {
		if strings.HasPrefix(m.Key, "$") {
			continue
		}
		switch v := m.Value.(type) {
		case *Scalar:
			if v.Kind == ScalarString && strings.HasPrefix(v.Str, "$") {
				c.addRef(v.Str)
			} else if v.Truthy() {
				c.add(m.Key)
			}
		case *Object:
			// Expression output: the key is computed, but fields
			// referenced inside the expression still get credit.
			c.markComputed(m.Key)
			c.walkExpr(v)
		case *Array:
			c.markComputed(m.Key)
			c.walkExpr(v)
		}
	}
}

func (c *fieldContext) walkLookup(body Value) {
	obj, ok := body.(*Object)
	if !ok {
		return
	}
	if as, ok := obj.Get("as"); ok {
		if s, ok := StringValue(as); ok {
			c.markComputed(s)
		}
	}
	if lf, ok := obj.Get("localField"); ok {
		if s, ok := StringValue(lf); ok {
			c.add(s)
		}
	}
	if ff, ok := obj.Get("foreignField"); ok {
		if s, ok := StringValue(ff); ok {
			c.add(s)
		}
	}
	// let bindings contribute both the alias and the referenced field.
	if let, ok := obj.Get("let"); ok {
		if letObj, ok := let.(*Object); ok {
			for _, m := range letObj.Members {
				c.add(m.Key)
				if s, ok := StringValue(m.Value); ok && strings.HasPrefix(s, "$") {
					c.addRef(s)
				}
			}
		}
	}
	// Correlated sub-pipeline: extract in the context of the foreign
	// collection and merge into the same set.
	if pipe, ok := obj.Get("pipeline"); ok {
		if arr, ok := pipe.(*Array); ok {
			c.walkStages(subStages(arr))
		}
	}
}

// subStages converts a decoded sub-pipeline array into stages.
func subStages(arr *Array) []Stage {
	var stages []Stage
	for _, e := range arr.Elements {
		doc, ok := e.(*Object)
		if !ok {
			continue
		}
		op, body := stageOperator(doc)
		stages = append(stages, Stage{Op: op, Body: body, Doc: doc})
	}
	return stages
}

func (c *fieldContext) walkUnwind(body Value) {
	switch v := body.(type) {
	case *Scalar:
		if v.Kind == ScalarString {
			c.addRef(v.Str)
		}
	case *Object:
		if p, ok := v.Get("path"); ok {
			if s, ok := StringValue(p); ok {
				c.addRef(s)
			}
		}
	}
}

func (c *fieldContext) walkSort(body Value) {
	obj, ok := body.(*Object)
	if !ok {
		return
	}
	for _, m := range obj.Members {
		if !strings.HasPrefix(m.Key, "$") {
			c.add(m.Key)
		}
	}
}

func allOperatorKeys(obj *Object) bool {
	if obj.Len() == 0 {
		return false
	}
	for _, m := range obj.Members {
		if !strings.HasPrefix(m.Key, "$") {
			return false
		}
	}
	return true
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
