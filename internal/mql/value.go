// Package mql parses MongoDB-style query text (find and aggregate
// shapes) into a structured form and analyzes it: permissive document
// decoding, field-path extraction, and stage-sequence extraction.
package mql

// Value is the base interface for all document tree nodes.
type Value interface {
	valueNode()
}

// Member is one key/value pair of an Object. Order is preserved.
type Member struct {
	Key   string
	Value Value
}

// Object is an ordered key→value document.
type Object struct {
	Members []Member
}

// Array is an ordered sequence of values.
type Array struct {
	Elements []Value
}

// ScalarKind classifies Scalar values.
type ScalarKind int

// Scalar kinds.
const (
	ScalarNull ScalarKind = iota
	ScalarBool
	ScalarInt
	ScalarFloat
	ScalarString
	ScalarRegex // slash-delimited pattern literal, e.g. /^A/i
)

// Scalar is a leaf value.
type Scalar struct {
	Kind    ScalarKind
	Str     string // string value, or regex pattern for ScalarRegex
	Int     int64
	Float   float64
	Bool    bool
	Options string // regex flags for ScalarRegex
}

func (*Object) valueNode() {}
func (*Array) valueNode()  {}
func (*Scalar) valueNode() {}

// Get returns the value for key and whether it is present.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	for _, m := range o.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Members)
}

// Set appends or replaces the value for key.
func (o *Object) Set(key string, v Value) {
	for i, m := range o.Members {
		if m.Key == key {
			o.Members[i].Value = v
			return
		}
	}
	o.Members = append(o.Members, Member{Key: key, Value: v})
}

// Null returns the null scalar.
func Null() *Scalar { return &Scalar{Kind: ScalarNull} }

// String returns a string scalar.
func String(s string) *Scalar { return &Scalar{Kind: ScalarString, Str: s} }

// Int returns an integer scalar.
func Int(n int64) *Scalar { return &Scalar{Kind: ScalarInt, Int: n} }

// Float returns a floating-point scalar.
func Float(f float64) *Scalar { return &Scalar{Kind: ScalarFloat, Float: f} }

// Bool returns a boolean scalar.
func Bool(b bool) *Scalar { return &Scalar{Kind: ScalarBool, Bool: b} }

// Regex returns a regex-literal scalar.
func Regex(pattern, options string) *Scalar {
	return &Scalar{Kind: ScalarRegex, Str: pattern, Options: options}
}

// Truthy reports whether a scalar counts as "enabled" in projection
// position (non-zero number or true).
func (s *Scalar) Truthy() bool {
	switch s.Kind {
	case ScalarBool:
		return s.Bool
	case ScalarInt:
		return s.Int != 0
	case ScalarFloat:
		return s.Float != 0
	default:
		return false
	}
}

// StringValue returns the string content and whether the value is a
// string scalar.
func StringValue(v Value) (string, bool) {
	s, ok := v.(*Scalar)
	if !ok || s.Kind != ScalarString {
		return "", false
	}
	return s.Str, true
}

// DeepEqual reports deep structural equality of two values: objects are
// equal iff they have the same key set and recursively equal values per
// key (member order is ignored), arrays are equal iff same length and
// pairwise equal, scalars iff identical kind and content.
func DeepEqual(a, b Value) bool {
	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, m := range av.Members {
			other, ok := bv.Get(m.Key)
			if !ok || !DeepEqual(m.Value, other) {
				return false
			}
		}
		return true
	case *Array:
		bv, ok := b.(*Array)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i, e := range av.Elements {
			if !DeepEqual(e, bv.Elements[i]) {
				return false
			}
		}
		return true
	case *Scalar:
		bv, ok := b.(*Scalar)
		if !ok || av.Kind != bv.Kind {
			// Integral floats and ints compare equal: the two execution
			// strategies may surface the same number differently.
			return numericEqual(av, b)
		}
		switch av.Kind {
		case ScalarNull:
			return true
		case ScalarBool:
			return av.Bool == bv.Bool
		case ScalarInt:
			return av.Int == bv.Int
		case ScalarFloat:
			return av.Float == bv.Float
		case ScalarString:
			return av.Str == bv.Str
		case ScalarRegex:
			return av.Str == bv.Str && av.Options == bv.Options
		}
		return false
	case nil:
		return b == nil
	}
	return false
}

func numericEqual(a *Scalar, b Value) bool {
	bs, ok := b.(*Scalar)
	if !ok {
		return false
	}
	af, aok := numeric(a)
	bf, bok := numeric(bs)
	return aok && bok && af == bf
}

func numeric(s *Scalar) (float64, bool) {
	switch s.Kind {
	case ScalarInt:
		return float64(s.Int), true
	case ScalarFloat:
		return s.Float, true
	default:
		return 0, false
	}
}

// Interface converts a value tree into plain Go values (map/slice/
// scalar) for JSON serialization. Object key order is lost; use only
// for previews and persisted output.
func Interface(v Value) interface{} {
	switch t := v.(type) {
	case *Object:
		m := make(map[string]interface{}, len(t.Members))
		for _, mem := range t.Members {
			m[mem.Key] = Interface(mem.Value)
		}
		return m
	case *Array:
		out := make([]interface{}, len(t.Elements))
		for i, e := range t.Elements {
			out[i] = Interface(e)
		}
		return out
	case *Scalar:
		switch t.Kind {
		case ScalarNull:
			return nil
		case ScalarBool:
			return t.Bool
		case ScalarInt:
			return t.Int
		case ScalarFloat:
			return t.Float
		case ScalarString:
			return t.Str
		case ScalarRegex:
			return "/" + t.Str + "/" + t.Options
		}
	}
	return nil
}

// FromInterface builds a value tree from plain decoded JSON values.
func FromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t))
		}
		return Float(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case string:
		return String(t)
	case []interface{}:
		arr := &Array{Elements: make([]Value, len(t))}
		for i, e := range t {
			arr.Elements[i] = FromInterface(e)
		}
		return arr
	case map[string]interface{}:
		obj := &Object{}
		for k, e := range t {
			obj.Members = append(obj.Members, Member{Key: k, Value: FromInterface(e)})
		}
		return obj
	}
	return Null()
}
