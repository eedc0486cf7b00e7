// Package exec executes MQL query text against a MongoDB deployment
// using a native-driver fast path with a mongosh subprocess fallback,
// memoizing results per (database, normalized query text).
package exec

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mqleval/internal/mql"
)

// toBSON converts a document tree into driver values, preserving key
// order via bson.D.
func toBSON(v mql.Value) interface{} {
	switch t := v.(type) {
	case *mql.Object:
		d := make(bson.D, 0, len(t.Members))
		for _, m := range t.Members {
			d = append(d, bson.E{Key: m.Key, Value: toBSON(m.Value)})
		}
		return d
	case *mql.Array:
		a := make(bson.A, 0, len(t.Elements))
		for _, e := range t.Elements {
			a = append(a, toBSON(e))
		}
		return a
	case *mql.Scalar:
		switch t.Kind {
		case mql.ScalarNull:
			return nil
		case mql.ScalarBool:
			return t.Bool
		case mql.ScalarInt:
			return t.Int
		case mql.ScalarFloat:
			return t.Float
		case mql.ScalarString:
			return t.Str
		case mql.ScalarRegex:
			return primitive.Regex{Pattern: t.Str, Options: t.Options}
		}
	}
	return nil
}

// fromBSON converts driver result values back into the document tree.
// Extended types are rendered as the same string tokens the shell
// fallback produces after literal-pattern normalization, so the two
// strategies yield comparable results.
func fromBSON(v interface{}) mql.Value {
	switch t := v.(type) {
	case nil:
		return mql.Null()
	case bson.D:
		obj := &mql.Object{Members: make([]mql.Member, 0, len(t))}
		for _, e := range t {
			obj.Members = append(obj.Members, mql.Member{Key: e.Key, Value: fromBSON(e.Value)})
		}
		return obj
	case bson.M:
		obj := &mql.Object{}
		for k, e := range t {
			obj.Members = append(obj.Members, mql.Member{Key: k, Value: fromBSON(e)})
		}
		return obj
	case bson.A:
		arr := &mql.Array{Elements: make([]mql.Value, 0, len(t))}
		for _, e := range t {
			arr.Elements = append(arr.Elements, fromBSON(e))
		}
		return arr
	case bool:
		return mql.Bool(t)
	case string:
		return mql.String(t)
	case int32:
		return mql.Int(int64(t))
	case int64:
		return mql.Int(t)
	case int:
		return mql.Int(int64(t))
	case float64:
		return mql.Float(t)
	case primitive.ObjectID:
		return mql.String(fmt.Sprintf("ObjectId(%q)", t.Hex()))
	case primitive.DateTime:
		return mql.String(isoDate(t.Time()))
	case time.Time:
		return mql.String(isoDate(t))
	case primitive.Decimal128:
		if f, err := strconv.ParseFloat(t.String(), 64); err == nil {
			return mql.Float(f)
		}
		return mql.String(t.String())
	case primitive.Timestamp:
		return mql.String(fmt.Sprintf("Timestamp({ t: %d, i: %d })", t.T, t.I))
	case primitive.Binary:
		return mql.String(fmt.Sprintf("BinData(%d,%q)", t.Subtype,
			base64.StdEncoding.EncodeToString(t.Data)))
	case primitive.Regex:
		return mql.Regex(t.Pattern, t.Options)
	case primitive.Null, primitive.Undefined:
		return mql.Null()
	}
	return mql.String(fmt.Sprintf("%v", v))
}

// isoDate renders a timestamp the way mongosh prints ISODate values.
func isoDate(t time.Time) string {
	return fmt.Sprintf("ISODate(%q)", t.UTC().Format("2006-01-02T15:04:05.000Z"))
}
