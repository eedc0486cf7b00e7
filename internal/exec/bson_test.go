package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mqleval/internal/mql"
)

func TestToBSON_PreservesKeyOrder(t *testing.T) {
	doc, err := mql.DecodeDocument(`{"z": 1, "a": {"$gt": 2}, "r": /x/i}`)
	require.NoError(t, err)

	d, ok := toBSON(doc).(bson.D)
	require.True(t, ok)
	require.Len(t, d, 3)
	assert.Equal(t, "z", d[0].Key)
	assert.Equal(t, "a", d[1].Key)
	assert.Equal(t, primitive.Regex{Pattern: "x", Options: "i"}, d[2].Value)
}

func TestFromBSON_ExtendedTypesMatchShellTokens(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("65f1ab65f1ab65f1ab65f1ab")
	require.NoError(t, err)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	doc := bson.D{
		{Key: "_id", Value: oid},
		{Key: "at", Value: primitive.DateTime(at.UnixMilli())},
		{Key: "n", Value: int64(42)},
		{Key: "f", Value: 2.5},
		{Key: "none", Value: primitive.Null{}},
	}

	v := fromBSON(doc)
	obj, ok := v.(*mql.Object)
	require.True(t, ok)

	id, _ := obj.Get("_id")
	assert.Equal(t, mql.String(`ObjectId("65f1ab65f1ab65f1ab65f1ab")`), id)
	got, _ := obj.Get("at")
	assert.Equal(t, mql.String(`ISODate("2024-01-02T03:04:05.000Z")`), got)
	n, _ := obj.Get("n")
	assert.Equal(t, mql.Int(42), n)
	f, _ := obj.Get("f")
	assert.Equal(t, mql.Float(2.5), f)
	none, _ := obj.Get("none")
	assert.Equal(t, mql.Null(), none)
}

// The same value observed through the driver and through normalized
// shell output must compare deeply equal, or the execution metric would
// depend on which strategy ran.
func TestPathEquivalence(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("65f1ab65f1ab65f1ab65f1ab")
	require.NoError(t, err)

	nativeDoc := fromBSON(bson.D{
		{Key: "_id", Value: oid},
		{Key: "n", Value: int64(7)},
	})

	shellDocs, err := DecodeShellOutput(
		`[{ "_id": ObjectId("65f1ab65f1ab65f1ab65f1ab"), "n": NumberLong("7") }]`)
	require.NoError(t, err)
	require.Len(t, shellDocs, 1)

	assert.True(t, mql.DeepEqual(nativeDoc, shellDocs[0]))
}
