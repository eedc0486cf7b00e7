package exec

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mqleval/internal/mql"
)

// Native is the fast-path strategy: it submits a parsed query directly
// through the driver against the named database.
type Native struct {
	client       *mongo.Client
	allowDiskUse bool
}

// NewNative wraps a connected client.
func NewNative(client *mongo.Client, allowDiskUse bool) *Native {
	return &Native{client: client, allowDiskUse: allowDiskUse}
}

// Connect dials the deployment at uri.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}
	return client, nil
}

// Run executes a parsed query and materializes the cursor.
func (n *Native) Run(ctx context.Context, dbID string, q *mql.Query) ([]mql.Value, error) {
	coll := n.client.Database(dbID).Collection(q.Collection)

	var cursor *mongo.Cursor
	var err error
	switch q.Kind {
	case mql.KindAggregate:
		pipeline := make(bson.A, 0, len(q.Stages))
		for _, st := range q.Stages {
			if st.Doc == nil {
				continue
			}
			pipeline = append(pipeline, toBSON(st.Doc))
		}
		opts := options.Aggregate().SetAllowDiskUse(n.allowDiskUse)
		cursor, err = coll.Aggregate(ctx, pipeline, opts)
	case mql.KindFind:
		filter, opts := findPlan(q)
		cursor, err = coll.Find(ctx, filter, opts)
	default:
		return nil, fmt.Errorf("unknown query kind %d", q.Kind)
	}
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx) //nolint:errcheck

	var raw []bson.D
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	docs := make([]mql.Value, 0, len(raw))
	for _, d := range raw {
		docs = append(docs, fromBSON(d))
	}
	return docs, nil
}

// findPlan maps find pseudo-stages onto a driver filter and options.
func findPlan(q *mql.Query) (interface{}, *options.FindOptions) {
	filter := interface{}(bson.D{})
	opts := options.Find()
	for _, st := range q.Stages {
		switch st.Op {
		case "match":
			filter = toBSON(st.Body)
		case "project":
			opts.SetProjection(toBSON(st.Body))
		case "sort":
			opts.SetSort(toBSON(st.Body))
		case "limit":
			if n, ok := intArg(st.Body); ok {
				opts.SetLimit(n)
			}
		case "skip":
			if n, ok := intArg(st.Body); ok {
				opts.SetSkip(n)
			}
		}
	}
	return filter, opts
}

func intArg(v mql.Value) (int64, bool) {
	s, ok := v.(*mql.Scalar)
	if !ok {
		return 0, false
	}
	switch s.Kind {
	case mql.ScalarInt:
		return s.Int, true
	case mql.ScalarFloat:
		return int64(s.Float), true
	}
	return 0, false
}
