package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const archiveCollection = "ledger_events"

// MongoArchive appends every event to a MongoDB collection as an audit trail.
type MongoArchive struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoArchive(ctx context.Context, uri, dbName string) (*MongoArchive, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoArchive{
		client:  client,
		coll:    client.Database(dbName).Collection(archiveCollection),
		timeout: 5 * time.Second,
	}, nil
}

// Publish inserts the event. The request context may already be finished, so
// the insert runs on a detached context with its own timeout.
func (a *MongoArchive) Publish(ctx context.Context, e Event) error {
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	doc, err := archiveDocument(e)
	if err != nil {
		return fmt.Errorf("archive event %s: %w", e.Action, err)
	}
	if _, err := a.coll.InsertOne(insertCtx, doc); err != nil {
		return fmt.Errorf("archive event %s: %w", e.Action, err)
	}
	return nil
}

// archiveDocument stores Data in its JSON shape so decimals, UUIDs and field
// names read the same in the archive as on the wire.
func archiveDocument(e Event) (Event, error) {
	if e.Data == nil {
		return e, nil
	}
	raw, err := json.Marshal(struct {
		Data any `json:"data"`
	}{e.Data})
	if err != nil {
		return e, fmt.Errorf("encode data: %w", err)
	}
	var wrapped struct {
		Data any `bson:"data"`
	}
	if err := bson.UnmarshalExtJSON(raw, false, &wrapped); err != nil {
		return e, fmt.Errorf("convert data: %w", err)
	}
	e.Data = wrapped.Data
	return e, nil
}

func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
