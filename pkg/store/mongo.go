package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/monarch/pkg/config"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore maps every path to one collection. Subscriptions use change
// streams, which require a replica set; on a standalone server the stream
// reports an error after the initial snapshot.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
	logger   *zap.Logger
}

func NewMongoStore(cfg *config.MongoDBConfig, logger *zap.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	return &MongoStore{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
		logger:   logger,
	}, nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) collection(path string) *mongo.Collection {
	return m.database.Collection(collectionName(path))
}

func collectionName(path string) string {
	return strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
}

func (m *MongoStore) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	coll := m.collection(path)

	// Open the stream before the first read so no change falls in between.
	stream, watchErr := coll.Watch(ctx, mongo.Pipeline{})

	first, err := m.snapshot(ctx, path)
	if err != nil {
		if stream != nil {
			stream.Close(context.Background())
		}
		return nil, err
	}

	out := make(chan Event, 1)
	out <- Event{Snapshot: first}

	go func() {
		defer close(out)
		if watchErr != nil {
			send(ctx, out, Event{Err: fmt.Errorf("failed to watch %s: %w", path, watchErr)})
			return
		}
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			snap, err := m.snapshot(ctx, path)
			if err != nil {
				if !send(ctx, out, Event{Err: err}) {
					return
				}
				continue
			}
			if !send(ctx, out, Event{Snapshot: snap}) {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			send(ctx, out, Event{Err: fmt.Errorf("change stream on %s ended: %w", path, err)})
		}
	}()

	return out, nil
}

func (m *MongoStore) snapshot(ctx context.Context, path string) (Snapshot, error) {
	cursor, err := m.collection(path).Find(ctx, bson.M{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer cursor.Close(ctx)

	var raws []bson.Raw
	for cursor.Next(ctx) {
		// Current is reused by the next call to Next.
		raws = append(raws, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Snapshot{Path: path, Docs: decodeEach(path, raws, decodeRaw, m.logger)}, nil
}

// decodeRaw turns a BSON document into plain JSON values so every driver hands
// the mirror the same shapes.
func decodeRaw(raw bson.Raw) (Document, error) {
	if err := raw.Validate(); err != nil {
		return Document{}, fmt.Errorf("invalid document: %w", err)
	}

	var id string
	idVal := raw.Lookup("_id")
	if s, ok := idVal.StringValueOK(); ok {
		id = s
	} else if oid, ok := idVal.ObjectIDOK(); ok {
		id = oid.Hex()
	} else {
		id = idVal.String()
	}

	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return Document{}, err
	}
	var data map[string]any
	if err := json.Unmarshal(ext, &data); err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: copyFields(data)}, nil
}

func (m *MongoStore) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	doc := bson.M(copyFields(fields))
	doc["_id"] = id
	if _, err := m.collection(path).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", path, err)
	}
	return id, nil
}

func (m *MongoStore) Set(ctx context.Context, path, id string, fields map[string]any) error {
	doc := bson.M(copyFields(fields))
	doc["_id"] = id
	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection(path).ReplaceOne(ctx, bson.M{"_id": id}, doc, opts); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", path, id, err)
	}
	return nil
}

func (m *MongoStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	res, err := m.collection(path).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(copyFields(fields))})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", path, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", path, id, ErrNotFound)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, path, id string) error {
	if _, err := m.collection(path).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", path, id, err)
	}
	return nil
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
