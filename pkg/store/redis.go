package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/monarch/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisStore keeps each collection in a hash (field = document id, value =
// JSON) and announces writes on a pub/sub channel per collection.
type RedisStore struct {
	client *redis.Client
	config *config.RedisConfig
	logger *zap.Logger
}

func NewRedisStore(cfg *config.RedisConfig, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
		logger: logger,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close(ctx context.Context) error {
	return r.client.Close()
}

func hashKey(path string) string {
	return "monarch:" + path
}

func changesChannel(path string) string {
	return "monarch:" + path + ":changes"
}

func (r *RedisStore) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	pubsub := r.client.Subscribe(ctx, changesChannel(path))
	// Wait for the subscription to be confirmed before the first read.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", path, err)
	}

	first, err := r.snapshot(ctx, path)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan Event, 1)
	out <- Event{Snapshot: first}

	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					send(ctx, out, Event{Err: fmt.Errorf("change channel for %s closed", path)})
					return
				}
			}
			snap, err := r.snapshot(ctx, path)
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
	}()

	return out, nil
}

func (r *RedisStore) snapshot(ctx context.Context, path string) (Snapshot, error) {
	values, err := r.client.HGetAll(ctx, hashKey(path)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Snapshot{Path: path, Docs: decodeHash(path, values, r.logger)}, nil
}

func decodeHash(path string, values map[string]string, logger *zap.Logger) []Document {
	raws := make([]jsonDoc, 0, len(values))
	for id, raw := range values {
		raws = append(raws, jsonDoc{ID: id, Raw: []byte(raw)})
	}
	return decodeEach(path, raws, decodeJSONDoc, logger)
}

func (r *RedisStore) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := r.Set(ctx, path, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisStore) Set(ctx context.Context, path, id string, fields map[string]any) error {
	data, err := json.Marshal(copyFields(fields))
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, hashKey(path), id, data).Err(); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", path, id, err)
	}
	return r.announce(ctx, path, id)
}

// Update merges fields into the stored document inside a WATCH transaction so
// two devices updating the same document cannot interleave.
func (r *RedisStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	key := hashKey(path)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%s/%s: %w", path, id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		var current map[string]any
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return err
		}
		for k, v := range copyFields(fields) {
			current[k] = v
		}
		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, data)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", path, id, err)
	}
	return r.announce(ctx, path, id)
}

func (r *RedisStore) Delete(ctx context.Context, path, id string) error {
	if err := r.client.HDel(ctx, hashKey(path), id).Err(); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", path, id, err)
	}
	return r.announce(ctx, path, id)
}

func (r *RedisStore) announce(ctx context.Context, path, id string) error {
	if err := r.client.Publish(ctx, changesChannel(path), id).Err(); err != nil {
		return fmt.Errorf("failed to announce change on %s: %w", path, err)
	}
	return nil
}
