package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/monarch/pkg/config"
	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// EtcdStore stores one key per document: {prefix}{path}/{id}.
type EtcdStore struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
}

func NewEtcdStore(cfg *config.EtcdConfig, logger *zap.Logger) (*EtcdStore, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdStore{
		client: cli,
		config: cfg,
		logger: logger,
	}, nil
}

func (e *EtcdStore) Close(ctx context.Context) error {
	return e.client.Close()
}

func (e *EtcdStore) collectionPrefix(path string) string {
	return e.config.Prefix + strings.Trim(path, "/") + "/"
}

func (e *EtcdStore) key(path, id string) string {
	return e.collectionPrefix(path) + id
}

func (e *EtcdStore) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	first, rev, err := e.snapshot(ctx, path)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 1)
	out <- Event{Snapshot: first}

	watch := e.client.Watch(ctx, e.collectionPrefix(path), clientv3.WithPrefix(), clientv3.WithRev(rev+1))

	go func() {
		defer close(out)
		for resp := range watch {
			if err := resp.Err(); err != nil {
				if !send(ctx, out, Event{Err: fmt.Errorf("watch on %s: %w", path, err)}) {
					return
				}
				continue
			}
			if len(resp.Events) == 0 {
				continue
			}
			snap, _, err := e.snapshot(ctx, path)
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

func (e *EtcdStore) snapshot(ctx context.Context, path string) (Snapshot, int64, error) {
	prefix := e.collectionPrefix(path)
	resp, err := e.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return Snapshot{}, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	raws := make([]jsonDoc, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id := strings.TrimPrefix(string(kv.Key), prefix)
		if id == "" || strings.Contains(id, "/") {
			continue
		}
		raws = append(raws, jsonDoc{ID: id, Raw: kv.Value})
	}
	docs := decodeEach(path, raws, decodeJSONDoc, e.logger)
	return Snapshot{Path: path, Docs: docs}, resp.Header.Revision, nil
}

func (e *EtcdStore) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := e.Set(ctx, path, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (e *EtcdStore) Set(ctx context.Context, path, id string, fields map[string]any) error {
	data, err := json.Marshal(copyFields(fields))
	if err != nil {
		return err
	}
	if _, err := e.client.Put(ctx, e.key(path, id), string(data)); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", path, id, err)
	}
	return nil
}

// Update merges fields with a compare-and-swap on the key's mod revision.
func (e *EtcdStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	key := e.key(path, id)
	resp, err := e.client.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read %s/%s: %w", path, id, err)
	}
	if len(resp.Kvs) == 0 {
		return fmt.Errorf("%s/%s: %w", path, id, ErrNotFound)
	}
	kv := resp.Kvs[0]

	var current map[string]any
	if err := json.Unmarshal(kv.Value, &current); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", path, id, err)
	}
	for k, v := range copyFields(fields) {
		current[k] = v
	}
	data, err := json.Marshal(current)
	if err != nil {
		return err
	}

	txn, err := e.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", path, id, err)
	}
	if !txn.Succeeded {
		return fmt.Errorf("failed to update %s/%s: concurrent modification", path, id)
	}
	return nil
}

func (e *EtcdStore) Delete(ctx context.Context, path, id string) error {
	if _, err := e.client.Delete(ctx, e.key(path, id)); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", path, id, err)
	}
	return nil
}
