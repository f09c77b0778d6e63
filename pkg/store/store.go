package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"

	"go.uber.org/zap"
)

// Collection names under the shared namespace.
const (
	Routes   = "routes"
	Shops    = "shops"
	Orders   = "orders"
	Expenses = "expenses"
	Products = "brands"
	Settings = "settings"

	ProfileID = "profile"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("store closed")
)

// Document is one stored document. Data never contains the id.
type Document struct {
	ID   string
	Data map[string]any
}

// Snapshot is the complete current content of a collection, not a diff.
type Snapshot struct {
	Path string
	Docs []Document
}

// Find returns the document with the given id.
func (s Snapshot) Find(id string) (Document, bool) {
	for _, d := range s.Docs {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// Event is delivered on a subscription channel. Exactly one of Snapshot or Err
// is meaningful.
type Event struct {
	Snapshot Snapshot
	Err      error
}

// Store is a remote document store holding named collections.
//
// Subscribe delivers a full snapshot immediately and then one after every
// change at path. The channel is closed when ctx is cancelled or the stream
// ends; errors are delivered as events and are not retried.
type Store interface {
	Subscribe(ctx context.Context, path string) (<-chan Event, error)
	Add(ctx context.Context, path string, fields map[string]any) (string, error)
	Set(ctx context.Context, path, id string, fields map[string]any) error
	Update(ctx context.Context, path, id string, fields map[string]any) error
	Delete(ctx context.Context, path, id string) error
	Close(ctx context.Context) error
}

// Namespace builds collection paths under artifacts/{appID}/public/data.
type Namespace struct {
	AppID string
}

func (n Namespace) Collection(name string) string {
	return path.Join("artifacts", n.AppID, "public", "data", name)
}

// sortDocs orders documents by id so every driver emits a stable snapshot.
func sortDocs(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

// decodeEach decodes the raw documents of one snapshot. A document that fails
// to decode is logged and left out; the rest of the snapshot still applies.
func decodeEach[T any](path string, raws []T, decode func(T) (Document, error), logger *zap.Logger) []Document {
	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := decode(raw)
		if err != nil {
			logger.Warn("Skipping undecodable document",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	sortDocs(docs)
	return docs
}

// jsonDoc is a document id with its JSON encoded body, as Redis and etcd keep it.
type jsonDoc struct {
	ID  string
	Raw []byte
}

func decodeJSONDoc(d jsonDoc) (Document, error) {
	var data map[string]any
	if err := json.Unmarshal(d.Raw, &data); err != nil {
		return Document{}, fmt.Errorf("document %s: %w", d.ID, err)
	}
	return Document{ID: d.ID, Data: copyFields(data)}, nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" || k == "_id" {
			continue
		}
		out[k] = v
	}
	return out
}
