package mutation

import (
	"context"
	"fmt"
	"time"

	"github.com/example/monarch/pkg/config"
	"github.com/example/monarch/pkg/identity"
	"github.com/example/monarch/pkg/models"
	"github.com/example/monarch/pkg/store"
	"go.uber.org/zap"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionSet    Action = "set"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Mutation describes a write that the store acknowledged.
type Mutation struct {
	Action     Action
	Collection string
	DocumentID string
	UserID     string
	Fields     map[string]any
	At         time.Time
}

// Recorder is told about every acknowledged mutation, e.g. to keep an audit
// trail. Its errors never fail the mutation.
type Recorder interface {
	RecordMutation(ctx context.Context, m Mutation) error
}

// IdentitySource reports the resolved identity, if any.
type IdentitySource interface {
	Current() (identity.Identity, bool)
}

// Gateway is the only path for writes. Every call is a silent no-op while the
// identity is unresolved.
type Gateway struct {
	store    store.Store
	ids      IdentitySource
	ns       store.Namespace
	layout   string
	clock    func() time.Time
	recorder Recorder
	logger   *zap.Logger
}

type Option func(*Gateway)

func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) { g.clock = clock }
}

func WithDateLayout(layout string) Option {
	return func(g *Gateway) { g.layout = layout }
}

func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

func New(st store.Store, ids IdentitySource, ns store.Namespace, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		store:  st,
		ids:    ids,
		ns:     ns,
		layout: config.DefaultDateLayout,
		clock:  time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Ready() bool {
	_, ok := g.ids.Current()
	return ok
}

// Create adds a document stamped with the creation time (Unix ms) and the
// calendar date. It returns the new document id.
func (g *Gateway) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id, ok := g.guard(ActionCreate, collection)
	if !ok {
		return "", nil
	}

	now := g.clock()
	data := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		data[k] = v
	}
	data["timestamp"] = now.UnixMilli()
	data["date"] = now.Format(g.layout)

	docID, err := g.store.Add(ctx, g.ns.Collection(collection), data)
	if err != nil {
		g.logger.Error("Create failed", zap.String("collection", collection), zap.Error(err))
		return "", fmt.Errorf("failed to create in %s: %w", collection, err)
	}

	g.record(ctx, Mutation{Action: ActionCreate, Collection: collection, DocumentID: docID, UserID: id.UID, Fields: data, At: now})
	return docID, nil
}

// Set overwrites the whole document.
func (g *Gateway) Set(ctx context.Context, collection, docID string, fields map[string]any) error {
	id, ok := g.guard(ActionSet, collection)
	if !ok {
		return nil
	}
	if err := g.store.Set(ctx, g.ns.Collection(collection), docID, fields); err != nil {
		g.logger.Error("Set failed", zap.String("collection", collection), zap.String("id", docID), zap.Error(err))
		return fmt.Errorf("failed to set %s/%s: %w", collection, docID, err)
	}
	g.record(ctx, Mutation{Action: ActionSet, Collection: collection, DocumentID: docID, UserID: id.UID, Fields: fields, At: g.clock()})
	return nil
}

// Update merges fields into an existing document.
func (g *Gateway) Update(ctx context.Context, collection, docID string, fields map[string]any) error {
	id, ok := g.guard(ActionUpdate, collection)
	if !ok {
		return nil
	}
	if err := g.store.Update(ctx, g.ns.Collection(collection), docID, fields); err != nil {
		g.logger.Error("Update failed", zap.String("collection", collection), zap.String("id", docID), zap.Error(err))
		return fmt.Errorf("failed to update %s/%s: %w", collection, docID, err)
	}
	g.record(ctx, Mutation{Action: ActionUpdate, Collection: collection, DocumentID: docID, UserID: id.UID, Fields: fields, At: g.clock()})
	return nil
}

// Delete removes one document. Dependent documents are left in place.
func (g *Gateway) Delete(ctx context.Context, collection, docID string) error {
	id, ok := g.guard(ActionDelete, collection)
	if !ok {
		return nil
	}
	if err := g.store.Delete(ctx, g.ns.Collection(collection), docID); err != nil {
		g.logger.Error("Delete failed", zap.String("collection", collection), zap.String("id", docID), zap.Error(err))
		return fmt.Errorf("failed to delete %s/%s: %w", collection, docID, err)
	}
	g.record(ctx, Mutation{Action: ActionDelete, Collection: collection, DocumentID: docID, UserID: id.UID, At: g.clock()})
	return nil
}

func (g *Gateway) AddRoute(ctx context.Context, r models.Route) (string, error) {
	return g.Create(ctx, store.Routes, r.Fields())
}

func (g *Gateway) AddShop(ctx context.Context, s models.Shop) (string, error) {
	return g.Create(ctx, store.Shops, s.Fields())
}

func (g *Gateway) AddProduct(ctx context.Context, p models.Product) (string, error) {
	return g.Create(ctx, store.Products, p.Fields())
}

func (g *Gateway) AddExpense(ctx context.Context, reason string, amount float64) (string, error) {
	return g.Create(ctx, store.Expenses, map[string]any{"reason": reason, "amount": amount})
}

func (g *Gateway) PlaceOrder(ctx context.Context, d models.OrderDraft) (string, error) {
	return g.Create(ctx, store.Orders, d.Fields())
}

// SaveProfile replaces the shared profile. Concurrent saves overwrite.
func (g *Gateway) SaveProfile(ctx context.Context, p models.Profile) error {
	return g.Set(ctx, store.Settings, store.ProfileID, p.Fields())
}

func (g *Gateway) guard(action Action, collection string) (identity.Identity, bool) {
	id, ok := g.ids.Current()
	if !ok {
		g.logger.Warn("Mutation skipped: identity unresolved",
			zap.String("action", string(action)),
			zap.String("collection", collection))
	}
	return id, ok
}

func (g *Gateway) record(ctx context.Context, m Mutation) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordMutation(ctx, m); err != nil {
		g.logger.Warn("Failed to record mutation",
			zap.String("action", string(m.Action)),
			zap.String("collection", m.Collection),
			zap.Error(err))
	}
}
