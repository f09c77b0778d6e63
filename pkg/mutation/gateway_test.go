package mutation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/monarch/pkg/identity"
	"github.com/example/monarch/pkg/models"
	"github.com/example/monarch/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ns = store.Namespace{AppID: "test-app"}

type countingStore struct {
	*store.MemoryStore
	calls atomic.Int32
	fail  error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: store.NewMemoryStore()}
}

func (c *countingStore) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return "", c.fail
	}
	return c.MemoryStore.Add(ctx, path, fields)
}

func (c *countingStore) Set(ctx context.Context, path, id string, fields map[string]any) error {
	c.calls.Add(1)
	if c.fail != nil {
		return c.fail
	}
	return c.MemoryStore.Set(ctx, path, id, fields)
}

func (c *countingStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	c.calls.Add(1)
	if c.fail != nil {
		return c.fail
	}
	return c.MemoryStore.Update(ctx, path, id, fields)
}

func (c *countingStore) Delete(ctx context.Context, path, id string) error {
	c.calls.Add(1)
	if c.fail != nil {
		return c.fail
	}
	return c.MemoryStore.Delete(ctx, path, id)
}

type staticIdentity struct {
	id *identity.Identity
}

func (s staticIdentity) Current() (identity.Identity, bool) {
	if s.id == nil {
		return identity.Identity{}, false
	}
	return *s.id, true
}

type memoryRecorder struct {
	mutations []Mutation
	err       error
}

func (r *memoryRecorder) RecordMutation(_ context.Context, m Mutation) error {
	r.mutations = append(r.mutations, m)
	return r.err
}

var fixedNow = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

func resolved() staticIdentity {
	return staticIdentity{id: &identity.Identity{UID: "u1"}}
}

func newGateway(st store.Store, ids IdentitySource, opts ...Option) *Gateway {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(st, ids, ns, zap.NewNop(), opts...)
}

func readDocs(t *testing.T, st store.Store, collection string) []store.Document {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := st.Subscribe(ctx, ns.Collection(collection))
	require.NoError(t, err)
	ev := <-ch
	require.NoError(t, ev.Err)
	return ev.Snapshot.Docs
}

func TestGateway_UnresolvedIdentityIssuesNoCalls(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	rec := &memoryRecorder{}
	g := newGateway(st, staticIdentity{}, WithRecorder(rec))

	assert.False(t, g.Ready())

	id, err := g.Create(ctx, store.Routes, map[string]any{"name": "A"})
	assert.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, g.Set(ctx, store.Settings, store.ProfileID, map[string]any{"name": "A"}))
	assert.NoError(t, g.Update(ctx, store.Shops, "s1", map[string]any{"name": "B"}))
	assert.NoError(t, g.Delete(ctx, store.Orders, "o1"))
	_, err = g.PlaceOrder(ctx, models.OrderDraft{ShopID: "s1", Total: 10})
	assert.NoError(t, err)
	assert.NoError(t, g.SaveProfile(ctx, models.Profile{Name: "X"}))

	assert.Zero(t, st.calls.Load())
	assert.Empty(t, rec.mutations)
}

func TestGateway_CreateStampsDateAndTimestamp(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	g := newGateway(st, resolved())

	id, err := g.AddRoute(ctx, models.Route{Name: "NORTH"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	docs := readDocs(t, st, store.Routes)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	assert.Equal(t, "NORTH", docs[0].Data["name"])
	assert.Equal(t, "1/2/2024", docs[0].Data["date"])
	assert.Equal(t, fixedNow.UnixMilli(), docs[0].Data["timestamp"])
}

func TestGateway_DateLayout(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	g := newGateway(st, resolved(), WithDateLayout("2006-01-02"))

	_, err := g.AddExpense(ctx, "FUEL", 1500)
	require.NoError(t, err)

	docs := readDocs(t, st, store.Expenses)
	require.Len(t, docs, 1)
	assert.Equal(t, "2024-01-02", docs[0].Data["date"])
	assert.Equal(t, 1500.0, docs[0].Data["amount"])
}

func TestGateway_PlaceOrder(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	rec := &memoryRecorder{}
	g := newGateway(st, resolved(), WithRecorder(rec))

	draft := models.OrderDraft{
		ShopID:   "s1",
		ShopName: "CORNER",
		Items:    []models.OrderItem{{Name: "X", Price: 100, Qty: 3, Subtotal: 300}},
		Total:    300,
	}
	id, err := g.PlaceOrder(ctx, draft)
	require.NoError(t, err)

	docs := readDocs(t, st, store.Orders)
	require.Len(t, docs, 1)
	assert.Equal(t, "s1", docs[0].Data["shopId"])
	assert.Equal(t, 300.0, docs[0].Data["total"])
	assert.Len(t, docs[0].Data["items"], 1)

	require.Len(t, rec.mutations, 1)
	assert.Equal(t, ActionCreate, rec.mutations[0].Action)
	assert.Equal(t, store.Orders, rec.mutations[0].Collection)
	assert.Equal(t, id, rec.mutations[0].DocumentID)
	assert.Equal(t, "u1", rec.mutations[0].UserID)
}

func TestGateway_SaveProfileOverwrites(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	g := newGateway(st, resolved())

	require.NoError(t, g.SaveProfile(ctx, models.Profile{Name: "A", Region: "R1"}))
	require.NoError(t, g.SaveProfile(ctx, models.Profile{Name: "B", Region: "R2"}))

	docs := readDocs(t, st, store.Settings)
	require.Len(t, docs, 1)
	assert.Equal(t, store.ProfileID, docs[0].ID)
	assert.Equal(t, map[string]any{"name": "B", "region": "R2"}, docs[0].Data)
}

func TestGateway_DeleteDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	g := newGateway(st, resolved())

	routeID, err := g.AddRoute(ctx, models.Route{Name: "NORTH"})
	require.NoError(t, err)
	_, err = g.AddShop(ctx, models.Shop{Name: "A", Area: "X", RouteID: routeID})
	require.NoError(t, err)

	require.NoError(t, g.Delete(ctx, store.Routes, routeID))

	assert.Empty(t, readDocs(t, st, store.Routes))
	shops := readDocs(t, st, store.Shops)
	require.Len(t, shops, 1)
	assert.Equal(t, routeID, shops[0].Data["routeId"])
}

func TestGateway_Update(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	g := newGateway(st, resolved())

	id, err := g.AddProduct(ctx, models.Product{Name: "TEA", Size: "100G", Price: 250})
	require.NoError(t, err)
	require.NoError(t, g.Update(ctx, store.Products, id, map[string]any{"price": 275.0}))

	docs := readDocs(t, st, store.Products)
	require.Len(t, docs, 1)
	assert.Equal(t, 275.0, docs[0].Data["price"])
	assert.Equal(t, "TEA", docs[0].Data["name"])
}

func TestGateway_WriteFailure(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	st.fail = errors.New("unavailable")
	rec := &memoryRecorder{}
	g := newGateway(st, resolved(), WithRecorder(rec))

	_, err := g.AddRoute(ctx, models.Route{Name: "A"})
	assert.ErrorIs(t, err, st.fail)
	assert.ErrorIs(t, g.Delete(ctx, store.Routes, "r1"), st.fail)
	assert.Equal(t, int32(2), st.calls.Load(), "no retries")
	assert.Empty(t, rec.mutations)
}

func TestGateway_RecorderErrorDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	rec := &memoryRecorder{err: errors.New("audit down")}
	g := newGateway(newCountingStore(), resolved(), WithRecorder(rec))

	id, err := g.AddRoute(ctx, models.Route{Name: "A"})
	assert.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, rec.mutations, 1)
}
