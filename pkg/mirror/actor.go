package mirror

import (
	"context"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/monarch/pkg/identity"
	"github.com/example/monarch/pkg/store"
	"go.uber.org/zap"
)

// Messages
type beginSync struct {
	identity identity.Identity
}

type teardownSync struct{}

type getState struct{}

type getStatus struct{}

type snapshotReceived struct {
	generation uint64
	collection string
	snapshot   store.Snapshot
}

type ack struct{}

// syncActor owns the mirrors. Snapshots arrive as messages from the
// subscription goroutines, so every replacement happens on this actor.
type syncActor struct {
	store  store.Store
	ns     store.Namespace
	logger *zap.Logger

	state      State
	uid        string
	generation uint64
	cancel     context.CancelFunc
}

func (a *syncActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.state = newState()
		a.logger.Info("Mirror actor started")

	case *beginSync:
		a.stop()
		a.generation++
		a.uid = msg.identity.UID

		subCtx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		for _, collection := range Collections {
			go a.subscribe(subCtx, ctx.ActorSystem().Root, ctx.Self(), a.generation, collection)
		}
		a.logger.Info("Sync started",
			zap.String("uid", a.uid),
			zap.Uint64("generation", a.generation),
			zap.Int("collections", len(Collections)))
		ctx.Respond(ack{})

	case *teardownSync:
		a.stop()
		ctx.Respond(ack{})

	case *snapshotReceived:
		if a.cancel == nil || msg.generation != a.generation {
			a.logger.Debug("Dropping snapshot from stale session",
				zap.String("collection", msg.collection),
				zap.Uint64("generation", msg.generation))
			return
		}
		a.state.apply(msg.collection, msg.snapshot, a.logger)
		a.logger.Debug("Mirror replaced",
			zap.String("collection", msg.collection),
			zap.Int("documents", len(msg.snapshot.Docs)))

	case *getState:
		ctx.Respond(a.state.clone())

	case *getStatus:
		ctx.Respond(Status{
			Running:    a.cancel != nil,
			UID:        a.uid,
			Generation: a.generation,
		})

	case *actor.Stopping:
		a.stop()
		a.logger.Info("Mirror actor stopping")

	case *actor.Stopped:
		a.logger.Info("Mirror actor stopped")
	}
}

func (a *syncActor) stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	a.cancel = nil
	a.logger.Info("Sync torn down",
		zap.String("uid", a.uid),
		zap.Uint64("generation", a.generation))
	a.uid = ""
}

// subscribe forwards one collection's snapshots to the actor until ctx is
// cancelled or the stream ends. Errors are logged; nothing is retried.
func (a *syncActor) subscribe(ctx context.Context, root *actor.RootContext, self *actor.PID, generation uint64, collection string) {
	path := a.ns.Collection(collection)
	logger := a.logger.With(zap.String("collection", collection))

	events, err := a.store.Subscribe(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Subscription failed", zap.Error(err))
		}
		return
	}

	for ev := range events {
		if ev.Err != nil {
			logger.Error("Subscription error", zap.Error(ev.Err))
			continue
		}
		root.Send(self, &snapshotReceived{
			generation: generation,
			collection: collection,
			snapshot:   ev.Snapshot,
		})
	}
	if ctx.Err() == nil {
		logger.Warn("Subscription ended; mirror keeps its last contents")
	}
}
