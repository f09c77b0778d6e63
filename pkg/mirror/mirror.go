package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/monarch/pkg/identity"
	"github.com/example/monarch/pkg/store"
	"go.uber.org/zap"
)

// Collections is every collection the mirror subscribes to.
var Collections = []string{
	store.Routes,
	store.Shops,
	store.Orders,
	store.Expenses,
	store.Products,
	store.Settings,
}

const defaultTimeout = 5 * time.Second

var ErrUnexpectedReply = errors.New("unexpected reply from sync actor")

// Mirror is the handle to the sync actor, the only writer of the local mirrors.
type Mirror struct {
	system  *actor.ActorSystem
	pid     *actor.PID
	logger  *zap.Logger
	timeout time.Duration
}

type Status struct {
	Running    bool
	UID        string
	Generation uint64
}

func New(system *actor.ActorSystem, st store.Store, ns store.Namespace, logger *zap.Logger) (*Mirror, error) {
	props := actor.PropsFromProducer(func() actor.Actor {
		return &syncActor{
			store:  st,
			ns:     ns,
			logger: logger,
		}
	})
	pid, err := system.Root.SpawnNamed(props, "mirror")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn mirror actor: %w", err)
	}

	return &Mirror{
		system:  system,
		pid:     pid,
		logger:  logger,
		timeout: defaultTimeout,
	}, nil
}

// Begin opens one subscription per collection for id. A running session is
// torn down first.
func (m *Mirror) Begin(ctx context.Context, id identity.Identity) error {
	_, err := m.request(ctx, &beginSync{identity: id})
	return err
}

// Teardown cancels every subscription. Mirrors keep their last contents.
func (m *Mirror) Teardown(ctx context.Context) error {
	_, err := m.request(ctx, &teardownSync{})
	return err
}

func (m *Mirror) State(ctx context.Context) (State, error) {
	res, err := m.request(ctx, &getState{})
	if err != nil {
		return State{}, err
	}
	st, ok := res.(State)
	if !ok {
		return State{}, ErrUnexpectedReply
	}
	return st, nil
}

func (m *Mirror) Status(ctx context.Context) (Status, error) {
	res, err := m.request(ctx, &getStatus{})
	if err != nil {
		return Status{}, err
	}
	st, ok := res.(Status)
	if !ok {
		return Status{}, ErrUnexpectedReply
	}
	return st, nil
}

// Follow starts and stops the mirror as the session resolves and clears.
func (m *Mirror) Follow(s *identity.Session) {
	s.OnChange(func(id identity.Identity, resolved bool) {
		var err error
		if resolved {
			err = m.Begin(context.Background(), id)
		} else {
			err = m.Teardown(context.Background())
		}
		if err != nil {
			m.logger.Error("Failed to follow identity change",
				zap.Bool("resolved", resolved),
				zap.Error(err))
		}
	})
}

// Stop tears down subscriptions and stops the actor.
func (m *Mirror) Stop() {
	if err := m.system.Root.PoisonFuture(m.pid).Wait(); err != nil {
		m.logger.Warn("Mirror actor did not stop cleanly", zap.Error(err))
	}
}

func (m *Mirror) request(ctx context.Context, msg interface{}) (interface{}, error) {
	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	res, err := m.system.Root.RequestFuture(m.pid, msg, timeout).Result()
	if err != nil {
		return nil, fmt.Errorf("sync actor request failed: %w", err)
	}
	return res, nil
}
