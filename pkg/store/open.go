package store

import (
	"fmt"

	"github.com/example/monarch/pkg/config"
	"go.uber.org/zap"
)

// Open returns the store selected by cfg.Store.Driver.
func Open(cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "mongodb":
		return NewMongoStore(&cfg.MongoDB, logger)
	case "redis":
		return NewRedisStore(&cfg.Redis, logger), nil
	case "etcd":
		return NewEtcdStore(&cfg.Etcd, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
