package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/monarch/gateway"
	"github.com/example/monarch/pkg/cart"
	"github.com/example/monarch/pkg/config"
	"github.com/example/monarch/pkg/grpc"
	"github.com/example/monarch/pkg/identity"
	"github.com/example/monarch/pkg/ledger"
	"github.com/example/monarch/pkg/logger"
	"github.com/example/monarch/pkg/mirror"
	"github.com/example/monarch/pkg/mutation"
	"github.com/example/monarch/pkg/repository"
	"github.com/example/monarch/pkg/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting ledger",
		zap.String("app_id", cfg.App.ID),
		zap.String("store", cfg.Store.Driver))

	loc, _ := cfg.App.Location()
	clock := func() time.Time { return time.Now().In(loc) }
	ns := store.Namespace{AppID: cfg.App.ID}

	st, err := store.Open(cfg, log.Named("store"))
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}

	system := actor.NewActorSystem()
	m, err := mirror.New(system, st, ns, log.Named("mirror"))
	if err != nil {
		log.Fatal("Failed to start mirror", zap.Error(err))
	}

	session := identity.NewSession(log.Named("identity"))
	m.Follow(session)

	opts := []mutation.Option{
		mutation.WithClock(clock),
		mutation.WithDateLayout(cfg.App.DateLayout),
	}
	var audit *repository.AuditRepository
	var apiOpts []gateway.Option
	if cfg.MySQL.Enabled {
		audit, err = repository.NewAuditRepository(&cfg.MySQL)
		if err != nil {
			log.Warn("Audit trail disabled", zap.Error(err))
		} else {
			opts = append(opts, mutation.WithRecorder(audit))
			apiOpts = append(apiOpts, gateway.WithAudit(audit))
		}
	}
	gw := mutation.New(st, session, ns, log.Named("mutation"), opts...)

	svc := ledger.NewService(m, gw, cart.New(), log.Named("ledger"), ledger.Options{
		DateLayout: cfg.App.DateLayout,
		Clock:      clock,
		ShareURL:   cfg.App.ShareURL,
	})

	serverErr := make(chan error, 2)

	var health *grpc.HealthServer
	if cfg.GRPC.Enabled {
		health = grpc.NewHealthServer(&cfg.GRPC, log.Named("grpc"))
		health.Track(session)
		go func() {
			if err := health.Start(); err != nil {
				serverErr <- err
			}
		}()
	}

	api := gateway.NewGateway(&cfg.Gateway, svc, log.Named("gateway"), apiOpts...)
	go func() {
		if err := api.Start(); err != nil {
			serverErr <- err
		}
	}()

	// Identity resolution happens once, in the background. Until it succeeds
	// reads are empty and writes are skipped.
	go session.Resolve(context.Background(), identity.NewProvider(cfg.App.SessionToken, cfg.App.TokenSecret))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("Server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		log.Warn("Gateway shutdown failed", zap.Error(err))
	}
	if health != nil {
		health.Stop()
	}
	m.Stop()
	if err := st.Close(ctx); err != nil {
		log.Warn("Store close failed", zap.Error(err))
	}
	if audit != nil {
		audit.Close()
	}

	log.Info("Ledger stopped")
}
