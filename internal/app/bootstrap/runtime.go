package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	stdhttp "net/http"
	"os"
	"time"

	"google.golang.org/grpc"

	"github.com/makersrow/escrow-engine/internal/adapters/cache"
	"github.com/makersrow/escrow-engine/internal/adapters/events"
	grpcadapter "github.com/makersrow/escrow-engine/internal/adapters/grpc"
	httpadapter "github.com/makersrow/escrow-engine/internal/adapters/http"
	"github.com/makersrow/escrow-engine/internal/adapters/memory"
	"github.com/makersrow/escrow-engine/internal/adapters/payments"
	"github.com/makersrow/escrow-engine/internal/adapters/postgres"
	"github.com/makersrow/escrow-engine/internal/adapters/scheduler"
	"github.com/makersrow/escrow-engine/internal/application"
	"github.com/makersrow/escrow-engine/internal/ports"
)

// Runtime wires adapters to the application service and owns process
// lifecycle. Optional dependencies degrade gracefully: no database means
// in-memory stores, no Redis means an in-process locker, no Kafka means the
// logging publisher. Production deployments configure all three.
type Runtime struct {
	Config  Config
	Logger  *slog.Logger
	Service *application.Service

	httpServer *stdhttp.Server
	grpcServer *grpc.Server
	worker     *events.OutboxWorker
	sweeper    *scheduler.SweepScheduler
	closers    []func()
}

func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	rt := &Runtime{Config: cfg, Logger: logger}

	var repos postgres.Repositories
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		repos = postgres.NewRepositories(db)
	} else {
		logger.Warn("no database configured, using in-memory stores")
		store := memory.NewStore()
		repos = postgres.Repositories{
			Events:        memory.NewEventRepository(store),
			Contributions: memory.NewContributionRepository(store),
			Orders:        memory.NewOrderRepository(store),
			Escrows:       memory.NewEscrowRepository(store),
			Disputes:      memory.NewDisputeRepository(store),
			Idempotency:   memory.NewIdempotencyRepository(store),
			Outbox:        memory.NewOutboxRepository(store),
		}
	}

	var locker ports.EntityLocker
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		locker = cache.NewRedisEntityLocker(client, "escrow:lock:", 30*time.Second)
	} else {
		locker = application.NewKeyedLocker()
	}

	var gateway ports.PaymentGateway
	if cfg.GatewayBaseURL != "" {
		gateway = payments.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout, logger)
	} else {
		logger.Warn("no payment gateway configured, using sandbox gateway")
		gateway = payments.NewSandboxGateway()
	}

	var publisher ports.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, nil)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = kafkaPublisher.Close() })
		publisher = kafkaPublisher
	} else {
		publisher = events.NewLoggingPublisher(logger)
	}

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:           cfg.ServiceID,
			ContributionTolerance: cfg.ContributionTolerance,
			DepositFraction:       cfg.DepositFraction,
			PaymentCaptureTimeout: cfg.GatewayTimeout,
			IdempotencyTTL:        cfg.IdempotencyTTL,
			SweepBatchSize:        cfg.SweepBatchSize,
			SweepConcurrency:      cfg.SweepConcurrency,
			WindowWarnLead:        cfg.WindowWarnLead,
		},
		Logger:        logger,
		Events:        repos.Events,
		Contributions: repos.Contributions,
		Orders:        repos.Orders,
		Escrows:       repos.Escrows,
		Disputes:      repos.Disputes,
		Idempotency:   repos.Idempotency,
		Outbox:        repos.Outbox,
		Gateway:       gateway,
		Locker:        locker,
	})
	rt.Service = service

	handler := httpadapter.NewHandler(service)
	router := httpadapter.NewRouter(handler, httpadapter.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		Idempotency:    repos.Idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})
	rt.httpServer = &stdhttp.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rt.grpcServer = grpc.NewServer()
	grpcadapter.Register(rt.grpcServer, grpcadapter.NewInternalServer(service))

	rt.worker = events.NewOutboxWorker(logger, repos.Outbox, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	sweeper, err := scheduler.NewSweepScheduler(service, logger, cfg.SweepInterval)
	if err != nil {
		return nil, err
	}
	rt.sweeper = sweeper

	return rt, nil
}

// Run starts every component and blocks until ctx is cancelled, then shuts
// down in reverse order.
func (rt *Runtime) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		rt.Logger.Info("http server listening", "port", rt.Config.HTTPPort)
		if err := rt.httpServer.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", rt.Config.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go func() {
		rt.Logger.Info("grpc server listening", "port", rt.Config.GRPCPort)
		if err := rt.grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go func() { _ = rt.worker.Run(workerCtx) }()

	if err := rt.sweeper.Start(workerCtx); err != nil {
		return fmt.Errorf("start sweep scheduler: %w", err)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		rt.Logger.Error("component failed", "error", err)
	}

	rt.Logger.Info("shutting down")
	cancelWorker()
	_ = rt.sweeper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = rt.httpServer.Shutdown(shutdownCtx)
	rt.grpcServer.GracefulStop()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	return nil
}

// RunWorker starts only the outbox worker and the sweep scheduler, for
// deployments that split the API from background processing.
func (rt *Runtime) RunWorker(ctx context.Context) error {
	if err := rt.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweep scheduler: %w", err)
	}
	err := rt.worker.Run(ctx)
	_ = rt.sweeper.Stop()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
