package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"event-marketplace/config"
	"event-marketplace/internal/services"
	"event-marketplace/internal/store/pbstore"
	_ "event-marketplace/migrations"
	"event-marketplace/monitoring"
	"event-marketplace/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
)

// engine groups the wired services so commands and hooks share one instance.
type engine struct {
	wallet       *services.WalletService
	inventory    *services.InventoryService
	distribution *services.DistributionService
	cancellation *services.CancellationService
	sweep        *services.SweepService
}

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize PubNub
	var notifier services.Notifier = services.NopNotifier{}
	if cfg.PubNubPublishKey != "" {
		breakerSettings := utils.DefaultBreakerSettings()
		breakerSettings.OnStateChange = func(name string, from, to utils.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}
		notifier = services.NewPubNubNotifier(
			services.PubNubPublisher(services.NewPubNub(cfg)),
			utils.NewCircuitBreaker("pubnub", breakerSettings),
			logger,
		)
	} else {
		logger.Warn("PUBNUB_PUBLISH_KEY not set, wallet notifications disabled")
	}

	// Initialize services
	monitor := monitoring.NewMonitor()
	store := pbstore.New(app)

	wallet := services.NewWalletService(store, monitor, logger, cfg)
	inventory := services.NewInventoryService(store, monitor, logger)
	distribution := services.NewDistributionService(store, store, store, store, wallet, notifier, monitor, logger, services.PolicyFromConfig(cfg))
	e := &engine{
		wallet:       wallet,
		inventory:    inventory,
		distribution: distribution,
		cancellation: services.NewCancellationService(store, inventory, wallet, notifier, monitor, logger, cfg),
		sweep:        services.NewSweepService(distribution, utils.NewRedisLocker(redisClient), monitor, logger, cfg),
	}
	scheduler := services.NewScheduler(e.sweep, logger, cfg.SweepSchedule, cfg.SweepLockTTL)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	registerCommands(app, e)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		if err := scheduler.Start(); err != nil {
			return err
		}

		if cfg.EnableMetrics {
			go func() {
				if err := monitoring.Serve(ctx, ":"+cfg.MetricsPort, logger); err != nil {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
		}

		// Health check
		se.Router.GET("/health", func(re *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(re.Request.Context(), redisClient); err != nil {
				return re.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return re.JSON(200, map[string]string{"status": "healthy"})
		})

		logger.Info("revenue engine started", "sweep_schedule", cfg.SweepSchedule)
		return se.Next()
	})

	app.OnTerminate().BindFunc(func(te *core.TerminateEvent) error {
		<-scheduler.Stop().Done()
		cancel()
		return te.Next()
	})

	return app.Start()
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, cleaning up")
	cancel()
}
