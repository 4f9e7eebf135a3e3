package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"kitchen-sync/internal/config"
	"kitchen-sync/internal/database"
	"kitchen-sync/internal/httpx"
	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/messaging"
	"kitchen-sync/internal/scheduler"
	"kitchen-sync/internal/services/kitchen"
	"kitchen-sync/internal/services/notification"
	"kitchen-sync/internal/services/order"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"

	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "kitchen-sync",
		Short:         "Ordering and kitchen services kept in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(
		newOrderServiceCommand(load),
		newKitchenServiceCommand(load),
		newNotificationSubscriberCommand(load),
	)
	return root
}

type configLoader func() (*config.Config, error)

func newOrderServiceCommand(load configLoader) *cobra.Command {
	var (
		port     int
		store    string
		menuFile string
	)

	cmd := &cobra.Command{
		Use:   "order-service",
		Short: "Run the customer-facing ordering API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.OrderPort = port
			}
			return runService("order-service", func(ctx context.Context, log *logger.Logger) error {
				return runOrderService(ctx, cfg, log, store, menuFile)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides http.order_port)")
	cmd.Flags().StringVar(&store, "store", storePostgres, "order storage: postgres or memory")
	cmd.Flags().StringVar(&menuFile, "menu", "menu.yaml", "menu file used with --store=memory")
	return cmd
}

func newKitchenServiceCommand(load configLoader) *cobra.Command {
	var (
		port  int
		store string
	)

	cmd := &cobra.Command{
		Use:   "kitchen-service",
		Short: "Run the kitchen API and preparation timers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.KitchenPort = port
			}
			return runService("kitchen-service", func(ctx context.Context, log *logger.Logger) error {
				return runKitchenService(ctx, cfg, log, store)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides http.kitchen_port)")
	cmd.Flags().StringVar(&store, "store", storePostgres, "kitchen storage: postgres or memory")
	return cmd
}

func newNotificationSubscriberCommand(load configLoader) *cobra.Command {
	var prefetch int

	cmd := &cobra.Command{
		Use:   "notification-subscriber",
		Short: "Print kitchen status events from RabbitMQ",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runService("notification-subscriber", func(ctx context.Context, log *logger.Logger) error {
				return runNotificationSubscriber(ctx, cfg, log, prefetch)
			})
		},
	}
	cmd.Flags().IntVar(&prefetch, "prefetch", 1, "RabbitMQ prefetch count")
	return cmd
}

// runService wires signal handling and lifecycle logging around run
func runService(name string, run func(ctx context.Context, log *logger.Logger) error) error {
	log := logger.New(name)
	requestID := logger.GenerateRequestID()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("service_started", fmt.Sprintf("Starting %s", name), requestID, nil)
	if err := run(ctx, log); err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", name), requestID, err, nil)
		return err
	}
	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger, migrations string) (*database.DB, error) {
	db, err := database.New(ctx, cfg.DatabaseURL(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(ctx, database.Migrations, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger, store, menuFile string) error {
	var (
		repo order.Repository
		menu order.MenuCatalog
		ping func(*gin.Context) error
	)

	switch store {
	case storePostgres:
		db, err := openDatabase(ctx, cfg, log, database.OrderMigrations)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = order.NewPostgresRepository(db)
		menu = order.NewPostgresMenu(db)
		ping = func(c *gin.Context) error { return db.Ping(c.Request.Context()) }
	case storeMemory:
		memMenu, err := order.LoadMenuFile(menuFile)
		if err != nil {
			return err
		}
		repo = order.NewMemoryRepository()
		menu = memMenu
	default:
		return fmt.Errorf("unknown store %q", store)
	}

	client := order.NewHTTPKitchenClient(cfg.Ordering.KitchenBaseURL, cfg.Ordering.HTTPTimeout, log)
	coordinator := order.NewCoordinator(repo, menu, client, log)

	router := httpx.NewRouter(log)
	router.Use(httpx.CORS(cfg.HTTP.CORSOrigins))
	router.GET("/health", httpx.Health("order-service", ping))
	order.NewHandler(coordinator, cfg.Ordering.CallbackSecret, log).Register(router)

	log.Info("http_listening", fmt.Sprintf("Order service listening on port %d", cfg.HTTP.OrderPort), "", map[string]interface{}{
		"port":             cfg.HTTP.OrderPort,
		"store":            store,
		"kitchen_base_url": cfg.Ordering.KitchenBaseURL,
	})
	return httpx.New(fmt.Sprintf(":%d", cfg.HTTP.OrderPort), router).Run(ctx)
}

func runKitchenService(ctx context.Context, cfg *config.Config, log *logger.Logger, store string) error {
	var (
		repo kitchen.Repository
		ping func(*gin.Context) error
	)

	switch store {
	case storePostgres:
		db, err := openDatabase(ctx, cfg, log, database.KitchenMigrations)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = kitchen.NewPostgresRepository(db)
		ping = func(c *gin.Context) error { return db.Ping(c.Request.Context()) }
	case storeMemory:
		repo = kitchen.NewMemoryRepository()
	default:
		return fmt.Errorf("unknown store %q", store)
	}

	// events stays a nil interface when publishing is off
	var events kitchen.EventPublisher
	if cfg.RabbitMQ.Enabled {
		conn, err := messaging.New(ctx, cfg.RabbitMQURL(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		defer conn.Close()
		events = messaging.NewPublisher(conn, log)
	}

	notifier := kitchen.NewCallbackNotifier(&http.Client{}, cfg.Kitchen.CallbackURLTemplate,
		cfg.Kitchen.CallbackSecret, cfg.Kitchen.HTTPTimeout, log)
	if !notifier.Enabled() {
		log.Warn("callback_disabled", "No callback URL template; ready orders are only visible by polling", "", nil)
	}

	service := kitchen.NewService(repo, scheduler.New(log), notifier, events, kitchen.TimerConfig{
		Enabled:      cfg.Kitchen.SchedulingEnabled,
		PrepDelay:    cfg.Kitchen.PrepDelay,
		CookDelay:    cfg.Kitchen.CookDelay,
		CookDelayMax: cfg.Kitchen.CookDelayMax,
	}, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		service.Shutdown(shutdownCtx)
	}()

	router := httpx.NewRouter(log)
	router.GET("/health", httpx.Health("kitchen-service", ping))
	kitchen.NewHandler(service, log).Register(router)

	log.Info("http_listening", fmt.Sprintf("Kitchen service listening on port %d", cfg.HTTP.KitchenPort), "", map[string]interface{}{
		"port":               cfg.HTTP.KitchenPort,
		"store":              store,
		"scheduling_enabled": cfg.Kitchen.SchedulingEnabled,
		"events_enabled":     cfg.RabbitMQ.Enabled,
	})
	return httpx.New(fmt.Sprintf(":%d", cfg.HTTP.KitchenPort), router).Run(ctx)
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(ctx, cfg.RabbitMQURL(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, messaging.StatusQueue, "notification-subscriber", prefetch)
	return notification.NewSubscriber(consumer, log).Run(ctx)
}
