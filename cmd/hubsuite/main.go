package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/HubSuite/app/controllers"
	"github.com/ManuelReschke/HubSuite/app/repository"
	"github.com/ManuelReschke/HubSuite/internal/pkg/access"
	"github.com/ManuelReschke/HubSuite/internal/pkg/billing"
	"github.com/ManuelReschke/HubSuite/internal/pkg/cache"
	"github.com/ManuelReschke/HubSuite/internal/pkg/constants"
	"github.com/ManuelReschke/HubSuite/internal/pkg/database"
	"github.com/ManuelReschke/HubSuite/internal/pkg/env"
	"github.com/ManuelReschke/HubSuite/internal/pkg/hublock"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
	"github.com/ManuelReschke/HubSuite/internal/pkg/jobqueue"
	"github.com/ManuelReschke/HubSuite/internal/pkg/router"
	"github.com/ManuelReschke/HubSuite/internal/pkg/usage"
)

func main() {
	app, shutdown := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}
	shutdown()
}

// NewApplication wires storage, the billing core and the HTTP surface. The
// returned func stops background workers and closes connections.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)

	ids, err := identity.NewAdapterFromEnv()
	if err != nil {
		panic(err)
	}
	store := repository.GetGlobalFactory().GetAccountStore(ids.Backend())
	log.Infof("Using %s user store", ids.Backend())

	lock := hublock.NewFromEnv()
	log.Infof("Hub selection cooldown is %s", lock.Cooldown())

	stripeClient := billing.NewStripeClientFromEnv()
	reconciler := billing.NewReconciler(store, ids, lock,
		billing.WithMaxAttempts(env.GetInt("RECONCILE_MAX_ATTEMPTS", 3)))
	billingSvc := billing.NewService(billing.NewRepository(db), billing.NewNormalizer(stripeClient), reconciler)

	redisClient := cache.GetClient()
	queue := jobqueue.NewQueue(redisClient, env.GetInt("RETRY_WORKERS", 3))
	queue.Register(jobqueue.JobTypeReconcileEvent, billingSvc.ReconcileJobHandler())
	manager := jobqueue.NewManager(queue, env.GetDuration("RETRY_SWEEP_INTERVAL", 5*time.Minute), billingSvc.RetrySweep(100))
	manager.Start()

	accessSvc := access.NewService(store, usage.NewCounter(redisClient))

	app := fiber.New(fiber.Config{
		AppName:   "HubSuite Billing",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if specPath := findOpenAPISpec(); specPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: constants.DocsRoute,
			FilePath: specPath,
			Path:     "v1",
		}))
	} else {
		log.Warn("docs/v1/openapi.yml not found, API docs disabled")
	}

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Billing:        controllers.NewBillingController(billingSvc, stripeClient.WebhookSecret(), queue),
		Access:         controllers.NewAccessController(accessSvc),
		Hubs:           controllers.NewHubController(billingSvc),
		Admin:          controllers.NewAdminQueueController(billingSvc, queue),
		Identity:       ids,
		InternalAPIKey: env.GetEnv("INTERNAL_API_KEY", ""),
		LimiterStorage: cache.NewLimiterStorage(),
		Ready: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("cache: %w", err)
			}
			return nil
		},
	})

	return app, func() {
		manager.Stop()
		if err := cache.Close(); err != nil {
			log.Warnf("Closing cache: %v", err)
		}
	}
}

func findOpenAPISpec() string {
	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/hubsuite to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		candidate := path + "docs/v1/openapi.yml"
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
