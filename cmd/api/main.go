package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-freshflow/internal/config"
	"go-freshflow/internal/events"
	"go-freshflow/internal/forecast"
	"go-freshflow/internal/handler"
	"go-freshflow/internal/metrics"
	"go-freshflow/internal/middleware"
	"go-freshflow/internal/model"
	"go-freshflow/internal/report"
	"go-freshflow/internal/repository"
	"go-freshflow/internal/scheduler"
	"go-freshflow/internal/service"
	"go-freshflow/internal/ws"
	"go-freshflow/pkg/database"
	"go-freshflow/pkg/jwt"
	"go-freshflow/pkg/logger"
)

func main() {
	// 1. Load config
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg := logger.Must(logger.New(cfg.App.LogLevel))
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Setup Database
	if cfg.App.MigrationsEnabled {
		if err := database.Migrate(cfg.Database.BuildDSN()); err != nil {
			lg.Fatal("migrations failed", zap.Error(err))
		}
		lg.Info("migrations applied")
	}
	db, err := database.ConnectDB(cfg.Database, logger.Named(lg, "db"))
	if err != nil {
		lg.Fatal("database connection failed", zap.Error(err))
	}

	partyRepo := repository.NewPartyRepo(db)
	batchRepo := repository.NewBatchRepo(db)
	transferRepo := repository.NewTransferRepo(db)
	poolRepo := repository.NewPoolRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	// 3. Seed default privileges, roles, and admin user
	if err := service.SeedIdentity(ctx, privilegeRepo, roleRepo, userRepo,
		cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, logger.Named(lg, "seed")); err != nil {
		lg.Fatal("identity seed failed", zap.Error(err))
	}

	// 4. Event sinks: websocket hub plus optional Mongo archive
	wsHub := ws.NewHub(logger.Named(lg, "ws"))
	go wsHub.Run(ctx)

	sinks := events.Fanout{wsHub}
	if cfg.MongoDB.URI != "" {
		archive, err := events.NewMongoArchive(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			lg.Fatal("mongodb connection failed", zap.Error(err))
		}
		defer func() { _ = archive.Close(context.Background()) }()
		sinks = append(sinks, archive)
		lg.Info("event archive enabled", zap.String("db", cfg.MongoDB.DBName))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// 5. Dependency Injection (Wiring Layers)
	var fc forecast.Client
	if client := forecast.NewClient(cfg.Forecast.BaseURL, cfg.Forecast.Timeout); client != nil {
		fc = client
	}

	signer := jwt.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(userRepo, signer, cfg.Auth.IdleExpiry, sinks, logger.Named(lg, "svc.auth"))
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo, partyRepo)
	partyService := service.NewPartyService(partyRepo)
	ledgerService := service.NewLedgerService(db, batchRepo, partyRepo, poolRepo, saleRepo, sinks, m, logger.Named(lg, "svc.ledger"))
	transferService := service.NewTransferService(db, batchRepo, transferRepo, partyRepo, sinks, m, logger.Named(lg, "svc.transfer"))
	poolService := service.NewPoolService(db, batchRepo, poolRepo, transferRepo, sinks, m, logger.Named(lg, "svc.pool"))
	demandService := service.NewDemandService(saleRepo, partyRepo, fc, logger.Named(lg, "svc.demand"))

	var snapshots scheduler.Snapshotter
	if store, err := reportStore(ctx, cfg.Report); err != nil {
		lg.Fatal("report store", zap.Error(err))
	} else if store != nil {
		snapshots = report.NewSnapshotter(partyRepo, batchRepo, store, logger.Named(lg, "report"))
	}
	sched, err := scheduler.NewScheduler(cfg.Pool, cfg.Scheduler, poolService, snapshots, logger.Named(lg, "scheduler"))
	if err != nil {
		lg.Fatal("scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		lg.Fatal("scheduler", zap.Error(err))
	}
	defer sched.Stop()

	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		User:     handler.NewUserHandler(userService),
		Role:     handler.NewRoleHandler(roleRepo, privilegeRepo),
		Party:    handler.NewPartyHandler(partyService),
		Ledger:   handler.NewLedgerHandler(ledgerService),
		Transfer: handler.NewTransferHandler(transferService),
		Pool:     handler.NewPoolHandler(poolService),
		Demand:   handler.NewDemandHandler(demandService),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: handler.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(logger.Named(lg, "http")))

	app.Get("/healthz", healthz(db))
	if cfg.App.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	// 7. Routes
	handlers.Register(app.Group("/api/v1"), middleware.RequireAuth(authService))

	// WebSocket Route: /ws?token=<jwt>
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.SendStatus(fiber.StatusUpgradeRequired)
		}
		claims, user, err := authService.Authenticate(c.UserContext(), c.Query("token"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		if claims.PartyID != nil {
			c.Locals(middleware.LocalPartyID, claims.PartyID.String())
		}
		c.Locals("sees_all", user.HasPrivilege(model.PrivLedgerViewAll))
		return c.Next()
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client := &ws.Client{Conn: c}
		client.PartyID, _ = c.Locals(middleware.LocalPartyID).(string)
		client.SeesAll, _ = c.Locals("sees_all").(bool)

		if !wsHub.Join(client) {
			return
		}
		defer wsHub.Leave(client)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			lg.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}
	lg.Info("server exited")
}

func reportStore(ctx context.Context, cfg config.ReportConfig) (report.Store, error) {
	switch {
	case cfg.S3Bucket != "":
		return report.NewS3Store(ctx, report.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case cfg.Dir != "":
		return report.NewDirStore(cfg.Dir)
	default:
		return nil, nil
	}
}

func healthz(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
