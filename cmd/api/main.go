package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go-fleetreport/internal/api"
	"go-fleetreport/internal/config"
	"go-fleetreport/internal/database"
	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/directory"
	"go-fleetreport/internal/features/event"
	"go-fleetreport/internal/features/report"
	"go-fleetreport/internal/features/rule"
	"go-fleetreport/internal/features/scheduler"
	"go-fleetreport/internal/logger"
	"go-fleetreport/internal/metrics"
	"go-fleetreport/internal/middleware"
	"go-fleetreport/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberApp creates the Fiber app with the shared error handler and CORS.
func NewFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute tags the constructor so Fx adds it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup on every route of the "routes" group.
func RegisterAllRoutes(app *fiber.App, routes []api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer starts Fiber in a goroutine and shuts it down with the app.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// NewEventStore opens the configured event store.
func NewEventStore(lc fx.Lifecycle, cfg *config.Config, db *database.MongodbDB, logger *zap.Logger) (event.Store, error) {
	if cfg.EventStore == "" || cfg.EventStore == "mongo" {
		store := event.NewMongoStore(db, logger)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					if err := store.EnsureIndexes(ctx); err != nil {
						logger.Warn("Failed to ensure event indexes", zap.Error(err))
					}
				}()
				return nil
			},
		})
		return store, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := event.OpenSQLStore(ctx, cfg.EventStore, cfg.EventStoreDSN, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func NewRuleEvaluator(logger *zap.Logger) rule.Evaluator {
	return rule.NewTengoEvaluator(logger)
}

func NewReportCatalog(cfg *config.Config, kinds *report.Kinds, rules rule.Evaluator, dir directory.DirectoryRepository, logger *zap.Logger) *catalog.Catalog {
	return catalog.NewCatalog(report.CatalogConfig(cfg, kinds, rules, dir), logger)
}

func NewReportFactory(cfg *config.Config, cat *catalog.Catalog, kinds *report.Kinds, store event.Store, dir directory.DirectoryRepository, rules rule.Evaluator, logger *zap.Logger) *report.Factory {
	return &report.Factory{
		Catalog:    cat,
		Kinds:      kinds,
		Store:      store,
		Directory:  dir,
		Rules:      rules,
		DataFields: cfg.ReportDataFields,
		Logger:     logger,
	}
}

func NewReportService(cfg *config.Config, cat *catalog.Catalog, factory *report.Factory, runRepo report.RunRepository, m *metrics.Metrics, logger *zap.Logger) (report.ReportService, error) {
	codes, err := report.StatusCodeTable(cfg)
	if err != nil {
		return nil, err
	}
	return report.NewReportService(cat, factory, catalog.FileSource(cfg.ReportDefinitionPath), runRepo, codes, m, logger), nil
}

func NewCatalogReloader(cfg *config.Config, svc report.ReportService, logger *zap.Logger) *scheduler.CatalogReloader {
	return scheduler.NewCatalogReloader(cfg.ReportReloadSchedule, svc, logger)
}

// LoadReports loads the catalog before the server accepts requests and
// starts the reload schedule.
func LoadReports(lc fx.Lifecycle, svc report.ReportService, reloader *scheduler.CatalogReloader, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			res, err := svc.Reload(ctx)
			if err != nil {
				return err
			}
			for _, p := range res.Problems {
				logger.Warn("Report definition problem", zap.String("problem", p.String()))
			}
			return reloader.Start()
		},
		OnStop: func(ctx context.Context) error {
			reloader.Stop()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			metrics.NewMetrics,
			NewFiberApp,

			NewEventStore,
			directory.NewDirectoryRepository,
			NewRuleEvaluator,
			report.DefaultKinds,
			NewReportCatalog,
			NewReportFactory,
			report.NewRunRepository,
			NewReportService,
			NewCatalogReloader,

			report.NewReportController,

			AsRoute(report.NewReportApi),
			AsRoute(api.NewHealthApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },
			RegisterAllRoutesWithAnnotation,
			LoadReports,
			StartServer,
		),
	)

	app.Run()
}
