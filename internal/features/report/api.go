package report

import (
	"go-fleetreport/internal/config"
	"go-fleetreport/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	ReportController *ReportController
	Config           *config.Config
}

func NewReportApi(reportController *ReportController, config *config.Config) *ReportApi {
	return &ReportApi{
		ReportController: reportController,
		Config:           config,
	}
}

func (api *ReportApi) Setup(app *fiber.App) {
	group := app.Group("/api/reports", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Get("/", api.ReportController.List)
	group.Get("/runs", api.ReportController.Runs)
	group.Get("/health", api.ReportController.Health)
	group.Post("/reload", middleware.SysAdminMiddleware(), api.ReportController.Reload)

	group.Get("/:name", api.ReportController.Get)
	group.Get("/:name/options", api.ReportController.Options)
	group.Post("/:name/run", api.ReportController.Run)
	group.Post("/:name/export", api.ReportController.Export)
}
