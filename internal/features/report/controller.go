package report

import (
	"errors"
	"fmt"

	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	ReportService ReportService
}

func NewReportController(reportService ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

// List godoc
func (c *ReportController) List(ctx *fiber.Ctx) error {
	who, err := requester(ctx)
	if err != nil {
		return err
	}
	reports := c.ReportService.ListReports(ctx.Context(), who)
	if reports == nil {
		reports = []ReportSummary{}
	}
	return ctx.JSON(reports)
}

// Get godoc
func (c *ReportController) Get(ctx *fiber.Ctx) error {
	who, err := requester(ctx)
	if err != nil {
		return err
	}
	view, err := c.ReportService.GetReport(ctx.Context(), ctx.Params("name"), who)
	if err != nil {
		return errorResponse(ctx, err)
	}
	return ctx.JSON(view)
}

// Options godoc
func (c *ReportController) Options(ctx *fiber.Ctx) error {
	who, err := requester(ctx)
	if err != nil {
		return err
	}
	set, err := c.ReportService.ListOptions(ctx.Context(), ctx.Params("name"), who)
	if err != nil {
		return errorResponse(ctx, err)
	}
	return ctx.JSON(set)
}

// Run godoc
func (c *ReportController) Run(ctx *fiber.Ctx) error {
	who, err := requester(ctx)
	if err != nil {
		return err
	}
	req, err := ParseRunRequest(ctx.Body())
	if err != nil {
		return errorResponse(ctx, err)
	}
	result, err := c.ReportService.RunReport(ctx.Context(), ctx.Params("name"), req, who)
	if err != nil {
		return errorResponse(ctx, err)
	}
	return ctx.JSON(result)
}

// Export godoc
func (c *ReportController) Export(ctx *fiber.Ctx) error {
	who, err := requester(ctx)
	if err != nil {
		return err
	}
	req, err := ParseRunRequest(ctx.Body())
	if err != nil {
		return errorResponse(ctx, err)
	}
	data, filename, err := c.ReportService.ExportReport(ctx.Context(), ctx.Params("name"), req, who)
	if err != nil {
		return errorResponse(ctx, err)
	}

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}

// Runs godoc
func (c *ReportController) Runs(ctx *fiber.Ctx) error {
	who, err := requester(ctx)
	if err != nil {
		return err
	}
	runs, err := c.ReportService.ListRuns(ctx.Context(), who, int64(ctx.QueryInt("limit", 0)))
	if err != nil {
		return errorResponse(ctx, err)
	}
	return ctx.JSON(runs)
}

// Reload godoc
func (c *ReportController) Reload(ctx *fiber.Ctx) error {
	result, err := c.ReportService.Reload(ctx.Context())
	if err != nil {
		return errorResponse(ctx, err)
	}
	return ctx.JSON(result)
}

// Health godoc
func (c *ReportController) Health(ctx *fiber.Ctx) error {
	status := c.ReportService.Health()
	if status.HasErrors {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return ctx.JSON(status)
}

func requester(ctx *fiber.Ctx) (Requester, error) {
	claims, ok := middleware.Claims(ctx)
	if !ok {
		return Requester{}, ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User claims not found"})
	}
	return Requester{
		AccountID: claims.AccountID,
		UserID:    claims.UserID,
		SysAdmin:  claims.SysAdmin,
		GroupIDs:  claims.GroupIDs,
		Locale:    claims.Locale,
	}, nil
}

func errorResponse(ctx *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fwd *ForwardError
	switch {
	case errors.Is(err, catalog.ErrReportNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrAccountMissing):
		status = fiber.StatusBadRequest
	case errors.Is(err, ErrEntryMismatch):
		status = fiber.StatusConflict
	case errors.As(err, &fwd):
		status = fiber.StatusBadGateway
	}
	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}
