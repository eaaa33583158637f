package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/option"
	"go-fleetreport/internal/metrics"
	"go-fleetreport/pkg/utils"

	"go.uber.org/zap"
)

var (
	ErrForbidden      = errors.New("report restricted to system administrators")
	ErrNoSource       = errors.New("no report definition source configured")
	ErrAccountMissing = errors.New("account is required")
)

type ReportService interface {
	ListReports(ctx context.Context, who Requester) []ReportSummary
	GetReport(ctx context.Context, name string, who Requester) (*catalog.EntryView, error)
	ListOptions(ctx context.Context, name string, who Requester) (*option.Set, error)
	RunReport(ctx context.Context, name string, req RunRequest, who Requester) (*RunResult, error)
	ExportReport(ctx context.Context, name string, req RunRequest, who Requester) ([]byte, string, error)
	ListRuns(ctx context.Context, who Requester, limit int64) ([]RunRecord, error)
	Reload(ctx context.Context) (catalog.LoadResult, error)
	Health() HealthStatus
}

type ReportServiceImpl struct {
	Catalog *catalog.Catalog
	Factory *Factory
	Source  catalog.Source
	// RunRepo stores the run history; nil disables it.
	RunRepo     RunRepository
	Metrics     *metrics.Metrics
	Localizer   catalog.Localizer
	StatusCodes map[int]string
	Logger      *zap.Logger
}

// NewReportService builds the service. A nil statusCodes table falls back to
// option.DefaultStatusCodes.
func NewReportService(cat *catalog.Catalog, factory *Factory, source catalog.Source, runRepo RunRepository, statusCodes map[int]string, m *metrics.Metrics, logger *zap.Logger) ReportService {
	if statusCodes == nil {
		statusCodes = option.DefaultStatusCodes()
	}
	return &ReportServiceImpl{
		Catalog:     cat,
		Factory:     factory,
		Source:      source,
		RunRepo:     runRepo,
		Metrics:     m,
		StatusCodes: statusCodes,
		Logger:      logger,
	}
}

func (s *ReportServiceImpl) ListReports(ctx context.Context, who Requester) []ReportSummary {
	var out []ReportSummary
	for _, e := range s.Catalog.Entries() {
		if e.IsSysAdminOnly() && !who.SysAdmin {
			continue
		}
		out = append(out, ReportSummary{
			Name:         e.Name(),
			Type:         e.Type().Name,
			Scope:        e.Scope(),
			Menu:         e.Menu().Resolve(s.Localizer, who.Locale),
			Title:        e.Title().Resolve(s.Localizer, who.Locale),
			SysAdminOnly: e.IsSysAdminOnly(),
			HasOptions:   e.Options().HasOptions(),
		})
	}
	return out
}

func (s *ReportServiceImpl) GetReport(ctx context.Context, name string, who Requester) (*catalog.EntryView, error) {
	entry, err := s.entry(name, who)
	if err != nil {
		return nil, err
	}
	v := entry.View(s.Localizer, who.Locale)
	return &v, nil
}

func (s *ReportServiceImpl) ListOptions(ctx context.Context, name string, who Requester) (*option.Set, error) {
	entry, err := s.entry(name, who)
	if err != nil {
		return nil, err
	}
	return entry.Options().Options(ctx, s.optionContext(who), s.Logger), nil
}

func (s *ReportServiceImpl) RunReport(ctx context.Context, name string, req RunRequest, who Requester) (*RunResult, error) {
	start := time.Now()
	in, out, err := s.build(ctx, name, req, who)
	s.finish(ctx, name, "json", req, who, out, start, err)
	if err != nil {
		return nil, err
	}

	res := &RunResult{
		Report:       name,
		Title:        in.Title(s.Localizer, who.Locale),
		Columns:      out.Columns,
		HeaderGroups: out.HeaderGroups,
		Rows:         [][]any{},
		IsPartial:    out.Partial,
		Counters:     out.Counters,
	}
	if opt := in.Option(); opt != nil {
		res.Option = opt.ID
	}
	rows := out.Rows()
	for r, ok := rows.Next(); ok; r, ok = rows.Next() {
		res.Rows = append(res.Rows, r.Values(out.Columns))
	}
	totals := out.Totals()
	for r, ok := totals.Next(); ok; r, ok = totals.Next() {
		res.Totals = append(res.Totals, r.Values(out.Columns))
	}
	return res, nil
}

func (s *ReportServiceImpl) ExportReport(ctx context.Context, name string, req RunRequest, who Requester) ([]byte, string, error) {
	start := time.Now()
	in, out, err := s.build(ctx, name, req, who)
	s.finish(ctx, name, "xlsx", req, who, out, start, err)
	if err != nil {
		return nil, "", err
	}
	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("%s_%s", utils.Slugify(name, "_"), time.Now().Format("20060102_150405"))
	}
	return ExportToExcel(out, in.Title(s.Localizer, who.Locale), filename)
}

func (s *ReportServiceImpl) ListRuns(ctx context.Context, who Requester, limit int64) ([]RunRecord, error) {
	if who.AccountID == "" {
		return nil, ErrAccountMissing
	}
	if s.RunRepo == nil {
		return []RunRecord{}, nil
	}
	return s.RunRepo.List(ctx, who.AccountID, limit)
}

func (s *ReportServiceImpl) Reload(ctx context.Context) (catalog.LoadResult, error) {
	if s.Source == nil {
		return catalog.LoadResult{}, ErrNoSource
	}
	res := s.Catalog.Load(s.Source)
	s.Metrics.ObserveLoad(s.Catalog.Len(), res.HasErrors, res.HasWarnings)
	s.Logger.Info("Report catalog loaded",
		zap.Int("reports", s.Catalog.Len()),
		zap.Bool("hasErrors", res.HasErrors),
		zap.Bool("hasWarnings", res.HasWarnings))
	return res, nil
}

func (s *ReportServiceImpl) Health() HealthStatus {
	last := s.Catalog.LastLoad()
	return HealthStatus{
		Reports:     s.Catalog.Len(),
		HasErrors:   last.HasErrors,
		HasWarnings: last.HasWarnings,
		Problems:    last.Problems,
	}
}

func (s *ReportServiceImpl) entry(name string, who Requester) (*catalog.Entry, error) {
	entry, err := s.Catalog.Get(name)
	if err != nil {
		return nil, err
	}
	if entry.IsSysAdminOnly() && !who.SysAdmin {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, name)
	}
	return entry, nil
}

func (s *ReportServiceImpl) build(ctx context.Context, name string, req RunRequest, who Requester) (*Instance, *Output, error) {
	if who.AccountID == "" {
		return nil, nil, ErrAccountMissing
	}
	entry, err := s.entry(name, who)
	if err != nil {
		return nil, nil, err
	}
	in, err := s.Factory.Create(ctx, entry, req.Option, req.Target(), s.optionContext(who))
	if err != nil {
		return nil, nil, err
	}
	in.SetTimeOverride(req.TimeStart, req.TimeEnd)
	if len(req.IncludeColumns) > 0 && !in.IncludeColumns(req.IncludeColumns...) {
		s.Logger.Debug("Column include filter matched nothing", zap.String("report", name), zap.Strings("columns", req.IncludeColumns))
	}
	if len(req.ExcludeColumns) > 0 && !in.ExcludeColumns(req.ExcludeColumns...) {
		s.Logger.Debug("Column exclude filter would remove every column", zap.String("report", name), zap.Strings("columns", req.ExcludeColumns))
	}
	out, err := in.Build(ctx)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

// finish records metrics and run history. History failures are logged only.
func (s *ReportServiceImpl) finish(ctx context.Context, name, format string, req RunRequest, who Requester, out *Output, start time.Time, err error) {
	elapsed := time.Since(start)
	var records int64
	var partial bool
	if out != nil {
		records, partial = out.Counters.TotalRecordsEmitted, out.Partial
	}
	s.Metrics.ObserveRun(name, records, partial, elapsed, err)
	if err != nil {
		s.Logger.Warn("Report run failed", zap.String("report", name), zap.String("account", who.AccountID), zap.Error(err))
	}
	if s.RunRepo == nil || who.AccountID == "" {
		return
	}
	run := &RunRecord{
		Report:     name,
		Option:     req.Option,
		Format:     format,
		AccountID:  who.AccountID,
		UserID:     who.UserID,
		Target:     req.Target(),
		Records:    records,
		IsPartial:  partial,
		DurationMS: elapsed.Milliseconds(),
	}
	if err != nil {
		run.Error = err.Error()
	}
	if herr := s.RunRepo.Create(ctx, run); herr != nil {
		s.Logger.Error("Failed to record report run", zap.String("report", name), zap.Error(herr))
	}
}

func (s *ReportServiceImpl) optionContext(who Requester) option.Context {
	return option.Context{
		AccountID:   who.AccountID,
		GroupIDs:    who.GroupIDs,
		StatusCodes: s.StatusCodes,
		Locale:      who.Locale,
	}
}
