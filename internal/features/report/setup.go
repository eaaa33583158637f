package report

import (
	"fmt"
	"strings"

	"go-fleetreport/internal/config"
	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/directory"
	"go-fleetreport/internal/features/option"
	"go-fleetreport/internal/features/rule"
)

// CatalogConfig builds the catalog load settings from the application
// configuration. dir may be nil when no option resolver needs it.
func CatalogConfig(cfg *config.Config, kinds *Kinds, rules rule.Evaluator, dir directory.DirectoryRepository) catalog.Config {
	return catalog.Config{
		Bindings: kinds,
		Rules:    rules,
		Resolvers: option.Dependencies{
			Directory:     dir,
			ShowGeozoneID: cfg.ReportShowGeozoneID,
		},
		InstalledModules:     cfg.ReportInstalledModules,
		IgnoreMissingReports: cfg.ReportIgnoreMissing,
		OmitCustomOptions:    !cfg.ReportShowCustomOpts,
		GlobalProperties:     cfg.ReportProperties,
	}
}

// StatusCodeTable returns the configured status code table, or nil when none
// is configured.
func StatusCodeTable(cfg *config.Config) (map[int]string, error) {
	if strings.TrimSpace(cfg.ReportStatusCodes) == "" {
		return nil, nil
	}
	table, err := option.ParseStatusCodeTable(cfg.ReportStatusCodes)
	if err != nil {
		return nil, fmt.Errorf("REPORT_STATUS_CODES: %w", err)
	}
	return table, nil
}
