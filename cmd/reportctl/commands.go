package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go-fleetreport/internal/config"
	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/report"
	"go-fleetreport/internal/features/rule"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// errInvalidDefinitions makes validate exit non-zero after printing problems.
var errInvalidDefinitions = errors.New("report definitions contain errors")

type rootOptions struct {
	file    string
	format  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "reportctl",
		Short: "Inspect and validate report definition files",
		Long: `reportctl loads a report definition file the same way the API server does
and prints what the catalog would contain.

Examples:
  reportctl validate -f reports.xml     # Print load problems, exit 1 on errors
  reportctl list -f reports.xml         # List report names and types
  reportctl show trip.detail            # Show one report as YAML`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "Report definition file (default: REPORT_DEFINITION_PATH)")
	root.PersistentFlags().StringVar(&opts.format, "format", "yaml", "Output format: yaml | json")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log parser activity")

	root.AddCommand(newValidateCmd(opts), newListCmd(opts), newShowCmd(opts))
	return root
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the definitions and report every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, err := opts.load()
			if err != nil {
				return err
			}
			if err := opts.write(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.HasErrors {
				return errInvalidDefinitions
			}
			return nil
		},
	}
}

type listItem struct {
	Name  string        `json:"name" yaml:"name"`
	Type  string        `json:"type" yaml:"type"`
	Scope catalog.Scope `json:"scope" yaml:"scope"`
	Title string        `json:"title" yaml:"title"`
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := opts.load()
			if err != nil {
				return err
			}
			items := make([]listItem, 0, cat.Len())
			for _, e := range cat.Entries() {
				items = append(items, listItem{
					Name:  e.Name(),
					Type:  e.Type().Name,
					Scope: e.Scope(),
					Title: e.Title().String(),
				})
			}
			return opts.write(cmd.OutOrStdout(), items)
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <report>",
		Short: "Show one report definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := opts.load()
			if err != nil {
				return err
			}
			entry, err := cat.Get(args[0])
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), entry.View(nil, ""))
		},
	}
}

func (o *rootOptions) load() (*catalog.Catalog, catalog.LoadResult, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, catalog.LoadResult{}, err
	}
	path := o.file
	if path == "" {
		path = cfg.ReportDefinitionPath
	}

	logger := zap.NewNop()
	if o.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, catalog.LoadResult{}, err
		}
	}

	cat := catalog.NewCatalog(report.CatalogConfig(cfg, report.DefaultKinds(), rule.NewTengoEvaluator(logger), nil), logger)
	res := cat.Load(catalog.FileSource(path))
	return cat, res, nil
}

func (o *rootOptions) write(w io.Writer, v any) error {
	switch o.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
}
