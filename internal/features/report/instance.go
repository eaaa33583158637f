package report

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/constraint"
	"go-fleetreport/internal/features/directory"
	"go-fleetreport/internal/features/event"
	"go-fleetreport/internal/features/option"
	"go-fleetreport/internal/features/rule"

	"go.uber.org/zap"
)

// ErrEntryMismatch is returned when an entry does not belong to the current
// catalog snapshot.
var ErrEntryMismatch = errors.New("report entry does not belong to the current catalog")

// Factory binds catalog entries to report instances.
type Factory struct {
	Catalog   *catalog.Catalog
	Kinds     *Kinds
	Store     event.Store
	Directory directory.DirectoryRepository
	// Rules evaluates rule selectors. Nil disables rule filtering.
	Rules rule.Evaluator
	// DataFields enables derived record fields for every report.
	DataFields bool
	Logger     *zap.Logger
}

// CreateByName looks the entry up in the current catalog.
func (f *Factory) CreateByName(ctx context.Context, name, optionID string, target Target, oc option.Context) (*Instance, error) {
	entry, err := f.Catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return f.Create(ctx, entry, optionID, target, oc)
}

// CreateFromMenu creates an instance for a menu entry and drops the columns
// the menu omits.
func (f *Factory) CreateFromMenu(ctx context.Context, me catalog.MenuEntry, optionID string, target Target, oc option.Context) (*Instance, error) {
	in, err := f.Create(ctx, me.Entry, optionID, target, oc)
	if err != nil {
		return nil, err
	}
	if len(me.OmitColumns) > 0 {
		in.ExcludeColumns(me.OmitColumns...)
	}
	return in, nil
}

// Create binds entry to target. The entry's constraints are copied, the
// option is resolved (an unknown option leaves none bound) and the target is
// stored unvalidated.
func (f *Factory) Create(ctx context.Context, entry *catalog.Entry, optionID string, target Target, oc option.Context) (*Instance, error) {
	if entry == nil {
		return nil, catalog.ErrReportNotFound
	}
	if f.Catalog != nil && !f.Catalog.IsCurrent(entry) {
		return nil, fmt.Errorf("%w: %s", ErrEntryMismatch, entry.Name())
	}
	kind, err := f.Kinds.Kind(entry.Class())
	if err != nil {
		return nil, err
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	in := &Instance{
		entry:        entry,
		kind:         kind,
		target:       target,
		context:      oc,
		constraints:  entry.Constraints(),
		columns:      entry.Columns(),
		headerGroups: entry.HeaderGroups(),
		layout:       catalog.Layout{Name: entry.LayoutName()},
		store:        f.Store,
		directory:    f.Directory,
		rules:        f.Rules,
		logger:       logger.With(zap.String("report", entry.Name())),
	}
	if f.Catalog != nil {
		if l, ok := f.Catalog.Layout(entry.LayoutName()); ok {
			in.layout = l
		}
	}
	if optionID != "" {
		in.option = entry.Options().Option(ctx, optionID, oc, logger)
		if in.option == nil {
			logger.Debug("Report option not found", zap.String("report", entry.Name()), zap.String("option", optionID))
		}
	}
	in.properties = entry.Properties()
	if in.option != nil {
		in.option.Values.Each(func(k, v string) bool {
			in.properties.Set(k, v)
			return true
		})
	}
	in.dataFields = f.DataFields || in.properties.Bool(false, PropDataFieldEnabled)
	return in, nil
}

// Instance is one report bound to a target for one request. It is not safe
// for concurrent use.
type Instance struct {
	entry        *catalog.Entry
	kind         Kind
	option       *option.ReportOption
	target       Target
	context      option.Context
	constraints  *constraint.Constraints
	properties   *catalog.Properties
	columns      []catalog.Column
	headerGroups []catalog.HeaderGroup
	layout       catalog.Layout

	overrideStart int64
	overrideEnd   int64

	store     event.Store
	directory directory.DirectoryRepository
	rules     rule.Evaluator
	logger    *zap.Logger

	dataFields      bool
	postInitialized bool
	warnedNoRules   bool
}

func (in *Instance) Entry() *catalog.Entry        { return in.entry }
func (in *Instance) Kind() Kind                   { return in.kind }
func (in *Instance) Option() *option.ReportOption { return in.option }
func (in *Instance) Target() Target               { return in.target }
func (in *Instance) Context() option.Context      { return in.context }
func (in *Instance) Layout() catalog.Layout       { return in.layout }
func (in *Instance) DataFieldsEnabled() bool      { return in.dataFields }
func (in *Instance) Columns() []catalog.Column    { return slices.Clone(in.columns) }
func (in *Instance) HeaderGroups() []catalog.HeaderGroup {
	return slices.Clone(in.headerGroups)
}

// Constraints returns the instance's own constraints. Changes never reach
// the catalog entry.
func (in *Instance) Constraints() *constraint.Constraints {
	return in.constraints
}

// EffectiveProperties returns the entry properties overlaid with the bound
// option's values.
func (in *Instance) EffectiveProperties() *catalog.Properties {
	return in.properties.Clone()
}

// IncludeColumns keeps only the named columns in their current order. A
// filter matching no column is rejected and reports false.
func (in *Instance) IncludeColumns(names ...string) bool {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	return in.filterColumns(func(c catalog.Column) bool { return keep[c.Name] })
}

// ExcludeColumns drops the named columns. A filter removing every column is
// rejected and reports false.
func (in *Instance) ExcludeColumns(names ...string) bool {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	return in.filterColumns(func(c catalog.Column) bool { return !drop[c.Name] })
}

func (in *Instance) filterColumns(keep func(catalog.Column) bool) bool {
	var out []catalog.Column
	for _, c := range in.columns {
		if keep(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return false
	}
	if len(out) != len(in.columns) {
		// spans refer to the unfiltered column positions
		in.headerGroups = nil
	}
	in.columns = out
	return true
}

// SetTimeOverride replaces the constraint time range for retrieval. A
// non-positive bound keeps the constraint's bound.
func (in *Instance) SetTimeOverride(start, end int64) {
	in.overrideStart, in.overrideEnd = start, end
}

// TimeRange is the effective retrieval range.
func (in *Instance) TimeRange() (int64, int64) {
	return in.constraints.EffectiveRange(in.overrideStart, in.overrideEnd)
}

// PostInitialize runs the kind's adjustment hook. Only the first call has
// an effect.
func (in *Instance) PostInitialize() {
	if in.postInitialized {
		return
	}
	in.postInitialized = true
	in.kind.PostInitialize(in)
}

// WhereSelector is the constraint where clause with ${key} references
// replaced from the effective properties. Unresolved keys are left as is.
func (in *Instance) WhereSelector() string {
	where := in.constraints.Where
	if where == "" {
		return ""
	}
	out, err := catalog.ReplaceKeys(where, in.properties.Get)
	if err != nil {
		in.logger.Debug("Unresolved where clause keys", zap.Error(err))
	}
	return out
}

// Build finalizes the instance and produces its output.
func (in *Instance) Build(ctx context.Context) (*Output, error) {
	in.PostInitialize()
	return in.kind.Build(ctx, in)
}

// Title resolves the report title through l.
func (in *Instance) Title(l catalog.Localizer, locale string) string {
	return in.entry.Title().Resolve(l, locale)
}
