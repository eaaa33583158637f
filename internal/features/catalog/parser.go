package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-fleetreport/internal/features/constraint"
	"go-fleetreport/internal/features/option"

	"go.uber.org/zap"
)

const (
	tagReportDefinition = "ReportDefinition"
	tagProperties       = "Properties"
	tagProperty         = "Property"
	tagDefaultStyle     = "DefaultStyle"
	tagReportLayout     = "ReportLayout"
	tagDateFormat       = "DateFormat"
	tagTimeFormat       = "TimeFormat"
	tagLayoutStyle      = "LayoutStyle"
	tagReportTypes      = "ReportTypes"
	tagReportType       = "ReportType"
	tagReport           = "Report"
	tagInclude          = "Include"
	tagMenuDescription  = "MenuDescription"
	tagTitle            = "Title"
	tagSubtitle         = "Subtitle"
	tagHeaderGroups     = "HeaderGroups"
	tagHeaderGroup      = "HeaderGroup"
	tagColumns          = "Columns"
	tagColumn           = "Column"
	tagSimpleColumns    = "SimpleColumns"
	tagOptions          = "Options"
	tagOption           = "Option"
	tagDescription      = "Description"
	tagConstraints      = "Constraints"
	tagMapIconSelector  = "MapIconSelector"
	tagTimeStart        = "TimeStart"
	tagTimeEnd          = "TimeEnd"
	tagTimeZone         = "TimeZone"
	tagValidGPSRequired = "ValidGPSRequired"
	tagOrderAscending   = "OrderAscending"
	tagOrderDescending  = "OrderDescending"
	tagSelectionLimit   = "SelectionLimit"
	tagReportLimit      = "ReportLimit"
	tagStatusCodes      = "StatusCodes"
	tagWhere            = "Where"
	tagRuleSelector     = "RuleSelector"
)

// Global property keys read by the parser.
const (
	PropShowCustomOptions    = "ReportFactory.showCustomOptions"
	PropOptionsShowGeozoneID = "ReportFactory.optionsShowGeozoneID"
)

// knownModules maps module names and aliases to the canonical module name.
var knownModules = map[string]string{
	"extra":  "extra",
	"gtse":   "extra",
	"rule":   "rule",
	"enre":   "rule",
	"bcross": "bcross",
	"ifta":   "ifta",
	"dmtp":   "dmtp",
}

// CanonicalModule returns the canonical name of a known add-on module.
func CanonicalModule(name string) (string, bool) {
	m, ok := knownModules[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

type loader struct {
	cfg       Config
	logger    *zap.Logger
	installed map[string]bool
	snap      *snapshot
	result    LoadResult
	visited   map[string]bool
}

// document is the per-file parse state.
type document struct {
	origin string
	pkg    string
	props  *Properties
}

func newLoader(cfg Config, logger *zap.Logger) *loader {
	installed := make(map[string]bool)
	for _, m := range cfg.InstalledModules {
		if c, ok := CanonicalModule(m); ok {
			installed[c] = true
		}
	}
	return &loader{
		cfg:       cfg,
		logger:    logger,
		installed: installed,
		snap:      newSnapshot(cfg.Types),
		visited:   make(map[string]bool),
	}
}

func (l *loader) load(src Source) (*snapshot, error) {
	root, origin, err := src.Document()
	if err != nil {
		l.problem(SeverityError, origin, 0, "", "unable to read report definitions: %v", err)
		return nil, err
	}
	if !root.Is(tagReportDefinition) {
		err := fmt.Errorf("%w: %s", ErrInvalidRoot, root.Tag)
		l.problem(SeverityError, origin, root.Line, "", "invalid root tag %q", root.Tag)
		return nil, err
	}
	if origin != "" {
		l.visited[origin] = true
	}
	l.parseDocument(root, origin, NewProperties())
	return l.snap, nil
}

func (l *loader) problem(sev Severity, origin string, line int, report, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p := Problem{Severity: sev, Source: origin, Line: line, Report: report, Message: msg}
	l.result.Problems = append(l.result.Problems, p)
	fields := []zap.Field{zap.String("source", origin), zap.Int("line", line)}
	if report != "" {
		fields = append(fields, zap.String("report", report))
	}
	if sev == SeverityError {
		l.result.HasErrors = true
		l.logger.Error(msg, fields...)
		return
	}
	l.result.HasWarnings = true
	l.logger.Warn(msg, fields...)
}

func (l *loader) errorf(doc *document, n *Node, report, format string, args ...any) {
	l.problem(SeverityError, doc.origin, n.Line, report, format, args...)
}

func (l *loader) warnf(doc *document, n *Node, report, format string, args ...any) {
	l.problem(SeverityWarning, doc.origin, n.Line, report, format, args...)
}

// expand applies key substitution and records unresolved keys as errors.
func (l *loader) expand(doc *document, n *Node, report, text string) string {
	out, err := doc.props.Expand(text)
	if err != nil {
		l.errorf(doc, n, report, "property substitution failed: %v", err)
	}
	return out
}

func (l *loader) parseDocument(root *Node, origin string, inherited *Properties) {
	doc := &document{
		origin: origin,
		pkg:    root.AttrString("i18nPackage", ""),
		props:  l.documentProperties(root, origin, inherited),
	}

	for _, n := range root.ChildrenNamed(tagDefaultStyle) {
		if css := n.AttrString("cssFile", ""); css != "" {
			l.snap.defaultStyle.CSSFiles = append(l.snap.defaultStyle.CSSFiles, css)
		}
		l.snap.defaultStyle.Sheet += reformatStyle(n.Text)
	}

	for _, n := range root.ChildrenNamed(tagReportLayout) {
		l.parseLayout(doc, n)
	}

	for _, types := range root.ChildrenNamed(tagReportTypes) {
		for _, n := range types.ChildrenNamed(tagReportType) {
			l.parseReportType(doc, n)
		}
	}

	for _, n := range root.ChildrenNamed(tagReport) {
		l.parseReport(doc, n)
	}

	for _, n := range root.ChildrenNamed(tagInclude) {
		l.parseInclude(doc, n)
	}
}

// documentProperties layers the document's top-level properties over the
// includer's, then applies the runtime overrides.
func (l *loader) documentProperties(root *Node, origin string, inherited *Properties) *Properties {
	props := inherited.Clone()
	for _, block := range root.ChildrenNamed(tagProperties) {
		for _, n := range block.ChildrenNamed(tagProperty) {
			key := n.AttrString("key", "")
			if key == "" {
				l.problem(SeverityError, origin, n.Line, "", "report property key is blank")
				continue
			}
			props.Set(key, n.TextValue())
		}
	}
	props.Merge(PropertiesFrom(l.cfg.GlobalProperties))
	return props
}

func (l *loader) parseLayout(doc *document, n *Node) {
	name := n.AttrString("name", n.AttrString("class", n.AttrString("layout", "")))
	optional := n.AttrBool("optional", false)
	if name == "" {
		l.errorf(doc, n, "", "report layout name is blank")
		return
	}
	if l.cfg.Bindings == nil || !l.cfg.Bindings.HasLayout(name) {
		if optional || l.cfg.IgnoreMissingReports {
			l.logger.Debug("Ignoring optional report layout", zap.String("layout", name))
		} else {
			l.errorf(doc, n, "", "report layout not found: %s", name)
		}
		return
	}

	layout := Layout{Name: name}
	if f := n.Child(tagDateFormat); f != nil {
		layout.DateFormat = f.TextLine()
	}
	if f := n.Child(tagTimeFormat); f != nil {
		layout.TimeFormat = f.TextLine()
	}
	for _, s := range n.ChildrenNamed(tagLayoutStyle) {
		if css := s.AttrString("cssFile", ""); css != "" {
			layout.Style.CSSFiles = append(layout.Style.CSSFiles, css)
		}
		layout.Style.Sheet += reformatStyle(s.Text)
	}
	l.snap.layouts[name] = layout
}

func (l *loader) parseReportType(doc *document, n *Node) {
	name := n.AttrString("name", "")
	if name == "" {
		l.errorf(doc, n, "", "report type name is blank")
		return
	}
	scope := ScopeDevice
	if attr := n.AttrString("attr", ""); attr != "" {
		s, ok := ParseScope(attr)
		if !ok {
			l.errorf(doc, n, "", "report type %s has unknown scope %q", name, attr)
			return
		}
		scope = s
	} else if n.AttrBool("isGroup", false) {
		scope = ScopeGroup
	}
	l.snap.types.RegisterType(name, scope, Text{Key: qualifyKey(doc.pkg, n.AttrString("i18n", "")), Default: n.TextLine()})
}

// reportDraft collects one Report element before it is validated.
type reportDraft struct {
	name         string
	invalid      bool
	columnForm   string
	columns      []Column
	autoGroups   []HeaderGroup
	explicit     []HeaderGroup
	hasExplicit  bool
	staticSet    *option.Set
	optionKind   option.Kind
	includeAll   bool
	constraints  *constraint.Constraints
	iconSelector string
	props        *Properties
	menu         *Text
	title        *Text
	subtitle     *Text
}

func (l *loader) parseReport(doc *document, n *Node) {
	name := n.AttrString("name", "")
	typeAttr := n.AttrString("type", "")
	class := n.AttrString("class", "")
	layout := n.AttrString("layout", "")
	optional := n.AttrBool("optional", false)
	sortable := n.AttrBool("sortable", false)

	if name == "" {
		l.errorf(doc, n, "", "report name is blank")
		return
	}

	modules, ok := l.modulesPresent(doc, n, name)
	if !ok {
		return
	}

	if l.snap.entries.Has(name) {
		l.errorf(doc, n, name, "report name already exists: %s", name)
		return
	}

	d := &reportDraft{name: name, props: NewProperties()}
	for _, c := range n.Children {
		switch {
		case c.Is(tagMenuDescription):
			t := textFrom(c, doc.pkg)
			d.menu = &t
		case c.Is(tagTitle):
			t := textFrom(c, doc.pkg)
			d.title = &t
		case c.Is(tagSubtitle):
			t := textFrom(c, doc.pkg)
			d.subtitle = &t
		case c.Is(tagHeaderGroups):
			if !d.hasExplicit {
				l.parseHeaderGroups(doc, d, c)
			}
		case c.Is(tagColumns):
			l.parseColumns(doc, d, c, sortable)
		case c.Is(tagSimpleColumns):
			l.parseSimpleColumns(doc, d, c, sortable)
		case c.Is(tagOptions):
			if d.staticSet == nil && d.optionKind == option.KindNone {
				l.parseOptions(doc, d, c)
			}
		case c.Is(tagConstraints):
			if d.constraints == nil {
				d.constraints = l.parseConstraints(doc, name, c)
			}
		case c.Is(tagMapIconSelector):
			if d.iconSelector == "" {
				d.iconSelector = l.parseIconSelector(doc, name, c)
			}
		case c.Is(tagProperty):
			l.parseReportProperty(doc, d, c)
		case c.Is(tagProperties):
			for _, p := range c.ChildrenNamed(tagProperty) {
				l.parseReportProperty(doc, d, p)
			}
		default:
			l.errorf(doc, c, name, "unrecognized tag name: %s", c.Tag)
		}
	}

	if d.invalid {
		return
	}

	// Class and type problems are failures of the definition as a whole.
	fail := func(format string, args ...any) {
		if optional || l.cfg.IgnoreMissingReports {
			l.logger.Debug("Ignoring optional report",
				zap.String("report", name), zap.String("reason", fmt.Sprintf(format, args...)))
			return
		}
		l.errorf(doc, n, name, format, args...)
	}

	rt, err := l.resolveType(typeAttr)
	if err != nil {
		l.errorf(doc, n, name, "%v", err)
		return
	}
	if class == "" {
		l.errorf(doc, n, name, "report class not specified")
		return
	}
	var binding Binding
	if l.cfg.Bindings != nil {
		binding, _ = l.cfg.Bindings.Binding(class)
	}
	if binding == nil {
		fail("report class not found: %s", class)
		return
	}

	if len(d.columns) == 0 && rt.Scope != ScopeTable {
		l.errorf(doc, n, name, "report has no columns")
		return
	}

	if layout != "" {
		if !l.cfg.Bindings.HasLayout(layout) {
			l.warnf(doc, n, name, "specified layout not found: %s", layout)
		} else if bl := binding.Layout(); bl != "" && !strings.EqualFold(bl, layout) {
			l.warnf(doc, n, name, "incorrect specified layout %s, report class uses %s", layout, bl)
		}
	}
	if layout == "" {
		layout = binding.Layout()
	}

	e := &Entry{
		name:         name,
		reportType:   rt,
		class:        class,
		layout:       layout,
		optional:     optional,
		sysAdminOnly: n.AttrBool("sysAdminOnly", false),
		sortable:     sortable,
		menu:         textOr(d.menu, DefaultMenu),
		title:        textOr(d.title, DefaultTitle),
		subtitle:     textOr(d.subtitle, DefaultSubtitle),
		columns:      d.columns,
		headerGroups: l.headerGroups(doc, n, d),
		constraints:  d.constraints,
		iconSelector: d.iconSelector,
		properties:   d.props,
		options:      l.optionSource(doc, d, binding),
		modules:      modules,
		source:       doc.origin,
	}
	if e.constraints == nil {
		e.constraints = constraint.New()
	}
	l.snap.entries.Set(name, e)
}

// resolveType accepts a comma separated list whose first element is the
// entry's type. Every listed type must be registered.
func (l *loader) resolveType(attr string) (ReportType, error) {
	var names []string
	for _, s := range strings.Split(attr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	if len(names) == 0 {
		return ReportType{}, errors.New("report type not specified")
	}
	for _, s := range names {
		if _, ok := l.snap.types.Lookup(s); !ok {
			return ReportType{}, fmt.Errorf("report type not defined: %s", s)
		}
	}
	rt, _ := l.snap.types.Lookup(names[0])
	return rt, nil
}

// modulesPresent reports whether every module the report depends on is
// installed. An unknown module name is a warning.
func (l *loader) modulesPresent(doc *document, n *Node, name string) ([]string, bool) {
	var modules []string
	for _, m := range strings.Split(n.AttrString("modules", ""), ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		canon, known := CanonicalModule(m)
		if !known {
			l.warnf(doc, n, name, "unrecognized module: %s", m)
			return nil, false
		}
		if !l.installed[canon] {
			l.logger.Debug("Module not present", zap.String("report", name), zap.String("module", m))
			return nil, false
		}
		modules = append(modules, canon)
	}
	return modules, true
}

// hiddenBy reports whether ifTrue/ifFalse gates hide an element. Each key
// is looked up as "<report>.<key>" and then "<key>".
func hiddenBy(props *Properties, report, ifTrue, ifFalse string) bool {
	if ifTrue != "" {
		keys := []string{report + "." + ifTrue, ifTrue}
		if props.Has(keys...) && !props.Bool(true, keys...) {
			return true
		}
	}
	if ifFalse != "" {
		keys := []string{report + "." + ifFalse, ifFalse}
		if props.Has(keys...) && props.Bool(false, keys...) {
			return true
		}
	}
	return false
}

func (l *loader) parseColumns(doc *document, d *reportDraft, n *Node, reportSortable bool) {
	if d.columnForm == tagSimpleColumns {
		l.logger.Debug("Ignoring Columns, SimpleColumns already declared", zap.String("report", d.name))
		return
	}
	d.columnForm = tagColumns

	start := len(d.columns)
	for i, c := range n.ChildrenNamed(tagColumn) {
		name := c.AttrString("name", c.AttrString("key", ""))
		if name == "" {
			l.errorf(doc, c, d.name, "column #%d has a blank name", i)
			d.invalid = true
			continue
		}
		if hiddenBy(doc.props, d.name, c.AttrString("ifTrue", ""), c.AttrString("ifFalse", "")) {
			continue
		}
		col := Column{
			Name:      name,
			Arg:       c.AttrString("arg", ""),
			Sortable:  reportSortable && c.AttrBool("sortable", true),
			BlankFill: c.AttrString("blankFill", ""),
		}
		if c.TextValue() != "" {
			col.Title = textFrom(c, doc.pkg)
		}
		d.columns = append(d.columns, col)
	}

	added := len(d.columns) - start
	if added == 0 {
		return
	}
	g := HeaderGroup{Start: start, Span: added}
	if t := n.Child(tagTitle); t != nil && t.TextValue() != "" {
		g.Title = textFrom(t, doc.pkg)
	}
	d.autoGroups = append(d.autoGroups, g)
}

func (l *loader) parseSimpleColumns(doc *document, d *reportDraft, n *Node, reportSortable bool) {
	if d.columnForm != "" {
		l.logger.Debug("Ignoring SimpleColumns, columns already declared", zap.String("report", d.name))
		return
	}
	d.columnForm = tagSimpleColumns
	for _, f := range strings.FieldsFunc(n.Text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	}) {
		key, arg, _ := strings.Cut(f, ":")
		if key = strings.TrimSpace(key); key == "" {
			l.errorf(doc, n, d.name, "column %q has a blank name", f)
			d.invalid = true
			continue
		}
		d.columns = append(d.columns, Column{Name: key, Arg: arg, Sortable: reportSortable})
	}
}

func (l *loader) parseHeaderGroups(doc *document, d *reportDraft, n *Node) {
	d.hasExplicit = true
	index := 0
	for _, g := range n.ChildrenNamed(tagHeaderGroup) {
		if hiddenBy(doc.props, d.name, g.AttrString("ifTrue", ""), g.AttrString("ifFalse", "")) {
			continue
		}
		span := g.AttrInt("colSpan", 1)
		if span < 1 {
			l.errorf(doc, g, d.name, "header group colSpan must be positive: %d", span)
			continue
		}
		hg := HeaderGroup{Start: index, Span: span}
		if g.TextValue() != "" {
			hg.Title = textFrom(g, doc.pkg)
		}
		d.explicit = append(d.explicit, hg)
		index += span
	}
}

// headerGroups combines derived and explicit groups. A lone untitled group
// is dropped.
func (l *loader) headerGroups(doc *document, n *Node, d *reportDraft) []HeaderGroup {
	groups := append([]HeaderGroup(nil), d.autoGroups...)
	for _, g := range d.explicit {
		if g.Start+g.Span > len(d.columns) {
			l.errorf(doc, n, d.name, "header group at column %d spans %d columns, report has %d", g.Start, g.Span, len(d.columns))
			continue
		}
		groups = append(groups, g)
	}
	if len(groups) == 1 && !groups[0].HasTitle() {
		return nil
	}
	return groups
}

func (l *loader) parseOptions(doc *document, d *reportDraft, n *Node) {
	declared := n.AttrString("type", "")
	kind, includeAll, ok := option.ParseKind(declared)
	if !ok {
		l.warnf(doc, n, d.name, "unrecognized options type %q, no options attached", declared)
		return
	}
	options := n.ChildrenNamed(tagOption)
	if kind != option.KindList {
		if len(options) > 0 {
			l.errorf(doc, n, d.name, "Option tags ignored for type %s", declared)
		}
		d.optionKind, d.includeAll = kind, includeAll
		return
	}

	set := option.NewSet()
	for _, o := range options {
		id := o.AttrString("name", "")
		if id == "" {
			l.errorf(doc, o, d.name, "missing option name")
			continue
		}
		if hiddenBy(doc.props, d.name, o.AttrString("ifTrue", ""), o.AttrString("ifFalse", "")) {
			continue
		}
		if _, dup := set.Get(id); dup {
			l.errorf(doc, o, d.name, "option already defined: %s", id)
			continue
		}
		opt := option.NewReportOption(id, "")
		for _, c := range o.Children {
			switch {
			case c.Is(tagDescription):
				opt.Description = c.TextValue()
			case c.Is(tagProperty):
				key := c.AttrString("key", "")
				if key == "" {
					l.errorf(doc, c, d.name, "option property key is blank: %s", id)
					continue
				}
				opt.SetValue(key, l.expand(doc, c, d.name, c.TextValue()))
			default:
				l.errorf(doc, c, d.name, "unrecognized option tag: %s", c.Tag)
			}
		}
		_ = set.Add(opt)
	}
	d.staticSet = set
	d.optionKind = option.KindList
}

func (l *loader) optionSource(doc *document, d *reportDraft, binding Binding) *option.Source {
	if d.staticSet != nil {
		return option.StaticSource(d.staticSet)
	}
	if !doc.props.Bool(!l.cfg.OmitCustomOptions, PropShowCustomOptions) {
		return nil
	}
	switch d.optionKind {
	case option.KindNone, option.KindList:
		return nil
	case option.KindCustom:
		if r := binding.OptionsResolver(); r != nil {
			return option.ResolverSource(option.KindCustom, r)
		}
		return nil
	}
	deps := l.cfg.Resolvers
	deps.ShowGeozoneID = doc.props.Bool(deps.ShowGeozoneID, PropOptionsShowGeozoneID)
	if r := option.NewResolver(d.optionKind, d.includeAll, deps); r != nil {
		return option.ResolverSource(d.optionKind, r)
	}
	return nil
}

func (l *loader) parseReportProperty(doc *document, d *reportDraft, n *Node) {
	key := n.AttrString("key", "")
	if key == "" {
		l.errorf(doc, n, d.name, "report property key is blank")
		return
	}
	d.props.Set(key, l.expand(doc, n, d.name, n.TextValue()))
}

// ruleEngineSelected reports whether the installed rule engine is named
// by a ruleFactoryName list. An empty list selects any engine.
func (l *loader) ruleEngineSelected(n *Node) bool {
	names := n.AttrString("ruleFactoryName", "")
	if names == "" {
		return true
	}
	for _, s := range strings.Split(names, ",") {
		if strings.EqualFold(strings.TrimSpace(s), l.cfg.Rules.Name()) {
			return true
		}
	}
	return false
}

func (l *loader) parseIconSelector(doc *document, report string, n *Node) string {
	if l.cfg.Rules == nil || !l.ruleEngineSelected(n) {
		return ""
	}
	sel := n.TextLine()
	if !l.cfg.Rules.CheckSyntax(sel) {
		l.errorf(doc, n, report, "invalid MapIconSelector syntax: %s [%s]", sel, l.cfg.Rules.Name())
	}
	return sel
}

func (l *loader) parseConstraints(doc *document, report string, n *Node) *constraint.Constraints {
	rc := constraint.New()
	for _, c := range n.Children {
		switch {
		case c.Is(tagTimeStart):
			rc.TimeStart = parseInt64(c.TextLine(), constraint.Unbounded)
		case c.Is(tagTimeEnd):
			rc.TimeEnd = parseInt64(c.TextLine(), constraint.Unbounded)
		case c.Is(tagTimeZone):
			tz := c.TextLine()
			if _, err := time.LoadLocation(tz); err != nil {
				l.warnf(doc, c, report, "unknown time zone %q", tz)
				continue
			}
			rc.TimeZone = tz
		case c.Is(tagValidGPSRequired):
			rc.ValidGPSRequired = parseBool(c.TextLine(), false)
		case c.Is(tagOrderAscending):
			rc.OrderAscending = parseBool(c.TextLine(), true)
		case c.Is(tagOrderDescending):
			rc.OrderAscending = !parseBool(c.TextLine(), false)
		case c.Is(tagSelectionLimit):
			limit := l.parseLimit(doc, report, c)
			rc.SetSelectionLimit(constraint.ParseLimitType(c.AttrString("type", ""), limit), limit)
		case c.Is(tagReportLimit):
			rc.ReportLimit = l.parseLimit(doc, report, c)
		case c.Is(tagStatusCodes):
			codes, err := constraint.ParseStatusCodes(c.TextLine())
			if err != nil {
				l.errorf(doc, c, report, "invalid status code list: %v", err)
				continue
			}
			rc.StatusCodes = codes
		case c.Is(tagWhere):
			// Keys left unresolved here are filled from the instance
			// properties at retrieval time.
			rc.Where, _ = doc.props.Expand(c.TextLine())
		case c.Is(tagRuleSelector):
			l.parseRuleSelector(doc, report, c, rc)
		default:
			l.errorf(doc, c, report, "unrecognized constraint tag: %s", c.Tag)
		}
	}
	return rc
}

func (l *loader) parseLimit(doc *document, report string, n *Node) int64 {
	text := strings.TrimSpace(l.expand(doc, n, report, n.TextLine()))
	if text == "" {
		return constraint.Unbounded
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		l.errorf(doc, n, report, "invalid %s value %q", n.Tag, text)
		return constraint.Unbounded
	}
	return v
}

func (l *loader) parseRuleSelector(doc *document, report string, n *Node, rc *constraint.Constraints) {
	sel := n.TextLine()
	if l.cfg.Rules == nil {
		if sel != "" {
			l.warnf(doc, n, report, "RuleSelector specified and no rule engine installed")
		}
		return
	}
	if !l.ruleEngineSelected(n) {
		if sel != "" {
			l.warnf(doc, n, report, "ignoring RuleSelector for rule engine %s", l.cfg.Rules.Name())
		}
		return
	}
	if !l.cfg.Rules.CheckSyntax(sel) {
		l.warnf(doc, n, report, "invalid RuleSelector syntax: %s", sel)
	}
	rc.RuleSelector = sel
}

func (l *loader) parseInclude(doc *document, n *Node) {
	file := n.AttrString("file", "")
	optional := n.AttrBool("optional", false)
	if file == "" {
		l.errorf(doc, n, "", "include file not specified")
		return
	}
	if _, ok := l.modulesPresent(doc, n, ""); !ok {
		return
	}

	found, checked := locateInclude(doc.origin, n.AttrString("dir", ""), file)
	if found == "" {
		if optional {
			l.logger.Debug("Optional include not found", zap.String("file", file), zap.Strings("checked", checked))
		} else {
			l.warnf(doc, n, "", "include file not found: %s", file)
		}
		return
	}
	if l.visited[found] {
		l.warnf(doc, n, "", "include cycle skipped: %s", found)
		return
	}
	l.visited[found] = true

	root, err := DecodeFile(found)
	if err != nil {
		l.errorf(doc, n, "", "unable to read include %s: %v", found, err)
		return
	}
	if !root.Is(tagReportDefinition) {
		l.problem(SeverityError, found, root.Line, "", "invalid root tag %q", root.Tag)
		return
	}
	l.logger.Info("Found include", zap.String("file", found))
	l.parseDocument(root, found, doc.props)
}

// locateInclude tries <parent>/<dir>/<file>, <parent>/<file>, <dir>/<file>
// and <file>, in that order.
func locateInclude(origin, dir, file string) (string, []string) {
	var candidates []string
	parent := ""
	if origin != "" {
		parent = filepath.Dir(origin)
	}
	if parent != "" && dir != "" {
		candidates = append(candidates, filepath.Join(parent, dir, file))
	}
	if parent != "" {
		candidates = append(candidates, filepath.Join(parent, file))
	}
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, file))
	}
	candidates = append(candidates, file)

	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && fi.Mode().IsRegular() {
			if abs, err := filepath.Abs(c); err == nil {
				return abs, candidates
			}
			return c, candidates
		}
	}
	return "", candidates
}

func parseInt64(s string, def int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return def
	}
	return v
}

func reformatStyle(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func textOr(t *Text, def Text) Text {
	if t == nil || t.IsBlank() {
		return def
	}
	return *t
}

func qualifyKey(pkg, key string) string {
	if key != "" && pkg != "" && !strings.Contains(key, ":") {
		return pkg + ":" + key
	}
	return key
}
