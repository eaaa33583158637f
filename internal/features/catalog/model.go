package catalog

import (
	"slices"
	"strings"

	"go-fleetreport/internal/features/constraint"
	"go-fleetreport/internal/features/option"
)

var (
	DefaultMenu     = Text{Key: "ReportFactory.menuItem", Default: "Menu Item"}
	DefaultTitle    = Text{Key: "ReportFactory.reportTitle", Default: "A Report"}
	DefaultSubtitle = Text{Key: "ReportFactory.reportSubtitle", Default: "${deviceDesc} [${deviceId}]\n${dateRange}"}
)

// Column is one report column. Arg parameterizes the column renderer.
type Column struct {
	Name      string `json:"name" yaml:"name"`
	Arg       string `json:"arg,omitempty" yaml:"arg,omitempty"`
	Title     Text   `json:"title" yaml:"title"`
	Sortable  bool   `json:"sortable" yaml:"sortable"`
	BlankFill string `json:"blankFill,omitempty" yaml:"blankFill,omitempty"`
}

// HeaderGroup spans Span columns starting at column index Start.
type HeaderGroup struct {
	Start int  `json:"start" yaml:"start"`
	Span  int  `json:"span" yaml:"span"`
	Title Text `json:"title" yaml:"title"`
}

func (g HeaderGroup) HasTitle() bool {
	return strings.TrimSpace(g.Title.Default) != ""
}

type Style struct {
	CSSFiles []string `json:"cssFiles,omitempty" yaml:"cssFiles,omitempty"`
	Sheet    string   `json:"sheet,omitempty" yaml:"sheet,omitempty"`
}

// Layout is a named renderer configuration.
type Layout struct {
	Name       string `json:"name" yaml:"name"`
	DateFormat string `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"`
	TimeFormat string `json:"timeFormat,omitempty" yaml:"timeFormat,omitempty"`
	Style      Style  `json:"style" yaml:"style"`
}

// Entry is one validated report definition. It is immutable once its
// catalog snapshot is published; getters return copies.
type Entry struct {
	name         string
	reportType   ReportType
	class        string
	layout       string
	optional     bool
	sysAdminOnly bool
	sortable     bool
	menu         Text
	title        Text
	subtitle     Text
	columns      []Column
	headerGroups []HeaderGroup
	constraints  *constraint.Constraints
	iconSelector string
	properties   *Properties
	options      *option.Source
	modules      []string
	source       string
}

func (e *Entry) Name() string             { return e.name }
func (e *Entry) Type() ReportType         { return e.reportType }
func (e *Entry) Scope() Scope             { return e.reportType.Scope }
func (e *Entry) Class() string            { return e.class }
func (e *Entry) LayoutName() string       { return e.layout }
func (e *Entry) IsOptional() bool         { return e.optional }
func (e *Entry) IsSysAdminOnly() bool     { return e.sysAdminOnly }
func (e *Entry) IsSortable() bool         { return e.sortable }
func (e *Entry) Menu() Text               { return e.menu }
func (e *Entry) Title() Text              { return e.title }
func (e *Entry) Subtitle() Text           { return e.subtitle }
func (e *Entry) MapIconSelector() string  { return e.iconSelector }
func (e *Entry) Options() *option.Source  { return e.options }
func (e *Entry) Source() string           { return e.source }
func (e *Entry) Modules() []string        { return slices.Clone(e.modules) }
func (e *Entry) Columns() []Column        { return slices.Clone(e.columns) }
func (e *Entry) HeaderGroups() []HeaderGroup {
	return slices.Clone(e.headerGroups)
}

// Constraints returns a private copy of the default constraints.
func (e *Entry) Constraints() *constraint.Constraints {
	return e.constraints.Clone()
}

// Properties returns a private copy of the report properties.
func (e *Entry) Properties() *Properties {
	return e.properties.Clone()
}

func (e *Entry) HasColumn(name string) bool {
	for _, c := range e.columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// EntryView is the serializable form of an Entry.
type EntryView struct {
	Name         string                  `json:"name" yaml:"name"`
	Type         string                  `json:"type" yaml:"type"`
	Scope        Scope                   `json:"scope" yaml:"scope"`
	Class        string                  `json:"class" yaml:"class"`
	Layout       string                  `json:"layout,omitempty" yaml:"layout,omitempty"`
	SysAdminOnly bool                    `json:"sysAdminOnly" yaml:"sysAdminOnly"`
	Sortable     bool                    `json:"sortable" yaml:"sortable"`
	Menu         string                  `json:"menu" yaml:"menu"`
	Title        string                  `json:"title" yaml:"title"`
	Subtitle     string                  `json:"subtitle" yaml:"subtitle"`
	Columns      []Column                `json:"columns" yaml:"columns"`
	HeaderGroups []HeaderGroup           `json:"headerGroups,omitempty" yaml:"headerGroups,omitempty"`
	Constraints  *constraint.Constraints `json:"constraints" yaml:"constraints"`
	IconSelector string                  `json:"mapIconSelector,omitempty" yaml:"mapIconSelector,omitempty"`
	Properties   map[string]string       `json:"properties,omitempty" yaml:"properties,omitempty"`
	OptionKind   option.Kind             `json:"optionKind,omitempty" yaml:"optionKind,omitempty"`
	Modules      []string                `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// View resolves localized text through l.
func (e *Entry) View(l Localizer, locale string) EntryView {
	v := EntryView{
		Name:         e.name,
		Type:         e.reportType.Name,
		Scope:        e.reportType.Scope,
		Class:        e.class,
		Layout:       e.layout,
		SysAdminOnly: e.sysAdminOnly,
		Sortable:     e.sortable,
		Menu:         e.menu.Resolve(l, locale),
		Title:        e.title.Resolve(l, locale),
		Subtitle:     e.subtitle.Resolve(l, locale),
		Columns:      e.Columns(),
		HeaderGroups: e.HeaderGroups(),
		Constraints:  e.Constraints(),
		IconSelector: e.iconSelector,
		Modules:      e.Modules(),
	}
	if e.properties.Len() > 0 {
		v.Properties = e.properties.Map()
	}
	if e.options != nil {
		v.OptionKind = e.options.Kind()
	}
	return v
}

// MenuEntry places an Entry in a user menu.
type MenuEntry struct {
	Entry       *Entry
	ACLName     string
	OmitColumns []string
}

func NewMenuEntry(entry *Entry, aclName string, omit ...string) MenuEntry {
	return MenuEntry{Entry: entry, ACLName: aclName, OmitColumns: omit}
}
