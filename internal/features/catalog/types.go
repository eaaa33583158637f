package catalog

import (
	"sort"
	"strings"
)

// Scope says what a report type is run against.
type Scope string

const (
	ScopeDevice Scope = "device"
	ScopeGroup  Scope = "group"
	ScopeDriver Scope = "driver"
	ScopeTable  Scope = "table"
)

// ParseScope accepts device, group, driver and table, case-insensitively.
func ParseScope(s string) (Scope, bool) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeDevice:
		return ScopeDevice, true
	case ScopeGroup, "fleet":
		return ScopeGroup, true
	case ScopeDriver:
		return ScopeDriver, true
	case ScopeTable:
		return ScopeTable, true
	}
	return "", false
}

type ReportType struct {
	Name        string `json:"name" yaml:"name"`
	Scope       Scope  `json:"scope" yaml:"scope"`
	Description Text   `json:"description" yaml:"description"`
}

// TypeRegistry maps report type names to scopes. It is filled while a
// catalog is parsed and read-only afterwards.
type TypeRegistry struct {
	types map[string]ReportType
}

// DefaultTypes is the built-in report type vocabulary plus one generic
// type per scope.
func DefaultTypes() []ReportType {
	return []ReportType{
		{Name: "device.detail", Scope: ScopeDevice, Description: Text{Default: "Device Detail"}},
		{Name: "device.summary", Scope: ScopeDevice, Description: Text{Default: "Device Summary"}},
		{Name: "fleet.detail", Scope: ScopeGroup, Description: Text{Default: "Fleet Detail"}},
		{Name: "fleet.summary", Scope: ScopeGroup, Description: Text{Default: "Fleet Summary"}},
		{Name: "device.performance", Scope: ScopeGroup, Description: Text{Default: "Device Performance"}},
		{Name: "driver.performance", Scope: ScopeDriver, Description: Text{Default: "Driver Performance"}},
		{Name: "ifta.detail", Scope: ScopeGroup, Description: Text{Default: "IFTA Detail"}},
		{Name: "ifta.summary", Scope: ScopeGroup, Description: Text{Default: "IFTA Summary"}},
		{Name: "sysadmin.summary", Scope: ScopeTable, Description: Text{Default: "System Administrator Summary"}},
		{Name: "table.admin", Scope: ScopeTable, Description: Text{Default: "Table Administration"}},
		{Name: "device", Scope: ScopeDevice, Description: Text{Default: "Device"}},
		{Name: "fleet", Scope: ScopeGroup, Description: Text{Default: "Fleet"}},
		{Name: "driver", Scope: ScopeDriver, Description: Text{Default: "Driver"}},
		{Name: "table", Scope: ScopeTable, Description: Text{Default: "Table"}},
	}
}

func NewTypeRegistry(types ...ReportType) *TypeRegistry {
	r := &TypeRegistry{types: make(map[string]ReportType)}
	for _, t := range types {
		r.RegisterType(t.Name, t.Scope, t.Description)
	}
	return r
}

// RegisterType adds or replaces a type. Blank names are ignored.
func (r *TypeRegistry) RegisterType(name string, scope Scope, description Text) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	r.types[strings.ToLower(name)] = ReportType{Name: name, Scope: scope, Description: description}
}

func (r *TypeRegistry) Lookup(name string) (ReportType, bool) {
	if r == nil {
		return ReportType{}, false
	}
	t, ok := r.types[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

func (r *TypeRegistry) IsDeviceScoped(name string) bool { return r.is(name, ScopeDevice) }
func (r *TypeRegistry) IsGroupScoped(name string) bool  { return r.is(name, ScopeGroup) }
func (r *TypeRegistry) IsDriverScoped(name string) bool { return r.is(name, ScopeDriver) }
func (r *TypeRegistry) IsTableScoped(name string) bool  { return r.is(name, ScopeTable) }

func (r *TypeRegistry) is(name string, scope Scope) bool {
	t, ok := r.Lookup(name)
	return ok && t.Scope == scope
}

func (r *TypeRegistry) Clone() *TypeRegistry {
	out := NewTypeRegistry()
	if r != nil {
		for k, v := range r.types {
			out.types[k] = v
		}
	}
	return out
}

// Types lists registered types by name.
func (r *TypeRegistry) Types() []ReportType {
	out := make([]ReportType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
