package catalog

import "go-fleetreport/internal/features/option"

// Binding is the runtime report kind named by an entry's class attribute.
type Binding interface {
	Layout() string
	// OptionsResolver backs the "custom" options kind. Nil means no options.
	OptionsResolver() option.Resolver
}

// BindingRegistry resolves class names and layout names during a load.
type BindingRegistry interface {
	Binding(class string) (Binding, bool)
	HasLayout(name string) bool
}

// SelectorChecker validates MapIconSelector and RuleSelector expressions.
type SelectorChecker interface {
	Name() string
	CheckSyntax(selector string) bool
}
