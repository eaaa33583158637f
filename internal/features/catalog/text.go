package catalog

import "strings"

// Text is a localizable string: a resource key plus the text used when no
// translation exists.
type Text struct {
	Key     string `json:"key,omitempty" yaml:"key,omitempty"`
	Default string `json:"default" yaml:"default"`
}

// Localizer looks up translated text.
type Localizer interface {
	Lookup(locale, key string) (string, bool)
}

func (t Text) IsBlank() bool {
	return strings.TrimSpace(t.Default) == "" && t.Key == ""
}

// Resolve returns the localized text, or the default.
func (t Text) Resolve(l Localizer, locale string) string {
	if l != nil && t.Key != "" {
		if s, ok := l.Lookup(locale, t.Key); ok {
			return s
		}
	}
	return t.Default
}

func (t Text) String() string {
	return t.Default
}

// textFrom reads a node's text and its i18n key, prefixed by pkg when the
// key is relative.
func textFrom(n *Node, pkg string) Text {
	return Text{Key: qualifyKey(pkg, n.AttrString("i18n", "")), Default: n.TextValue()}
}
