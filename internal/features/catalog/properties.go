package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go-fleetreport/pkg/orderedmap"
)

var ErrUnresolvedKey = errors.New("unresolved property key")

const maxExpandDepth = 8

// Properties is an ordered string bag used for global definition defaults,
// per-report properties and option overlays.
type Properties struct {
	values *orderedmap.Map[string, string]
}

func NewProperties() *Properties {
	return &Properties{values: orderedmap.New[string, string]()}
}

// PropertiesFrom copies m in key order.
func PropertiesFrom(m map[string]string) *Properties {
	p := NewProperties()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

func (p *Properties) Set(key, value string) {
	p.values.Set(key, value)
}

func (p *Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	return p.values.Get(key)
}

func (p *Properties) String(key, def string) string {
	if v, ok := p.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether any of keys is set.
func (p *Properties) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := p.Get(k); ok {
			return true
		}
	}
	return false
}

// Bool returns the first set key among keys parsed as a boolean.
func (p *Properties) Bool(def bool, keys ...string) bool {
	for _, k := range keys {
		if v, ok := p.Get(k); ok {
			return parseBool(v, def)
		}
	}
	return def
}

func (p *Properties) Int64(key string, def int64) int64 {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	return p.values.Keys()
}

func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return p.values.Len()
}

func (p *Properties) Clone() *Properties {
	if p == nil {
		return NewProperties()
	}
	return &Properties{values: p.values.Clone()}
}

// Merge overlays other; keys from other win.
func (p *Properties) Merge(other *Properties) {
	if other == nil {
		return
	}
	p.values.Merge(other.values)
}

// Map returns a plain copy.
func (p *Properties) Map() map[string]string {
	out := make(map[string]string, p.Len())
	for _, k := range p.Keys() {
		out[k], _ = p.Get(k)
	}
	return out
}

func (p *Properties) MarshalYAML() (any, error) {
	return p.Map(), nil
}

// Expand substitutes ${key} and ${key=default} references from p.
func (p *Properties) Expand(text string) (string, error) {
	return ReplaceKeys(text, p.Get)
}

// ReplaceKeys substitutes ${key} and ${key=default} references using lookup.
// Substituted values are expanded again up to a fixed depth. Unresolved
// references without a default are left in place and reported as
// ErrUnresolvedKey.
func ReplaceKeys(text string, lookup func(string) (string, bool)) (string, error) {
	var missing []string
	out := replaceKeys(text, lookup, 0, &missing)
	if len(missing) > 0 {
		return out, fmt.Errorf("%w: %s", ErrUnresolvedKey, strings.Join(missing, ", "))
	}
	return out, nil
}

func replaceKeys(text string, lookup func(string) (string, bool), depth int, missing *[]string) string {
	if !strings.Contains(text, "${") {
		return text
	}
	var b strings.Builder
	rest := text
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start
		b.WriteString(rest[:start])

		ref := rest[start+2 : end]
		key, def, hasDef := strings.Cut(ref, "=")
		key = strings.TrimSpace(key)
		if v, ok := lookup(key); ok {
			if depth < maxExpandDepth {
				v = replaceKeys(v, lookup, depth+1, missing)
			}
			b.WriteString(v)
		} else if hasDef {
			b.WriteString(def)
		} else {
			*missing = append(*missing, key)
			b.WriteString(rest[start : end+1])
		}
		rest = rest[end+1:]
	}
	return b.String()
}
