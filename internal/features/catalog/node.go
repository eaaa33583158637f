package catalog

import (
	"strconv"
	"strings"
)

// Attr is one node attribute.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of a definition document. Tags and attribute names
// compare case-insensitively.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Node
	Line     int
}

func (n *Node) Is(tag string) bool {
	return strings.EqualFold(n.Tag, tag)
}

func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// AttrString returns the trimmed attribute value or def when absent or blank.
func (n *Node) AttrString(name, def string) string {
	v, ok := n.Attr(name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return def
	}
	return v
}

func (n *Node) AttrBool(name string, def bool) bool {
	return parseBool(n.AttrString(name, ""), def)
}

func (n *Node) AttrInt(name string, def int) int {
	v, err := strconv.Atoi(n.AttrString(name, ""))
	if err != nil {
		return def
	}
	return v
}

// ChildrenNamed returns direct children with the given tag.
func (n *Node) ChildrenNamed(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Is(tag) {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first direct child with the given tag.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.Is(tag) {
			return c
		}
	}
	return nil
}

// TextValue returns the trimmed text with escaped "\n" sequences expanded.
func (n *Node) TextValue() string {
	return strings.ReplaceAll(strings.TrimSpace(n.Text), `\n`, "\n")
}

// TextLine returns the text with all whitespace runs collapsed to one space.
func (n *Node) TextLine() string {
	return strings.Join(strings.Fields(n.Text), " ")
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0":
		return false
	}
	return def
}
