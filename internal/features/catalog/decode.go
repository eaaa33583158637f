package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeFile reads a definition document. Files ending in .yaml or .yml are
// decoded as YAML, everything else as XML.
func DecodeFile(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(f)
	}
	return DecodeXML(f)
}

// DecodeXML builds a node tree from an XML document.
func DecodeXML(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var (
		root  *Node
		stack []*Node
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml: %w", err)
		}
		line, _ := dec.InputPos()

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Tag: t.Name.Local, Line: line}
			for _, a := range t.Attr {
				n.Attrs = append(n.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("xml: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("xml: empty document")
	}
	return root, nil
}

type yamlNode struct {
	Tag      string            `yaml:"tag"`
	Attrs    map[string]string `yaml:"attrs"`
	Text     string            `yaml:"text"`
	Children []yamlNode        `yaml:"children"`
}

// DecodeYAML builds a node tree from a YAML document of nested
// {tag, attrs, text, children} mappings.
func DecodeYAML(r io.Reader) (*Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("yaml: empty document")
		}
		return nil, fmt.Errorf("yaml: %w", err)
	}
	var y yamlNode
	if err := doc.Decode(&y); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if y.Tag == "" {
		return nil, fmt.Errorf("yaml: root node has no tag")
	}
	return y.toNode(doc.Line), nil
}

func (y yamlNode) toNode(line int) *Node {
	n := &Node{Tag: y.Tag, Text: y.Text, Line: line}
	names := make([]string, 0, len(y.Attrs))
	for k := range y.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		n.Attrs = append(n.Attrs, Attr{Name: k, Value: y.Attrs[k]})
	}
	for _, c := range y.Children {
		n.Children = append(n.Children, c.toNode(0))
	}
	return n
}
