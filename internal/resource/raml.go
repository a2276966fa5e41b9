package resource

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DescriptionParseError is returned when a resource description cannot be
// read or parsed. It is never retried.
type DescriptionParseError struct {
	Source string
	Err    error
}

func (e *DescriptionParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("RAML parsing failed: %v", e.Err)
	}
	return fmt.Sprintf("RAML parsing failed for %s: %v", e.Source, e.Err)
}

func (e *DescriptionParseError) Unwrap() error {
	return e.Err
}

var httpMethods = map[string]bool{
	"get":     true,
	"post":    true,
	"put":     true,
	"patch":   true,
	"delete":  true,
	"head":    true,
	"options": true,
	"trace":   true,
	"connect": true,
}

// Parse reads a RAML document and returns its top-level resources in
// document order. Methods inherited from a resourceTypes entry through a
// resource's "type" are included; optional methods ("get?") are not.
func Parse(data []byte) ([]*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DescriptionParseError{Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &DescriptionParseError{Err: errors.New("empty document")}
	}

	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, &DescriptionParseError{Err: fmt.Errorf("line %d: document root is not a mapping", root.Line)}
	}

	p := &parser{types: make(map[string]*yaml.Node)}
	if err := p.collectTypes(root); err != nil {
		return nil, &DescriptionParseError{Err: err}
	}

	var nodes []*Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if !strings.HasPrefix(key.Value, "/") {
			continue
		}
		n, err := p.parseResource(key.Value, value)
		if err != nil {
			return nil, &DescriptionParseError{Err: err}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

type parser struct {
	types map[string]*yaml.Node
}

// collectTypes indexes resourceTypes, accepting both the RAML 0.8 sequence
// of single-key maps and the RAML 1.0 map form.
func (p *parser) collectTypes(root *yaml.Node) error {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "resourceTypes" {
			continue
		}
		value := resolve(root.Content[i+1])
		switch value.Kind {
		case yaml.MappingNode:
			p.addTypes(value)
		case yaml.SequenceNode:
			for _, item := range value.Content {
				item = resolve(item)
				if item.Kind != yaml.MappingNode {
					return fmt.Errorf("line %d: resource type must be a mapping", item.Line)
				}
				p.addTypes(item)
			}
		case yaml.ScalarNode:
			if value.Tag != "!!null" {
				return fmt.Errorf("line %d: resourceTypes %s %q is not supported", value.Line, value.Tag, value.Value)
			}
		default:
			return fmt.Errorf("line %d: resourceTypes must be a mapping or a sequence", value.Line)
		}
	}
	return nil
}

func (p *parser) addTypes(m *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		p.types[m.Content[i].Value] = resolve(m.Content[i+1])
	}
}

func (p *parser) parseResource(uri string, value *yaml.Node) (*Node, error) {
	n := &Node{RelativeURI: uri}
	value = resolve(value)

	switch {
	case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
		return n, nil
	case value.Kind != yaml.MappingNode:
		return nil, fmt.Errorf("line %d: resource %s must be a mapping", value.Line, uri)
	}

	declared := make(map[string]bool)
	var typeName string
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, child := value.Content[i].Value, value.Content[i+1]
		switch {
		case strings.HasPrefix(key, "/"):
			c, err := p.parseResource(key, child)
			if err != nil {
				return nil, err
			}
			n.Resources = append(n.Resources, c)
		case httpMethods[strings.ToLower(key)]:
			method := strings.ToLower(key)
			if !declared[method] {
				declared[method] = true
				n.Methods = append(n.Methods, method)
			}
		case key == "type":
			typeName = typeRef(resolve(child))
		}
	}

	if typeName != "" {
		for _, method := range p.typeMethods(typeName, make(map[string]bool)) {
			if !declared[method] {
				declared[method] = true
				n.Methods = append(n.Methods, method)
			}
		}
	}
	return n, nil
}

// typeMethods returns the non-optional methods of a resource type, following
// the type's own "type" reference. Unknown types contribute nothing.
func (p *parser) typeMethods(name string, seen map[string]bool) []string {
	if seen[name] {
		return nil
	}
	seen[name] = true

	def, ok := p.types[name]
	if !ok || def.Kind != yaml.MappingNode {
		return nil
	}

	var methods []string
	for i := 0; i+1 < len(def.Content); i += 2 {
		key := def.Content[i].Value
		switch {
		case httpMethods[strings.ToLower(key)]:
			methods = append(methods, strings.ToLower(key))
		case key == "type":
			methods = append(methods, p.typeMethods(typeRef(resolve(def.Content[i+1])), seen)...)
		}
	}
	return methods
}

// typeRef extracts the type name from either "type: name" or
// "type: { name: { params } }".
func typeRef(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value
	case yaml.MappingNode:
		if len(n.Content) >= 2 {
			return n.Content[0].Value
		}
	}
	return ""
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
