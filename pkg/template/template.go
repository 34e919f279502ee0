package template

import (
	"fmt"
	"strings"
)

// Template is a parsed template. The zero value is not usable; obtain
// instances from Parse, Clone, or CloneRegion.
type Template struct {
	nodes []node
}

type node interface {
	clone() node
	render(sb *strings.Builder)
}

type textNode struct {
	text string
}

func (n *textNode) clone() node                { return &textNode{text: n.text} }
func (n *textNode) render(sb *strings.Builder) { sb.WriteString(n.text) }

type varNode struct {
	name  string
	value string
	bound bool
}

func (n *varNode) clone() node { return &varNode{name: n.name, value: n.value, bound: n.bound} }

func (n *varNode) render(sb *strings.Builder) {
	if n.bound {
		sb.WriteString(n.value)
		return
	}
	// Unbound placeholders stay literal.
	sb.WriteString("{$")
	sb.WriteString(n.name)
	sb.WriteString("}")
}

type regionNode struct {
	name     string
	children []node
}

func (n *regionNode) clone() node {
	return &regionNode{name: n.name, children: cloneNodes(n.children)}
}

func (n *regionNode) render(sb *strings.Builder) {
	for _, c := range n.children {
		c.render(sb)
	}
}

func cloneNodes(nodes []node) []node {
	out := make([]node, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}

// Parse parses a template source string. It returns ErrParse when region
// tags are not properly nested: an unclosed region, a close tag without an
// open region, or a close tag naming a region other than the innermost one.
func Parse(src string) (*Template, error) {
	p := &parser{src: src}
	nodes, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &Template{nodes: nodes}, nil
}

type parser struct {
	src string
	pos int
}

type openRegion struct {
	name  string
	nodes []node
}

func (p *parser) parse() ([]node, error) {
	var stack []openRegion
	stack = append(stack, openRegion{}) // root

	appendNode := func(n node) {
		top := &stack[len(stack)-1]
		top.nodes = append(top.nodes, n)
	}

	flushText := func(text string) {
		if text == "" {
			return
		}
		appendNode(&textNode{text: text})
	}

	for p.pos < len(p.src) {
		next := strings.IndexByte(p.src[p.pos:], '{')
		if next < 0 {
			flushText(p.src[p.pos:])
			p.pos = len(p.src)
			break
		}
		flushText(p.src[p.pos : p.pos+next])
		p.pos += next

		tag, kind, ok := p.scanTag()
		if !ok {
			// Not a tag, emit the brace literally and continue.
			flushText("{")
			p.pos++
			continue
		}

		switch kind {
		case tagVar:
			appendNode(&varNode{name: tag})
		case tagOpen:
			stack = append(stack, openRegion{name: tag})
		case tagClose:
			if len(stack) == 1 {
				return nil, fmt.Errorf("%w: close tag {/%s} without open region", ErrParse, tag)
			}
			top := stack[len(stack)-1]
			if tag != "" && tag != top.name {
				return nil, fmt.Errorf("%w: close tag {/%s} does not match open region %q", ErrParse, tag, top.name)
			}
			stack = stack[:len(stack)-1]
			appendNode(&regionNode{name: top.name, children: top.nodes})
		}
	}

	if len(stack) > 1 {
		return nil, fmt.Errorf("%w: unclosed region %q", ErrParse, stack[len(stack)-1].name)
	}
	return stack[0].nodes, nil
}

type tagKind int

const (
	tagVar tagKind = iota
	tagOpen
	tagClose
)

// scanTag attempts to read a tag starting at the current "{". On success it
// advances past the tag and returns its name and kind. On failure the
// position is left untouched so the brace can be treated as literal text.
func (p *parser) scanTag() (string, tagKind, bool) {
	rest := p.src[p.pos+1:]
	end := strings.IndexByte(rest, '}')
	if end < 0 {
		return "", 0, false
	}
	body := rest[:end]

	switch {
	case strings.HasPrefix(body, "$"):
		name := body[1:]
		if !validName(name) {
			return "", 0, false
		}
		p.pos += end + 2
		return name, tagVar, true
	case strings.HasPrefix(body, "/"):
		name := body[1:]
		if name != "" && !validName(name) {
			return "", 0, false
		}
		p.pos += end + 2
		return name, tagClose, true
	default:
		if !validName(body) {
			return "", 0, false
		}
		p.pos += end + 2
		return body, tagOpen, true
	}
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Clone returns a deep copy. Bindings applied to either copy afterwards do
// not affect the other.
func (t *Template) Clone() *Template {
	return &Template{nodes: cloneNodes(t.nodes)}
}

// HasRegion reports whether a region with the given name exists anywhere in
// the template.
func (t *Template) HasRegion(name string) bool {
	return findRegion(t.nodes, name) != nil
}

// CloneRegion extracts the named region body as an independent sub-template.
// The parent is left unchanged.
func (t *Template) CloneRegion(name string) (*Template, error) {
	r := findRegion(t.nodes, name)
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrRegionNotFound, name)
	}
	return &Template{nodes: cloneNodes(r.children)}, nil
}

// DeleteRegion clears the body of the named region, leaving the remaining
// content in place. It reports whether the region existed.
func (t *Template) DeleteRegion(name string) bool {
	r := findRegion(t.nodes, name)
	if r == nil {
		return false
	}
	r.children = nil
	return true
}

// ReplaceRegion replaces the body of the named region with literal text.
// It reports whether the region existed.
func (t *Template) ReplaceRegion(name, text string) bool {
	r := findRegion(t.nodes, name)
	if r == nil {
		return false
	}
	r.children = []node{&textNode{text: text}}
	return true
}

func findRegion(nodes []node, name string) *regionNode {
	for _, n := range nodes {
		r, ok := n.(*regionNode)
		if !ok {
			continue
		}
		if r.name == name {
			return r
		}
		if nested := findRegion(r.children, name); nested != nil {
			return nested
		}
	}
	return nil
}

// Bind binds every {$name} placeholder to value. It returns ErrTagNotFound
// when the template never references the variable.
func (t *Template) Bind(name, value string) error {
	if bindNodes(t.nodes, name, value) == 0 {
		return fmt.Errorf("%w: {$%s}", ErrTagNotFound, name)
	}
	return nil
}

// TryBind binds every {$name} placeholder to value and is a no-op when the
// template never references the variable. Use it for bindings a template
// may or may not carry, such as recipient names.
func (t *Template) TryBind(name, value string) {
	bindNodes(t.nodes, name, value)
}

func bindNodes(nodes []node, name, value string) int {
	count := 0
	for _, n := range nodes {
		switch v := n.(type) {
		case *varNode:
			if v.name == name {
				v.value = value
				v.bound = true
				count++
			}
		case *regionNode:
			count += bindNodes(v.children, name, value)
		}
	}
	return count
}

// Render produces the final string. Unbound placeholders remain as literal
// {$name} text; region markers never appear in the output.
func (t *Template) Render() string {
	var sb strings.Builder
	for _, n := range t.nodes {
		n.render(&sb)
	}
	return sb.String()
}
