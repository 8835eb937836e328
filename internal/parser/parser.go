// Package parser is the Parser Adapter (spec §4.1): it wraps a concrete
// tree-sitter parser per language and exposes a uniform node interface
// (kind, children-by-field, byte span, text) to the compiler. Grounded on
// the teacher's internal/parser package, narrowed to the two language
// families spec.md closes the set to.
package parser

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/schirrmacher/malwi/internal/types"
)

// ParseError is returned when the grammar rejects input outright (spec
// §4.1). ERROR nodes inside a tree that did parse are not reported as a
// ParseError, and the compiler records no warning for them either.
type ParseError struct {
	FilePath string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.FilePath, e.Reason)
}

// Node is the uniform, language-neutral view over a concrete-syntax-tree
// node that the compiler walks.
type Node struct {
	raw     *tree_sitter.Node
	content []byte
}

// Kind returns the grammar-defined node type (e.g. "function_definition").
func (n *Node) Kind() string {
	if n == nil || n.raw == nil {
		return ""
	}
	return n.raw.Kind()
}

// IsNil reports whether this wraps a missing node.
func (n *Node) IsNil() bool { return n == nil || n.raw == nil }

// ChildCount returns the number of children (named and anonymous).
func (n *Node) ChildCount() int {
	if n.IsNil() {
		return 0
	}
	return int(n.raw.ChildCount())
}

// Child returns the i-th child, or nil if out of range.
func (n *Node) Child(i int) *Node {
	if n.IsNil() {
		return nil
	}
	c := n.raw.Child(uint(i))
	if c == nil {
		return nil
	}
	return &Node{raw: c, content: n.content}
}

// ChildByFieldName returns the child bound to the named grammar field, or
// nil when the field is absent on this node.
func (n *Node) ChildByFieldName(field string) *Node {
	if n.IsNil() {
		return nil
	}
	c := n.raw.ChildByFieldName(field)
	if c == nil {
		return nil
	}
	return &Node{raw: c, content: n.content}
}

// NamedChildren returns only the named (non-anonymous-token) children, in
// source order, which is the iteration order the compiler's deterministic
// emission rule (spec §4.2 rule 10) depends on.
func (n *Node) NamedChildren() []*Node {
	if n.IsNil() {
		return nil
	}
	count := int(n.raw.NamedChildCount())
	out := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.raw.NamedChild(uint(i))
		if c != nil {
			out = append(out, &Node{raw: c, content: n.content})
		}
	}
	return out
}

// StartLine returns the 1-based source line the node starts on.
func (n *Node) StartLine() int {
	if n.IsNil() {
		return 0
	}
	return int(n.raw.StartPosition().Row) + 1
}

// EndLine returns the 1-based source line the node ends on.
func (n *Node) EndLine() int {
	if n.IsNil() {
		return 0
	}
	return int(n.raw.EndPosition().Row) + 1
}

// Text returns the exact source bytes spanned by the node.
func (n *Node) Text() string {
	if n.IsNil() {
		return ""
	}
	return string(n.content[n.raw.StartByte():n.raw.EndByte()])
}

// IsError reports whether tree-sitter recovered this node as an ERROR or
// MISSING node. The compiler does not call it: ERROR subtrees are walked
// like any other node and no parse_error warning is recorded for them.
func (n *Node) IsError() bool {
	if n.IsNil() {
		return false
	}
	return n.raw.IsError() || n.raw.IsMissing()
}

// Adapter owns one lazily-initialized tree-sitter parser per language and
// parses source text into a uniform Node tree.
type Adapter struct {
	mu      sync.Mutex
	parsers map[types.Language]*tree_sitter.Parser
}

// NewAdapter constructs an Adapter with no parsers initialized yet; each
// language's tree-sitter parser is built lazily on first use, the same
// lazy-init strategy the teacher uses to avoid paying grammar setup cost for
// languages a scan never encounters.
func NewAdapter() *Adapter {
	return &Adapter{parsers: make(map[types.Language]*tree_sitter.Parser)}
}

func (a *Adapter) parserFor(lang types.Language) (*tree_sitter.Parser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.parsers[lang]; ok {
		return p, nil
	}

	p := tree_sitter.NewParser()
	var langPtr *tree_sitter.Language
	switch lang {
	case types.LanguagePython:
		langPtr = tree_sitter.NewLanguage(tree_sitter_python.Language())
	case types.LanguageJavaScript:
		langPtr = tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	default:
		return nil, fmt.Errorf("unsupported language %q", lang)
	}
	if err := p.SetLanguage(langPtr); err != nil {
		return nil, fmt.Errorf("failed to set up %s grammar: %w", lang, err)
	}
	a.parsers[lang] = p
	return p, nil
}

// Parse parses content as the given language and returns the root Node of
// the resulting tree. The caller owns content's lifetime; Node.Text reads
// directly from it without copying.
func (a *Adapter) Parse(lang types.Language, filePath string, content []byte) (*Node, error) {
	p, err := a.parserFor(lang)
	if err != nil {
		return nil, err
	}
	tree := p.Parse(content, nil)
	if tree == nil {
		return nil, &ParseError{FilePath: filePath, Reason: "grammar rejected input"}
	}
	root := tree.RootNode()
	if root == nil {
		return nil, &ParseError{FilePath: filePath, Reason: "empty parse tree"}
	}
	return &Node{raw: root, content: content}, nil
}
