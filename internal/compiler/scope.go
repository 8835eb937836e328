package compiler

import "github.com/schirrmacher/malwi/internal/parser"

// ScopeKind distinguishes module scope (CPython uses STORE_NAME there, not
// STORE_GLOBAL — spec §8 scenario S1 is normative on this point), function
// scope (where FAST/GLOBAL resolution applies, spec §4.2 rule 7) and class
// scope (which behaves like a mini-module namespace).
type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeFunction
	ScopeClass
)

// Scope resolves a name to the right LOAD_*/STORE_* family for the
// enclosing syntactic scope, per spec §4.2 rule 7.
type Scope struct {
	Kind    ScopeKind
	Params  map[string]bool
	Locals  map[string]bool
	Globals map[string]bool
}

func newScope(kind ScopeKind) *Scope {
	return &Scope{
		Kind:    kind,
		Params:  map[string]bool{},
		Locals:  map[string]bool{},
		Globals: map[string]bool{},
	}
}

// NameClass is the resolved storage class for an identifier.
type NameClass int

const (
	NameClassName NameClass = iota
	NameClassFast
	NameClassGlobal
	NameClassParam
)

// Resolve returns the storage class a load or store of name should use.
func (s *Scope) Resolve(name string) NameClass {
	switch s.Kind {
	case ScopeFunction:
		if s.Params[name] {
			return NameClassParam
		}
		if s.Globals[name] {
			return NameClassGlobal
		}
		if s.Locals[name] {
			return NameClassFast
		}
		// Free name: neither a parameter, a local, nor an explicit
		// `global` — assumed module scope (spec §4.2 rule 7).
		return NameClassGlobal
	default: // module, class
		return NameClassName
	}
}

// collectAssignedNames walks stmt's descendants, WITHOUT crossing into a
// nested function or class definition's own body, gathering every name
// assigned within this scope: plain assignment targets, augmented
// assignment targets, variable declarators, for-loop targets, with-as
// targets and except-as targets. Import bindings are not collected, so a
// name imported inside a function resolves as a module-scope name. This is
// the pre-pass rule 7 needs so a forward reference inside the function
// resolves to LOAD_FAST instead of LOAD_GLOBAL.
func collectAssignedNames(body []*parser.Node, lang string, locals, globals map[string]bool) {
	var walk func(n *parser.Node)
	walk = func(n *parser.Node) {
		if n == nil || n.IsNil() {
			return
		}
		switch n.Kind() {
		case "function_definition", "function_declaration", "class_definition", "class_declaration",
			"arrow_function", "function_expression", "generator_function_declaration", "lambda":
			return // nested scope: do not harvest its locals into this one
		case "global_statement":
			for _, c := range n.NamedChildren() {
				if c.Kind() == "identifier" {
					globals[c.Text()] = true
				}
			}
			return
		case "assignment", "augmented_assignment":
			target := n.ChildByFieldName("left")
			if target == nil {
				target = n.ChildByFieldName("name")
			}
			collectTargetNames(target, locals)
		case "variable_declarator":
			if name := n.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				locals[name.Text()] = true
			}
		case "for_statement":
			if lhs := n.ChildByFieldName("left"); lhs != nil {
				collectTargetNames(lhs, locals)
			}
		case "for_in_statement", "for_of_statement":
			if lhs := n.ChildByFieldName("left"); lhs != nil {
				collectTargetNames(lhs, locals)
			}
		case "with_item", "as_pattern":
			if alias := n.ChildByFieldName("alias"); alias != nil {
				collectTargetNames(alias, locals)
			}
		case "except_clause":
			if alias := n.ChildByFieldName("alias"); alias != nil {
				collectTargetNames(alias, locals)
			}
		}
		for _, c := range n.NamedChildren() {
			walk(c)
		}
	}
	for _, stmt := range body {
		walk(stmt)
	}
}

func collectTargetNames(target *parser.Node, into map[string]bool) {
	if target == nil || target.IsNil() {
		return
	}
	switch target.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		into[target.Text()] = true
	case "tuple_pattern", "list_pattern", "pattern_list", "tuple", "list", "array_pattern", "object_pattern":
		for _, c := range target.NamedChildren() {
			collectTargetNames(c, into)
		}
	}
}
