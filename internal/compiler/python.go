package compiler

import (
	"strings"

	"github.com/schirrmacher/malwi/internal/categories"
	"github.com/schirrmacher/malwi/internal/parser"
	"github.com/schirrmacher/malwi/internal/types"
)

// pyContext names the syntactic context a statement is being compiled in,
// which decides whether a nested function/class definition gets a separate
// CodeObject or is inlined (spec §4.2 rules 2-4).
type pyContext int

const (
	pyContextModule pyContext = iota
	pyContextFunction
	pyContextClass
)

func compilePythonBlock(c *ctx, b *builder, context int, stmts []*parser.Node) {
	compilePythonBlockCtx(c, b, pyContext(context), stmts)
}

func compilePythonBlockCtx(c *ctx, b *builder, context pyContext, stmts []*parser.Node) {
	for _, stmt := range stmts {
		compilePythonStatement(c, b, context, stmt)
	}
}

func compilePythonStatement(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	if !b.enter(c, stmt.StartLine()) {
		return
	}
	defer b.leave()

	line := stmt.StartLine()
	switch stmt.Kind() {
	case "function_definition":
		compilePythonFunctionDef(c, b, context, stmt)
	case "class_definition":
		compilePythonClassDef(c, b, stmt)
	case "import_statement":
		compilePythonImport(b, stmt, line)
	case "import_from_statement":
		compilePythonImportFrom(b, stmt, line)
	case "expression_statement":
		for _, e := range stmt.NamedChildren() {
			compilePythonExpr(c, b, e)
			b.emit(types.OpPopTop, types.NoneArg(), line)
		}
	case "return_statement":
		if v := firstNamedChild(stmt); v != nil {
			compilePythonExpr(c, b, v)
			b.emit(types.OpReturnValue, types.NoneArg(), line)
		} else {
			b.emit(types.OpReturnConst, types.NoneArg(), line)
		}
	case "if_statement":
		compilePythonIf(c, b, context, stmt)
	case "for_statement":
		compilePythonFor(c, b, context, stmt)
	case "while_statement":
		compilePythonWhile(c, b, context, stmt)
	case "try_statement":
		compilePythonTry(c, b, context, stmt)
	case "with_statement":
		compilePythonWith(c, b, context, stmt)
	case "raise_statement":
		if v := firstNamedChild(stmt); v != nil {
			compilePythonExpr(c, b, v)
		}
		b.emit(types.OpRaise, types.NoneArg(), line)
	case "global_statement", "nonlocal_statement", "pass_statement", "comment":
		// global affects scope resolution only (handled in the pre-pass);
		// nonlocal, pass and comments emit nothing.
	case "break_statement", "continue_statement":
		// Loop-exit targets are not modeled (spec §9 favors a flat,
		// deterministic stream over full control-flow reconstruction);
		// recorded as NOP so the statement still contributes a token.
		b.emit(types.OpNop, types.SymbolArg(stmt.Kind()), line)
	default:
		for _, child := range stmt.NamedChildren() {
			compilePythonExpr(c, b, child)
		}
	}
}

func firstNamedChild(n *parser.Node) *parser.Node {
	children := n.NamedChildren()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func compilePythonImport(b *builder, stmt *parser.Node, line int) {
	for _, child := range stmt.NamedChildren() {
		name := child
		alias := ""
		if child.Kind() == "aliased_import" {
			name = child.ChildByFieldName("name")
			if a := child.ChildByFieldName("alias"); a != nil {
				alias = a.Text()
			}
		}
		if name == nil {
			continue
		}
		modName := strings.ToLower(name.Text())
		b.emit(types.OpImportName, types.SymbolArg(modName), line)
		storeAs := alias
		if storeAs == "" {
			storeAs = strings.SplitN(modName, ".", 2)[0]
		}
		b.storeName(storeAs, line)
	}
}

func compilePythonImportFrom(b *builder, stmt *parser.Node, line int) {
	moduleNode := stmt.ChildByFieldName("module_name")
	modName := ""
	if moduleNode != nil {
		modName = strings.ToLower(moduleNode.Text())
	}
	b.emit(types.OpImportName, types.SymbolArg(modName), line)

	star := false
	names := []*parser.Node{}
	for _, child := range stmt.NamedChildren() {
		if child == moduleNode {
			continue
		}
		if child.Kind() == "wildcard_import" {
			star = true
			continue
		}
		names = append(names, child)
	}
	if star {
		b.emit(types.OpImportStar, types.NoneArg(), line)
		return
	}
	for _, n := range names {
		name := n
		alias := ""
		if n.Kind() == "aliased_import" {
			name = n.ChildByFieldName("name")
			if a := n.ChildByFieldName("alias"); a != nil {
				alias = a.Text()
			}
		}
		if name == nil {
			continue
		}
		b.emit(types.OpImportFrom, types.SymbolArg(strings.ToLower(name.Text())), line)
		storeAs := alias
		if storeAs == "" {
			storeAs = name.Text()
		}
		b.storeName(storeAs, line)
	}
}

func compilePythonFunctionDef(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	nameNode := stmt.ChildByFieldName("name")
	name := "<lambda>"
	if nameNode != nil {
		name = nameNode.Text()
	}

	if context == pyContextClass || context == pyContextFunction {
		// Methods are always inlined into the class's single CodeObject
		// (rule 3); functions nested inside a function are inlined too
		// (rule 2, depth > 0). Parameters become locals of the enclosing
		// scope rather than a fresh one.
		bindFunctionParamsAsLocals(b, stmt)
		bodyNode := stmt.ChildByFieldName("body")
		compilePythonBlockCtx(c, b, context, bodyNode.NamedChildren())
		return
	}

	childID := c.arena.new(name, c.lang, c.filePath, b.obj.Depth+1)
	child := c.arena.get(childID)
	child.Location = types.Location{StartLine: stmt.StartLine(), EndLine: stmt.EndLine()}
	b.obj.Children = append(b.obj.Children, childID)

	childScope := newScope(ScopeFunction)
	params := stmt.ChildByFieldName("parameters")
	paramNames := collectParamNames(params)
	for _, p := range paramNames {
		childScope.Params[p] = true
	}
	bodyNode := stmt.ChildByFieldName("body")
	body := bodyNode.NamedChildren()
	collectAssignedNames(body, string(types.LanguagePython), childScope.Locals, childScope.Globals)

	childBuilder := &builder{obj: child, scope: childScope}
	childBuilder.emit(types.OpResume, types.NoneArg(), line)
	compilePythonBlockCtx(c, childBuilder, pyContextFunction, body)
	if len(child.Instructions) == 0 || child.Instructions[len(child.Instructions)-1].Op != types.OpReturnValue {
		childBuilder.emit(types.OpReturnConst, types.NoneArg(), stmt.EndLine())
	}

	b.emit(types.OpMakeFunction, types.CodeObjectRefArg(childID), line)
	b.storeName(name, line)
}

func bindFunctionParamsAsLocals(b *builder, stmt *parser.Node) {
	params := stmt.ChildByFieldName("parameters")
	for _, p := range collectParamNames(params) {
		b.scope.Locals[p] = true
	}
}

func collectParamNames(params *parser.Node) []string {
	if params == nil || params.IsNil() {
		return nil
	}
	var names []string
	var extract func(n *parser.Node)
	extract = func(n *parser.Node) {
		switch n.Kind() {
		case "identifier":
			names = append(names, n.Text())
		case "default_parameter", "typed_default_parameter":
			if name := n.ChildByFieldName("name"); name != nil {
				extract(name)
			}
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			for _, c := range n.NamedChildren() {
				if c.Kind() == "identifier" {
					names = append(names, c.Text())
					return
				}
			}
		}
	}
	for _, c := range params.NamedChildren() {
		extract(c)
	}
	return names
}

func compilePythonClassDef(c *ctx, b *builder, stmt *parser.Node) {
	line := stmt.StartLine()
	nameNode := stmt.ChildByFieldName("name")
	name := "<class>"
	if nameNode != nil {
		name = nameNode.Text()
	}

	childID := c.arena.new(name, c.lang, c.filePath, b.obj.Depth+1)
	child := c.arena.get(childID)
	child.Location = types.Location{StartLine: stmt.StartLine(), EndLine: stmt.EndLine()}
	b.obj.Children = append(b.obj.Children, childID)

	childScope := newScope(ScopeClass)
	childBuilder := &builder{obj: child, scope: childScope}
	bodyNode := stmt.ChildByFieldName("body")
	compilePythonBlockCtx(c, childBuilder, pyContextClass, bodyNode.NamedChildren())
	if len(child.Instructions) == 0 {
		childBuilder.emit(types.OpReturnConst, types.NoneArg(), stmt.EndLine())
	}

	b.emit(types.OpMakeClass, types.CodeObjectRefArg(childID), line)
	b.storeName(name, line)
}

func compilePythonIf(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	cond := stmt.ChildByFieldName("condition")
	compilePythonExpr(c, b, cond)
	elseJump := b.emit(types.OpPopJumpIfFalse, types.NoneArg(), line)

	consequence := stmt.ChildByFieldName("consequence")
	compilePythonBlockCtx(c, b, context, consequence.NamedChildren())

	var altNode *parser.Node
	for _, child := range stmt.NamedChildren() {
		switch child.Kind() {
		case "elif_clause":
			altNode = child
		case "else_clause":
			if altNode == nil {
				altNode = child
			}
		}
	}

	if altNode != nil {
		endJump := b.emit(types.OpJumpForward, types.NoneArg(), line)
		b.patch(elseJump, b.here())
		if altNode.Kind() == "elif_clause" {
			compilePythonIfElif(c, b, context, altNode)
		} else {
			body := altNode.ChildByFieldName("body")
			compilePythonBlockCtx(c, b, context, body.NamedChildren())
		}
		b.patch(endJump, b.here())
	} else {
		b.patch(elseJump, b.here())
	}
}

func compilePythonIfElif(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	cond := stmt.ChildByFieldName("condition")
	compilePythonExpr(c, b, cond)
	elseJump := b.emit(types.OpPopJumpIfFalse, types.NoneArg(), line)
	consequence := stmt.ChildByFieldName("consequence")
	compilePythonBlockCtx(c, b, context, consequence.NamedChildren())
	b.patch(elseJump, b.here())
}

func compilePythonFor(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	iter := stmt.ChildByFieldName("right")
	compilePythonExpr(c, b, iter)
	b.emit(types.OpGetIter, types.NoneArg(), line)

	loopStart := b.here()
	exitJump := b.emit(types.OpForIter, types.NoneArg(), line)

	target := stmt.ChildByFieldName("left")
	storeTarget(b, target, line)

	body := stmt.ChildByFieldName("body")
	compilePythonBlockCtx(c, b, context, body.NamedChildren())

	back := b.emit(types.OpJumpBackward, types.NoneArg(), line)
	b.patch(back, loopStart)
	b.patch(exitJump, b.here())
}

func storeTarget(b *builder, target *parser.Node, line int) {
	if target == nil || target.IsNil() {
		return
	}
	switch target.Kind() {
	case "identifier":
		b.storeName(target.Text(), line)
	case "tuple_pattern", "pattern_list":
		for _, c := range target.NamedChildren() {
			storeTarget(b, c, line)
		}
	default:
		b.storeName(target.Text(), line)
	}
}

func compilePythonWhile(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	loopStart := b.here()
	cond := stmt.ChildByFieldName("condition")
	compilePythonExpr(c, b, cond)
	exitJump := b.emit(types.OpPopJumpIfFalse, types.NoneArg(), line)

	body := stmt.ChildByFieldName("body")
	compilePythonBlockCtx(c, b, context, body.NamedChildren())

	back := b.emit(types.OpJumpBackward, types.NoneArg(), line)
	b.patch(back, loopStart)
	b.patch(exitJump, b.here())
}

func compilePythonTry(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	b.emit(types.OpSetupFinally, types.NoneArg(), line)
	body := stmt.ChildByFieldName("body")
	compilePythonBlockCtx(c, b, context, body.NamedChildren())

	for _, child := range stmt.NamedChildren() {
		switch child.Kind() {
		case "except_clause":
			b.emit(types.OpPopExcept, types.NoneArg(), child.StartLine())
			compilePythonBlockCtx(c, b, context, bodyOf(child))
		case "finally_clause":
			compilePythonBlockCtx(c, b, context, bodyOf(child))
		case "else_clause":
			compilePythonBlockCtx(c, b, context, bodyOf(child))
		}
	}
}

func bodyOf(n *parser.Node) []*parser.Node {
	if body := n.ChildByFieldName("body"); body != nil {
		return body.NamedChildren()
	}
	return nil
}

func compilePythonWith(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	for _, item := range stmt.NamedChildren() {
		if item.Kind() != "with_clause" && item.Kind() != "with_item" {
			continue
		}
		for _, clauseItem := range item.NamedChildren() {
			if clauseItem.Kind() == "with_item" {
				if v := firstNamedChild(clauseItem); v != nil {
					compilePythonExpr(c, b, v)
				}
				b.emit(types.OpBeforeWith, types.NoneArg(), line)
				if alias := clauseItem.ChildByFieldName("alias"); alias != nil {
					storeTarget(b, alias, line)
				}
			}
		}
	}
	body := stmt.ChildByFieldName("body")
	compilePythonBlockCtx(c, b, context, body.NamedChildren())
	b.emit(types.OpWithExit, types.NoneArg(), line)
}

// compilePythonExpr emits the instructions for an expression node; callers
// are responsible for any resulting POP_TOP.
func compilePythonExpr(c *ctx, b *builder, expr *parser.Node) {
	if expr == nil || expr.IsNil() {
		return
	}
	if !b.enter(c, expr.StartLine()) {
		return
	}
	defer b.leave()

	line := expr.StartLine()
	switch expr.Kind() {
	case "string":
		b.emitStringLiteral(c, expr.Text(), line)
	case "integer":
		b.emitIntLiteral(c, expr.Text(), line)
	case "float":
		b.emitFloatLiteral(expr.Text(), line)
	case "true":
		b.emitBoolLiteral(true, line)
	case "false":
		b.emitBoolLiteral(false, line)
	case "none":
		b.emitNoneLiteral(line)
	case "identifier":
		b.loadName(expr.Text(), line)
	case "attribute":
		obj := expr.ChildByFieldName("object")
		attr := expr.ChildByFieldName("attribute")
		if dotted, ok := dottedCallee(expr, "attribute", "object"); ok {
			if cat, found := categoryForDotted(dotted); found {
				compilePythonExpr(c, b, obj)
				b.emit(types.OpLoadAttr, types.CategoryArg(cat), line)
				return
			}
		}
		compilePythonExpr(c, b, obj)
		attrName := ""
		if attr != nil {
			attrName = attr.Text()
		}
		b.emit(types.OpLoadAttr, types.SymbolArg(strings.ToLower(attrName)), line)
	case "subscript":
		value := expr.ChildByFieldName("value")
		compilePythonExpr(c, b, value)
		for _, sub := range expr.NamedChildren() {
			if sub == value {
				continue
			}
			compilePythonExpr(c, b, sub)
		}
		b.emit(types.OpBinarySubscr, types.NoneArg(), line)
	case "call":
		compilePythonCall(c, b, expr)
	case "assignment":
		compilePythonAssignment(c, b, expr)
	case "augmented_assignment":
		compilePythonAugAssignment(c, b, expr)
	case "binary_operator":
		left := expr.ChildByFieldName("left")
		right := expr.ChildByFieldName("right")
		opNode := expr.ChildByFieldName("operator")
		compilePythonExpr(c, b, left)
		compilePythonExpr(c, b, right)
		opText := ""
		if opNode != nil {
			opText = opNode.Text()
		}
		if op, ok := binaryOpcode(opText); ok {
			b.emit(op, types.NoneArg(), line)
		}
	case "boolean_operator":
		for _, operand := range expr.NamedChildren() {
			compilePythonExpr(c, b, operand)
		}
	case "comparison_operator":
		children := expr.NamedChildren()
		for _, ch := range children {
			compilePythonExpr(c, b, ch)
		}
		b.emit(types.OpCompareOp, types.IntArg(compareOpCode(comparisonOperatorText(expr))), line)
	case "not_operator":
		if v := firstNamedChild(expr); v != nil {
			compilePythonExpr(c, b, v)
		}
		b.emit(types.OpUnaryNot, types.NoneArg(), line)
	case "unary_operator":
		if v := firstNamedChild(expr); v != nil {
			compilePythonExpr(c, b, v)
		}
		b.emit(types.OpUnaryNeg, types.NoneArg(), line)
	case "list", "tuple", "set":
		elems := expr.NamedChildren()
		for _, e := range elems {
			compilePythonExpr(c, b, e)
		}
		op := types.OpBuildList
		if expr.Kind() == "tuple" {
			op = types.OpBuildTuple
		} else if expr.Kind() == "set" {
			op = types.OpBuildSet
		}
		b.emit(op, types.IntArg(int64(len(elems))), line)
	case "dictionary", "dictionary_comprehension":
		pairs := expr.NamedChildren()
		count := 0
		for _, p := range pairs {
			if p.Kind() == "pair" {
				key := p.ChildByFieldName("key")
				value := p.ChildByFieldName("value")
				compilePythonExpr(c, b, key)
				compilePythonExpr(c, b, value)
				count++
			}
		}
		b.emit(types.OpBuildMap, types.IntArg(int64(count)), line)
	case "list_comprehension", "set_comprehension", "generator_expression":
		// Comprehensions are inlined: their body expression and for-clauses
		// are flattened into the enclosing stream (spec §4.2 rule 4,
		// non-depth-0 case — depth-0 synthetic objects are a rare case this
		// implementation folds into the common path for determinism).
		for _, child := range expr.NamedChildren() {
			if child.Kind() == "for_in_clause" {
				if right := child.ChildByFieldName("right"); right != nil {
					compilePythonExpr(c, b, right)
				}
				b.emit(types.OpGetIter, types.NoneArg(), line)
			} else {
				compilePythonExpr(c, b, child)
			}
		}
		b.emit(types.OpBuildList, types.IntArg(1), line)
	case "lambda":
		body := expr.ChildByFieldName("body")
		params := expr.ChildByFieldName("parameters")
		for _, p := range collectParamNames(params) {
			b.scope.Locals[p] = true
		}
		compilePythonExpr(c, b, body)
		b.emit(types.OpMakeFunction, types.SymbolArg("<lambda>"), line)
	case "parenthesized_expression", "keyword_argument":
		for _, child := range expr.NamedChildren() {
			compilePythonExpr(c, b, child)
		}
	case "conditional_expression":
		// ternary, in python source order: true_branch "if" cond "else"
		// false_branch
		children := expr.NamedChildren()
		if len(children) == 3 {
			compilePythonExpr(c, b, children[1]) // condition
			falseJump := b.emit(types.OpPopJumpIfFalse, types.NoneArg(), line)
			compilePythonExpr(c, b, children[0])
			endJump := b.emit(types.OpJumpForward, types.NoneArg(), line)
			b.patch(falseJump, b.here())
			compilePythonExpr(c, b, children[2])
			b.patch(endJump, b.here())
		}
	default:
		for _, child := range expr.NamedChildren() {
			compilePythonExpr(c, b, child)
		}
	}
}

func comparisonOperatorText(expr *parser.Node) string {
	for i := 0; i < expr.ChildCount(); i++ {
		c := expr.Child(i)
		switch c.Kind() {
		case "==", "!=", "<", "<=", ">", ">=", "in", "not in", "is", "is not":
			return c.Kind()
		}
	}
	return ""
}

func categoryForDotted(dotted string) (string, bool) {
	cat, ok := categories.Lookup(dotted)
	return string(cat), ok
}

func compilePythonCall(c *ctx, b *builder, expr *parser.Node) {
	line := expr.StartLine()
	callee := expr.ChildByFieldName("function")
	compilePythonExpr(c, b, callee)

	argsNode := expr.ChildByFieldName("arguments")
	var positional []*parser.Node
	var kwNames []string
	var kwValues []*parser.Node
	if argsNode != nil {
		for _, a := range argsNode.NamedChildren() {
			if a.Kind() == "keyword_argument" {
				nameNode := a.ChildByFieldName("name")
				valueNode := a.ChildByFieldName("value")
				if nameNode != nil {
					kwNames = append(kwNames, nameNode.Text())
					kwValues = append(kwValues, valueNode)
				}
				continue
			}
			positional = append(positional, a)
		}
	}

	for _, p := range positional {
		compilePythonExpr(c, b, p)
	}
	for _, v := range kwValues {
		compilePythonExpr(c, b, v)
	}
	// Rule 5: KW_NAMES carries the ordered keyword-name list and
	// immediately precedes CALL, whose argument is positional arity.
	if len(kwNames) > 0 {
		b.emit(types.OpKwNames, types.KwNamesArg(kwNames), line)
	}
	b.emit(types.OpCall, types.IntArg(int64(len(positional))), line)
}

func compilePythonAssignment(c *ctx, b *builder, expr *parser.Node) {
	line := expr.StartLine()
	target := expr.ChildByFieldName("left")
	value := expr.ChildByFieldName("right")
	compilePythonExpr(c, b, value)
	storeAssignTarget(c, b, target, line)
}

func storeAssignTarget(c *ctx, b *builder, target *parser.Node, line int) {
	if target == nil || target.IsNil() {
		return
	}
	switch target.Kind() {
	case "identifier":
		b.storeName(target.Text(), line)
	case "attribute":
		obj := target.ChildByFieldName("object")
		attr := target.ChildByFieldName("attribute")
		compilePythonExpr(c, b, obj)
		name := ""
		if attr != nil {
			name = attr.Text()
		}
		b.emit(types.OpStoreAttr, types.SymbolArg(strings.ToLower(name)), line)
	case "subscript":
		value := target.ChildByFieldName("value")
		compilePythonExpr(c, b, value)
		for _, sub := range target.NamedChildren() {
			if sub == value {
				continue
			}
			compilePythonExpr(c, b, sub)
		}
		b.emit(types.OpStoreSubscr, types.NoneArg(), line)
	case "tuple_pattern", "pattern_list":
		for _, child := range target.NamedChildren() {
			storeAssignTarget(c, b, child, line)
		}
	default:
		b.storeName(target.Text(), line)
	}
}

func compilePythonAugAssignment(c *ctx, b *builder, expr *parser.Node) {
	line := expr.StartLine()
	target := expr.ChildByFieldName("left")
	value := expr.ChildByFieldName("right")
	opNode := expr.ChildByFieldName("operator")

	compilePythonExpr(c, b, target)
	compilePythonExpr(c, b, value)
	opText := strings.TrimSuffix(opNode.Text(), "=")
	if op, ok := binaryOpcode(opText); ok {
		b.emit(op, types.NoneArg(), line)
	}
	storeAssignTarget(c, b, target, line)
}
