package compiler

import (
	"strings"

	"github.com/schirrmacher/malwi/internal/parser"
	"github.com/schirrmacher/malwi/internal/types"
)

func compileJSBlock(c *ctx, b *builder, context int, stmts []*parser.Node) {
	compileJSBlockCtx(c, b, pyContext(context), stmts)
}

func compileJSBlockCtx(c *ctx, b *builder, context pyContext, stmts []*parser.Node) {
	for _, stmt := range stmts {
		compileJSStatement(c, b, context, stmt)
	}
}

func compileJSStatement(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	if !b.enter(c, stmt.StartLine()) {
		return
	}
	defer b.leave()

	line := stmt.StartLine()
	switch stmt.Kind() {
	case "function_declaration", "generator_function_declaration":
		compileJSFunctionDef(c, b, context, stmt, stmt.ChildByFieldName("name"))
	case "class_declaration":
		compileJSClassDef(c, b, stmt)
	case "lexical_declaration", "variable_declaration":
		for _, decl := range stmt.NamedChildren() {
			if decl.Kind() != "variable_declarator" {
				continue
			}
			name := decl.ChildByFieldName("name")
			value := decl.ChildByFieldName("value")
			if value != nil {
				compileJSExpr(c, b, context, value)
				storeJSTarget(c, b, context, name, line)
			} else if name != nil && name.Kind() == "identifier" {
				b.scope.Locals[name.Text()] = true
			}
		}
	case "expression_statement":
		for _, e := range stmt.NamedChildren() {
			compileJSExpr(c, b, context, e)
			b.emit(types.OpPopTop, types.NoneArg(), line)
		}
	case "return_statement":
		if v := firstNamedChild(stmt); v != nil {
			compileJSExpr(c, b, context, v)
			b.emit(types.OpReturnValue, types.NoneArg(), line)
		} else {
			b.emit(types.OpReturnConst, types.NoneArg(), line)
		}
	case "if_statement":
		compileJSIf(c, b, context, stmt)
	case "for_statement":
		compileJSFor(c, b, context, stmt)
	case "for_in_statement":
		compileJSForInOf(c, b, context, stmt, line)
	case "while_statement":
		compileJSWhile(c, b, context, stmt)
	case "try_statement":
		compileJSTry(c, b, context, stmt)
	case "import_statement":
		compileJSImport(b, stmt, line)
	case "export_statement":
		for _, child := range stmt.NamedChildren() {
			compileJSStatement(c, b, context, child)
		}
	case "throw_statement":
		if v := firstNamedChild(stmt); v != nil {
			compileJSExpr(c, b, context, v)
		}
		b.emit(types.OpRaise, types.NoneArg(), line)
	case "comment", "empty_statement", "debugger_statement":
	case "break_statement", "continue_statement":
		b.emit(types.OpNop, types.SymbolArg(stmt.Kind()), line)
	case "statement_block":
		compileJSBlockCtx(c, b, context, stmt.NamedChildren())
	default:
		for _, child := range stmt.NamedChildren() {
			compileJSExpr(c, b, context, child)
		}
	}
}

func compileJSImport(b *builder, stmt *parser.Node, line int) {
	source := stmt.ChildByFieldName("source")
	modName := ""
	if source != nil {
		modName = strings.ToLower(unquote(source.Text()))
	}
	b.emit(types.OpImportName, types.SymbolArg(modName), line)

	for _, clause := range stmt.NamedChildren() {
		if clause.Kind() != "import_clause" {
			continue
		}
		for _, part := range clause.NamedChildren() {
			switch part.Kind() {
			case "identifier":
				b.emit(types.OpImportFrom, types.SymbolArg("default"), line)
				b.storeName(part.Text(), line)
			case "namespace_import":
				b.emit(types.OpImportStar, types.NoneArg(), line)
				if id := firstNamedChild(part); id != nil {
					b.storeName(id.Text(), line)
				}
			case "named_imports":
				for _, spec := range part.NamedChildren() {
					if spec.Kind() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("name")
					alias := spec.ChildByFieldName("alias")
					if name == nil {
						continue
					}
					b.emit(types.OpImportFrom, types.SymbolArg(strings.ToLower(name.Text())), line)
					storeAs := name.Text()
					if alias != nil {
						storeAs = alias.Text()
					}
					b.storeName(storeAs, line)
				}
			}
		}
	}
}

func compileJSFunctionDef(c *ctx, b *builder, context pyContext, stmt *parser.Node, nameNode *parser.Node) {
	line := stmt.StartLine()
	name := "<anonymous>"
	if nameNode != nil && !nameNode.IsNil() {
		name = nameNode.Text()
	}

	if context == pyContextClass || context == pyContextFunction {
		bindJSParamsAsLocals(b, stmt)
		compileJSFunctionBody(c, b, context, stmt)
		return
	}

	childID := c.arena.new(name, c.lang, c.filePath, b.obj.Depth+1)
	child := c.arena.get(childID)
	child.Location = types.Location{StartLine: stmt.StartLine(), EndLine: stmt.EndLine()}
	b.obj.Children = append(b.obj.Children, childID)

	childScope := newScope(ScopeFunction)
	params := stmt.ChildByFieldName("parameters")
	for _, p := range collectJSParamNames(params) {
		childScope.Params[p] = true
	}
	body := jsBodyStatements(stmt)
	collectAssignedNames(body, string(types.LanguageJavaScript), childScope.Locals, childScope.Globals)

	childBuilder := &builder{obj: child, scope: childScope}
	childBuilder.emit(types.OpResume, types.NoneArg(), line)
	compileJSFunctionBodyWith(c, childBuilder, body, stmt)
	if len(child.Instructions) == 0 || child.Instructions[len(child.Instructions)-1].Op != types.OpReturnValue {
		childBuilder.emit(types.OpReturnConst, types.NoneArg(), stmt.EndLine())
	}

	b.emit(types.OpMakeFunction, types.CodeObjectRefArg(childID), line)
	if nameNode != nil && !nameNode.IsNil() {
		b.storeName(name, line)
	}
}

func jsBodyStatements(stmt *parser.Node) []*parser.Node {
	body := stmt.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	if body.Kind() == "statement_block" {
		return body.NamedChildren()
	}
	return []*parser.Node{body}
}

func compileJSFunctionBody(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	body := stmt.ChildByFieldName("body")
	if body == nil {
		return
	}
	if body.Kind() == "statement_block" {
		compileJSBlockCtx(c, b, context, body.NamedChildren())
		return
	}
	// concise arrow body is a bare expression
	compileJSExpr(c, b, context, body)
	b.emit(types.OpReturnValue, types.NoneArg(), body.StartLine())
}

func compileJSFunctionBodyWith(c *ctx, b *builder, body []*parser.Node, stmt *parser.Node) {
	bodyNode := stmt.ChildByFieldName("body")
	if bodyNode != nil && bodyNode.Kind() != "statement_block" {
		compileJSExpr(c, b, pyContextFunction, bodyNode)
		b.emit(types.OpReturnValue, types.NoneArg(), bodyNode.StartLine())
		return
	}
	compileJSBlockCtx(c, b, pyContextFunction, body)
}

func bindJSParamsAsLocals(b *builder, stmt *parser.Node) {
	params := stmt.ChildByFieldName("parameters")
	for _, p := range collectJSParamNames(params) {
		b.scope.Locals[p] = true
	}
}

func collectJSParamNames(params *parser.Node) []string {
	if params == nil || params.IsNil() {
		return nil
	}
	var names []string
	var extract func(n *parser.Node)
	extract = func(n *parser.Node) {
		switch n.Kind() {
		case "identifier":
			names = append(names, n.Text())
		case "assignment_pattern", "rest_pattern":
			for _, c := range n.NamedChildren() {
				extract(c)
				return
			}
		case "object_pattern", "array_pattern":
			for _, c := range n.NamedChildren() {
				extract(c)
			}
		}
	}
	if params.Kind() == "identifier" {
		// single-param arrow without parens
		extract(params)
		return names
	}
	for _, c := range params.NamedChildren() {
		extract(c)
	}
	return names
}

func compileJSClassDef(c *ctx, b *builder, stmt *parser.Node) {
	line := stmt.StartLine()
	nameNode := stmt.ChildByFieldName("name")
	name := "<class>"
	if nameNode != nil && !nameNode.IsNil() {
		name = nameNode.Text()
	}

	childID := c.arena.new(name, c.lang, c.filePath, b.obj.Depth+1)
	child := c.arena.get(childID)
	child.Location = types.Location{StartLine: stmt.StartLine(), EndLine: stmt.EndLine()}
	b.obj.Children = append(b.obj.Children, childID)

	childScope := newScope(ScopeClass)
	childBuilder := &builder{obj: child, scope: childScope}

	body := stmt.ChildByFieldName("body")
	for _, member := range body.NamedChildren() {
		switch member.Kind() {
		case "method_definition":
			nm := member.ChildByFieldName("name")
			compileJSFunctionDef(c, childBuilder, pyContextClass, member, nm)
		case "field_definition":
			if value := member.ChildByFieldName("value"); value != nil {
				compileJSExpr(c, childBuilder, pyContextClass, value)
				childBuilder.emit(types.OpPopTop, types.NoneArg(), member.StartLine())
			}
		}
	}
	if len(child.Instructions) == 0 {
		childBuilder.emit(types.OpReturnConst, types.NoneArg(), stmt.EndLine())
	}

	b.emit(types.OpMakeClass, types.CodeObjectRefArg(childID), line)
	if nameNode != nil && !nameNode.IsNil() {
		b.storeName(name, line)
	}
}

func compileJSIf(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	cond := stmt.ChildByFieldName("condition")
	compileJSExpr(c, b, context, cond)
	elseJump := b.emit(types.OpPopJumpIfFalse, types.NoneArg(), line)

	consequence := stmt.ChildByFieldName("consequence")
	compileJSStatement(c, b, context, consequence)

	alt := stmt.ChildByFieldName("alternative")
	if alt != nil && !alt.IsNil() {
		endJump := b.emit(types.OpJumpForward, types.NoneArg(), line)
		b.patch(elseJump, b.here())
		compileJSStatement(c, b, context, alt)
		b.patch(endJump, b.here())
	} else {
		b.patch(elseJump, b.here())
	}
}

func compileJSFor(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	if init := stmt.ChildByFieldName("initializer"); init != nil && !init.IsNil() {
		compileJSStatement(c, b, context, init)
	}
	loopStart := b.here()
	var exitJump int
	hasCond := false
	if cond := stmt.ChildByFieldName("condition"); cond != nil && !cond.IsNil() {
		compileJSExpr(c, b, context, cond)
		exitJump = b.emit(types.OpPopJumpIfFalse, types.NoneArg(), line)
		hasCond = true
	}

	body := stmt.ChildByFieldName("body")
	compileJSStatement(c, b, context, body)

	if update := stmt.ChildByFieldName("update"); update != nil && !update.IsNil() {
		compileJSExpr(c, b, context, update)
		b.emit(types.OpPopTop, types.NoneArg(), line)
	}

	back := b.emit(types.OpJumpBackward, types.NoneArg(), line)
	b.patch(back, loopStart)
	if hasCond {
		b.patch(exitJump, b.here())
	}
}

func compileJSForInOf(c *ctx, b *builder, context pyContext, stmt *parser.Node, line int) {
	right := stmt.ChildByFieldName("right")
	compileJSExpr(c, b, context, right)
	b.emit(types.OpGetIter, types.NoneArg(), line)

	loopStart := b.here()
	exitJump := b.emit(types.OpForIter, types.NoneArg(), line)

	left := stmt.ChildByFieldName("left")
	storeJSTarget(c, b, context, left, line)

	body := stmt.ChildByFieldName("body")
	compileJSStatement(c, b, context, body)

	back := b.emit(types.OpJumpBackward, types.NoneArg(), line)
	b.patch(back, loopStart)
	b.patch(exitJump, b.here())
}

func compileJSWhile(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	loopStart := b.here()
	cond := stmt.ChildByFieldName("condition")
	compileJSExpr(c, b, context, cond)
	exitJump := b.emit(types.OpPopJumpIfFalse, types.NoneArg(), line)

	body := stmt.ChildByFieldName("body")
	compileJSStatement(c, b, context, body)

	back := b.emit(types.OpJumpBackward, types.NoneArg(), line)
	b.patch(back, loopStart)
	b.patch(exitJump, b.here())
}

func compileJSTry(c *ctx, b *builder, context pyContext, stmt *parser.Node) {
	line := stmt.StartLine()
	b.emit(types.OpSetupFinally, types.NoneArg(), line)
	body := stmt.ChildByFieldName("body")
	compileJSStatement(c, b, context, body)

	if handler := stmt.ChildByFieldName("handler"); handler != nil && !handler.IsNil() {
		b.emit(types.OpPopExcept, types.NoneArg(), handler.StartLine())
		if hb := handler.ChildByFieldName("body"); hb != nil {
			compileJSStatement(c, b, context, hb)
		}
	}
	if fin := stmt.ChildByFieldName("finalizer"); fin != nil && !fin.IsNil() {
		compileJSStatement(c, b, context, fin)
	}
}

func storeJSTarget(c *ctx, b *builder, context pyContext, target *parser.Node, line int) {
	if target == nil || target.IsNil() {
		return
	}
	switch target.Kind() {
	case "identifier":
		b.storeName(target.Text(), line)
		b.scope.Locals[target.Text()] = true
	case "member_expression":
		obj := target.ChildByFieldName("object")
		prop := target.ChildByFieldName("property")
		compileJSExpr(c, b, context, obj)
		name := ""
		if prop != nil {
			name = prop.Text()
		}
		b.emit(types.OpStoreAttr, types.SymbolArg(strings.ToLower(name)), line)
	case "subscript_expression":
		obj := target.ChildByFieldName("object")
		index := target.ChildByFieldName("index")
		compileJSExpr(c, b, context, obj)
		compileJSExpr(c, b, context, index)
		b.emit(types.OpStoreSubscr, types.NoneArg(), line)
	case "array_pattern", "object_pattern":
		for _, child := range target.NamedChildren() {
			storeJSTarget(c, b, context, child, line)
		}
	case "variable_declarator":
		name := target.ChildByFieldName("name")
		storeJSTarget(c, b, context, name, line)
	default:
		b.storeName(target.Text(), line)
	}
}

func compileJSExpr(c *ctx, b *builder, context pyContext, expr *parser.Node) {
	if expr == nil || expr.IsNil() {
		return
	}
	if !b.enter(c, expr.StartLine()) {
		return
	}
	defer b.leave()

	line := expr.StartLine()
	switch expr.Kind() {
	case "string", "template_string":
		b.emitStringLiteral(c, stripTemplateBraces(expr.Text()), line)
	case "number":
		txt := expr.Text()
		if strings.ContainsAny(txt, ".eE") && !strings.HasPrefix(txt, "0x") {
			b.emitFloatLiteral(txt, line)
		} else {
			b.emitIntLiteral(c, txt, line)
		}
	case "true":
		b.emitBoolLiteral(true, line)
	case "false":
		b.emitBoolLiteral(false, line)
	case "null", "undefined":
		b.emitNoneLiteral(line)
	case "identifier", "property_identifier", "shorthand_property_identifier":
		b.loadName(expr.Text(), line)
	case "this":
		b.loadName("this", line)
	case "member_expression":
		obj := expr.ChildByFieldName("object")
		prop := expr.ChildByFieldName("property")
		if dotted, ok := dottedCallee(expr, "property", "object"); ok {
			if cat, found := categoryForDotted(dotted); found {
				compileJSExpr(c, b, context, obj)
				b.emit(types.OpLoadAttr, types.CategoryArg(cat), line)
				return
			}
		}
		compileJSExpr(c, b, context, obj)
		name := ""
		if prop != nil {
			name = prop.Text()
		}
		b.emit(types.OpLoadAttr, types.SymbolArg(strings.ToLower(name)), line)
	case "subscript_expression":
		obj := expr.ChildByFieldName("object")
		index := expr.ChildByFieldName("index")
		compileJSExpr(c, b, context, obj)
		compileJSExpr(c, b, context, index)
		b.emit(types.OpBinarySubscr, types.NoneArg(), line)
	case "call_expression":
		compileJSCall(c, b, context, expr)
	case "new_expression":
		compileJSCall(c, b, context, expr)
	case "assignment_expression":
		target := expr.ChildByFieldName("left")
		value := expr.ChildByFieldName("right")
		compileJSExpr(c, b, context, value)
		storeJSTarget(c, b, context, target, line)
	case "augmented_assignment_expression":
		target := expr.ChildByFieldName("left")
		value := expr.ChildByFieldName("right")
		opNode := expr.ChildByFieldName("operator")
		compileJSExpr(c, b, context, target)
		compileJSExpr(c, b, context, value)
		opText := ""
		if opNode != nil {
			opText = strings.TrimSuffix(opNode.Text(), "=")
		}
		if op, ok := binaryOpcode(opText); ok {
			b.emit(op, types.NoneArg(), line)
		}
		storeJSTarget(c, b, context, target, line)
	case "binary_expression":
		left := expr.ChildByFieldName("left")
		right := expr.ChildByFieldName("right")
		opNode := expr.ChildByFieldName("operator")
		compileJSExpr(c, b, context, left)
		compileJSExpr(c, b, context, right)
		opText := ""
		if opNode != nil {
			opText = opNode.Text()
		}
		if isComparisonOp(opText) {
			b.emit(types.OpCompareOp, types.IntArg(compareOpCode(normalizeJSCompareOp(opText))), line)
		} else if op, ok := binaryOpcode(opText); ok {
			b.emit(op, types.NoneArg(), line)
		}
	case "unary_expression":
		arg := expr.ChildByFieldName("argument")
		compileJSExpr(c, b, context, arg)
		opNode := expr.ChildByFieldName("operator")
		opText := ""
		if opNode != nil {
			opText = opNode.Text()
		}
		if opText == "!" {
			b.emit(types.OpUnaryNot, types.NoneArg(), line)
		} else {
			b.emit(types.OpUnaryNeg, types.NoneArg(), line)
		}
	case "array":
		elems := expr.NamedChildren()
		for _, e := range elems {
			compileJSExpr(c, b, context, e)
		}
		b.emit(types.OpBuildList, types.IntArg(int64(len(elems))), line)
	case "object":
		count := 0
		for _, p := range expr.NamedChildren() {
			switch p.Kind() {
			case "pair":
				key := p.ChildByFieldName("key")
				value := p.ChildByFieldName("value")
				compileJSExpr(c, b, context, key)
				compileJSExpr(c, b, context, value)
				count++
			case "shorthand_property_identifier":
				b.loadName(p.Text(), line)
				b.loadName(p.Text(), line)
				count++
			}
		}
		b.emit(types.OpBuildMap, types.IntArg(int64(count)), line)
	case "arrow_function", "function_expression", "generator_function":
		nameNode := expr.ChildByFieldName("name")
		compileJSFunctionDef(c, b, pyContextModule, expr, nameNode)
	case "ternary_expression":
		cond := expr.ChildByFieldName("condition")
		cons := expr.ChildByFieldName("consequence")
		alt := expr.ChildByFieldName("alternative")
		compileJSExpr(c, b, context, cond)
		falseJump := b.emit(types.OpPopJumpIfFalse, types.NoneArg(), line)
		compileJSExpr(c, b, context, cons)
		endJump := b.emit(types.OpJumpForward, types.NoneArg(), line)
		b.patch(falseJump, b.here())
		compileJSExpr(c, b, context, alt)
		b.patch(endJump, b.here())
	case "parenthesized_expression", "sequence_expression", "spread_element", "await_expression":
		for _, child := range expr.NamedChildren() {
			compileJSExpr(c, b, context, child)
		}
	default:
		for _, child := range expr.NamedChildren() {
			compileJSExpr(c, b, context, child)
		}
	}
}

func stripTemplateBraces(raw string) string {
	return unquote(raw)
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "===", "!=", "!==", "<", "<=", ">", ">=", "in", "instanceof":
		return true
	}
	return false
}

func normalizeJSCompareOp(op string) string {
	switch op {
	case "===":
		return "=="
	case "!==":
		return "!="
	default:
		return op
	}
}

func compileJSCall(c *ctx, b *builder, context pyContext, expr *parser.Node) {
	line := expr.StartLine()
	callee := expr.ChildByFieldName("function")
	if callee == nil {
		callee = expr.ChildByFieldName("constructor")
	}

	if dotted, ok := dottedCallee(callee, "property", "object"); ok && dotted == "require" {
		args := expr.ChildByFieldName("arguments")
		if args != nil {
			children := args.NamedChildren()
			if len(children) == 1 && children[0].Kind() == "string" {
				modName := strings.ToLower(unquote(children[0].Text()))
				b.emit(types.OpImportName, types.SymbolArg(modName), line)
				return
			}
		}
	}

	compileJSExpr(c, b, context, callee)

	argsNode := expr.ChildByFieldName("arguments")
	var positional []*parser.Node
	if argsNode != nil {
		positional = argsNode.NamedChildren()
	}
	for _, p := range positional {
		compileJSExpr(c, b, context, p)
	}
	b.emit(types.OpCall, types.IntArg(int64(len(positional))), line)
}
