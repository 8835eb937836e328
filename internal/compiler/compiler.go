// Package compiler is the AST-to-Instruction Compiler (spec §4.2): it walks
// a parsed tree and emits a closed, deterministic instruction set grouped
// into a tree of Code Objects. Grounded on the teacher's
// internal/parser/unified_extractor.go tree-walking approach (an explicit
// switch over tree-sitter node kinds, one case per construct) generalized
// from "extract symbols for an index" to "emit a stack-machine instruction
// stream for a classifier".
package compiler

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schirrmacher/malwi/internal/categories"
	"github.com/schirrmacher/malwi/internal/classify"
	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/errors"
	"github.com/schirrmacher/malwi/internal/parser"
	"github.com/schirrmacher/malwi/internal/types"
)

// Arena owns every CodeObject produced while compiling one file; children
// are created before the MAKE_FUNCTION/MAKE_CLASS that references them, so
// ownership is tree-shaped by construction (spec §9).
type Arena struct {
	Objects []*types.CodeObject
}

func (a *Arena) new(name string, lang types.Language, filePath string, depth int) types.CodeObjectID {
	id := types.CodeObjectID(len(a.Objects))
	a.Objects = append(a.Objects, &types.CodeObject{
		ID: id, Name: name, Language: lang, FilePath: filePath, Depth: depth,
	})
	return id
}

func (a *Arena) get(id types.CodeObjectID) *types.CodeObject { return a.Objects[id] }

// ctx carries the per-file compilation configuration and the shared arena
// through the recursive emission functions.
type ctx struct {
	arena       *Arena
	thresholds  config.Thresholds
	maxASTDepth int
	filePath    string
	lang        types.Language
	goCtx       context.Context // per-file deadline, spec §5; checked on every builder.enter
}

// builder accumulates instructions and warnings for a single CodeObject
// while it is being emitted.
type builder struct {
	obj      *types.CodeObject
	scope    *Scope
	astDepth int
}

func (b *builder) emit(op types.Opcode, arg types.Argument, line int) int {
	idx := len(b.obj.Instructions)
	b.obj.Instructions = append(b.obj.Instructions, types.NewInstruction(op, arg, line))
	return idx
}

func (b *builder) patch(idx, target int) {
	b.obj.Instructions[idx].JumpTarget = target
}

func (b *builder) here() int { return len(b.obj.Instructions) }

func (b *builder) warn(kind types.WarningKind, msg string, line int) {
	b.obj.Warnings = append(b.obj.Warnings, types.Warning{Kind: kind, Message: msg, Line: line})
}

// enter bumps the AST recursion depth and reports whether the caller
// should keep recursing. Exceeding the configured bound converts the
// offending subtree into a single NOP and records a compile_truncation
// warning (spec §4.2 "Failure semantics", spec §9). It also checks the
// per-file deadline (spec §5): once that context is done, every remaining
// node is refused so the walk unwinds quickly and Compile can abandon the
// file outright.
func (b *builder) enter(c *ctx, line int) bool {
	if c.goCtx != nil && c.goCtx.Err() != nil {
		return false
	}
	b.astDepth++
	if b.astDepth > c.maxASTDepth {
		b.warn(types.WarningCompileTruncation, "recursion depth exceeded, subtree truncated", line)
		b.emit(types.OpNop, types.CategoryArg("truncated"), line)
		b.astDepth--
		return false
	}
	return true
}

func (b *builder) leave() { b.astDepth-- }

// Compile parses content with adapter and produces the Arena for filePath:
// a module CodeObject (index 0) whose first instruction is TARGETED_FILE,
// plus one child CodeObject per top-level function/class definition.
//
// goCtx carries the per-file deadline (spec §5). If it is done before or
// during emission, compilation is abandoned outright: the partially built
// Arena is discarded and a compile_truncation error is returned, never a
// partial Scan Object (spec §5, §8 invariant 11).
func Compile(goCtx context.Context, adapter *parser.Adapter, lang types.Language, filePath string, content []byte, thresholds config.Thresholds, maxASTDepth int) (*Arena, error) {
	if goCtx.Err() != nil {
		return nil, errors.New(errors.KindCompileTruncation, "compile", goCtx.Err()).WithFile(filePath)
	}

	root, err := adapter.Parse(lang, filePath, content)
	if err != nil {
		return nil, err
	}

	arena := &Arena{}
	moduleID := arena.new(moduleName(filePath), lang, filePath, 0)
	obj := arena.get(moduleID)

	c := &ctx{arena: arena, thresholds: thresholds, maxASTDepth: maxASTDepth, filePath: filePath, lang: lang, goCtx: goCtx}
	scope := newScope(ScopeModule)
	b := &builder{obj: obj, scope: scope}

	lastLine := 1
	b.emit(types.OpTargetedFile, types.NoneArg(), lastLine)

	stmts := root.NamedChildren()
	switch lang {
	case types.LanguagePython:
		compilePythonBlock(c, b, 0, stmts)
	case types.LanguageJavaScript:
		compileJSBlock(c, b, 0, stmts)
	}

	if goCtx.Err() != nil {
		return nil, errors.New(errors.KindCompileTruncation, "compile", goCtx.Err()).WithFile(filePath)
	}

	if len(stmts) > 0 {
		lastLine = stmts[len(stmts)-1].EndLine()
	}
	b.emit(types.OpReturnConst, types.NoneArg(), lastLine)

	return arena, nil
}

func moduleName(filePath string) string {
	base := filepath.Base(filePath)
	ext := filepath.Ext(base)
	return "<module:" + strings.TrimSuffix(base, ext) + ">"
}

// --- shared literal / call emission, used by both language emitters ---

// emitStringLiteral implements spec §4.2 rule 6: a string (after stripping
// quotes) that matches a structure category, or is long, is replaced by its
// classify.Category; any other short string is emitted verbatim and
// lower-cased.
func (b *builder) emitStringLiteral(c *ctx, raw string, line int) {
	value := unquote(raw)
	cat, verbatim := classify.ClassifyString(value, c.thresholds)
	if verbatim {
		b.emit(types.OpLoadConst, types.StringArg(strings.ToLower(value)), line)
		return
	}
	b.emit(types.OpLoadConst, types.CategoryArg(string(cat)), line)
}

func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	first, last := raw[0], raw[len(raw)-1]
	quotes := "\"'`"
	if strings.ContainsRune(quotes, rune(first)) && first == last {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func (b *builder) emitIntLiteral(c *ctx, raw string, line int) {
	v, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimSuffix(raw, "n"), "_"), 0, 64)
	if err != nil {
		b.emit(types.OpLoadConst, types.CategoryArg(string(classify.CategoryIntegerLarge)), line)
		return
	}
	cat := classify.ClassifyInt(v, c.thresholds.LargeIntegerBucket)
	if cat == classify.CategoryIntegerLarge {
		b.emit(types.OpLoadConst, types.CategoryArg(string(cat)), line)
		return
	}
	b.emit(types.OpLoadConst, types.IntArg(v), line)
}

func (b *builder) emitFloatLiteral(raw string, line int) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		b.emit(types.OpLoadConst, types.CategoryArg(string(classify.CategoryFloat)), line)
		return
	}
	b.emit(types.OpLoadConst, types.FloatArg(v), line)
}

func (b *builder) emitBoolLiteral(v bool, line int) {
	b.emit(types.OpLoadConst, types.BoolArg(v), line)
}

func (b *builder) emitNoneLiteral(line int) {
	b.emit(types.OpLoadConst, types.NoneArg(), line)
}

// loadName emits the appropriate LOAD_* for an identifier per the scope
// resolution rules of spec §4.2 rule 7, substituting a known category
// token (spec §4.4 "function-name -> category") when the name matches the
// security-relevant function mapping.
func (b *builder) loadName(name string, line int) {
	lowered := strings.ToLower(name)
	arg := types.SymbolArg(lowered)
	if cat, ok := categories.Lookup(lowered); ok {
		arg = types.CategoryArg(string(cat))
	}
	switch b.scope.Resolve(name) {
	case NameClassParam:
		b.emit(types.OpLoadParam, arg, line)
	case NameClassFast:
		b.emit(types.OpLoadFast, arg, line)
	case NameClassGlobal:
		b.emit(types.OpLoadGlobal, arg, line)
	default:
		b.emit(types.OpLoadName, arg, line)
	}
}

func (b *builder) storeName(name string, line int) {
	arg := types.SymbolArg(strings.ToLower(name))
	switch b.scope.Resolve(name) {
	case NameClassParam, NameClassFast:
		b.emit(types.OpStoreFast, arg, line)
	case NameClassGlobal:
		b.emit(types.OpStoreGlobal, arg, line)
	default:
		b.emit(types.OpStoreName, arg, line)
	}
}

// dottedCallee renders a chain of attribute/member accesses
// ("os" . "system") as the lowercased dotted string "os.system" used to
// look up the function-name -> category table, and also returns whether
// the expression is just a bare identifier (no attribute access).
func dottedCallee(n *parser.Node, attrField string, objField string) (string, bool) {
	switch n.Kind() {
	case "identifier":
		return strings.ToLower(n.Text()), true
	case "attribute", "member_expression":
		obj := n.ChildByFieldName(objField)
		attr := n.ChildByFieldName(attrField)
		if obj == nil || attr == nil {
			return "", false
		}
		base, _ := dottedCallee(obj, attrField, objField)
		if base == "" {
			return strings.ToLower(attr.Text()), true
		}
		return base + "." + strings.ToLower(attr.Text()), true
	default:
		return "", false
	}
}

// compareOpCode maps a source operator token to the stable integer code
// COMPARE_OP carries as its argument.
func compareOpCode(op string) int64 {
	codes := map[string]int64{
		"==": 0, "!=": 1, "<": 2, "<=": 3, ">": 4, ">=": 5, "is": 6, "is not": 7, "in": 8, "not in": 9,
	}
	if v, ok := codes[op]; ok {
		return v
	}
	return -1
}

func binaryOpcode(op string) (types.Opcode, bool) {
	switch op {
	case "+":
		return types.OpBinaryAdd, true
	case "-":
		return types.OpBinarySub, true
	case "*":
		return types.OpBinaryMul, true
	case "/":
		return types.OpBinaryDiv, true
	case "%":
		return types.OpBinaryMod, true
	case "**":
		return types.OpBinaryPow, true
	case "&":
		return types.OpBinaryAnd, true
	case "|":
		return types.OpBinaryOr, true
	case "^":
		return types.OpBinaryXor, true
	case "<<":
		return types.OpBinaryLshift, true
	case ">>":
		return types.OpBinaryRshift, true
	default:
		return 0, false
	}
}
