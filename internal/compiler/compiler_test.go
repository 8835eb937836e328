package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/errors"
	"github.com/schirrmacher/malwi/internal/parser"
	"github.com/schirrmacher/malwi/internal/types"
)

func compileSrc(t *testing.T, lang types.Language, src string) *Arena {
	t.Helper()
	adapter := parser.NewAdapter()
	cfg := config.Default()
	arena, err := Compile(context.Background(), adapter, lang, "target.py", []byte(src), cfg.Thresholds, cfg.Concurrency.MaxRecursionDepth)
	require.NoError(t, err)
	return arena
}

func opNames(obj *types.CodeObject) []string {
	names := make([]string, len(obj.Instructions))
	for i, ins := range obj.Instructions {
		names[i] = ins.Op.String()
	}
	return names
}

// S1: `x = 5` at module scope stores via STORE_NAME, not STORE_GLOBAL.
func TestCompile_S1_ModuleAssignmentUsesStoreName(t *testing.T) {
	arena := compileSrc(t, types.LanguagePython, "x = 5\n")
	module := arena.get(0)
	names := opNames(module)
	assert.Contains(t, names, "STORE_NAME")
	assert.NotContains(t, names, "STORE_GLOBAL")
	assert.Equal(t, "TARGETED_FILE", names[0])
}

// S2-style: a top-level function definition gets its own Code Object and a
// MAKE_FUNCTION reference in the module stream, and function-local
// assignment uses STORE_FAST.
func TestCompile_TopLevelFunctionGetsOwnCodeObject(t *testing.T) {
	src := "def f(a):\n    b = a\n    return b\n"
	arena := compileSrc(t, types.LanguagePython, src)
	module := arena.get(0)
	require.Len(t, module.Children, 1)

	child := arena.get(module.Children[0])
	childNames := opNames(child)
	assert.Contains(t, childNames, "STORE_FAST")
	assert.Contains(t, childNames, "LOAD_FAST")
	assert.Contains(t, childNames, "RETURN_VALUE")

	moduleNames := opNames(module)
	assert.Contains(t, moduleNames, "MAKE_FUNCTION")
}

// Functions nested inside a function are inlined (spec §4.2 rule 2), not
// emitted as separate Code Objects.
func TestCompile_NestedFunctionIsInlined(t *testing.T) {
	src := "def outer():\n    def inner():\n        return 1\n    return inner\n"
	arena := compileSrc(t, types.LanguagePython, src)
	module := arena.get(0)
	require.Len(t, module.Children, 1)
	outer := arena.get(module.Children[0])
	assert.Empty(t, outer.Children, "inner() must not produce its own Code Object")
}

// Class bodies compile to exactly one Code Object with methods inlined
// (spec §4.2 rule 3).
func TestCompile_ClassBodyIsSingleCodeObjectWithInlinedMethods(t *testing.T) {
	src := "class Foo:\n    def bar(self):\n        return 1\n    def baz(self):\n        return 2\n"
	arena := compileSrc(t, types.LanguagePython, src)
	module := arena.get(0)
	require.Len(t, module.Children, 1)

	class := arena.get(module.Children[0])
	assert.Empty(t, class.Children, "methods must be inlined, not separate Code Objects")
	names := opNames(class)
	returnCount := 0
	for _, n := range names {
		if n == "RETURN_VALUE" {
			returnCount++
		}
	}
	assert.Equal(t, 2, returnCount, "both method bodies should be inlined into the class object")
}

// Call with keyword arguments: KW_NAMES precedes CALL, and CALL's argument
// is the positional arity (spec §4.2 rule 5).
func TestCompile_CallWithKeywordArgs_KwNamesPrecedesCall(t *testing.T) {
	src := "f(1, 2, key=3)\n"
	arena := compileSrc(t, types.LanguagePython, src)
	module := arena.get(0)

	var kwIdx, callIdx = -1, -1
	for i, ins := range module.Instructions {
		switch ins.Op {
		case types.OpKwNames:
			kwIdx = i
		case types.OpCall:
			callIdx = i
		}
	}
	require.NotEqual(t, -1, kwIdx)
	require.NotEqual(t, -1, callIdx)
	assert.Equal(t, kwIdx+1, callIdx, "KW_NAMES must immediately precede CALL")
	assert.Equal(t, int64(2), module.Instructions[callIdx].Arg.Int, "CALL arg is positional arity")
	assert.Equal(t, []string{"key"}, module.Instructions[kwIdx].Arg.KwNames)
}

// Short string literals are emitted verbatim and lower-cased; long ones are
// replaced by a category token (spec §4.2 rule 6).
func TestCompile_ShortStringVerbatim_LongStringCategorized(t *testing.T) {
	src := "a = 'Hi'\nb = 'this is a deliberately long literal string value'\n"
	arena := compileSrc(t, types.LanguagePython, src)
	module := arena.get(0)

	var consts []types.Argument
	for _, ins := range module.Instructions {
		if ins.Op == types.OpLoadConst {
			consts = append(consts, ins.Arg)
		}
	}
	require.Len(t, consts, 2)
	assert.Equal(t, types.ArgString, consts[0].Kind)
	assert.Equal(t, "hi", consts[0].Str)
	assert.Equal(t, types.ArgCategory, consts[1].Kind)
}

// If/else control flow produces valid, in-range jump targets (spec §8
// invariant 2).
func TestCompile_IfElse_ValidJumpTargets(t *testing.T) {
	src := "if x:\n    y = 1\nelse:\n    y = 2\n"
	arena := compileSrc(t, types.LanguagePython, src)
	module := arena.get(0)
	require.True(t, module.HasJumpTargets())
	for _, ins := range module.Instructions {
		if ins.JumpTarget >= 0 {
			assert.GreaterOrEqual(t, ins.JumpTarget, 0)
			assert.LessOrEqual(t, ins.JumpTarget, len(module.Instructions))
		}
	}
}

// An import with a star uses IMPORT_STAR (spec §4.2 rule 9).
func TestCompile_ImportFrom_Star(t *testing.T) {
	src := "from os import *\n"
	arena := compileSrc(t, types.LanguagePython, src)
	module := arena.get(0)
	assert.Contains(t, opNames(module), "IMPORT_STAR")
}

// Every Code Object begins with RESUME (functions) or TARGETED_FILE
// (module), satisfying totality even for an empty file (spec §8 invariant
// "empty-file Code Object stream").
func TestCompile_EmptyFile_StillProducesModuleStream(t *testing.T) {
	arena := compileSrc(t, types.LanguagePython, "")
	module := arena.get(0)
	require.NotEmpty(t, module.Instructions)
	assert.Equal(t, "TARGETED_FILE", module.Instructions[0].Op.String())
	assert.Equal(t, "RETURN_CONST", module.Instructions[len(module.Instructions)-1].Op.String())
}

// Deterministic emission: compiling the same source twice yields identical
// instruction streams and identical hashes (spec §4.2 rule 10, §8 invariant
// 1).
func TestCompile_DeterministicAcrossRuns(t *testing.T) {
	src := "import os\n\ndef run(cmd):\n    return os.system(cmd)\n"
	a1 := compileSrc(t, types.LanguagePython, src)
	a2 := compileSrc(t, types.LanguagePython, src)

	require.Equal(t, len(a1.Objects), len(a2.Objects))
	for i := range a1.Objects {
		assert.Equal(t, opNames(a1.Objects[i]), opNames(a2.Objects[i]))
	}
	assert.Equal(t, HashHex(a1, 0), HashHex(a2, 0))
}

// Recursion-depth truncation: a pathologically deep expression degrades to
// a NOP plus a compile_truncation warning instead of stack-overflowing
// (spec §9).
func TestCompile_DeepRecursion_TruncatesWithWarning(t *testing.T) {
	adapter := parser.NewAdapter()
	cfg := config.Default()

	src := "x = ("
	for i := 0; i < 5000; i++ {
		src += "1 + ("
	}
	src += "1"
	for i := 0; i < 5000; i++ {
		src += ")"
	}
	src += ")\n"

	arena, err := Compile(context.Background(), adapter, types.LanguagePython, "deep.py", []byte(src), cfg.Thresholds, 200)
	require.NoError(t, err)
	module := arena.get(0)
	var sawTruncation bool
	for _, w := range module.Warnings {
		if w.Kind == types.WarningCompileTruncation {
			sawTruncation = true
		}
	}
	assert.True(t, sawTruncation)
}

// A cancelled context aborts compilation outright: no partial Arena is
// returned, only a compile_truncation error (spec §5, §8 invariant 11).
func TestCompile_CancelledContext_AbandonsCompilation(t *testing.T) {
	adapter := parser.NewAdapter()
	cfg := config.Default()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	arena, err := Compile(ctx, adapter, types.LanguagePython, "t.py", []byte("x = 1\n"), cfg.Thresholds, cfg.Concurrency.MaxRecursionDepth)
	require.Error(t, err)
	assert.Nil(t, arena)

	var se *errors.ScanError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.KindCompileTruncation, se.Kind)
}

// A known security-relevant function name is substituted with its category
// token rather than emitted verbatim (spec §4.4).
func TestCompile_KnownFunctionCategorySubstitution(t *testing.T) {
	src := "import os\nos.system(cmd)\n"
	arena := compileSrc(t, types.LanguagePython, src)
	module := arena.get(0)

	var sawCategory bool
	for _, ins := range module.Instructions {
		if ins.Op == types.OpLoadAttr && ins.Arg.Kind == types.ArgCategory && ins.Arg.Str == "process_management" {
			sawCategory = true
		}
	}
	assert.True(t, sawCategory)
}

// JavaScript require() is compiled the same way a Python import is: a
// single IMPORT_NAME carrying the module name.
func TestCompile_JavaScript_RequireEmitsImportName(t *testing.T) {
	arena := compileSrc(t, types.LanguageJavaScript, "const fs = require('fs');\n")
	module := arena.get(0)
	var sawImport bool
	for _, ins := range module.Instructions {
		if ins.Op == types.OpImportName && ins.Arg.Str == "fs" {
			sawImport = true
		}
	}
	assert.True(t, sawImport)
}

func TestCompile_JavaScript_TopLevelFunctionGetsOwnCodeObject(t *testing.T) {
	arena := compileSrc(t, types.LanguageJavaScript, "function run(cmd) {\n  return cmd;\n}\n")
	module := arena.get(0)
	require.Len(t, module.Children, 1)
	child := arena.get(module.Children[0])
	assert.Contains(t, opNames(child), "RETURN_VALUE")
}
