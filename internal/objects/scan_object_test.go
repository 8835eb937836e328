package objects_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schirrmacher/malwi/internal/compiler"
	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/objects"
	"github.com/schirrmacher/malwi/internal/parser"
	"github.com/schirrmacher/malwi/internal/types"
)

func compileObject(t *testing.T, src string) *objects.ScanObject {
	t.Helper()
	adapter := parser.NewAdapter()
	cfg := config.Default()
	arena, err := compiler.Compile(context.Background(), adapter, types.LanguagePython, "t.py", []byte(src), cfg.Thresholds, cfg.Concurrency.MaxRecursionDepth)
	require.NoError(t, err)
	return objects.New(types.LanguagePython, "t.py", arena, 0)
}

func TestScanObject_TokensAndHashAreMemoized(t *testing.T) {
	obj := compileObject(t, "x = 1\n")

	first := obj.Tokens()
	second := obj.Tokens()
	assert.Same(t, &first[0], &second[0], "Tokens must return the same backing slice once computed")

	h1 := obj.Hash()
	h2 := obj.Hash()
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
}

func TestScanObject_SubwordTokenCountMatchesTokens(t *testing.T) {
	obj := compileObject(t, "x = 1\ny = 2\n")
	assert.Equal(t, len(obj.Tokens()), obj.SubwordTokenCount())
}

func TestScanObject_IdenticalSourceYieldsIdenticalHash(t *testing.T) {
	a := compileObject(t, "import os\nos.system(x)\n")
	b := compileObject(t, "import os\nos.system(x)\n")
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestScanObject_DifferentSourceYieldsDifferentHash(t *testing.T) {
	a := compileObject(t, "x = 1\n")
	b := compileObject(t, "x = 2\n")
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestScanObject_WarningsWalksNestedCodeObjects(t *testing.T) {
	obj := compileObject(t, "def f():\n    def g():\n        x = 1\n    return g\n")
	// No truncation expected at this shallow depth; Warnings must still
	// succeed across the nested Code Object tree without panicking.
	assert.NotPanics(t, func() { obj.Warnings() })
}

func TestScanObject_RootReturnsModuleCodeObject(t *testing.T) {
	obj := compileObject(t, "x = 1\n")
	root := obj.Root()
	require.NotNil(t, root)
	assert.Equal(t, "<module:t>", root.Name)
}
