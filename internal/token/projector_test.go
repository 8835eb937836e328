package token_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schirrmacher/malwi/internal/compiler"
	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/parser"
	"github.com/schirrmacher/malwi/internal/token"
	"github.com/schirrmacher/malwi/internal/types"
)

func TestProject_TokensAreNonEmptyAndLowercase(t *testing.T) {
	adapter := parser.NewAdapter()
	cfg := config.Default()
	arena, err := compiler.Compile(context.Background(), adapter, types.LanguagePython, "t.py", []byte("x = 5\nprint(x)\n"), cfg.Thresholds, cfg.Concurrency.MaxRecursionDepth)
	require.NoError(t, err)

	tokens := token.ProjectAll(arena, 0)
	assert.NotEmpty(t, tokens)
	for _, tok := range tokens {
		assert.Equal(t, tok, strings.ToLower(tok))
	}
}

func TestProject_KnownFunctionProjectsCategoryNotName(t *testing.T) {
	adapter := parser.NewAdapter()
	cfg := config.Default()
	arena, err := compiler.Compile(context.Background(), adapter, types.LanguagePython, "t.py", []byte("import os\nos.system(cmd)\n"), cfg.Thresholds, cfg.Concurrency.MaxRecursionDepth)
	require.NoError(t, err)

	tokens := token.ProjectAll(arena, 0)
	assert.Contains(t, tokens, "process_management")
	assert.NotContains(t, tokens, "system")
}

func TestProject_ChildCodeObjectProjectsNameOnlyAtReference(t *testing.T) {
	adapter := parser.NewAdapter()
	cfg := config.Default()
	arena, err := compiler.Compile(context.Background(), adapter, types.LanguagePython, "t.py", []byte("def handler():\n    return 1\n"), cfg.Thresholds, cfg.Concurrency.MaxRecursionDepth)
	require.NoError(t, err)

	moduleTokens := token.Project(arena, 0)
	assert.Contains(t, moduleTokens, "make_function")
	assert.Contains(t, moduleTokens, "handler")

	allTokens := token.ProjectAll(arena, 0)
	assert.Contains(t, allTokens, "return_value")
}
