package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schirrmacher/malwi/internal/classifier"
	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/scan"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestScanner_Run_FlagsMaliciousFileAndSkipsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "evil.py", "import os\nos.system(user_input)\n")
	writeFile(t, dir, "benign.py", "x = 1 + 2\n")
	writeFile(t, dir, "data.bin", "\x00\x01\x02binary")

	cfg := config.Default()
	cfg.Thresholds.MaliciousScore = 0.1

	s := scan.New(cfg, classifier.NewHeuristicDriver())
	r, err := s.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Processed)
	assert.Len(t, r.SkippedFiles, 1)
	assert.Equal(t, "malicious", r.Verdict)
}

func TestScanner_Run_AllCleanYieldsCleanVerdict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "x = 1\n")
	writeFile(t, dir, "b.py", "y = x + 1\n")

	cfg := config.Default()
	s := scan.New(cfg, classifier.NewHeuristicDriver())
	r, err := s.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "clean", r.Verdict)
	assert.Empty(t, r.Malicious)
}
