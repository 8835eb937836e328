package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schirrmacher/malwi/internal/compiler"
	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/objects"
	"github.com/schirrmacher/malwi/internal/parser"
	"github.com/schirrmacher/malwi/internal/types"
)

func scanObject(t *testing.T, src string, score float64) *objects.ScanObject {
	t.Helper()
	adapter := parser.NewAdapter()
	cfg := config.Default()
	arena, err := compiler.Compile(context.Background(), adapter, types.LanguagePython, "t.py", []byte(src), cfg.Thresholds, cfg.Concurrency.MaxRecursionDepth)
	require.NoError(t, err)
	obj := objects.New(types.LanguagePython, "t.py", arena, 0)
	obj.Score = score
	obj.HasScore = true
	return obj
}

func TestAggregate_BenignWhenNoFileCrossesThreshold(t *testing.T) {
	obj := scanObject(t, "x = 1\n", 0.1)
	r := Aggregate("/tmp/in", time.Now(), []FileResult{{Path: "t.py", Object: obj}}, 0.7)
	assert.Equal(t, "clean", r.Verdict)
	assert.Empty(t, r.Malicious)
}

func TestAggregate_MaliciousWhenAFileCrossesThreshold(t *testing.T) {
	obj := scanObject(t, "import os\nos.system(x)\n", 0.9)
	r := Aggregate("/tmp/in", time.Now(), []FileResult{{Path: "t.py", Object: obj}}, 0.7)
	assert.Equal(t, "malicious", r.Verdict)
	require.Len(t, r.Malicious, 1)
	assert.InDelta(t, 0.9, r.Confidence, 1e-9)
}

func TestAggregate_VerdictIsMonotonic(t *testing.T) {
	malicious := scanObject(t, "import os\nos.system(x)\n", 0.95)
	clean := scanObject(t, "y = 2\n", 0.05)

	withBoth := Aggregate("/tmp/in", time.Now(), []FileResult{
		{Path: "a.py", Object: malicious},
		{Path: "b.py", Object: clean},
	}, 0.7)

	assert.Equal(t, "malicious", withBoth.Verdict, "one flagged file must keep the overall verdict malicious")
}

func TestAggregate_DedupKeepsHighestScoringDuplicate(t *testing.T) {
	// Same source compiles to the same instruction hash.
	a := scanObject(t, "import os\nos.system(x)\n", 0.8)
	b := scanObject(t, "import os\nos.system(x)\n", 0.95)
	a.FilePath = "a.py"
	b.FilePath = "b.py"

	r := Aggregate("/tmp/in", time.Now(), []FileResult{
		{Path: "a.py", Object: a},
		{Path: "b.py", Object: b},
	}, 0.7)

	require.Len(t, r.Malicious, 1, "identical instruction streams should dedup to a single malicious entry")
	assert.InDelta(t, 0.95, r.Malicious[0].Score, 1e-9)
}

func TestAggregate_ClassifierFailureMakesVerdictInconclusive(t *testing.T) {
	obj := scanObject(t, "x = 1\n", 0.0)
	obj.HasScore = false
	obj.ClassifierFailed = true

	r := Aggregate("/tmp/in", time.Now(), []FileResult{{Path: "t.py", Object: obj}}, 0.7)
	assert.Equal(t, "inconclusive", r.Verdict)
}

func TestAggregate_SkippedFilesAreCountedSeparately(t *testing.T) {
	obj := scanObject(t, "x = 1\n", 0.0)
	r := Aggregate("/tmp/in", time.Now(), []FileResult{
		{Path: "t.py", Object: obj},
		{Path: "image.png", Skipped: true, Reason: "unsupported_extension"},
	}, 0.7)
	assert.Equal(t, 1, r.Processed)
	assert.Equal(t, []string{"image.png"}, r.SkippedFiles)
	assert.Len(t, r.AllFiles, 2)
}

func TestWriteTree_RendersVerdictAndMaliciousObjects(t *testing.T) {
	obj := scanObject(t, "import os\nos.system(x)\n", 0.9)
	r := Aggregate("/tmp/in", time.Now(), []FileResult{{Path: "t.py", Object: obj}}, 0.7)

	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "verdict: malicious")
	assert.Contains(t, out, "t.py")
}

func TestWrite_UnsupportedFormatsReturnError(t *testing.T) {
	r := &Report{}
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, r, FormatYAML))
	assert.Error(t, Write(&buf, r, FormatMarkdown))
	assert.NoError(t, Write(&buf, r, FormatJSON))
}

func TestWriteTrainingCSV_HasHeaderAndOneRowPerObject(t *testing.T) {
	obj := scanObject(t, "x = 1\n", 0.1)
	r := Aggregate("/tmp/in", time.Now(), []FileResult{{Path: "t.py", Object: obj}}, 0.7)

	var buf bytes.Buffer
	require.NoError(t, WriteTrainingCSV(&buf, r))
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2) // header + one object
}
