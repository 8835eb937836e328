package scan

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schirrmacher/malwi/internal/categories"
	"github.com/schirrmacher/malwi/internal/classifier"
	"github.com/schirrmacher/malwi/internal/compiler"
	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/debug"
	"github.com/schirrmacher/malwi/internal/errors"
	"github.com/schirrmacher/malwi/internal/objects"
	"github.com/schirrmacher/malwi/internal/parser"
	"github.com/schirrmacher/malwi/internal/report"
	"github.com/schirrmacher/malwi/internal/security"
)

// Scanner walks a path, compiles every accepted file and scores it through
// driver, collecting one FileResult per file (spec §5).
type Scanner struct {
	cfg       *config.Config
	adapter   *parser.Adapter
	validator *security.FileValidator
	gate      *classifier.Gate
}

// New builds a Scanner. driver is the scoring oracle wired in behind the
// rate-limited batching gate (spec §5).
func New(cfg *config.Config, driver classifier.Driver) *Scanner {
	return &Scanner{
		cfg:       cfg,
		adapter:   parser.NewAdapter(),
		validator: security.NewFileValidator(64),
		gate:      classifier.NewGate(driver, cfg.Concurrency),
	}
}

// Run walks root, scans every accepted file and returns the aggregated
// Report. The overall deadline in cfg.Concurrency.OverallDeadline, if set,
// bounds the whole run; each file additionally gets its own per-file
// timeout (spec §5, SPEC_FULL.md "Per-file and overall scan deadlines").
func (s *Scanner) Run(ctx context.Context, root string) (*report.Report, error) {
	start := time.Now()
	if s.cfg.Concurrency.OverallDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Concurrency.OverallDeadline)
		defer cancel()
	}

	paths, err := s.discover(root)
	if err != nil {
		return nil, errors.New(errors.KindIOError, "walk", err).WithFile(root)
	}

	workers := s.cfg.Concurrency.Workers
	if workers <= 0 {
		workers = 8
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	results := make([]report.FileResult, len(paths))

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			res := s.scanOne(gctx, p)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return report.Aggregate(root, start, results, s.cfg.Thresholds.MaliciousScore), nil
}

func (s *Scanner) discover(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

// scanOne compiles, projects and scores a single file, honoring a per-file
// timeout (spec §5). A recoverable error (unsupported extension, parse
// failure) downgrades to a skipped FileResult instead of aborting the run
// (spec §7).
func (s *Scanner) scanOne(ctx context.Context, path string) report.FileResult {
	lang, ok := DetectLanguage(s.cfg, path)
	if !ok {
		return report.FileResult{Path: path, Skipped: true, Reason: string(errors.KindUnsupportedExtension)}
	}

	if err := s.validator.Validate(path); err != nil {
		debug.Printf("skipping %s: %v", path, err)
		return report.FileResult{Path: path, Skipped: true, Reason: string(errors.KindIOError)}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		debug.Printf("read failed for %s: %v", path, err)
		return report.FileResult{Path: path, Skipped: true, Reason: string(errors.KindIOError)}
	}

	fileCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.Concurrency.PerFileTimeout > 0 {
		fileCtx, cancel = context.WithTimeout(ctx, s.cfg.Concurrency.PerFileTimeout)
		defer cancel()
	}

	arena, err := compiler.Compile(fileCtx, s.adapter, lang, path, content, s.cfg.Thresholds, s.cfg.Concurrency.MaxRecursionDepth)
	if err != nil {
		debug.Printf("compile failed for %s: %v", path, err)
		reason := errors.KindParseError
		if se, ok := err.(*errors.ScanError); ok {
			reason = se.Kind
		}
		// A per-file timeout abandons the file outright (spec §5, §8
		// invariant 11): no partial Scan Object is kept, only the skip
		// reason that becomes this file's compile_truncation warning.
		return report.FileResult{Path: path, Skipped: true, Reason: string(reason)}
	}

	obj := objects.New(lang, path, arena, 0)
	obj.FileHash = fmt.Sprintf("%x", sha256.Sum256(content))

	score, err := s.gate.Score(fileCtx, obj.Tokens())
	if err != nil {
		// classifier_unavailable is fatal to the scan's verdict, not to this
		// file's compilation: the file's Scan Object is kept (it still
		// contributes tokens/warnings), but the scan as a whole is reported
		// inconclusive (spec §7).
		debug.Printf("classifier unavailable for %s: %v", path, err)
		obj.ClassifierFailed = true
	} else {
		obj.Score = score
		obj.HasScore = true
	}

	for _, tok := range obj.Tokens() {
		if categories.IsActivity(tok) {
			obj.Activities[tok] = true
		}
	}

	return report.FileResult{Path: path, Object: obj}
}
