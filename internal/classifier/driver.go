// Package classifier implements the Classifier Driver (spec §5): the
// boundary between the deterministic compiler pipeline and the opaque
// scoring model. The model itself is out of scope (spec Non-goals); this
// package defines the interface the rest of the pipeline depends on and a
// deterministic local heuristic implementation that stands in for it, plus
// the rate-limited batching gate in front of either. Grounded on the
// teacher's internal/llm client package: a small interface, a context-aware
// call, and a token-bucket gate in front of an external dependency.
package classifier

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"github.com/schirrmacher/malwi/internal/categories"
	"github.com/schirrmacher/malwi/internal/config"
)

// Driver scores one file's token sequence as a probability of maliciousness
// in [0,1]. Implementations are opaque to the rest of the pipeline: the
// compiler and token projector never know which Driver is wired in (spec §5
// "classifier boundary").
type Driver interface {
	Score(ctx context.Context, tokens []string) (float64, error)
}

// Gate wraps a Driver with the rate-limited batching behavior spec §5
// requires: callers are throttled to a sustained rate rather than hitting
// the underlying driver in an unbounded burst from the scan's worker pool.
type Gate struct {
	driver  Driver
	limiter *rate.Limiter
}

// NewGate builds a Gate around driver using the concurrency settings in cfg.
func NewGate(driver Driver, cfg config.Concurrency) *Gate {
	limit := rate.Limit(cfg.ClassifierRateHz)
	burst := int(cfg.ClassifierRateHz * cfg.ClassifierWindow.Seconds())
	if burst < 1 {
		burst = 1
	}
	return &Gate{driver: driver, limiter: rate.NewLimiter(limit, burst)}
}

// Score waits for the rate limiter before delegating to the underlying
// driver, returning early if ctx is cancelled first (spec §5, §7
// classifier_unavailable on a persistent failure).
func (g *Gate) Score(ctx context.Context, tokens []string) (float64, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return g.driver.Score(ctx, tokens)
}

// HeuristicDriver is a deterministic, local stand-in for the real scoring
// model: it scores a token sequence by the density of activity-category
// tokens it contains, weighted by a curated set of especially
// security-relevant activities (dynamic code execution, process
// management). It exists so the pipeline is runnable end-to-end without a
// network-hosted model; it is not a claim of detection quality.
type HeuristicDriver struct {
	HighWeight   map[string]bool
	HighWeightFactor float64
}

// NewHeuristicDriver returns a HeuristicDriver with the default weighting.
func NewHeuristicDriver() *HeuristicDriver {
	return &HeuristicDriver{
		HighWeight: map[string]bool{
			string(categories.CategoryDynamicCodeExec):   true,
			string(categories.CategoryProcessManagement): true,
		},
		HighWeightFactor: 3,
	}
}

// Score implements Driver. The score is the fraction of tokens that are
// activity-category tokens (spec §GLOSSARY "activity"), with high-weight
// activities counted multiple times, clamped to [0,1].
func (h *HeuristicDriver) Score(_ context.Context, tokens []string) (float64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	var weight float64
	for _, tok := range tokens {
		if !categories.IsActivity(strings.ToLower(tok)) {
			continue
		}
		weight++
		if h.HighWeight[tok] {
			weight += h.HighWeightFactor
		}
	}
	score := weight / float64(len(tokens))
	if score > 1 {
		score = 1
	}
	return score, nil
}
