// Package report implements the Report Aggregator and Report model (spec
// §3, §4.5): it turns a set of scored Scan Objects into the single,
// monotonic verdict a scan produces, deduplicated by instruction hash and
// summarized by an activity-token union. Grounded on the teacher's
// internal/indexing result-aggregation pass (collect-then-reduce over a
// worker pool's per-file results into one coherent summary struct).
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/schirrmacher/malwi/internal/categories"
	"github.com/schirrmacher/malwi/internal/errors"
	"github.com/schirrmacher/malwi/internal/objects"
	"github.com/schirrmacher/malwi/internal/version"
)

// FileResult is one file's outcome: either a compiled Scan Object, or a
// reason it was skipped/failed (spec §7).
type FileResult struct {
	Path    string
	Object  *objects.ScanObject
	Skipped bool
	Reason  string
}

// Report is the top-level scan result (spec §3).
type Report struct {
	ScanID        string
	InputPath     string
	StartTime     time.Time
	ElapsedSecs   float64
	AllFiles      []string
	SkippedFiles  []string
	Processed     int
	Objects       []*objects.ScanObject
	Malicious     []*objects.ScanObject
	Activities    []string
	Verdict       string // "malicious" | "clean" | "inconclusive" (spec §7)
	Confidence    float64
	Threshold     float64
	Version       string
	WarningCounts map[string]int
}

// Aggregate builds a Report from the per-file results of one scan run.
// Dedup, activity-union and verdict computation are pure functions of
// results and threshold (spec §4.5):
//
//   - instruction-hash dedup: when two Scan Objects share a hash, only the
//     higher-scored one is kept in the malicious set (idempotent — running
//     dedup twice produces the same set, spec §8 invariant).
//   - activity union is taken only from malicious objects' token sequences
//     (spec §4.5, scenario S6), restricted to the curated activity
//     subfamily (spec §GLOSSARY); a benign file's activity tokens never
//     appear in the report.
//   - verdict is monotonic: adding a file that scores below threshold can
//     never flip an existing "malicious" verdict back to "clean".
//   - a classifier_unavailable failure on any file makes the whole report
//     "inconclusive" (spec §7), overriding whatever the scored files alone
//     would have concluded.
func Aggregate(inputPath string, start time.Time, results []FileResult, threshold float64) *Report {
	r := &Report{
		ScanID:    uuid.NewString(),
		InputPath: inputPath,
		StartTime: start,
		Threshold: threshold,
		Version:   version.String(),
	}

	bestByHash := map[string]*objects.ScanObject{}
	activitySet := map[string]bool{}
	r.WarningCounts = map[string]int{}
	inconclusive := false

	for _, res := range results {
		r.AllFiles = append(r.AllFiles, res.Path)
		if res.Skipped {
			r.SkippedFiles = append(r.SkippedFiles, res.Path)
			if res.Reason == string(errors.KindCompileTruncation) {
				// A per-file timeout abandons the file with no Scan Object
				// at all (spec §5, §8 invariant 11); the warning still
				// surfaces in the report even though there is no object to
				// carry it.
				r.WarningCounts[string(errors.KindCompileTruncation)]++
			}
			continue
		}
		r.Processed++
		obj := res.Object
		r.Objects = append(r.Objects, obj)

		if obj.ClassifierFailed {
			inconclusive = true
		}

		for _, w := range obj.Warnings() {
			r.WarningCounts[string(w.Kind)]++
		}

		if !obj.HasScore || obj.Score < threshold {
			continue
		}

		for tok := range obj.Activities {
			if categories.IsActivity(tok) {
				activitySet[tok] = true
			}
		}

		h := obj.Hash()
		if existing, ok := bestByHash[h]; !ok || obj.Score > existing.Score {
			bestByHash[h] = obj
		}
	}

	for _, obj := range bestByHash {
		r.Malicious = append(r.Malicious, obj)
	}
	sort.Slice(r.Malicious, func(i, j int) bool { return r.Malicious[i].FilePath < r.Malicious[j].FilePath })

	for a := range activitySet {
		r.Activities = append(r.Activities, a)
	}
	sort.Strings(r.Activities)

	switch {
	case inconclusive:
		r.Verdict = "inconclusive"
		r.Confidence = 0
	case len(r.Malicious) > 0:
		r.Verdict = "malicious"
		r.Confidence = maxScore(r.Malicious)
	default:
		r.Verdict = "clean"
		r.Confidence = 1 - minScoredScore(r.Objects)
	}

	r.ElapsedSecs = time.Since(start).Seconds()
	return r
}

func maxScore(objs []*objects.ScanObject) float64 {
	var m float64
	for _, o := range objs {
		if o.Score > m {
			m = o.Score
		}
	}
	return m
}

// minScoredScore returns the minimum score among objects that were actually
// scored, or 1 when none were, so the clean confidence is then 0 (spec §4.5
// "1 − minimum benign score").
func minScoredScore(objs []*objects.ScanObject) float64 {
	min, any := 1.0, false
	for _, o := range objs {
		if !o.HasScore {
			continue
		}
		any = true
		if o.Score < min {
			min = o.Score
		}
	}
	if !any {
		return 1
	}
	return min
}
