// Package config holds the scan configuration and its defaults, loaded from
// a KDL document the same way the teacher loads .lci.kdl (spec §6: a single
// environment variable may point to a local model cache; everything else is
// configuration passed by value into the scan entry point, spec §5).
package config

import (
	"fmt"
	"time"
)

// Thresholds holds the numeric knobs the spec calls out by name.
type Thresholds struct {
	MaliciousScore          float64 // §4.5 default 0.7
	ShortLiteralChars       int     // §4.2 rule 6, default 15
	LargeIntegerBucket      int64   // integers above this map to INTEGER_LARGE
	Base64MinLength         int     // §4.3 STRING_BASE64 heuristic
	CodeLikenessMinLength   int     // §4.3 STRING_CODE heuristic
}

// Concurrency holds the scheduling knobs of spec §5.
type Concurrency struct {
	Workers          int           // 0 = default of 8 workers
	PerFileTimeout   time.Duration // spec §5 "per-file timeout"
	OverallDeadline  time.Duration // spec §5 "overall deadline"; 0 = none
	MaxRecursionDepth int          // spec §9 bounded work-stack depth
	ClassifierWindow time.Duration // §5 batching window for the rate-limited gate
	ClassifierRateHz float64       // requests/sec sustained through the gate
}

// Config is the full, by-value configuration passed into the scan entry
// point; nothing about a scan is read from global state (spec §5).
type Config struct {
	Extensions       map[string]string // file extension -> language tag, closed set (spec §6)
	Thresholds       Thresholds
	Concurrency      Concurrency
	ModelCacheDir    string // $MALWI_MODEL_CACHE, spec §6
	ModelRevision    string // model revision; not part of the report version string, which carries the category-mapping version
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Extensions: map[string]string{
			".py": "python",
			".js": "javascript",
		},
		Thresholds: Thresholds{
			MaliciousScore:        0.7,
			ShortLiteralChars:     15,
			LargeIntegerBucket:    1 << 53,
			Base64MinLength:       24,
			CodeLikenessMinLength: 40,
		},
		Concurrency: Concurrency{
			Workers:           0,
			PerFileTimeout:     10 * time.Second,
			OverallDeadline:    0,
			MaxRecursionDepth:  2000,
			ClassifierWindow:   50 * time.Millisecond,
			ClassifierRateHz:   200,
		},
		ModelCacheDir: "",
		ModelRevision: "unpinned",
	}
}

// Validate checks the configuration is usable before a scan starts; failures
// here are config_invalid and fatal (spec §7).
func (c *Config) Validate() error {
	if c.Thresholds.MaliciousScore < 0 || c.Thresholds.MaliciousScore > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %v", c.Thresholds.MaliciousScore)
	}
	if c.Thresholds.ShortLiteralChars < 0 {
		return fmt.Errorf("short literal threshold must be >= 0")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one accepted extension is required")
	}
	if c.Concurrency.MaxRecursionDepth <= 0 {
		return fmt.Errorf("max recursion depth must be > 0")
	}
	return nil
}

// LanguageFor resolves the language tag for a file extension, reporting
// false when the extension is not in the accepted set (the file is then
// listed as skipped, never scanned — spec §8 invariant 9).
func (c *Config) LanguageFor(ext string) (string, bool) {
	lang, ok := c.Extensions[ext]
	return lang, ok
}
