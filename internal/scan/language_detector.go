// Package scan is the Source Acquirer and file-granular scheduler (spec
// §5): it walks a directory tree, classifies each file's language from its
// extension against a closed set, and hands every accepted file to a
// bounded worker pool that compiles it, projects its tokens and scores it.
// Grounded on the teacher's internal/indexing directory-walk + worker-pool
// pattern (golang.org/x/sync/errgroup with a fixed concurrency cap, a
// mutex-guarded result collector).
package scan

import (
	"path/filepath"
	"strings"

	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/types"
)

// DetectLanguage maps a file's extension to a Language via cfg's closed
// extension set. Files with an unrecognized extension are never scanned
// (spec §8 invariant: skipped-files boundary) — they show up only in the
// report's skipped-files list.
func DetectLanguage(cfg *config.Config, path string) (types.Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := cfg.LanguageFor(ext)
	if !ok {
		return "", false
	}
	return types.Language(lang), true
}
