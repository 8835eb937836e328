// Package objects implements the Scan Object (spec §3): the per-file unit
// the rest of the pipeline operates on, wrapping a compiled Code Object
// tree with a lazily-computed, memoized token projection and hash.
// Grounded on the teacher's internal/index document-wrapper pattern (parse
// once, derive everything else on demand, cache the derived values on the
// struct).
package objects

import (
	"sync"

	"github.com/schirrmacher/malwi/internal/compiler"
	"github.com/schirrmacher/malwi/internal/token"
	"github.com/schirrmacher/malwi/internal/types"
)

// ScanObject is one scanned file's compiled representation plus everything
// derived from it that the report needs.
type ScanObject struct {
	Language types.Language
	FilePath string
	FileHash string // sha256 of the raw file content, distinct from the instruction-stream Hash()

	arena  *compiler.Arena
	rootID types.CodeObjectID

	once      sync.Once
	tokens    []string
	hash      string
	subTokens int

	Score            float64
	HasScore         bool
	ClassifierFailed bool
	Activities       map[string]bool
	Excerpt          string
}

// New wraps a compiled Arena for filePath as a ScanObject. The token
// sequence and hash are computed lazily on first access (spec §3 "lazy,
// memoized").
func New(lang types.Language, filePath string, arena *compiler.Arena, rootID types.CodeObjectID) *ScanObject {
	return &ScanObject{Language: lang, FilePath: filePath, arena: arena, rootID: rootID, Activities: map[string]bool{}}
}

// Tokens returns the memoized, whole-file ML token sequence (spec §4.4).
func (s *ScanObject) Tokens() []string {
	s.ensure()
	return s.tokens
}

// Hash returns the memoized canonical instruction-stream hash used for
// dedup by the Report Aggregator (spec §4.5).
func (s *ScanObject) Hash() string {
	s.ensure()
	return s.hash
}

// SubwordTokenCount returns the projected token count, the "ML subword
// token count" field named in spec §3.
func (s *ScanObject) SubwordTokenCount() int {
	s.ensure()
	return s.subTokens
}

func (s *ScanObject) ensure() {
	s.once.Do(func() {
		s.tokens = token.ProjectAll(s.arena, s.rootID)
		s.hash = compiler.HashHex(s.arena, s.rootID)
		s.subTokens = len(s.tokens)
	})
}

// Warnings returns every compile_truncation / parse_error warning recorded
// anywhere in this file's Code Object tree, in pre-order.
func (s *ScanObject) Warnings() []types.Warning {
	var out []types.Warning
	var walk func(id types.CodeObjectID)
	walk = func(id types.CodeObjectID) {
		obj := s.arena.Objects[id]
		out = append(out, obj.Warnings...)
		for _, c := range obj.Children {
			walk(c)
		}
	}
	walk(s.rootID)
	return out
}

// Root returns the module-level CodeObject for this file.
func (s *ScanObject) Root() *types.CodeObject { return s.arena.Objects[s.rootID] }
