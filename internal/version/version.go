// Package version centralizes the build version and the model-mapping
// revision embedded into every report (spec §6, §9), the same
// single-source-of-truth pattern the teacher uses for its own Version
// constant.
package version

import "github.com/schirrmacher/malwi/internal/categories"

// Version is the malwi build version.
const Version = "0.1.0"

// String returns the version string embedded in a Report: build version
// plus the category-mapping revision it was produced with, so a report is
// always interpretable against the exact mapping that classified it (spec
// §9).
func String() string {
	return Version + "+" + categories.MappingVersion
}
