package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format names a report rendering (spec §6).
type Format string

const (
	FormatTree     Format = "tree"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Write renders r in the requested format. Only tree and json are
// implemented; yaml and markdown are named in the CLI surface but return an
// "unsupported format" error (SPEC_FULL.md "Tree report renderer" — a
// deliberately narrower rendering suite than the teacher's, since full
// report formatting belongs to an external collaborator).
func Write(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatTree, "":
		return WriteTree(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML, FormatMarkdown:
		return fmt.Errorf("unsupported format: %s", format)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteJSON renders r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteTree renders r as a minimal human-readable tree, in the spirit of
// the teacher's terminal summaries: a verdict line, then one indented line
// per flagged file, then an activity summary.
func WriteTree(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "malwi %s\n", r.Version)
	fmt.Fprintf(w, "scan %s\n", r.ScanID)
	fmt.Fprintf(w, "input: %s\n", r.InputPath)
	fmt.Fprintf(w, "files: %d scanned, %d skipped\n", r.Processed, len(r.SkippedFiles))
	fmt.Fprintf(w, "verdict: %s (confidence %.2f, threshold %.2f)\n", r.Verdict, r.Confidence, r.Threshold)

	if len(r.Malicious) > 0 {
		fmt.Fprintln(w, "malicious objects:")
		for _, obj := range r.Malicious {
			fmt.Fprintf(w, "  - %s  score=%.2f  hash=%s\n", obj.FilePath, obj.Score, obj.Hash()[:12])
		}
	}
	if len(r.Activities) > 0 {
		fmt.Fprintln(w, "activities:")
		for _, a := range r.Activities {
			fmt.Fprintf(w, "  - %s\n", a)
		}
	}
	if len(r.WarningCounts) > 0 {
		total := 0
		for _, n := range r.WarningCounts {
			total += n
		}
		fmt.Fprintf(w, "%d warnings\n", total)
	}
	fmt.Fprintf(w, "elapsed: %.2fs\n", r.ElapsedSecs)
	return nil
}

// WriteTrainingCSV writes one row per Scan Object in the layout spec §6
// names for a training export: file-hash, language, object-name,
// space-separated token-sequence, instruction-hash, and an optional label
// derived from this report's threshold.
func WriteTrainingCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"file_hash", "language", "object_name", "token_sequence", "instruction_hash", "label"}); err != nil {
		return err
	}
	for _, obj := range r.Objects {
		label := ""
		if obj.HasScore {
			label = "clean"
			if obj.Score >= r.Threshold {
				label = "malicious"
			}
		}
		row := []string{
			obj.FileHash,
			string(obj.Language),
			obj.Root().Name,
			strings.Join(obj.Tokens(), " "),
			obj.Hash(),
			label,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}
