package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Load reads a .malwi.kdl document at path and merges it over Default(). A
// missing file is not an error: the defaults apply (spec §6 leaves
// configuration optional for the core entry point).
func Load(path string) (*Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config %s: %w", path, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "threshold":
			if f, ok := firstFloatArg(n); ok {
				cfg.Thresholds.MaliciousScore = f
			}
		case "extensions":
			for _, cn := range n.Children {
				if ext, ok := firstStringArg(cn); ok {
					cfg.Extensions[nodeName(cn)] = ext
				}
			}
		case "compiler":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "short_literal_chars":
					if v, ok := firstIntArg(cn); ok {
						cfg.Thresholds.ShortLiteralChars = v
					}
				case "large_integer_bucket":
					if v, ok := firstIntArg(cn); ok {
						cfg.Thresholds.LargeIntegerBucket = int64(v)
					}
				case "base64_min_length":
					if v, ok := firstIntArg(cn); ok {
						cfg.Thresholds.Base64MinLength = v
					}
				case "code_likeness_min_length":
					if v, ok := firstIntArg(cn); ok {
						cfg.Thresholds.CodeLikenessMinLength = v
					}
				}
			}
		case "concurrency":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Concurrency.Workers = v
					}
				case "per_file_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Concurrency.PerFileTimeout = time.Duration(v) * time.Millisecond
					}
				case "overall_deadline_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Concurrency.OverallDeadline = time.Duration(v) * time.Millisecond
					}
				case "max_recursion_depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Concurrency.MaxRecursionDepth = v
					}
				case "classifier_window_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Concurrency.ClassifierWindow = time.Duration(v) * time.Millisecond
					}
				case "classifier_rate_hz":
					if f, ok := firstFloatArg(cn); ok {
						cfg.Concurrency.ClassifierRateHz = f
					}
				}
			}
		case "model":
			for _, cn := range n.Children {
				assignSimpleString(cn, "revision", func(v string) { cfg.ModelRevision = v })
				assignSimpleString(cn, "cache_dir", func(v string) { cfg.ModelCacheDir = v })
			}
		}
	}

	if env := os.Getenv("MALWI_MODEL_CACHE"); env != "" {
		cfg.ModelCacheDir = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
