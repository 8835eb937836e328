package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/schirrmacher/malwi/internal/classifier"
	"github.com/schirrmacher/malwi/internal/config"
	"github.com/schirrmacher/malwi/internal/debug"
	"github.com/schirrmacher/malwi/internal/report"
	"github.com/schirrmacher/malwi/internal/scan"
	"github.com/schirrmacher/malwi/internal/version"
)

// exit codes per spec §6.
const (
	exitClean   = 0
	exitMalicious = 1
	exitUsageOrIO = 2
)

func main() {
	app := &cli.App{
		Name:    "malwi",
		Usage:   "offline malicious-code scanner",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file path",
				Value: ".malwi.kdl",
			},
		},
		Commands: []*cli.Command{
			scanCommand(),
			pypiCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "malwi: %v\n", err)
		os.Exit(exitUsageOrIO)
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "scan a file or directory for malicious code",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "threshold", Usage: "override the malicious-score threshold"},
			&cli.StringSliceFlag{Name: "extensions", Usage: "restrict scanning to these extensions (e.g. .py,.js)"},
			&cli.StringFlag{Name: "format", Usage: "report format: tree, json, yaml, markdown", Value: "tree"},
			&cli.StringFlag{Name: "save", Usage: "write the report to this file instead of stdout"},
			&cli.BoolFlag{Name: "quiet", Usage: "suppress the tree/json report body, print only the verdict line"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("scan requires a path argument", exitUsageOrIO)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), exitUsageOrIO)
			}
			applyScanOverrides(c, cfg)

			return runScanAndReport(c.Context, cfg, path, c.String("format"), c.String("save"), c.Bool("quiet"))
		},
	}
}

// pypiCommand implements spec §6's remote-package entry point narrowed to
// a local staging directory: downloading and unpacking a PyPI release is an
// external collaborator out of scope for this repository (SPEC_FULL.md
// NON-GOALS), so --folder is required here instead of being resolved
// automatically.
func pypiCommand() *cli.Command {
	return &cli.Command{
		Name:      "pypi",
		Usage:     "scan a local staging of a PyPI package (package fetching is out of scope; use --folder)",
		ArgsUsage: "<name> [version]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "folder", Usage: "local directory the package was already unpacked into", Required: true},
			&cli.Float64Flag{Name: "threshold"},
			&cli.StringFlag{Name: "format", Value: "tree"},
			&cli.StringFlag{Name: "save"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().First() == "" {
				return cli.Exit("pypi requires a package name argument", exitUsageOrIO)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), exitUsageOrIO)
			}
			if t := c.Float64("threshold"); t > 0 {
				cfg.Thresholds.MaliciousScore = t
			}
			return runScanAndReport(c.Context, cfg, c.String("folder"), c.String("format"), c.String("save"), false)
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func applyScanOverrides(c *cli.Context, cfg *config.Config) {
	if t := c.Float64("threshold"); t > 0 {
		cfg.Thresholds.MaliciousScore = t
	}
	if exts := c.StringSlice("extensions"); len(exts) > 0 {
		filtered := map[string]string{}
		for _, ext := range exts {
			if lang, ok := cfg.Extensions[ext]; ok {
				filtered[ext] = lang
			}
		}
		if len(filtered) > 0 {
			cfg.Extensions = filtered
		}
	}
}

func runScanAndReport(ctx context.Context, cfg *config.Config, path, format, savePath string, quiet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitUsageOrIO)
	}

	debug.Printf("scanning %s", path)
	scanner := scan.New(cfg, classifier.NewHeuristicDriver())
	r, err := scanner.Run(ctx, path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("scan failed: %v", err), exitUsageOrIO)
	}

	out := os.Stdout
	var closeOut func()
	if savePath != "" {
		f, err := os.Create(savePath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to create %s: %v", savePath, err), exitUsageOrIO)
		}
		out = f
		closeOut = func() { f.Close() }
	}

	if !quiet {
		if err := report.Write(out, r, report.Format(format)); err != nil {
			if closeOut != nil {
				closeOut()
			}
			return cli.Exit(err.Error(), exitUsageOrIO)
		}
	} else {
		fmt.Fprintln(out, r.Verdict)
	}
	if closeOut != nil {
		closeOut()
	}

	switch r.Verdict {
	case "malicious":
		return cli.Exit("", exitMalicious)
	case "inconclusive":
		return cli.Exit("", exitUsageOrIO)
	default:
		return cli.Exit("", exitClean)
	}
}
