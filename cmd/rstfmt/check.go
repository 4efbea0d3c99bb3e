package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0mp/rstfmt/internal/markup"
	"github.com/0mp/rstfmt/internal/nodeeq"
	"github.com/0mp/rstfmt/internal/roundtrip"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <path> [path...]",
	Short: "Verify that reformatting preserves each document",
	Long: `Verify that reformatting preserves each document. Every file is parsed,
formatted and reparsed at each check width; the trees must match and a second
format must reproduce the first. Failing widths leave tree dumps and outputs
in the artifact directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("artifacts", "", "directory for failure artifacts (default from RSTFMT_ARTIFACT_DIR)")
	checkCmd.Flags().Bool("keep-going", false, "check every width instead of stopping at the first failure")
	checkCmd.Flags().String("widths", "", "comma-separated check widths (default from RSTFMT_WIDTHS)")
	checkCmd.Flags().String("dialect", "", "markup dialect (default from the file extension)")
}

type checkResult struct {
	Path      string
	Artifacts string
	Err       error
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := useColor(cmd); err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	flags := cmd.Flags()
	if v, _ := flags.GetString("artifacts"); v != "" {
		cfg.ArtifactDir = v
	}
	if keep, _ := flags.GetBool("keep-going"); keep {
		cfg.KeepGoing = true
	}
	if v, _ := flags.GetString("widths"); v != "" {
		if cfg.Widths, err = parseWidths(v); err != nil {
			return err
		}
	}

	oracle := nodeeq.Oracle{Log: log, Code: cfg.CodeRegistry()}
	results := make([]checkResult, len(args))

	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(min(cfg.Jobs, len(args)))
	for i, path := range args {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Index prefix keeps same-named files in different directories apart.
			dir := filepath.Join(cfg.ArtifactDir, fmt.Sprintf("%03d-%s", i, filepath.Base(path)))
			results[i] = checkResult{Path: path, Artifacts: dir}

			d, err := dialectFor(cmd, path)
			if err != nil {
				results[i].Err = err
				return nil
			}
			src, err := readInput(cmd, path)
			if err != nil {
				results[i].Err = err
				return nil
			}
			opts := []roundtrip.Option{
				roundtrip.WithWidths(cfg.Widths...),
				roundtrip.WithSink(roundtrip.DirSink(dir)),
				roundtrip.WithOracle(oracle),
				roundtrip.WithLogger(log.With("path", path)),
			}
			if cfg.KeepGoing {
				opts = append(opts, roundtrip.KeepGoing())
			}
			results[i].Err = roundtrip.Run(d, src, opts...)
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return reportCheck(cmd, results)
}

func reportCheck(cmd *cobra.Command, results []checkResult) error {
	out := cmd.OutOrStdout()
	okColor := color.New(color.FgGreen, color.Bold)
	failColor := color.New(color.FgRed, color.Bold)
	dimColor := color.New(color.Faint)

	var failed int
	for _, r := range results {
		if r.Err == nil {
			if !quiet(cmd) {
				fmt.Fprintf(out, "%s %s\n", okColor.Sprint("ok"), r.Path)
			}
			continue
		}
		failed++
		fmt.Fprintf(out, "%s %s\n", failColor.Sprint("FAIL"), r.Path)
		for _, line := range strings.Split(r.Err.Error(), "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
		if hasFailure(r.Err) {
			fmt.Fprintf(out, "    %s\n", dimColor.Sprintf("artifacts: %s", r.Artifacts))
		}
	}

	if failed > 0 {
		return fmt.Errorf("check: %d of %d files failed", failed, len(results))
	}
	if !quiet(cmd) {
		fmt.Fprintf(out, "%s %d files\n", okColor.Sprint("checked"), len(results))
	}
	return nil
}

// hasFailure reports whether err carries a round-trip failure, meaning
// artifacts were written.
func hasFailure(err error) bool {
	var f *roundtrip.Failure
	return errors.As(err, &f)
}

func parseWidths(s string) ([]markup.Width, error) {
	var widths []markup.Width
	for _, part := range strings.Split(s, ",") {
		w, err := markup.ParseWidth(part)
		if err != nil {
			return nil, err
		}
		widths = append(widths, w)
	}
	return widths, nil
}
