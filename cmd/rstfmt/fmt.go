package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/0mp/rstfmt/internal/markup"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [flags] [path...]",
	Short: "Reformat documents to a line width",
	Long: `Reformat documents to a line width. With no paths the document is read
from stdin and written to stdout.`,
	RunE: runFmt,
}

func init() {
	fmtCmd.Flags().StringP("width", "w", "", "line width; 0 or none for unbounded (default from RSTFMT_WIDTH)")
	fmtCmd.Flags().BoolP("in-place", "i", false, "rewrite files instead of printing them")
	fmtCmd.Flags().String("dialect", "", "markup dialect (default from the file extension, or rst)")
}

func runFmt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	width := cfg.Width
	if v, _ := cmd.Flags().GetString("width"); v != "" {
		if width, err = markup.ParseWidth(v); err != nil {
			return err
		}
	}
	inPlace, err := cmd.Flags().GetBool("in-place")
	if err != nil {
		return err
	}
	if inPlace && len(args) == 0 {
		return fmt.Errorf("fmt: --in-place needs at least one path")
	}

	if len(args) == 0 {
		args = []string{"-"}
	}
	var failed int
	for _, path := range args {
		out, changed, err := formatOne(cmd, path, width)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "fmt: %s: %v\n", displayName(path), err)
			continue
		}
		if !inPlace {
			io.WriteString(cmd.OutOrStdout(), out)
			continue
		}
		if !changed {
			continue
		}
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "fmt: %v\n", err)
			continue
		}
		if !quiet(cmd) {
			fmt.Fprintf(cmd.OutOrStdout(), "reformatted %s\n", path)
		}
	}
	if failed > 0 {
		return fmt.Errorf("fmt: failed to format %d of %d inputs", failed, len(args))
	}
	return nil
}

func formatOne(cmd *cobra.Command, path string, width markup.Width) (string, bool, error) {
	d, err := dialectFor(cmd, path)
	if err != nil {
		return "", false, err
	}
	src, err := readInput(cmd, path)
	if err != nil {
		return "", false, err
	}
	doc, err := d.Parse(src)
	if err != nil {
		return "", false, err
	}
	out, err := d.Format(doc, width)
	if err != nil {
		return "", false, err
	}
	return out, out != src, nil
}

func displayName(path string) string {
	if path == "-" {
		return "<stdin>"
	}
	return path
}
