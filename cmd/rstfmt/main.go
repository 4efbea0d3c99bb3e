package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/0mp/rstfmt/internal/config"
	"github.com/0mp/rstfmt/internal/markup"
	_ "github.com/0mp/rstfmt/internal/markup/markdown"
	_ "github.com/0mp/rstfmt/internal/markup/rst"
	_ "github.com/0mp/rstfmt/internal/markup/text"
)

// defaultDialect applies to stdin when --dialect is not given.
const defaultDialect = "rst"

var rootCmd = &cobra.Command{
	Use:   "rstfmt",
	Short: "Reformat lightweight markup and verify the result",
	Long: `rstfmt rewraps reStructuredText, Markdown and plain text documents and
checks that reformatting preserves the document tree at every width.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dialectsCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().String("config", "", "TOML file overlaid on the environment configuration")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var dialectsCmd = &cobra.Command{
	Use:   "dialects",
	Short: "List the supported markup dialects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range markup.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

// loadConfig reads the environment, overlays --config and validates.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if cfg, err = config.LoadFile(path, cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr at the configured level, or warnings only when
// --quiet is set.
func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level := cfg.LogLevel
	if quiet(cmd) && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func quiet(cmd *cobra.Command) bool {
	q, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return q
}

// useColor resolves --color against the command's output and sets the
// global fatih/color switch to match.
func useColor(cmd *cobra.Command) (bool, error) {
	flag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	var on bool
	switch flag {
	case "on":
		on = true
	case "off":
		on = false
	case "auto":
		on = isTerminal(cmd.OutOrStdout())
	default:
		return false, fmt.Errorf("invalid --color %q (want auto, on or off)", flag)
	}
	color.NoColor = !on
	return on, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// dialectFor picks the --dialect flag when set, the file extension when a
// path is given, or the default dialect for stdin.
func dialectFor(cmd *cobra.Command, path string) (markup.Dialect, error) {
	name, err := cmd.Flags().GetString("dialect")
	if err != nil {
		return nil, err
	}
	switch {
	case name != "":
		return markup.Lookup(name)
	case path != "" && path != "-":
		return markup.ForFile(path)
	default:
		return markup.Lookup(defaultDialect)
	}
}

// readInput reads path, or stdin for "" and "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
