package main

import (
	"github.com/spf13/cobra"

	"github.com/0mp/rstfmt/internal/doctree"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] [path]",
	Short: "Print the document tree of a file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().String("dialect", "", "markup dialect (default from the file extension, or rst)")
}

func runDump(cmd *cobra.Command, args []string) error {
	colored, err := useColor(cmd)
	if err != nil {
		return err
	}
	var path string
	if len(args) == 1 {
		path = args[0]
	}
	d, err := dialectFor(cmd, path)
	if err != nil {
		return err
	}
	src, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	doc, err := d.Parse(src)
	if err != nil {
		return err
	}
	return doctree.Dumper{Color: colored}.Dump(cmd.OutOrStdout(), doc)
}
