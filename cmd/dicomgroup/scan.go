package main

import (
	"github.com/mrsinham/dicomgroup/internal/report"
	"github.com/spf13/cobra"
)

func scanCmd(a *app) *cobra.Command {
	var (
		imp     importFlags
		format  string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "scan DIR",
		Short: "Group the DICOM files of a directory and print the ordered groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				format = a.cfg.Output.Format
			}
			if err := report.ValidateFormat(format); err != nil {
				return err
			}
			res, err := a.importDir(cmd, args[0], imp)
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), report.FromImport(res), format, verbose)
		},
	}
	imp.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", report.FormatText, "Output format: text, json, yaml")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List the ordered files of every group (text format)")
	return cmd
}
