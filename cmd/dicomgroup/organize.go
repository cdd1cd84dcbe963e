package main

import (
	"fmt"

	"github.com/mrsinham/dicomgroup/internal/dicom"
	"github.com/spf13/cobra"
)

func organizeCmd(a *app) *cobra.Command {
	var (
		imp    importFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "organize DIR",
		Short: "Copy every group into a PT/ST/SE/IM tree in physical order and write a DICOMDIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			res, err := a.importDir(cmd, args[0], imp)
			if err != nil {
				return err
			}
			if !a.quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Organizing %d files into %s\n", res.Files, output)
			}
			result, err := dicom.Organize(res.Index, output, a.quiet)
			if err != nil {
				return fmt.Errorf("organize: %w", err)
			}
			a.logger.Info().
				Str("run_id", res.RunID).
				Int("series", result.Series).
				Int("images", result.Images).
				Str("dicomdir", result.DICOMDIR).
				Msg("file-set written")
			return nil
		},
	}
	imp.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (required)")
	return cmd
}
