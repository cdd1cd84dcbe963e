package main

import (
	"fmt"
	"strings"

	"github.com/mrsinham/dicomgroup/internal/dicom"
	"github.com/mrsinham/dicomgroup/internal/dicom/anomalies"
	"github.com/mrsinham/dicomgroup/internal/dicom/modalities"
	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/spf13/cobra"
)

func generateCmd(a *app) *cobra.Command {
	var (
		opts         dicom.GeneratorOptions
		modality     string
		orientations string
		anomalyTypes string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic DICOM series for exercising the grouping",
		Long: `Write synthetic DICOM series with controlled geometry.

Anomalies reproduce the cases the grouping has to handle:
  duplicate-positions  extra slices at already used positions
  derived-images       DERIVED reformats sharing positions, one reusing a number
  shuffled-instances   instance numbers that do not follow the position
  shuffled-files       file names that do not follow the position
  table-shift          in-plane offsets between slices
  missing-position     a slice without Image Position (Patient)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := modalities.Parse(modality)
			if err != nil {
				return err
			}
			opts.Modality = m

			if orientations != "" {
				for _, s := range strings.Split(orientations, ",") {
					o := grouping.ParseOrientation(s)
					if o == grouping.Unknown && !strings.EqualFold(strings.TrimSpace(s), string(grouping.Unknown)) {
						return fmt.Errorf("unknown orientation %q, valid orientations: %v", s, grouping.AllOrientations())
					}
					opts.Orientations = append(opts.Orientations, o)
				}
			}

			types, err := anomalies.ParseTypes(anomalyTypes)
			if err != nil {
				return err
			}
			opts.Anomalies = anomalies.Config{Types: types}
			opts.Quiet = a.quiet

			if !a.quiet {
				fmt.Println("dicomgroup generate")
				fmt.Println("===================")
			}
			files, err := dicom.GenerateSeries(opts)
			if err != nil {
				return fmt.Errorf("generate series: %w", err)
			}
			a.logger.Debug().Int("files", len(files)).Str("output", opts.OutputDir).Msg("series generated")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.OutputDir, "output", "o", "dicom_series", "Output directory")
	flags.IntVar(&opts.NumImages, "num-slices", 20, "Slices per series before anomalies")
	flags.IntVar(&opts.NumSeries, "num-series", 0, "Series per patient (default: every protocol series)")
	flags.IntVar(&opts.NumPatients, "num-patients", 1, "Number of patients")
	flags.Int64Var(&opts.Seed, "seed", 0, "Seed for reproducibility (default: derived from the output directory)")
	flags.IntVarP(&opts.Workers, "workers", "w", 0, "Parallel writers (default: CPU cores)")
	flags.IntVar(&opts.Width, "width", 64, "Image width in pixels")
	flags.IntVar(&opts.Height, "height", 64, "Image height in pixels")
	flags.StringVar(&modality, "modality", "MR", "Imaging modality: MR, CT")
	flags.StringVar(&opts.Manufacturer, "manufacturer", "", "Scanner manufacturer (default: random for the modality)")
	flags.StringVar(&orientations, "orientation", "", "Comma-separated planes, one series each: axial, coronal, sagittal, oblique")
	flags.StringVar(&anomalyTypes, "anomalies", "", "Comma-separated anomaly types (or 'all')")
	return cmd
}
