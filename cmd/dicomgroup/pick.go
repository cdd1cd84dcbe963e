package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/dicomgroup/internal/report"
	"github.com/spf13/cobra"
)

var (
	pickTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Bold(true)

	pickSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))
)

func pickCmd(a *app) *cobra.Command {
	var imp importFlags
	cmd := &cobra.Command{
		Use:   "pick DIR",
		Short: "Choose a patient and a group interactively and print its ordered files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.importDir(cmd, args[0], imp)
			if err != nil {
				return err
			}
			r := report.FromImport(res)
			if len(r.Patients) == 0 {
				return fmt.Errorf("no DICOM slices found in %s", args[0])
			}

			patientIdx := 0
			patientOptions := make([]huh.Option[int], len(r.Patients))
			for i, p := range r.Patients {
				label := fmt.Sprintf("%s (ID: %s, %d groups)", p.Name, p.ID, len(p.Groups))
				patientOptions[i] = huh.NewOption(label, i)
			}
			if err := huh.NewForm(huh.NewGroup(
				huh.NewSelect[int]().
					Title("Select a patient").
					Options(patientOptions...).
					Value(&patientIdx),
			)).Run(); err != nil {
				return fmt.Errorf("select patient: %w", err)
			}
			patient := r.Patients[patientIdx]

			groupIdx := 0
			groupOptions := make([]huh.Option[int], len(patient.Groups))
			for i, g := range patient.Groups {
				label := fmt.Sprintf("%s - series %d, %s, %d slices", g.Title, g.SeriesNumber, g.Orientation, g.NumSlices)
				if g.CollisionIndex > 0 {
					label += fmt.Sprintf(" (split #%d)", g.CollisionIndex)
				}
				groupOptions[i] = huh.NewOption(label, i)
			}
			if err := huh.NewForm(huh.NewGroup(
				huh.NewSelect[int]().
					Title(fmt.Sprintf("Select a group of %s", patient.Name)).
					Options(groupOptions...).
					Value(&groupIdx),
			)).Run(); err != nil {
				return fmt.Errorf("select group: %w", err)
			}
			group := patient.Groups[groupIdx]

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, pickTitleStyle.Render(group.Title))
			fmt.Fprintln(out, pickSubtitleStyle.Render(fmt.Sprintf("%s, spacing %.2f mm", group.Key, group.ZSpacing)))
			for _, f := range group.Files {
				fmt.Fprintln(out, f)
			}
			return nil
		},
	}
	imp.register(cmd)
	return cmd
}
