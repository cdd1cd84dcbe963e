package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	treeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	patientStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// ValidateFormat returns an error for unknown formats.
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q, valid formats: %s", format, strings.Join(Formats, ", "))
}

// Render writes r in the given format. Text output lists files by base
// name unless verbose is set.
func Render(w io.Writer, r *Report, format string, verbose bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, renderText(r, verbose))
		return err
	default:
		return ValidateFormat(format)
	}
}

func treePrefix(last bool) string {
	if last {
		return "└──"
	}
	return "├──"
}

func treeIndent(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}

func renderText(r *Report, verbose bool) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("DICOM groups"))
	sb.WriteString("\n")
	if r.Root != "" {
		sb.WriteString(labelStyle.Render("Root: "))
		sb.WriteString(valueStyle.Render(r.Root))
		sb.WriteString("\n")
	}
	sb.WriteString(labelStyle.Render("Summary: "))
	sb.WriteString(valueStyle.Render(r.String()))
	sb.WriteString("\n\n")

	for pi, p := range r.Patients {
		lastPatient := pi == len(r.Patients)-1
		sb.WriteString(treeStyle.Render(treePrefix(lastPatient)))
		sb.WriteString(" ")
		sb.WriteString(patientStyle.Render(fmt.Sprintf("[%d] %s", p.Index, p.Name)))
		sb.WriteString(labelStyle.Render(fmt.Sprintf(" (ID: %s, %d slices)", p.ID, p.NumSlices)))
		sb.WriteString("\n")

		indent := treeIndent(lastPatient)
		for gi, g := range p.Groups {
			lastGroup := gi == len(p.Groups)-1
			sb.WriteString(treeStyle.Render(indent + treePrefix(lastGroup)))
			sb.WriteString(" ")
			sb.WriteString(valueStyle.Render(fmt.Sprintf("[%d] %s", g.Index, g.Title)))
			sb.WriteString(labelStyle.Render(fmt.Sprintf(" series %d, %s, %d slices, spacing %.2f mm",
				g.SeriesNumber, g.Orientation, g.NumSlices, g.ZSpacing)))
			if g.CollisionIndex > 0 {
				sb.WriteString(warnStyle.Render(fmt.Sprintf(" (split #%d)", g.CollisionIndex)))
			}
			sb.WriteString("\n")

			if verbose {
				fileIndent := indent + treeIndent(lastGroup)
				for _, f := range g.Files {
					sb.WriteString(treeStyle.Render(fileIndent))
					sb.WriteString(filepath.Base(f))
					sb.WriteString("\n")
				}
			}
		}
	}

	if len(r.Skipped) > 0 {
		sb.WriteString("\n")
		sb.WriteString(warnStyle.Render(fmt.Sprintf("Skipped %d files", len(r.Skipped))))
		sb.WriteString("\n")
		for _, s := range r.Skipped {
			sb.WriteString(labelStyle.Render(fmt.Sprintf("  %s: %s", s.Path, s.Reason)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
