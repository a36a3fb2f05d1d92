package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/varghele/quickmidi/detect"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	fixStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
)

func severityStyle(s detect.Severity) lipgloss.Style {
	switch s {
	case detect.SeverityCritical:
		return criticalStyle
	case detect.SeverityWarning:
		return warningStyle
	}
	return infoStyle
}

// Render formats a report for the terminal.
func Render(r *AnalysisReport) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Analysis report"))
	fmt.Fprintf(&b, "  %s\n", dimStyle.Render(r.ID))
	fmt.Fprintf(&b, "%d events in, %d out; %d issues, %d resolved\n\n",
		r.Stats.EventsBefore, r.Stats.EventsAfter, r.Stats.IssuesFound, r.Stats.IssuesResolved)

	if len(r.Issues) > 0 {
		b.WriteString(headerStyle.Render("Issues") + "\n")
		for i := range r.Issues {
			is := &r.Issues[i]
			line := fmt.Sprintf("%-8s %-17s track %d  t=%.3fs  %s",
				is.Severity, is.Kind, is.Track, is.Time, is.Note)
			if is.AudioChecked {
				line += fmt.Sprintf("  [audio %.2f]", is.AudioConfidence)
			}
			if is.PitchMismatch {
				line += "  [pitch mismatch]"
			}
			b.WriteString(severityStyle(is.Severity).Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if len(r.Applied) > 0 {
		b.WriteString(headerStyle.Render("Applied fixes") + "\n")
		for i := range r.Applied {
			f := &r.Applied[i]
			b.WriteString(fixStyle.Render(fmt.Sprintf("%-17s track %d  %s", f.Op, f.Track, f.Note)) + "\n")
		}
		b.WriteString("\n")
	}

	if len(r.Rejected) > 0 {
		b.WriteString(headerStyle.Render("Rolled back") + "\n")
		for i := range r.Rejected {
			f := &r.Rejected[i]
			b.WriteString(warningStyle.Render(fmt.Sprintf("%-17s track %d  %s", f.Op, f.Track, f.Note)) + "\n")
		}
		b.WriteString("\n")
	}

	var added, removed, modified int
	for i := range r.Diff {
		switch r.Diff[i].Status {
		case DiffAdded:
			added++
		case DiffRemoved:
			removed++
		case DiffModified:
			modified++
		}
	}
	fmt.Fprintf(&b, "Diff: %d added, %d removed, %d modified\n", added, removed, modified)

	for _, w := range r.Warnings {
		b.WriteString(warningStyle.Render("warning: "+w) + "\n")
	}
	return b.String()
}
