package report

import (
	"fmt"
	"strings"

	"github.com/leynos/ghillie/internal/types"
)

// RenderMarkdown produces the human-readable report document persisted
// as human_text and handed to the sink.
func RenderMarkdown(repoSlug string, report *types.Report) string {
	var b strings.Builder
	summary := report.MachineSummary

	fmt.Fprintf(&b, "# Status report: %s\n\n", repoSlug)
	fmt.Fprintf(&b, "**Status:** %s  \n", statusLabel(summary.Status))
	fmt.Fprintf(&b, "**Window:** %s to %s  \n",
		report.WindowStart.UTC().Format("2006-01-02"),
		report.WindowEnd.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "**Generated:** %s by %s\n\n",
		report.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), report.Model)

	if summary.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", summary.Summary)
	}
	writeSection(&b, "Highlights", summary.Highlights)
	writeSection(&b, "Risks", summary.Risks)
	writeSection(&b, "Next steps", summary.NextSteps)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func statusLabel(st types.ReportStatus) string {
	switch st {
	case types.StatusOnTrack:
		return "On track"
	case types.StatusAtRisk:
		return "At risk"
	case types.StatusBlocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}
