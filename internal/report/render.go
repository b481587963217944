package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/quotagen/internal/ui/theme"
)

// Render writes the human-readable report.
func Render(w io.Writer, r Report) error {
	var b strings.Builder

	b.WriteString(theme.Title.Render(fmt.Sprintf("Run %s  %s/%s", r.RunID, r.Product, r.TestMode)))
	b.WriteString("\n")

	rows := [][2]string{
		{"Attempted", fmt.Sprint(r.Attempted)},
		{"Accepted", theme.Good.Render(fmt.Sprint(r.Accepted))},
		{"Rejected", rejectedValue(r.RejectedTotal())},
		{"Service unavailable", fmt.Sprint(r.Unavailable)},
		{"Regeneration rate", fmt.Sprintf("%.1f%%", r.RegenerationRate*100)},
		{"Call efficiency", fmt.Sprintf("%.2f", r.CallEfficiency)},
		{"External calls", fmt.Sprintf("%d (%d failed)", r.ExternalCalls, r.FailedCalls)},
		{"Tokens", fmt.Sprintf("%d in / %d out", r.InputTokens, r.OutputTokens)},
		{"Estimated cost", costValue(r.EstimatedCostUSD)},
		{"Review flags", fmt.Sprint(r.ReviewFlags)},
		{"Pruned", fmt.Sprint(r.Pruned)},
	}
	var summary strings.Builder
	for i, row := range rows {
		if i > 0 {
			summary.WriteString("\n")
		}
		summary.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, theme.Label.Render(row[0]), theme.Value.Render(row[1])))
	}
	b.WriteString(theme.Card.Render(summary.String()))
	b.WriteString("\n")

	if r.RejectedTotal() > 0 {
		b.WriteString(theme.Heading.Render("Rejections"))
		b.WriteString("\n")
		for _, k := range sortedKeys(r.Rejected) {
			if r.Rejected[k] == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %s %d\n", theme.Label.Render(k), r.Rejected[k])
		}
		for _, k := range sortedKeys(r.ArtifactSeverity) {
			fmt.Fprintf(&b, "  %s %d\n", theme.Label.Render("artifact "+k), r.ArtifactSeverity[k])
		}
	}

	if len(r.Cells) > 0 {
		b.WriteString(theme.Heading.Render("Cells"))
		b.WriteString("\n")
		for _, c := range r.Cells {
			line := fmt.Sprintf("  %-48s %d/%d  +%d  (%d attempts, %d rejected)",
				c.Cell, c.Before, c.Required, c.Accepted, c.Attempted, c.Rejected)
			if c.Failed > 0 {
				line += " " + theme.Bad.Render(fmt.Sprintf("%d failed slots", c.Failed))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if len(r.SlotFailures) > 0 {
		b.WriteString(theme.Heading.Render("Slot failures"))
		b.WriteString("\n")
		for _, f := range r.SlotFailures {
			fmt.Fprintf(&b, "  %s slot %d after %d attempts: %s\n",
				f.Cell, f.Slot, f.Attempts, strings.Join(f.Reasons, ", "))
		}
	}

	if len(r.Unassigned) > 0 {
		b.WriteString(theme.Heading.Render("Unassigned records"))
		b.WriteString("\n")
		for _, u := range r.Unassigned {
			fmt.Fprintf(&b, "  %s %s\n", theme.Warn.Render(fmt.Sprint(u.Count)),
				fmt.Sprintf("%s/%s/%s", u.Section.Product, u.Section.TestMode, u.Section.Section))
		}
	}

	if len(r.PruneFindings) > 0 {
		b.WriteString(theme.Heading.Render("Prune findings"))
		b.WriteString("\n")
		for _, f := range r.PruneFindings {
			level := theme.Warn.Render(f.Level)
			if f.Level == "error" {
				level = theme.Bad.Render(f.Level)
			}
			name := f.Section.Section
			if f.SubSkill != "" {
				name += "/" + f.SubSkill
			}
			if f.Difficulty != 0 {
				name += fmt.Sprintf(" d%d", f.Difficulty)
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", level, name, f.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func rejectedValue(n int) string {
	if n == 0 {
		return theme.Good.Render("0")
	}
	return theme.Bad.Render(fmt.Sprint(n))
}

func costValue(c float64) string {
	if c < 0 {
		return theme.Hint.Render("unknown model")
	}
	return fmt.Sprintf("$%.4f", c)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
