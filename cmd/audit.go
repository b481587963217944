package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/quotagen/internal/inventory"
	"github.com/abhisek/quotagen/internal/ui/components"
	"github.com/abhisek/quotagen/internal/ui/theme"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show each cell's count against its quota without generating",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := readSelection(cmd)
		width, _ := cmd.Flags().GetInt("width")

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		cells, err := sel.cells(catalog)
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		audit, err := inventory.NewAccountant(st.Questions()).ComputeDeltas(cmd.Context(), cells)
		if err != nil {
			return fmt.Errorf("compute deltas: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderAudit(sel, audit, width))
		return nil
	},
}

func init() {
	addSelectionFlags(auditCmd)
	auditCmd.Flags().Int("width", 72, "Width of each quota bar line")
}

func renderAudit(sel selection, audit *inventory.Audit, width int) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(fmt.Sprintf("Inventory %s/%s", sel.product, sel.mode)))
	b.WriteString("\n")

	section := ""
	for _, d := range audit.Deltas {
		if d.Cell.Section != section {
			section = d.Cell.Section
			b.WriteString(theme.Heading.Render(section))
			b.WriteString("\n")
		}
		label := fmt.Sprintf("%-28s d%d", truncate(d.Cell.SubSkill, 28), d.Cell.Difficulty)
		b.WriteString("  ")
		b.WriteString(components.NewQuotaBar(label, d.Actual, d.Cell.Required, width).View())
		b.WriteString("\n")
	}

	required, actual := audit.Totals()
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s\n", theme.Label.Render("Required"), theme.Value.Render(fmt.Sprint(required)))
	fmt.Fprintf(&b, "%s%s\n", theme.Label.Render("Counted"), theme.Value.Render(fmt.Sprint(actual)))
	fmt.Fprintf(&b, "%s%s\n", theme.Label.Render("Deficit cells"), theme.Bad.Render(fmt.Sprint(len(audit.Deficits()))))
	fmt.Fprintf(&b, "%s%s\n", theme.Label.Render("Surplus cells"), theme.Warn.Render(fmt.Sprint(len(audit.Surpluses()))))

	if len(audit.Unassigned) > 0 {
		b.WriteString(theme.Heading.Render("Unassigned records"))
		b.WriteString("\n")
		for _, u := range audit.Unassigned {
			fmt.Fprintf(&b, "  %s %s\n", theme.Label.Render(u.Section.Section), theme.Warn.Render(fmt.Sprintf("%d not counted", u.Count)))
		}
	}
	return b.String()
}
