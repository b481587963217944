package cmd

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/inventory"
	"github.com/abhisek/quotagen/internal/pruner"
	"github.com/abhisek/quotagen/internal/store"
	"github.com/abhisek/quotagen/internal/ui/theme"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Trim surplus questions so every section is balanced",
	Long: "prune balances each selected section: sub-skills are cut to an even share " +
		"of the section target and, within a sub-skill, the most over-full difficulty " +
		"loses records first. With --cells only records above each cell's own quota go.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := readSelection(cmd)
		cellMode, _ := cmd.Flags().GetBool("cells")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		policyName, _ := cmd.Flags().GetString("policy")
		if policyName == "" {
			policyName = appConfig.Prune.Policy
		}
		policy, err := pruner.ParsePolicy(policyName)
		if err != nil {
			return err
		}

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

		ctx := cmd.Context()
		pr := pruner.New(catalog, st.Questions(), st.EventRepo(),
			pruner.WithDryRun(dryRun || appConfig.Prune.DryRun),
			pruner.WithRunID(uuid.NewString()))

		var deltas []inventory.Delta
		if cellMode {
			audit, err := inventory.NewAccountant(st.Questions()).ComputeDeltas(ctx, cells)
			if err != nil {
				return fmt.Errorf("compute deltas: %w", err)
			}
			deltas = audit.Deltas
		}

		out := cmd.OutOrStdout()
		for _, ref := range sectionRefs(cells) {
			var plan *pruner.Plan
			if cellMode {
				plan, err = pr.PlanSurplus(ctx, ref, deltas, policy)
			} else {
				plan, err = pr.PlanSection(ctx, ref, policy)
			}
			if err != nil {
				return fmt.Errorf("plan %s: %w", ref.Section, err)
			}

			res, err := pr.Apply(ctx, plan)
			if err != nil {
				return fmt.Errorf("apply %s: %w", ref.Section, err)
			}
			printPlan(out, plan, res)
		}
		return nil
	},
}

var pruneHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent deletions made by the pruner",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := readSelection(cmd)
		limit, _ := cmd.Flags().GetInt("limit")

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

		out := cmd.OutOrStdout()
		for _, ref := range sectionRefs(cells) {
			events, err := st.EventRepo().QueryPruneEvents(cmd.Context(), ref, limit)
			if err != nil {
				return fmt.Errorf("query prune events: %w", err)
			}
			if len(events) == 0 {
				continue
			}
			fmt.Fprintln(out, theme.Heading.Render(ref.Section))
			for _, e := range events {
				fmt.Fprintf(out, "  %s  %-28s d%d  %s  %d -> %d  %s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					truncate(e.SubSkill, 28), e.Difficulty, e.Policy,
					e.CountBefore, e.CountAfter, theme.Hint.Render(e.QuestionID))
			}
		}
		return nil
	},
}

func init() {
	addSelectionFlags(pruneHistoryCmd)
	pruneHistoryCmd.Flags().IntP("limit", "n", 50, "Events per section")
	pruneCmd.AddCommand(pruneHistoryCmd)

	addSelectionFlags(pruneCmd)
	pruneCmd.Flags().String("policy", "", "Which records go first: newest or oldest (default from config)")
	pruneCmd.Flags().Bool("dry-run", false, "Print the plan without deleting anything")
	pruneCmd.Flags().Bool("cells", false, "Only remove records above each cell's own quota")
}

// sectionRefs returns the distinct sections of cells in curriculum order.
func sectionRefs(cells []curriculum.QuotaCell) []store.SectionRef {
	var out []store.SectionRef
	seen := make(map[store.SectionRef]bool)
	for _, c := range cells {
		ref := c.SectionRef()
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

func printPlan(w io.Writer, plan *pruner.Plan, res *pruner.ApplyResult) {
	fmt.Fprintln(w, theme.Heading.Render(fmt.Sprintf("%s  (target %d, policy %s)", plan.Section.Section, plan.SectionTarget, plan.Policy)))

	for _, c := range plan.Counts {
		if c.Before == c.After {
			continue
		}
		fmt.Fprintf(w, "  %-28s d%d  %d -> %d\n", truncate(c.SubSkill, 28), c.Difficulty, c.Before, c.After)
	}

	for _, f := range plan.Findings {
		style := theme.Warn
		if f.Level == pruner.LevelError {
			style = theme.Bad
		}
		name := f.SubSkill
		if name == "" {
			name = "(section)"
		}
		fmt.Fprintf(w, "  %s %s\n", style.Render(f.Level), name+": "+f.Message)
	}

	switch {
	case res.Planned == 0:
		fmt.Fprintln(w, theme.Hint.Render("  nothing to prune"))
	case res.DryRun:
		fmt.Fprintln(w, theme.Hint.Render(fmt.Sprintf("  dry run: %d records would be removed", res.Planned)))
	default:
		fmt.Fprintln(w, theme.Good.Render(fmt.Sprintf("  removed %d of %d planned", res.Deleted, res.Planned)))
	}
}
