package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/llm"
	"github.com/abhisek/quotagen/internal/store"
	"github.com/abhisek/quotagen/internal/ui/theme"
	"github.com/abhisek/quotagen/internal/validation"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-check stored answers with the independent solver",
	Long: "verify asks the verification model to solve persisted questions again and " +
		"lists every record whose stored answer it does not confirm.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := readSelection(cmd)
		subSkill, _ := cmd.Flags().GetString("sub-skill")
		difficulty, _ := cmd.Flags().GetInt("difficulty")
		del, _ := cmd.Flags().GetBool("delete")

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
		var recs []store.QuestionRecord
		for _, c := range cells {
			if subSkill != "" && c.SubSkill != subSkill {
				continue
			}
			if difficulty != 0 && int(c.Difficulty) != difficulty {
				continue
			}
			got, err := st.Questions().ListCell(ctx, c.Ref())
			if err != nil {
				return fmt.Errorf("list %s: %w", c.CellKey, err)
			}
			recs = append(recs, got...)
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored questions match.")
			return nil
		}

		provider, err := llm.NewProvider(ctx, appConfig.VerifierLLM(), st.EventRepo(), nil)
		if err != nil {
			return fmt.Errorf("verification provider: %w", err)
		}
		verifier := validation.NewAnswerVerifier(validation.NewLLMOracle(provider, appConfig.Verifier.MaxTokens, appConfig.Verifier.Temperature))

		disagreements := validation.Reverify(ctx, verifier, recs)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render(fmt.Sprintf("Checked %d questions, %d not confirmed", len(recs), len(disagreements))))
		ids := make([]string, 0, len(disagreements))
		for _, d := range disagreements {
			ids = append(ids, d.ID)
			fmt.Fprintf(out, "%s  stored %s\n", theme.Value.Render(d.ID), d.Stored)
			fmt.Fprintf(out, "  %s\n", theme.Hint.Render(truncate(d.Question, 100)))
			for _, f := range d.Findings {
				fmt.Fprintf(out, "  %s %s\n", theme.Bad.Render(f.Code), f.Detail)
			}
		}

		if !del || len(ids) == 0 {
			return ctx.Err()
		}
		n, err := st.Questions().Delete(ctx, ids...)
		if err != nil {
			return fmt.Errorf("delete disagreeing questions: %w", err)
		}
		zap.L().Info("Deleted unconfirmed questions", zap.Int("count", n))
		fmt.Fprintln(out, theme.Good.Render(fmt.Sprintf("Deleted %d questions", n)))
		return nil
	},
}

func init() {
	addSelectionFlags(verifyCmd)
	verifyCmd.Flags().String("sub-skill", "", "Only check this sub-skill")
	verifyCmd.Flags().Int("difficulty", 0, "Only check this difficulty (1-3)")
	verifyCmd.Flags().Bool("delete", false, "Delete questions whose answer is not confirmed")
}
