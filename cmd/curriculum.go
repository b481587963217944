package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/ui/theme"
)

var curriculumCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "List loaded products, sections and quotas",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		only, _ := cmd.Flags().GetString("product")

		out := cmd.OutOrStdout()
		for _, name := range catalog.Products() {
			if only != "" && name != only {
				continue
			}
			c, err := catalog.Get(name)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, theme.Title.Render(fmt.Sprintf("%s %s", c.Product, c.Version)))
			for _, m := range c.Modes {
				fmt.Fprintln(out, theme.Heading.Render(m.Name))
				for _, s := range m.Sections {
					cl := curriculum.Classify(s.Name)
					fmt.Fprintf(out, "  %s  %s\n",
						theme.Value.Render(s.Name),
						theme.Hint.Render(fmt.Sprintf("%s (%s), target %d", cl.Category, cl.Method, s.Target())))
					for _, sk := range s.SubSkills {
						extra := ""
						if sk.Visual.Required {
							extra = "  visual: " + sk.Visual.Kind
						}
						if curriculum.IsVocabulary(sk) {
							extra += "  vocabulary"
						}
						fmt.Fprintf(out, "    %-32s %2d %2d %2d%s\n", truncate(sk.Name, 32),
							sk.Quota[curriculum.DifficultyFoundation],
							sk.Quota[curriculum.DifficultyStandard],
							sk.Quota[curriculum.DifficultyChallenge],
							extra)
					}
				}
			}
		}
		return nil
	},
}

func init() {
	curriculumCmd.Flags().StringP("product", "p", "", "Only show this product")
}
