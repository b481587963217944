package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quotagen/internal/config"
	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/validation"
)

// addSelectionFlags registers the product / mode / section selectors.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("product", "p", "", "Product to operate on (required)")
	cmd.Flags().StringP("mode", "m", "practice_1", "Test mode")
	cmd.Flags().StringSliceP("section", "s", nil, "Restrict to these sections (repeatable)")
	_ = cmd.MarkFlagRequired("product")
}

type selection struct {
	product  string
	mode     string
	sections []string
}

func readSelection(cmd *cobra.Command) selection {
	product, _ := cmd.Flags().GetString("product")
	mode, _ := cmd.Flags().GetString("mode")
	sections, _ := cmd.Flags().GetStringSlice("section")
	return selection{product: product, mode: mode, sections: sections}
}

// cells returns the selected quota cells in curriculum order.
func (s selection) cells(cat *curriculum.Catalog) ([]curriculum.QuotaCell, error) {
	all, err := cat.Cells(s.product, s.mode)
	if err != nil {
		return nil, err
	}
	if len(s.sections) == 0 {
		return all, nil
	}
	keep := make(map[string]bool, len(s.sections))
	for _, name := range s.sections {
		keep[name] = true
	}
	var out []curriculum.QuotaCell
	for _, c := range all {
		if keep[c.Section] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no cells match sections %v in %s/%s", s.sections, s.product, s.mode)
	}
	return out, nil
}

func artifactMarkers(markers []config.MarkerConfig) []validation.Marker {
	out := make([]validation.Marker, len(markers))
	for i, m := range markers {
		out[i] = validation.Marker{Phrase: m.Phrase, Severity: m.Severity}
	}
	return out
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}
