package generator

import (
	"strings"
	"text/template"
)

const systemPrompt = `You write multiple-choice questions for a standardized admissions test.

Rules:
- Write exactly one question for the given section, sub-skill and difficulty.
- The question must be self-contained and answerable from its text (and visual, if any).
- Give 4 or 5 distinct options without letter prefixes. Exactly one option is correct.
- Distractors should reflect common mistakes, not random values.
- correct_answer is the letter of the correct option: A for the first option, B for the second, and so on.
- solution_text is the final, clean worked solution. Never include drafts, self-corrections or re-checks.
- When a visual is required, describe it precisely in the visual object. Otherwise set visual.kind to "none".
- Do not repeat or lightly rephrase anything in the avoid list.`

var userTemplate = template.Must(template.New("user").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Product: {{.Cell.Product}} ({{.Cell.TestMode}})
Section: {{.Cell.Section}} ({{.Category}})
Sub-skill: {{.SubSkill.Name}}
Description: {{.SubSkill.Description}}
Difficulty: {{printf "%d" .Cell.Difficulty}} ({{.Cell.Difficulty.String}}) - {{.DifficultyBand}}
{{- if .SubSkill.Examples}}

Worked examples of this sub-skill:
{{- range $i, $e := .SubSkill.Examples}}
{{inc $i}}. {{$e}}
{{- end}}
{{- end}}

Visual required: {{if .SubSkill.Visual.Required}}yes ({{or .SubSkill.Visual.Kind "any"}}){{else}}no{{end}}
{{- if .Avoid}}

{{.Avoid}}
{{- end}}
{{- if .Prior}}

Drafts already rejected for this question, do not reproduce them:
{{- range $i, $p := .Prior}}
{{inc $i}}. {{$p}}
{{- end}}
{{- end}}
`))

type promptData struct {
	Input
	Avoid string
	Prior []string
}

// buildUserMessage renders the request for one candidate.
func buildUserMessage(input Input, cfg Config) (string, error) {
	data := promptData{Input: input, Prior: input.PriorTexts}
	if input.Exclusions != nil {
		data.Avoid = strings.TrimRight(input.Exclusions.Describe(cfg.MaxExclusions), "\n")
	}
	if cfg.MaxPriorTexts > 0 && len(data.Prior) > cfg.MaxPriorTexts {
		data.Prior = data.Prior[len(data.Prior)-cfg.MaxPriorTexts:]
	}

	var b strings.Builder
	if err := userTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
