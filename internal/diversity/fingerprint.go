// Package diversity fingerprints questions and decides whether a candidate
// repeats one already in the inventory.
package diversity

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/abhisek/quotagen/internal/curriculum"
)

// Kind carries the context a fingerprint depends on.
type Kind struct {
	Category   curriculum.Category
	Vocabulary bool
}

// Polarity of a vocabulary question.
const (
	PolarityOpposite = "opposite"
	PolaritySimilar  = "similar"
)

// Fingerprint is the comparable summary of one question text. It is always
// recomputed from text and never stored.
type Fingerprint struct {
	// Normalized is the NFKC, case-folded, whitespace-collapsed text.
	Normalized string
	// Numbers is the sorted multiset of numeric literals that appear before
	// the answer choices.
	Numbers []string
	// TargetWord is the word a vocabulary question asks about.
	TargetWord string
	// Polarity is PolarityOpposite or PolaritySimilar when TargetWord is set.
	Polarity string
	// Stem is the pre-choice text with every number replaced by N.
	Stem string
}

var (
	folder = cases.Fold()

	thousandsSep = regexp.MustCompile(`(\d),(\d{3})`)
	numberLit    = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// choiceStart finds where inline answer choices begin: "(A) ", "A) ",
	// or a line starting with "A." / "A:".
	choiceStart = regexp.MustCompile(`(?m)(?:^|\s)\(?[a-e]\)\s|^\s*[a-e][.:]\s`)

	// targetPatterns are tried in order; a capture that is a function word
	// ("which", "following") does not count as a target.
	targetPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:word|term)\s*:\s*["'“‘]?([\p{L}][\p{L}'-]*)`),
		regexp.MustCompile(`\b(?:opposite|similar|synonym|antonym)s?\b[^?.!]*?\b(?:of|to|for)\s+(?:the\s+)?(?:word\s+)?["'“‘]?([\p{L}][\p{L}'-]*)`),
		regexp.MustCompile(`\b(?:meaning|definition)\s+of\s+(?:the\s+)?(?:word\s+)?["'“‘]?([\p{L}][\p{L}'-]*)`),
		regexp.MustCompile(`^["'“‘]?([\p{L}][\p{L}'-]*)["'”’]?\s+(?:is|means)\b`),
	}

	// shouted matches an all-caps item such as RAPID in the original text.
	shouted = regexp.MustCompile(`\b\p{Lu}[\p{Lu}'-]+\b`)

	functionWords = map[string]bool{
		"a": true, "an": true, "the": true, "which": true, "what": true,
		"following": true, "these": true, "this": true, "that": true,
		"each": true, "word": true, "words": true, "given": true,
		"below": true, "one": true, "it": true,
	}
)

// Compute derives the fingerprint of text. It is a pure function of its
// arguments.
func Compute(text string, kind Kind) Fingerprint {
	normalized := normalize(text)
	pre := preChoice(normalized)

	fp := Fingerprint{
		Normalized: normalized,
		Numbers:    numbers(pre),
		Stem:       stem(pre),
	}

	if kind.Vocabulary {
		fp.TargetWord, fp.Polarity = target(text, normalized)
	}
	return fp
}

// normalize applies NFKC, case folding and whitespace collapsing. Trailing
// punctuation is kept.
func normalize(text string) string {
	s := norm.NFKC.String(text)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func preChoice(normalized string) string {
	if loc := choiceStart.FindStringIndex(normalized); loc != nil && loc[0] > 0 {
		return strings.TrimSpace(normalized[:loc[0]])
	}
	return normalized
}

func numbers(s string) []string {
	s = thousandsSep.ReplaceAllString(s, "$1$2")
	raw := numberLit.FindAllString(s, -1)
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		f, err := strconv.ParseFloat(r, 64)
		if err != nil {
			out = append(out, r)
			continue
		}
		out = append(out, strconv.FormatFloat(f, 'f', -1, 64))
	}
	sort.Strings(out)
	return out
}

func stem(s string) string {
	s = thousandsSep.ReplaceAllString(s, "$1$2")
	return numberLit.ReplaceAllString(s, "N")
}

func target(text, normalized string) (word, polarity string) {
	word = targetWord(text, normalized)
	if word == "" {
		return "", ""
	}
	if strings.Contains(normalized, "opposite") || strings.Contains(normalized, "antonym") {
		return word, PolarityOpposite
	}
	return word, PolaritySimilar
}

func targetWord(text, normalized string) string {
	for _, re := range targetPatterns {
		for _, m := range re.FindAllStringSubmatch(normalized, -1) {
			if w := strings.Trim(m[1], "'-"); w != "" && !functionWords[w] {
				return w
			}
		}
	}
	for _, w := range shouted.FindAllString(norm.NFKC.String(text), -1) {
		if w = folder.String(strings.Trim(w, "'-")); !functionWords[w] {
			return w
		}
	}
	return ""
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
