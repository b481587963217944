package generator

import "strings"

// OptionLetter returns the letter of option i: A, B, C...
func OptionLetter(i int) string {
	return string(rune('A' + i))
}

// ResolveAnswer maps an answer given as an option letter ("B", "(B)", "B)")
// or as option text to the index of exactly one option.
func ResolveAnswer(options []string, answer string) (int, bool) {
	a := strings.TrimSpace(answer)
	if a == "" {
		return -1, false
	}

	if letter, ok := parseLetter(a); ok {
		idx := int(letter - 'A')
		if idx >= 0 && idx < len(options) {
			return idx, true
		}
		return -1, false
	}

	found := -1
	for i, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), a) {
			if found >= 0 {
				return -1, false
			}
			found = i
		}
	}
	return found, found >= 0
}

func parseLetter(a string) (rune, bool) {
	s := strings.TrimSuffix(strings.TrimPrefix(a, "("), ")")
	s = strings.TrimSuffix(s, ".")
	if len(s) != 1 {
		return 0, false
	}
	r := rune(strings.ToUpper(s)[0])
	if r < 'A' || r > 'E' {
		return 0, false
	}
	return r, true
}
