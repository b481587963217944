package diversity

import (
	"fmt"
	"strings"
)

// Set is the exclusion set of one task: fingerprints of existing records plus
// candidates accepted earlier in the same task. It is not safe for concurrent
// use and must not be shared between tasks.
type Set struct {
	kind Kind
	fps  []Fingerprint
}

// NewSet creates an empty set for the given kind.
func NewSet(kind Kind) *Set {
	return &Set{kind: kind}
}

// Kind returns the kind the set fingerprints with.
func (s *Set) Kind() Kind {
	return s.kind
}

// Add fingerprints text and appends it.
func (s *Set) Add(text string) Fingerprint {
	fp := Compute(text, s.kind)
	s.fps = append(s.fps, fp)
	return fp
}

// All returns the fingerprints in insertion order.
func (s *Set) All() []Fingerprint {
	return s.fps
}

// Len returns the number of fingerprints.
func (s *Set) Len() int {
	return len(s.fps)
}

const topicRunes = 60

// Describe renders a compact hint listing up to limit of the most recent
// entries: target words for vocabulary, operands and topic otherwise.
func (s *Set) Describe(limit int) string {
	if len(s.fps) == 0 || limit <= 0 {
		return ""
	}

	start := len(s.fps) - limit
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	b.WriteString("Avoid repeating these existing questions (topics, operands, target words):\n")
	seen := make(map[string]bool)
	for i := len(s.fps) - 1; i >= start; i-- {
		line := describeOne(s.fps[i])
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func describeOne(fp Fingerprint) string {
	var parts []string
	if fp.TargetWord != "" {
		parts = append(parts, fmt.Sprintf("target word %q (%s)", fp.TargetWord, fp.Polarity))
	} else {
		topic := []rune(fp.Stem)
		if len(topic) > topicRunes {
			topic = append(topic[:topicRunes], '…')
		}
		if len(topic) > 0 {
			parts = append(parts, fmt.Sprintf("topic %q", string(topic)))
		}
	}
	if len(fp.Numbers) >= 2 {
		parts = append(parts, "operands "+strings.Join(fp.Numbers, ", "))
	}
	return strings.Join(parts, "; ")
}
