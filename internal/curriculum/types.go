package curriculum

import (
	"fmt"
	"strings"

	"github.com/abhisek/quotagen/internal/store"
)

// Difficulty is one level of the fixed difficulty enumeration.
type Difficulty int

const (
	DifficultyFoundation Difficulty = 1
	DifficultyStandard   Difficulty = 2
	DifficultyChallenge  Difficulty = 3
)

// Difficulties returns the enumeration in ascending order.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyFoundation, DifficultyStandard, DifficultyChallenge}
}

// Valid reports whether d belongs to the enumeration.
func (d Difficulty) Valid() bool {
	return d >= DifficultyFoundation && d <= DifficultyChallenge
}

func (d Difficulty) String() string {
	switch d {
	case DifficultyFoundation:
		return "foundation"
	case DifficultyStandard:
		return "standard"
	case DifficultyChallenge:
		return "challenge"
	default:
		return fmt.Sprintf("difficulty(%d)", int(d))
	}
}

// defaultBands describe each difficulty when a curriculum file leaves one out.
var defaultBands = map[Difficulty]string{
	DifficultyFoundation: "Single-step problems using one familiar idea; most students in the cohort answer correctly.",
	DifficultyStandard:   "Two or three steps, or one step with a distractor that punishes a common misconception.",
	DifficultyChallenge:  "Multi-step reasoning that combines ideas; only strong students answer correctly under time pressure.",
}

// Category is the fixed variant set sections are classified into.
type Category string

const (
	CategoryQuantitative Category = "quantitative"
	CategoryVerbal       Category = "verbal"
	CategoryReading      Category = "reading"
	CategoryWriting      Category = "writing"
)

// AllCategories returns every category in display order.
func AllCategories() []Category {
	return []Category{CategoryQuantitative, CategoryVerbal, CategoryReading, CategoryWriting}
}

// Visual describes whether a sub-skill's questions must carry a diagram,
// chart or pattern.
type Visual struct {
	Required bool   `yaml:"required"`
	Kind     string `yaml:"kind"`
}

// Visual kinds a sub-skill may require.
var visualKinds = map[string]bool{
	"diagram": true,
	"chart":   true,
	"pattern": true,
}

// SubSkill is one curriculum sub-skill with its per-difficulty quota.
type SubSkill struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Examples    []string           `yaml:"examples"`
	Visual      Visual             `yaml:"visual"`
	Family      string             `yaml:"family"`
	Quota       map[Difficulty]int `yaml:"quota"`
}

// Total returns the sub-skill's quota summed over all difficulties.
func (s SubSkill) Total() int {
	n := 0
	for _, d := range Difficulties() {
		n += s.Quota[d]
	}
	return n
}

var vocabularyKeywords = []string{"vocabulary", "synonym", "antonym", "word meaning"}

// IsVocabulary reports whether the sub-skill belongs to the vocabulary
// family, which switches on the target-word duplicate rule.
func IsVocabulary(s SubSkill) bool {
	if s.Family != "" {
		return strings.EqualFold(s.Family, "vocabulary")
	}
	name := strings.ToLower(s.Name)
	for _, kw := range vocabularyKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// Section groups the sub-skills of one test section in curriculum order.
type Section struct {
	Name      string     `yaml:"name"`
	SubSkills []SubSkill `yaml:"sub_skills"`
}

// Target returns the section's total quota.
func (s Section) Target() int {
	n := 0
	for _, sk := range s.SubSkills {
		n += sk.Total()
	}
	return n
}

// SubSkill looks a sub-skill up by name.
func (s Section) SubSkill(name string) (SubSkill, bool) {
	for _, sk := range s.SubSkills {
		if sk.Name == name {
			return sk, true
		}
	}
	return SubSkill{}, false
}

// Mode is one test mode of a product, e.g. practice_1.
type Mode struct {
	Name     string    `yaml:"name"`
	Sections []Section `yaml:"sections"`
}

// CellKey identifies one quota cell.
type CellKey struct {
	Product    string
	TestMode   string
	Section    string
	SubSkill   string
	Difficulty Difficulty
}

// Ref converts the key into a store address.
func (k CellKey) Ref() store.CellRef {
	return store.CellRef{
		Product:    k.Product,
		TestMode:   k.TestMode,
		Section:    k.Section,
		SubSkill:   k.SubSkill,
		Difficulty: int(k.Difficulty),
	}
}

// SectionRef returns the store address of the cell's section.
func (k CellKey) SectionRef() store.SectionRef {
	return store.SectionRef{Product: k.Product, TestMode: k.TestMode, Section: k.Section}
}

func (k CellKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%d", k.Product, k.TestMode, k.Section, k.SubSkill, k.Difficulty)
}

// QuotaCell is a cell with its required count. Immutable during a run.
type QuotaCell struct {
	CellKey
	Required int
}
