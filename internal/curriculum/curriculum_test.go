package curriculum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Testdata(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "productx.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "productX", c.Product)
	assert.Equal(t, "v1.1.0", c.Version)
	assert.Equal(t, "Two steps with one distractor.", c.Band(DifficultyStandard))

	sec, ok := c.Section("practice_1", "Mathematics")
	require.True(t, ok)
	assert.Equal(t, 38, sec.Target())

	geo, ok := sec.SubSkill("Geometry")
	require.True(t, ok)
	assert.True(t, geo.Visual.Required)
	assert.Equal(t, "diagram", geo.Visual.Kind)
}

func TestCells_CurriculumOrder(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "productx.yaml"))
	require.NoError(t, err)

	cells, err := c.Cells("practice_1")
	require.NoError(t, err)
	require.Len(t, cells, 15)

	assert.Equal(t, CellKey{Product: "productX", TestMode: "practice_1", Section: "Mathematics", SubSkill: "Algebra", Difficulty: 1}, cells[0].CellKey)
	assert.Equal(t, 10, cells[0].Required)
	assert.Equal(t, Difficulty(3), cells[2].Difficulty)
	assert.Equal(t, "Geometry", cells[3].SubSkill)
	assert.Equal(t, "Verbal Reasoning", cells[6].Section)
	assert.Equal(t, "Main Idea", cells[14].SubSkill)

	_, err = c.Cells("practice_9")
	assert.Error(t, err)
}

func TestParse_DefaultBandsAndVersion(t *testing.T) {
	c, err := Parse([]byte(`
product: p
modes:
  - name: m
    sections:
      - name: Writing
        sub_skills:
          - name: Persuasive
            quota: {1: 0, 2: 1, 3: 0}
`))
	require.NoError(t, err)
	assert.Equal(t, "v0.0.0", c.Version)
	for _, d := range Difficulties() {
		assert.NotEmpty(t, c.Band(d))
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
product: p
version: not-a-version
modes:
  - name: m
    sections:
      - name: Mathematics
        sub_skills:
          - name: Algebra
            quota: {1: 1, 2: -2}
          - name: Algebra
            quota: {1: 1, 2: 1, 3: 1, 4: 1}
          - name: Charts
            visual: {required: true, kind: video}
            quota: {1: 1, 2: 1, 3: 1}
      - name: Mathematics
        sub_skills: []
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid version")
	assert.Contains(t, msg, "missing quota for difficulty 3")
	assert.Contains(t, msg, "negative quota -2")
	assert.Contains(t, msg, `duplicate sub-skill "Algebra"`)
	assert.Contains(t, msg, "unknown difficulty 4")
	assert.Contains(t, msg, "visual kind")
	assert.Contains(t, msg, "duplicate section")
	assert.Contains(t, msg, "section has no sub-skills")
}

func TestLoadDir_HighestVersionWins(t *testing.T) {
	cat, err := LoadDir("testdata")
	require.NoError(t, err)

	assert.Equal(t, []string{"productX"}, cat.Products())
	c, err := cat.Get("productX")
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", c.Version)

	cells, err := cat.Cells("productX", "practice_1")
	require.NoError(t, err)
	assert.Len(t, cells, 15)

	_, err = cat.Get("productY")
	assert.Error(t, err)
}

func TestLoadPath_SingleFileAndEmptyDir(t *testing.T) {
	cat, err := LoadPath(filepath.Join("testdata", "productx_old.yaml"))
	require.NoError(t, err)
	c, err := cat.Get("productX")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", c.Version)

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "notes.txt"), []byte("x"), 0o644))
	_, err = LoadPath(empty)
	assert.Error(t, err)
}

func TestIsVocabulary(t *testing.T) {
	tests := []struct {
		skill SubSkill
		want  bool
	}{
		{SubSkill{Name: "Vocabulary & Semantic Knowledge"}, true},
		{SubSkill{Name: "Synonyms and Antonyms"}, true},
		{SubSkill{Name: "Word Meaning in Context"}, true},
		{SubSkill{Name: "Logical Deduction"}, false},
		{SubSkill{Name: "Word Puzzles", Family: "logic"}, false},
		{SubSkill{Name: "Odd One Out", Family: "Vocabulary"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsVocabulary(tt.skill), tt.skill.Name)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		section string
		want    Classification
	}{
		{"Mathematics", Classification{CategoryQuantitative, MethodExact}},
		{"  Reading   Comprehension ", Classification{CategoryReading, MethodExact}},
		{"Verbal Reasoning", Classification{CategoryVerbal, MethodExact}},
		{"Written Expression", Classification{CategoryWriting, MethodExact}},
		{"Applied Maths Skills", Classification{CategoryQuantitative, MethodFallback}},
		{"Passage Analysis", Classification{CategoryReading, MethodFallback}},
		{"Spelling Bee", Classification{CategoryWriting, MethodFallback}},
		{"Abstract Patterns", Classification{CategoryVerbal, MethodDefault}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.section), tt.section)
	}
}

func TestDifficulty(t *testing.T) {
	assert.True(t, DifficultyChallenge.Valid())
	assert.False(t, Difficulty(0).Valid())
	assert.Equal(t, "standard", DifficultyStandard.String())
	assert.Equal(t, "difficulty(7)", Difficulty(7).String())
}
