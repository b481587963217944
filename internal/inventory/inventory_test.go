package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cell(subSkill string, d curriculum.Difficulty, required int) curriculum.QuotaCell {
	return curriculum.QuotaCell{
		CellKey: curriculum.CellKey{
			Product: "productx", TestMode: "practice_1", Section: "Mathematics",
			SubSkill: subSkill, Difficulty: d,
		},
		Required: required,
	}
}

func insert(t *testing.T, repo store.QuestionRepo, ref store.CellRef, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Insert(context.Background(), &store.QuestionRecord{
			ID:            uuid.NewString(),
			Product:       ref.Product,
			TestMode:      ref.TestMode,
			Section:       ref.Section,
			SubSkill:      ref.SubSkill,
			Difficulty:    ref.Difficulty,
			QuestionText:  "q " + uuid.NewString(),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: "A",
			SolutionText:  "s",
			CreatedAt:     time.Now(),
		}))
	}
}

func TestComputeDeltas(t *testing.T) {
	s := openStore(t)
	repo := s.Questions()

	cells := []curriculum.QuotaCell{
		cell("Algebra", curriculum.DifficultyFoundation, 10),
		cell("Algebra", curriculum.DifficultyStandard, 2),
		cell("Geometry", curriculum.DifficultyFoundation, 3),
	}
	insert(t, repo, cells[0].Ref(), 7)
	insert(t, repo, cells[1].Ref(), 5)
	insert(t, repo, cells[2].Ref(), 3)

	audit, err := NewAccountant(repo).ComputeDeltas(context.Background(), cells)
	require.NoError(t, err)
	require.Len(t, audit.Deltas, 3)

	assert.Equal(t, 7, audit.Deltas[0].Actual)
	assert.Equal(t, 3, audit.Deltas[0].Delta)
	assert.Equal(t, -3, audit.Deltas[1].Delta)
	assert.Equal(t, 0, audit.Deltas[2].Delta)

	require.Len(t, audit.Deficits(), 1)
	assert.Equal(t, "Algebra", audit.Deficits()[0].Cell.SubSkill)
	require.Len(t, audit.Surpluses(), 1)
	assert.Equal(t, curriculum.DifficultyStandard, audit.Surpluses()[0].Cell.Difficulty)

	required, actual := audit.Totals()
	assert.Equal(t, 15, required)
	assert.Equal(t, 15, actual)
	assert.Empty(t, audit.Unassigned)
}

func TestComputeDeltas_Unassigned(t *testing.T) {
	s := openStore(t)
	repo := s.Questions()

	c := cell("Algebra", curriculum.DifficultyFoundation, 2)
	insert(t, repo, c.Ref(), 1)

	noSkill := c.Ref()
	noSkill.SubSkill = ""
	insert(t, repo, noSkill, 2)

	noDifficulty := c.Ref()
	noDifficulty.Difficulty = 0
	insert(t, repo, noDifficulty, 1)

	audit, err := NewAccountant(repo).ComputeDeltas(context.Background(), []curriculum.QuotaCell{
		c, cell("Algebra", curriculum.DifficultyStandard, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, audit.Deltas[0].Actual)
	assert.Equal(t, 1, audit.Deltas[0].Delta)

	require.Len(t, audit.Unassigned, 1)
	assert.Equal(t, 3, audit.Unassigned[0].Count)
	assert.Equal(t, "Mathematics", audit.Unassigned[0].Section.Section)
}

func TestComputeDeltas_ReadsFresh(t *testing.T) {
	s := openStore(t)
	repo := s.Questions()
	acct := NewAccountant(repo)
	c := cell("Algebra", curriculum.DifficultyFoundation, 2)

	d, err := acct.CellDelta(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Delta)

	insert(t, repo, c.Ref(), 2)

	d, err = acct.CellDelta(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Delta)
}
