package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/diversity"
	"github.com/abhisek/quotagen/internal/generator"
	"github.com/abhisek/quotagen/internal/inventory"
	"github.com/abhisek/quotagen/internal/orchestrator"
	"github.com/abhisek/quotagen/internal/pruner"
	"github.com/abhisek/quotagen/internal/report"
	"github.com/abhisek/quotagen/internal/store"
	"github.com/abhisek/quotagen/internal/validation"
)

const testCurriculum = `
product: productx
version: 1.0.0
modes:
  - name: practice_1
    sections:
      - name: Mathematics
        sub_skills:
          - name: Algebra
            quota: {1: 2, 2: 1, 3: 0}
      - name: Reading Comprehension
        sub_skills:
          - name: Main Idea
            quota: {1: 1, 2: 0, 3: 0}
`

// uniqueGenerator returns a distinct, valid candidate on every call.
type uniqueGenerator struct {
	calls atomic.Int64
}

func (g *uniqueGenerator) Generate(ctx context.Context, in generator.Input) (*generator.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &generator.GenerationFailure{Reason: generator.ReasonUnavailable, Err: err}
	}
	n := g.calls.Add(1)
	return &generator.Candidate{
		QuestionText:  fmt.Sprintf("Question %d for %s, difficulty %s?", n, in.Cell.SubSkill, in.Cell.Difficulty),
		Options:       []string{"w", "x", "y", "z"},
		CorrectAnswer: "A",
		Solution:      "The first option is correct.",
		Attempt:       in.Attempt,
		Cell:          in.Cell,
	}, nil
}

type agreeingOracle struct{}

func (agreeingOracle) Answer(context.Context, validation.Question) (string, error) { return "A", nil }

type fixture struct {
	store   *store.Store
	catalog *curriculum.Catalog
	gen     *uniqueGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c, err := curriculum.Parse([]byte(testCurriculum))
	require.NoError(t, err)

	return &fixture{store: s, catalog: curriculum.NewCatalog(c), gen: &uniqueGenerator{}}
}

// run wires a runner whose orchestrator reports into a fresh Stats.
func (f *fixture) run(ctx context.Context, opts Options) (*report.Stats, error) {
	stats := report.NewStats(opts.RunID, opts.Product, opts.TestMode)
	pipe := validation.New(
		validation.NewArtifactScanner(nil),
		validation.NewAnswerVerifier(agreeingOracle{}),
		validation.NewDuplicateChecker(diversity.NewGuard(0, 0)),
	)
	orch := orchestrator.New(f.gen, pipe, f.store.Questions(), stats, orchestrator.Config{MaxAttempts: 3})
	r := NewRunner(f.catalog, inventory.NewAccountant(f.store.Questions()), orch,
		pruner.New(f.catalog, f.store.Questions(), f.store.EventRepo()), 2)
	return stats, r.Run(ctx, opts, stats)
}

func (f *fixture) count(t *testing.T, section, subSkill string, d int) int {
	t.Helper()
	n, err := f.store.Questions().CountCell(context.Background(), store.CellRef{
		Product: "productx", TestMode: "practice_1", Section: section, SubSkill: subSkill, Difficulty: d,
	})
	require.NoError(t, err)
	return n
}

func (f *fixture) seed(t *testing.T, section, subSkill string, d, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.store.Questions().Insert(context.Background(), &store.QuestionRecord{
			ID: uuid.NewString(), Product: "productx", TestMode: "practice_1", Section: section,
			SubSkill: subSkill, Difficulty: d, QuestionText: "seed " + uuid.NewString(),
			Options: []string{"w", "x", "y", "z"}, CorrectAnswer: "A", SolutionText: "s",
			CreatedAt: time.Now(),
		}))
	}
}

func baseOptions() Options {
	return Options{RunID: "run-1", Product: "productx", TestMode: "practice_1", Fill: true, Policy: pruner.PolicyNewest}
}

func TestRun_FillsEveryCell(t *testing.T) {
	f := newFixture(t)

	stats, err := f.run(context.Background(), baseOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, f.count(t, "Mathematics", "Algebra", 1))
	assert.Equal(t, 1, f.count(t, "Mathematics", "Algebra", 2))
	assert.Equal(t, 0, f.count(t, "Mathematics", "Algebra", 3))
	assert.Equal(t, 1, f.count(t, "Reading Comprehension", "Main Idea", 1))

	r := report.Summarize(stats)
	assert.Equal(t, 4, r.Attempted)
	assert.Equal(t, 4, r.Accepted)
	assert.Zero(t, r.Regenerated)
	assert.Len(t, r.Cells, 6)
	assert.EqualValues(t, 4, f.gen.calls.Load())
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(context.Background(), baseOptions())
	require.NoError(t, err)
	calls := f.gen.calls.Load()

	stats, err := f.run(context.Background(), baseOptions())
	require.NoError(t, err)

	assert.Equal(t, calls, f.gen.calls.Load())
	assert.Zero(t, report.Summarize(stats).Attempted)
}

func TestRun_SectionFilter(t *testing.T) {
	f := newFixture(t)
	opts := baseOptions()
	opts.Sections = []string{"Reading Comprehension"}

	_, err := f.run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 0, f.count(t, "Mathematics", "Algebra", 1))
	assert.Equal(t, 1, f.count(t, "Reading Comprehension", "Main Idea", 1))
}

func TestRun_AuditOnly(t *testing.T) {
	f := newFixture(t)
	opts := baseOptions()
	opts.Fill = false

	stats, err := f.run(context.Background(), opts)
	require.NoError(t, err)

	assert.Zero(t, f.gen.calls.Load())
	r := report.Summarize(stats)
	require.Len(t, r.Cells, 6)
	required := 0
	for _, c := range r.Cells {
		required += c.Required
		assert.Zero(t, c.Before)
	}
	assert.Equal(t, 4, required)
}

func TestRun_PrunesBeforeFill(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Mathematics", "Algebra", 1, 5)
	f.seed(t, "Mathematics", "", 0, 2)

	opts := baseOptions()
	opts.Prune = true
	stats, err := f.run(context.Background(), opts)
	require.NoError(t, err)

	// Algebra target 3 splits [1,1,1]; two surplus records go from
	// difficulty 1, leaving it above its quota of 2 so it is not filled.
	assert.Equal(t, 3, f.count(t, "Mathematics", "Algebra", 1))
	assert.Equal(t, 1, f.count(t, "Mathematics", "Algebra", 2))

	r := report.Summarize(stats)
	assert.Equal(t, 2, r.Pruned)
	require.Len(t, r.Unassigned, 1)
	assert.Equal(t, 2, r.Unassigned[0].Count)
	require.NotEmpty(t, r.PruneFindings)
	assert.Equal(t, pruner.LevelWarn, r.PruneFindings[0].Level)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.run(ctx, baseOptions())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.gen.calls.Load())
}

func TestRun_UnknownSelection(t *testing.T) {
	f := newFixture(t)

	opts := baseOptions()
	opts.Product = "producty"
	_, err := f.run(context.Background(), opts)
	assert.Error(t, err)

	opts = baseOptions()
	opts.TestMode = "practice_9"
	_, err = f.run(context.Background(), opts)
	assert.Error(t, err)

	opts = baseOptions()
	opts.Sections = []string{"Art"}
	_, err = f.run(context.Background(), opts)
	assert.Error(t, err)
}

func TestGroupBySection(t *testing.T) {
	c, err := curriculum.Parse([]byte(testCurriculum))
	require.NoError(t, err)
	cells, err := c.Cells("practice_1")
	require.NoError(t, err)

	groups := groupBySection(cells)
	require.Len(t, groups, 2)
	assert.Equal(t, "Mathematics", groups[0].ref.Section)
	assert.Equal(t, curriculum.CategoryQuantitative, groups[0].class.Category)
	assert.Len(t, groups[0].cells, 3)
	assert.Equal(t, curriculum.CategoryReading, groups[1].class.Category)
}
