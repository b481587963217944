package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/rotisserie/eris"
)

var questionColumns = []string{
	"id", "product", "test_mode", "section", "sub_skill", "difficulty",
	"question_text", "answer_options", "correct_answer", "solution_text",
	"visual", "run_id", "created_at",
}

// questionRepo implements QuestionRepo with the ent SQL builder so the same
// code runs against SQLite and Postgres.
type questionRepo struct {
	db      *sql.DB
	dialect string
}

func sectionPredicate(s SectionRef) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("product", s.Product),
		entsql.EQ("test_mode", s.TestMode),
		entsql.EQ("section", s.Section),
	)
}

// assignedPredicate matches rows that carry both a sub-skill and a difficulty.
func assignedPredicate() *entsql.Predicate {
	return entsql.And(
		entsql.NotNull("sub_skill"),
		entsql.NEQ("sub_skill", ""),
		entsql.NotNull("difficulty"),
		entsql.GT("difficulty", 0),
	)
}

func unassignedPredicate() *entsql.Predicate {
	return entsql.Or(
		entsql.IsNull("sub_skill"),
		entsql.EQ("sub_skill", ""),
		entsql.IsNull("difficulty"),
		entsql.LTE("difficulty", 0),
	)
}

func cellPredicate(c CellRef) *entsql.Predicate {
	return entsql.And(
		sectionPredicate(c.SectionRef()),
		entsql.EQ("sub_skill", c.SubSkill),
		entsql.EQ("difficulty", c.Difficulty),
	)
}

func (r *questionRepo) count(ctx context.Context, pred *entsql.Predicate) (int, error) {
	b := builder(r.dialect)
	query, args := b.Select(entsql.Count("*")).
		From(b.Table(tableQuestions)).
		Where(pred).
		Query()

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "count questions")
	}
	return n, nil
}

func (r *questionRepo) CountCell(ctx context.Context, cell CellRef) (int, error) {
	if cell.SubSkill == "" || cell.Difficulty <= 0 {
		return 0, eris.Errorf("cell %s/%s/%s has no sub-skill or difficulty", cell.Product, cell.TestMode, cell.Section)
	}
	return r.count(ctx, cellPredicate(cell))
}

func (r *questionRepo) CountUnassigned(ctx context.Context, section SectionRef) (int, error) {
	return r.count(ctx, entsql.And(sectionPredicate(section), unassignedPredicate()))
}

func (r *questionRepo) list(ctx context.Context, pred *entsql.Predicate, limit int) ([]QuestionRecord, error) {
	b := builder(r.dialect)
	sel := b.Select(questionColumns...).
		From(b.Table(tableQuestions)).
		Where(pred).
		OrderBy("created_at", "id")
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query questions")
	}
	defer rows.Close()

	var out []QuestionRecord
	for rows.Next() {
		rec, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate questions")
	}
	return out, nil
}

func (r *questionRepo) ListCell(ctx context.Context, cell CellRef) ([]QuestionRecord, error) {
	return r.list(ctx, cellPredicate(cell), 0)
}

func (r *questionRepo) ListSubSkill(ctx context.Context, section SectionRef, subSkill string) ([]QuestionRecord, error) {
	return r.list(ctx, entsql.And(
		sectionPredicate(section),
		entsql.EQ("sub_skill", subSkill),
		assignedPredicate(),
	), 0)
}

func (r *questionRepo) ListSection(ctx context.Context, section SectionRef) ([]QuestionRecord, error) {
	return r.list(ctx, sectionPredicate(section), 0)
}

func (r *questionRepo) Get(ctx context.Context, id string) (*QuestionRecord, error) {
	recs, err := r.list(ctx, entsql.EQ("id", id), 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (r *questionRepo) Insert(ctx context.Context, rec *QuestionRecord) error {
	if rec.ID == "" {
		return eris.New("question id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	options, err := json.Marshal(rec.Options)
	if err != nil {
		return eris.Wrap(err, "marshal answer options")
	}

	var subSkill, difficulty, visual any
	if rec.SubSkill != "" {
		subSkill = rec.SubSkill
	}
	if rec.Difficulty > 0 {
		difficulty = rec.Difficulty
	}
	if len(rec.Visual) > 0 {
		visual = string(rec.Visual)
	}

	query, args := builder(r.dialect).Insert(tableQuestions).
		Columns(questionColumns...).
		Values(
			rec.ID, rec.Product, rec.TestMode, rec.Section, subSkill, difficulty,
			rec.QuestionText, string(options), rec.CorrectAnswer, rec.SolutionText,
			visual, rec.RunID, rec.CreatedAt,
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "insert question %s", rec.ID)
	}
	return nil
}

func (r *questionRepo) Delete(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query, qargs := builder(r.dialect).Delete(tableQuestions).
		Where(entsql.In("id", args...)).
		Query()

	res, err := r.db.ExecContext(ctx, query, qargs...)
	if err != nil {
		return 0, eris.Wrap(err, "delete questions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "rows affected")
	}
	return int(n), nil
}

func scanQuestion(rows *sql.Rows) (*QuestionRecord, error) {
	var (
		rec        QuestionRecord
		subSkill   sql.NullString
		difficulty sql.NullInt64
		options    []byte
		visual     []byte
	)
	err := rows.Scan(
		&rec.ID, &rec.Product, &rec.TestMode, &rec.Section, &subSkill, &difficulty,
		&rec.QuestionText, &options, &rec.CorrectAnswer, &rec.SolutionText,
		&visual, &rec.RunID, &rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "scan question")
	}
	rec.SubSkill = subSkill.String
	rec.Difficulty = int(difficulty.Int64)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &rec.Options); err != nil {
			return nil, eris.Wrapf(err, "decode answer options of %s", rec.ID)
		}
	}
	if len(visual) > 0 && string(visual) != "null" {
		rec.Visual = json.RawMessage(visual)
	}
	return &rec, nil
}
