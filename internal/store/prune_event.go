package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/rotisserie/eris"
)

var pruneEventColumns = []string{
	"id", "sequence", "timestamp", "run_id", "question_id", "product",
	"test_mode", "section", "sub_skill", "difficulty", "policy", "reason",
	"count_before", "count_after",
}

func (r *eventRepo) AppendPruneEvent(ctx context.Context, data PruneEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	query, args := builder(r.dialect).Insert(tablePruneEvents).
		Columns(pruneEventColumns[1:]...).
		Values(
			seqNum, time.Now().UTC(), data.RunID, data.QuestionID, data.Product,
			data.TestMode, data.Section, data.SubSkill, data.Difficulty,
			data.Policy, data.Reason, data.CountBefore, data.CountAfter,
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "save prune event for %s", data.QuestionID)
	}
	return nil
}

func (r *eventRepo) QueryPruneEvents(ctx context.Context, section SectionRef, limit int) ([]PruneEvent, error) {
	b := builder(r.dialect)
	sel := b.Select(pruneEventColumns...).
		From(b.Table(tablePruneEvents)).
		Where(sectionPredicate(section)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query prune events")
	}
	defer rows.Close()

	var out []PruneEvent
	for rows.Next() {
		var e PruneEvent
		if err := rows.Scan(
			&e.ID, &e.Sequence, &e.Timestamp, &e.RunID, &e.QuestionID, &e.Product,
			&e.TestMode, &e.Section, &e.SubSkill, &e.Difficulty, &e.Policy, &e.Reason,
			&e.CountBefore, &e.CountAfter,
		); err != nil {
			return nil, eris.Wrap(err, "scan prune event")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "iterate prune events")
}
