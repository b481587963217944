package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/rotisserie/eris"
)

func (r *eventRepo) SaveRunReport(ctx context.Context, report RunReport) error {
	if report.RunID == "" {
		return eris.New("run id is required")
	}
	ts := report.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query, args := builder(r.dialect).Insert(tableRunReports).
		Columns("run_id", "timestamp", "product", "test_mode", "body").
		Values(report.RunID, ts.UTC(), report.Product, report.TestMode, string(report.Body)).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "save run report %s", report.RunID)
	}
	return nil
}

func (r *eventRepo) LatestRunReports(ctx context.Context, limit int) ([]RunReport, error) {
	b := builder(r.dialect)
	sel := b.Select("id", "run_id", "timestamp", "product", "test_mode", "body").
		From(b.Table(tableRunReports)).
		OrderBy(entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query run reports")
	}
	defer rows.Close()

	var out []RunReport
	for rows.Next() {
		var rr RunReport
		var body []byte
		if err := rows.Scan(&rr.ID, &rr.RunID, &rr.Timestamp, &rr.Product, &rr.TestMode, &body); err != nil {
			return nil, eris.Wrap(err, "scan run report")
		}
		rr.Body = body
		out = append(out, rr)
	}
	return out, eris.Wrap(rows.Err(), "iterate run reports")
}
