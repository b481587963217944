// Package inventory compares the question store against curriculum quotas.
package inventory

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/store"
)

// Delta is the gap between a cell's quota and its stored count. Positive is
// a deficit, negative a surplus.
type Delta struct {
	Cell   curriculum.QuotaCell
	Actual int
	Delta  int
}

// Deficit reports whether the cell needs more records.
func (d Delta) Deficit() bool { return d.Delta > 0 }

// Surplus reports whether the cell holds more records than required.
func (d Delta) Surplus() bool { return d.Delta < 0 }

// Unassigned counts the records of a section that miss a sub-skill or a
// difficulty.
type Unassigned struct {
	Section store.SectionRef
	Count   int
}

// Audit is the result of one accounting pass.
type Audit struct {
	Deltas     []Delta
	Unassigned []Unassigned
}

// Deficits returns the deltas with a positive gap, in cell order.
func (a *Audit) Deficits() []Delta {
	var out []Delta
	for _, d := range a.Deltas {
		if d.Deficit() {
			out = append(out, d)
		}
	}
	return out
}

// Surpluses returns the deltas with a negative gap, in cell order.
func (a *Audit) Surpluses() []Delta {
	var out []Delta
	for _, d := range a.Deltas {
		if d.Surplus() {
			out = append(out, d)
		}
	}
	return out
}

// Totals sums required and actual counts over all deltas.
func (a *Audit) Totals() (required, actual int) {
	for _, d := range a.Deltas {
		required += d.Cell.Required
		actual += d.Actual
	}
	return required, actual
}

// Accountant reads counts from the store. It keeps no cache, so every call
// sees the store as it is.
type Accountant struct {
	questions store.QuestionRepo
}

// NewAccountant returns an accountant over questions.
func NewAccountant(questions store.QuestionRepo) *Accountant {
	return &Accountant{questions: questions}
}

// CellDelta computes the delta of one cell.
func (a *Accountant) CellDelta(ctx context.Context, cell curriculum.QuotaCell) (Delta, error) {
	actual, err := a.questions.CountCell(ctx, cell.Ref())
	if err != nil {
		return Delta{}, eris.Wrapf(err, "count cell %s", cell.CellKey)
	}
	return Delta{Cell: cell, Actual: actual, Delta: cell.Required - actual}, nil
}

// ComputeDeltas computes one delta per cell, preserving order, and counts
// unassigned records once per section the cells touch. Each unassigned group
// is logged as a warning.
func (a *Accountant) ComputeDeltas(ctx context.Context, cells []curriculum.QuotaCell) (*Audit, error) {
	audit := &Audit{Deltas: make([]Delta, 0, len(cells))}

	seen := make(map[store.SectionRef]bool)
	for _, cell := range cells {
		d, err := a.CellDelta(ctx, cell)
		if err != nil {
			return nil, err
		}
		audit.Deltas = append(audit.Deltas, d)

		sec := cell.SectionRef()
		if seen[sec] {
			continue
		}
		seen[sec] = true

		n, err := a.questions.CountUnassigned(ctx, sec)
		if err != nil {
			return nil, eris.Wrapf(err, "count unassigned in %s/%s/%s", sec.Product, sec.TestMode, sec.Section)
		}
		if n > 0 {
			zap.L().Warn("Unassigned records excluded from quota counts",
				zap.String("product", sec.Product),
				zap.String("test_mode", sec.TestMode),
				zap.String("section", sec.Section),
				zap.Int("count", n))
			audit.Unassigned = append(audit.Unassigned, Unassigned{Section: sec, Count: n})
		}
	}

	return audit, nil
}
