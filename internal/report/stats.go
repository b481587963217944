// Package report accumulates run statistics and renders the run report.
package report

import (
	"sync"
	"time"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/inventory"
	"github.com/abhisek/quotagen/internal/llm"
	"github.com/abhisek/quotagen/internal/orchestrator"
	"github.com/abhisek/quotagen/internal/pruner"
	"github.com/abhisek/quotagen/internal/validation"
)

// CellStats is the per-cell breakdown of a run.
type CellStats struct {
	Cell        string `json:"cell"`
	Required    int    `json:"required"`
	Before      int    `json:"before"`
	Attempted   int    `json:"attempted"`
	Accepted    int    `json:"accepted"`
	Rejected    int    `json:"rejected"`
	Regenerated int    `json:"regenerated"`
	Failed      int    `json:"failed_slots"`
}

// Stats accumulates the statistics of one run. It is safe for concurrent
// use and implements orchestrator.Recorder.
type Stats struct {
	mu sync.Mutex

	runID    string
	product  string
	testMode string
	started  time.Time
	finished time.Time

	attempted   int
	accepted    int
	regenerated int
	unavailable int
	reviews     int
	rejected    map[validation.State]int
	severities  map[string]int

	cells     map[string]*CellStats
	cellOrder []string

	slotFailures  []orchestrator.SlotFailure
	unassigned    []inventory.Unassigned
	pruneFindings []pruner.Finding
	pruned        int

	model string
	usage llm.MeterSnapshot
}

// NewStats returns an empty accumulator for a run.
func NewStats(runID, product, testMode string) *Stats {
	return &Stats{
		runID:      runID,
		product:    product,
		testMode:   testMode,
		started:    time.Now().UTC(),
		rejected:   make(map[validation.State]int),
		severities: make(map[string]int),
		cells:      make(map[string]*CellStats),
	}
}

func (s *Stats) cell(key curriculum.CellKey) *CellStats {
	k := key.String()
	c, ok := s.cells[k]
	if !ok {
		c = &CellStats{Cell: k}
		s.cells[k] = c
		s.cellOrder = append(s.cellOrder, k)
	}
	return c
}

// ObserveCell records a cell's quota and count before filling.
func (s *Stats) ObserveCell(d inventory.Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cell(d.Cell.CellKey)
	c.Required = d.Cell.Required
	c.Before = d.Actual
}

// RecordAttempt records one candidate that reached a terminal state.
func (s *Stats) RecordAttempt(key curriculum.CellKey, attempt int, res validation.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cell(key)
	s.attempted++
	c.Attempted++
	if attempt > 1 {
		s.regenerated++
		c.Regenerated++
	}

	if res.Accepted() {
		s.accepted++
		c.Accepted++
		if res.Review {
			s.reviews++
		}
		return
	}

	s.rejected[res.State]++
	c.Rejected++
	if res.State == validation.StateRejectedArtifact {
		if sev := validation.MaxSeverity(res.Findings); sev != "" {
			s.severities[sev]++
		}
	}
}

// RecordUnavailable records an attempt that got no response.
func (s *Stats) RecordUnavailable(key curriculum.CellKey, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cell(key)
	s.attempted++
	s.unavailable++
	c.Attempted++
	if attempt > 1 {
		s.regenerated++
		c.Regenerated++
	}
}

// RecordSlotFailure records an exhausted or aborted slot.
func (s *Stats) RecordSlotFailure(f orchestrator.SlotFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slotFailures = append(s.slotFailures, f)
	s.cell(f.Cell).Failed++
}

// AddUnassigned records unassigned-record findings from an audit.
func (s *Stats) AddUnassigned(u ...inventory.Unassigned) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unassigned = append(s.unassigned, u...)
}

// AddPrune records a prune plan's findings and how many records it removed.
func (s *Stats) AddPrune(findings []pruner.Finding, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneFindings = append(s.pruneFindings, findings...)
	s.pruned += removed
}

// SetUsage records external call usage for the run.
func (s *Stats) SetUsage(model string, usage llm.MeterSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	s.usage = usage
}

// Finish stamps the end of the run.
func (s *Stats) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = time.Now().UTC()
}
