package report

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/inventory"
	"github.com/abhisek/quotagen/internal/llm"
	"github.com/abhisek/quotagen/internal/orchestrator"
	"github.com/abhisek/quotagen/internal/pruner"
	"github.com/abhisek/quotagen/internal/validation"
)

// Report is the summary of one run.
type Report struct {
	RunID      string `json:"run_id"`
	Product    string `json:"product"`
	TestMode   string `json:"test_mode"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`

	Attempted   int            `json:"attempted"`
	Accepted    int            `json:"accepted"`
	Rejected    map[string]int `json:"rejected"`
	Unavailable int            `json:"service_unavailable"`
	Regenerated int            `json:"regenerated"`
	ReviewFlags int            `json:"review_flags"`

	// RegenerationRate is regenerated / attempted.
	RegenerationRate float64 `json:"regeneration_rate"`
	// CallEfficiency is attempted*2 / external calls; 1.0 means every
	// attempt cost exactly one generation and one verification call.
	CallEfficiency float64 `json:"call_efficiency"`

	ExternalCalls    int64   `json:"external_calls"`
	FailedCalls      int64   `json:"failed_calls"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	Model            string  `json:"model,omitempty"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`

	ArtifactSeverity map[string]int `json:"artifact_severity"`

	Cells         []CellStats                `json:"cells"`
	SlotFailures  []orchestrator.SlotFailure `json:"slot_failures"`
	Unassigned    []inventory.Unassigned     `json:"unassigned"`
	PruneFindings []pruner.Finding           `json:"prune_findings"`
	Pruned        int                        `json:"pruned"`
}

// Summarize computes the report from the accumulated stats.
func Summarize(s *Stats) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Report{
		RunID:            s.runID,
		Product:          s.product,
		TestMode:         s.testMode,
		StartedAt:        s.started.Format(timeFormat),
		Attempted:        s.attempted,
		Accepted:         s.accepted,
		Rejected:         make(map[string]int, len(s.rejected)),
		Unavailable:      s.unavailable,
		Regenerated:      s.regenerated,
		ReviewFlags:      s.reviews,
		RegenerationRate: ratio(float64(s.regenerated), float64(s.attempted)),
		CallEfficiency:   ratio(float64(s.attempted*2), float64(s.usage.Calls)),
		ExternalCalls:    s.usage.Calls,
		FailedCalls:      s.usage.Failures,
		InputTokens:      s.usage.InputTokens,
		OutputTokens:     s.usage.OutputTokens,
		Model:            s.model,
		EstimatedCostUSD: llm.EstimateCost(s.model, int(s.usage.InputTokens), int(s.usage.OutputTokens)),
		ArtifactSeverity: make(map[string]int, len(s.severities)),
		SlotFailures:     append([]orchestrator.SlotFailure(nil), s.slotFailures...),
		Unassigned:       append([]inventory.Unassigned(nil), s.unassigned...),
		PruneFindings:    append([]pruner.Finding(nil), s.pruneFindings...),
		Pruned:           s.pruned,
	}
	if !s.finished.IsZero() {
		r.FinishedAt = s.finished.Format(timeFormat)
	}
	for _, st := range validation.RejectedStates() {
		r.Rejected[string(st)] = s.rejected[st]
	}
	for k, v := range s.severities {
		r.ArtifactSeverity[k] = v
	}
	for _, k := range s.cellOrder {
		r.Cells = append(r.Cells, *s.cells[k])
	}
	return r
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// RejectedTotal sums every rejection.
func (r Report) RejectedTotal() int {
	n := 0
	for _, v := range r.Rejected {
		n += v
	}
	return n
}

// Sink receives the JSON report of a run.
type Sink interface {
	Publish(ctx context.Context, r Report, body []byte) error
}

// Publish encodes the report and hands it to sink. Failures are logged and
// never returned: publishing must not fail a finished run.
func Publish(ctx context.Context, r Report, sink Sink) {
	if sink == nil {
		return
	}
	body, err := json.Marshal(r)
	if err != nil {
		zap.L().Error("Failed to encode run report", zap.String("run_id", r.RunID), zap.Error(err))
		return
	}
	if err := sink.Publish(ctx, r, body); err != nil {
		zap.L().Error("Failed to publish run report", zap.String("run_id", r.RunID), zap.Error(err))
	}
}
