package llm

import (
	"context"
	"sync/atomic"
)

// Meter counts every call that reaches the service, retries included.
// It is safe for concurrent use and shared between all providers of a run.
type Meter struct {
	calls        atomic.Int64
	failures     atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

// MeterSnapshot is a point-in-time copy of a Meter.
type MeterSnapshot struct {
	Calls        int64
	Failures     int64
	InputTokens  int64
	OutputTokens int64
}

// Snapshot returns the current counter values.
func (m *Meter) Snapshot() MeterSnapshot {
	return MeterSnapshot{
		Calls:        m.calls.Load(),
		Failures:     m.failures.Load(),
		InputTokens:  m.inputTokens.Load(),
		OutputTokens: m.outputTokens.Load(),
	}
}

// MeteredProvider is a decorator that feeds a Meter.
type MeteredProvider struct {
	inner Provider
	meter *Meter
}

// WithMeter wraps a Provider so each call is counted on m.
func WithMeter(p Provider, m *Meter) Provider {
	if m == nil {
		return p
	}
	return &MeteredProvider{inner: p, meter: m}
}

func (p *MeteredProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	p.meter.calls.Add(1)
	resp, err := p.inner.Generate(ctx, req)
	if err != nil {
		p.meter.failures.Add(1)
	}
	if resp != nil {
		p.meter.inputTokens.Add(int64(resp.Usage.InputTokens))
		p.meter.outputTokens.Add(int64(resp.Usage.OutputTokens))
	}
	return resp, err
}

func (p *MeteredProvider) ModelID() string {
	return p.inner.ModelID()
}
