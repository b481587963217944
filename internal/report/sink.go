package report

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/abhisek/quotagen/internal/store"
)

// StoreSink persists reports in the run_reports table.
type StoreSink struct {
	events store.EventRepo
}

// NewStoreSink returns a sink writing to events.
func NewStoreSink(events store.EventRepo) *StoreSink {
	return &StoreSink{events: events}
}

func (s *StoreSink) Publish(ctx context.Context, r Report, body []byte) error {
	return s.events.SaveRunReport(context.WithoutCancel(ctx), store.RunReport{
		RunID:     r.RunID,
		Timestamp: time.Now().UTC(),
		Product:   r.Product,
		TestMode:  r.TestMode,
		Body:      body,
	})
}

// FileSink writes the report to a file.
type FileSink struct {
	Path string
}

func (f FileSink) Publish(_ context.Context, _ Report, body []byte) error {
	if err := os.WriteFile(f.Path, body, 0o644); err != nil {
		return eris.Wrapf(err, "write report %s", f.Path)
	}
	return nil
}

// MultiSink publishes to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, r Report, body []byte) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, r, body); err != nil && first == nil {
			first = err
		}
	}
	return first
}
