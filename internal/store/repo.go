package store

import (
	"context"
	"encoding/json"
	"time"
)

// CellRef addresses one (product, test mode, section, sub-skill,
// difficulty) cell of the inventory.
type CellRef struct {
	Product    string
	TestMode   string
	Section    string
	SubSkill   string
	Difficulty int
}

// SectionRef returns the section the cell belongs to.
func (c CellRef) SectionRef() SectionRef {
	return SectionRef{Product: c.Product, TestMode: c.TestMode, Section: c.Section}
}

// SectionRef addresses one section of a product and test mode.
type SectionRef struct {
	Product  string
	TestMode string
	Section  string
}

// QuestionRecord is one persisted assessment item. An empty SubSkill or a
// zero Difficulty means the record is unassigned.
type QuestionRecord struct {
	ID            string
	Product       string
	TestMode      string
	Section       string
	SubSkill      string
	Difficulty    int
	QuestionText  string
	Options       []string
	CorrectAnswer string
	SolutionText  string
	Visual        json.RawMessage
	RunID         string
	CreatedAt     time.Time
}

// Assigned reports whether the record belongs to a cell.
func (q *QuestionRecord) Assigned() bool {
	return q.SubSkill != "" && q.Difficulty > 0
}

// Cell returns the record's cell address.
func (q *QuestionRecord) Cell() CellRef {
	return CellRef{
		Product:    q.Product,
		TestMode:   q.TestMode,
		Section:    q.Section,
		SubSkill:   q.SubSkill,
		Difficulty: q.Difficulty,
	}
}

// QuestionRepo is the filtered CRUD surface over persisted questions.
// Records are only ever inserted or deleted, never updated in place.
type QuestionRepo interface {
	// CountCell counts the assigned records of one cell.
	CountCell(ctx context.Context, cell CellRef) (int, error)

	// CountUnassigned counts the section's records with a missing
	// sub-skill or difficulty.
	CountUnassigned(ctx context.Context, section SectionRef) (int, error)

	// ListCell returns the cell's records ordered by created_at ascending.
	ListCell(ctx context.Context, cell CellRef) ([]QuestionRecord, error)

	// ListSubSkill returns all assigned records of a sub-skill across
	// difficulties, ordered by created_at ascending.
	ListSubSkill(ctx context.Context, section SectionRef, subSkill string) ([]QuestionRecord, error)

	// ListSection returns every record of the section, assigned or not.
	ListSection(ctx context.Context, section SectionRef) ([]QuestionRecord, error)

	// Get returns one record or nil when it does not exist.
	Get(ctx context.Context, id string) (*QuestionRecord, error)

	// Insert persists a new record.
	Insert(ctx context.Context, rec *QuestionRecord) error

	// Delete removes the given ids and returns how many rows went away.
	Delete(ctx context.Context, ids ...string) (int, error)
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match when set
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// LLMRequestEventData captures the data for a single service call event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored service call event.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates service usage per purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int
}

// ModelUsage aggregates service usage per model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// PruneEventData records one pruned question with the counts of its
// sub-skill and difficulty before and after the deletion.
type PruneEventData struct {
	RunID       string
	QuestionID  string
	Product     string
	TestMode    string
	Section     string
	SubSkill    string
	Difficulty  int
	Policy      string
	Reason      string
	CountBefore int
	CountAfter  int
}

// PruneEvent is a stored prune event.
type PruneEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	PruneEventData
}

// RunReport is a persisted run summary.
type RunReport struct {
	ID        int
	RunID     string
	Timestamp time.Time
	Product   string
	TestMode  string
	Body      json.RawMessage
}

// EventRepo provides append and query access to the event tables.
type EventRepo interface {
	// AppendLLMRequest records a service call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns the most recent events first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	// LLMUsageByPurpose aggregates calls and tokens per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)

	// LLMUsageByModel aggregates calls and tokens per model.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)

	// AppendPruneEvent records one deletion made by the pruner.
	AppendPruneEvent(ctx context.Context, data PruneEventData) error

	// QueryPruneEvents returns prune events of a section, newest first.
	QueryPruneEvents(ctx context.Context, section SectionRef, limit int) ([]PruneEvent, error)

	// SaveRunReport persists the JSON report of a run.
	SaveRunReport(ctx context.Context, report RunReport) error

	// LatestRunReports returns up to limit reports, newest first.
	LatestRunReports(ctx context.Context, limit int) ([]RunReport, error)
}
