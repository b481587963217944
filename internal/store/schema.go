package store

import (
	"context"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/rotisserie/eris"
)

// Table names.
const (
	tableQuestions   = "questions"
	tableLLMEvents   = "llm_request_events"
	tablePruneEvents = "prune_events"
	tableRunReports  = "run_reports"
)

var (
	// QuestionsColumns holds one row per persisted question. sub_skill and
	// difficulty are nullable: rows missing either are unassigned and never
	// count toward a cell.
	QuestionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "product", Type: field.TypeString},
		{Name: "test_mode", Type: field.TypeString},
		{Name: "section", Type: field.TypeString},
		{Name: "sub_skill", Type: field.TypeString, Nullable: true},
		{Name: "difficulty", Type: field.TypeInt, Nullable: true},
		{Name: "question_text", Type: field.TypeString, Size: 2147483647},
		{Name: "answer_options", Type: field.TypeJSON},
		{Name: "correct_answer", Type: field.TypeString},
		{Name: "solution_text", Type: field.TypeString, Size: 2147483647},
		{Name: "visual", Type: field.TypeJSON, Nullable: true},
		{Name: "run_id", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
	}
	QuestionsTable = &schema.Table{
		Name:       tableQuestions,
		Columns:    QuestionsColumns,
		PrimaryKey: []*schema.Column{QuestionsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "question_cell",
				Columns: []*schema.Column{QuestionsColumns[1], QuestionsColumns[2], QuestionsColumns[3], QuestionsColumns[4], QuestionsColumns[5]},
			},
			{
				Name:    "question_created_at",
				Columns: []*schema.Column{QuestionsColumns[12]},
			},
		},
	}

	// LLMEventsColumns records every external service call.
	LLMEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	LLMEventsTable = &schema.Table{
		Name:       tableLLMEvents,
		Columns:    LLMEventsColumns,
		PrimaryKey: []*schema.Column{LLMEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{LLMEventsColumns[5]}},
			{Name: "llmrequestevent_model", Columns: []*schema.Column{LLMEventsColumns[4]}},
		},
	}

	// PruneEventsColumns records one row per pruned question.
	PruneEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "run_id", Type: field.TypeString, Default: ""},
		{Name: "question_id", Type: field.TypeString},
		{Name: "product", Type: field.TypeString},
		{Name: "test_mode", Type: field.TypeString},
		{Name: "section", Type: field.TypeString},
		{Name: "sub_skill", Type: field.TypeString},
		{Name: "difficulty", Type: field.TypeInt},
		{Name: "policy", Type: field.TypeString},
		{Name: "reason", Type: field.TypeString},
		{Name: "count_before", Type: field.TypeInt},
		{Name: "count_after", Type: field.TypeInt},
	}
	PruneEventsTable = &schema.Table{
		Name:       tablePruneEvents,
		Columns:    PruneEventsColumns,
		PrimaryKey: []*schema.Column{PruneEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "pruneevent_section", Columns: []*schema.Column{PruneEventsColumns[5], PruneEventsColumns[6], PruneEventsColumns[7]}},
		},
	}

	// RunReportsColumns holds the JSON report of each run.
	RunReportsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "run_id", Type: field.TypeString, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "product", Type: field.TypeString},
		{Name: "test_mode", Type: field.TypeString},
		{Name: "body", Type: field.TypeJSON},
	}
	RunReportsTable = &schema.Table{
		Name:       tableRunReports,
		Columns:    RunReportsColumns,
		PrimaryKey: []*schema.Column{RunReportsColumns[0]},
	}

	// Tables lists every managed table.
	Tables = []*schema.Table{
		QuestionsTable,
		LLMEventsTable,
		PruneEventsTable,
		RunReportsTable,
	}
)

// migrate creates or updates all managed tables.
func (s *Store) migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return eris.Wrap(err, "create migrator")
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return eris.Wrap(err, "create tables")
	}
	return nil
}
