package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Question is one persisted assessment item. Rows without a sub-skill or
// difficulty are unassigned and never count toward a quota cell.
type Question struct {
	ent.Schema
}

func (Question) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("product"),
		field.String("test_mode"),
		field.String("section"),
		field.String("sub_skill").
			Optional().
			Nillable(),
		field.Int("difficulty").
			Optional().
			Nillable().
			Comment("1 foundation, 2 standard, 3 challenge"),
		field.Text("question_text"),
		field.JSON("answer_options", []string{}),
		field.String("correct_answer"),
		field.Text("solution_text"),
		field.Bytes("visual").
			Optional().
			Comment("JSON description of a diagram, chart or pattern"),
		field.String("run_id").
			Default(""),
		field.Time("created_at").
			Immutable(),
	}
}

func (Question) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("product", "test_mode", "section", "sub_skill", "difficulty"),
		index.Fields("created_at"),
	}
}
