package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PruneEvent records one question removed by the balance pruner.
type PruneEvent struct {
	ent.Schema
}

func (PruneEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (PruneEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("run_id").
			Default(""),
		field.String("question_id"),
		field.String("product"),
		field.String("test_mode"),
		field.String("section"),
		field.String("sub_skill"),
		field.Int("difficulty"),
		field.String("policy").
			Comment("newest or oldest"),
		field.String("reason"),
		field.Int("count_before"),
		field.Int("count_after"),
	}
}

func (PruneEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("product", "test_mode", "section"),
	}
}
