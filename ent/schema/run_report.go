package schema

import (
	"encoding/json"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// RunReport holds the JSON summary of one generation run.
type RunReport struct {
	ent.Schema
}

func (RunReport) Fields() []ent.Field {
	return []ent.Field{
		field.String("run_id").
			Unique(),
		field.Time("timestamp"),
		field.String("product"),
		field.String("test_mode"),
		field.JSON("body", json.RawMessage{}),
	}
}
