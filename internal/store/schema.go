package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// SessionStateColumns holds the columns for the "session_state" table.
	SessionStateColumns = []*schema.Column{
		{Name: "key", Type: field.TypeString, Unique: true},
		{Name: "value", Type: field.TypeString},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// SessionStateTable holds the flat key/value study session state.
	SessionStateTable = &schema.Table{
		Name:       "session_state",
		Columns:    SessionStateColumns,
		PrimaryKey: []*schema.Column{SessionStateColumns[0]},
	}

	// SessionEventsColumns holds the columns for the "session_events" table.
	SessionEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
		{Name: "action", Type: field.TypeString},
		{Name: "workspace_path", Type: field.TypeString, Default: ""},
		{Name: "language", Type: field.TypeString, Default: ""},
		{Name: "lesson", Type: field.TypeInt, Default: 0},
		{Name: "detail", Type: field.TypeString, Default: ""},
	}
	// SessionEventsTable records study session lifecycle transitions.
	SessionEventsTable = &schema.Table{
		Name:       "session_events",
		Columns:    SessionEventsColumns,
		PrimaryKey: []*schema.Column{SessionEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "sessionevent_session_id", Columns: []*schema.Column{SessionEventsColumns[3]}},
			{Name: "sessionevent_timestamp", Columns: []*schema.Column{SessionEventsColumns[2]}},
		},
	}

	// SubmissionEventsColumns holds the columns for the "submission_events" table.
	SubmissionEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
		{Name: "language", Type: field.TypeString},
		{Name: "lesson", Type: field.TypeInt},
		{Name: "status", Type: field.TypeString},
		{Name: "expected_output", Type: field.TypeString, Default: ""},
		{Name: "got_instead", Type: field.TypeString, Default: ""},
		{Name: "errors", Type: field.TypeString, Default: ""},
		{Name: "duration_ms", Type: field.TypeInt64, Default: 0},
	}
	// SubmissionEventsTable records every evaluated submission.
	SubmissionEventsTable = &schema.Table{
		Name:       "submission_events",
		Columns:    SubmissionEventsColumns,
		PrimaryKey: []*schema.Column{SubmissionEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "submissionevent_language_lesson", Columns: []*schema.Column{SubmissionEventsColumns[4], SubmissionEventsColumns[5]}},
			{Name: "submissionevent_status", Columns: []*schema.Column{SubmissionEventsColumns[6]}},
		},
	}

	// LLMRequestEventsColumns holds the columns for the "llm_request_events" table.
	LLMRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "chunks", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	// LLMRequestEventsTable records every model request for debugging.
	LLMRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    LLMRequestEventsColumns,
		PrimaryKey: []*schema.Column{LLMRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_provider", Columns: []*schema.Column{LLMRequestEventsColumns[3]}},
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{LLMRequestEventsColumns[5]}},
			{Name: "llmrequestevent_success", Columns: []*schema.Column{LLMRequestEventsColumns[8]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		SessionStateTable,
		SessionEventsTable,
		SubmissionEventsTable,
		LLMRequestEventsTable,
	}
)
