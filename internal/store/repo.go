package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// SessionState is the persisted study session. It survives process
// restarts and is reconciled against the workspace on startup.
type SessionState struct {
	SessionID         string
	IsOpen            bool
	WorkspacePath     string
	Language          string
	CurrentLesson     int
	IsWorkspaceLoaded bool
}

// StateRepo persists the study session as flat key/value rows.
type StateRepo interface {
	// Load returns the persisted session. A missing or incompatible state
	// loads as the zero (closed) session.
	Load(ctx context.Context) (SessionState, error)

	// Save replaces the persisted session.
	Save(ctx context.Context, st SessionState) error

	// Reset clears every session key. The model host path is kept.
	Reset(ctx context.Context) error

	// SetCurrentLesson updates only the lesson number.
	SetCurrentLesson(ctx context.Context, n int) error

	// SetWorkspaceLoaded updates only the loaded flag.
	SetWorkspaceLoaded(ctx context.Context, loaded bool) error

	// ModelHostPath returns the stored path to the local model host binary.
	ModelHostPath(ctx context.Context) (string, error)

	// SetModelHostPath stores the path to the local model host binary.
	SetModelHostPath(ctx context.Context, path string) error
}

// SessionEventData captures a study session lifecycle transition.
type SessionEventData struct {
	SessionID     string
	Action        string // "start", "end", "advance", "restart", "reset"
	WorkspacePath string
	Language      string
	Lesson        int
	Detail        string
}

// SubmissionEventData captures the outcome of one evaluated submission.
type SubmissionEventData struct {
	SessionID      string
	Language       string
	Lesson         int
	Status         string
	ExpectedOutput string
	GotInstead     string
	Errors         string
	DurationMs     int64
}

// LLMRequestEventData captures the data for a single model request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	Chunks       int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored model request.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// SubmissionEvent is a stored submission outcome.
type SubmissionEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	SubmissionEventData
}

// SessionEvent is a stored lifecycle transition.
type SessionEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	SessionEventData
}

// LessonStats aggregates submissions for one lesson of one language.
type LessonStats struct {
	Language string
	Lesson   int
	Attempts int
	Passes   int
	Fails    int
	Errors   int
}

// ModelUsage aggregates model requests for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	Failures     int
	AvgLatencyMs int64
}

// EventRepo provides append and query access to domain events.
type EventRepo interface {
	// AppendSessionEvent records a study session lifecycle transition.
	AppendSessionEvent(ctx context.Context, data SessionEventData) error

	// AppendSubmission records an evaluated submission.
	AppendSubmission(ctx context.Context, data SubmissionEventData) error

	// AppendLLMRequest records a model request.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns model requests, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns a single model request, or nil if absent.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	// QuerySubmissions returns submissions, newest first.
	QuerySubmissions(ctx context.Context, opts QueryOpts) ([]SubmissionEvent, error)

	// QuerySessionEvents returns lifecycle transitions, newest first.
	QuerySessionEvents(ctx context.Context, opts QueryOpts) ([]SessionEvent, error)

	// SubmissionStats aggregates submissions per language and lesson.
	SubmissionStats(ctx context.Context) ([]LessonStats, error)

	// LLMUsageByModel aggregates model requests per model.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}
