package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

func (r *eventRepo) AppendSubmission(ctx context.Context, data SubmissionEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(SubmissionEventsTable.Name).
		Columns("sequence", "timestamp", "session_id", "language", "lesson", "status",
			"expected_output", "got_instead", "errors", "duration_ms").
		Values(seqNum, time.Now().UTC(), data.SessionID, data.Language, data.Lesson, data.Status,
			data.ExpectedOutput, data.GotInstead, data.Errors, data.DurationMs).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save submission event: %w", err)
	}
	return nil
}

func (r *eventRepo) QuerySubmissions(ctx context.Context, opts QueryOpts) ([]SubmissionEvent, error) {
	sel := entsql.Dialect(dialect.SQLite).
		Select("id", "sequence", "timestamp", "session_id", "language", "lesson", "status",
			"expected_output", "got_instead", "errors", "duration_ms").
		From(entsql.Table(SubmissionEventsTable.Name))
	applyQueryOpts(sel, opts)

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []SubmissionEvent
	for rows.Next() {
		var e SubmissionEvent
		if err := rows.Scan(&e.ID, &e.Sequence, &e.Timestamp, &e.SessionID, &e.Language, &e.Lesson,
			&e.Status, &e.ExpectedOutput, &e.GotInstead, &e.Errors, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *eventRepo) SubmissionStats(ctx context.Context) ([]LessonStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT language, lesson, COUNT(*),
		SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'fail' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END)
		FROM submission_events GROUP BY language, lesson ORDER BY language, lesson`)
	if err != nil {
		return nil, fmt.Errorf("query submission stats: %w", err)
	}
	defer rows.Close()

	var out []LessonStats
	for rows.Next() {
		var s LessonStats
		if err := rows.Scan(&s.Language, &s.Lesson, &s.Attempts, &s.Passes, &s.Fails, &s.Errors); err != nil {
			return nil, fmt.Errorf("scan submission stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
