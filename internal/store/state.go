package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// StateSchemaVersion tags the layout of the session_state rows.
const StateSchemaVersion = 1

// Keys of the session_state table.
const (
	keySchemaVersion     = "schemaVersion"
	keySessionID         = "sessionId"
	keyIsOpened          = "isOpened"
	keyWorkspacePath     = "workspacePath"
	keyCodeLanguage      = "codeLanguage"
	keyCurrentLesson     = "currentLesson"
	keyIsWorkspaceLoaded = "isworkspaceLoaded"
	keyModelHostPath     = "ollamaPath"
)

var sessionKeys = []any{
	keySchemaVersion, keySessionID, keyIsOpened, keyWorkspacePath,
	keyCodeLanguage, keyCurrentLesson, keyIsWorkspaceLoaded,
}

type stateRepo struct {
	db *sql.DB
}

func (r *stateRepo) Load(ctx context.Context) (SessionState, error) {
	kv, err := r.readAll(ctx)
	if err != nil {
		return SessionState{}, err
	}

	if v, ok := kv[keySchemaVersion]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n > StateSchemaVersion {
			slog.Warn("discarding session state with unknown schema version", "version", v)
			return SessionState{}, r.Reset(ctx)
		}
	}

	st := SessionState{
		SessionID:         kv[keySessionID],
		IsOpen:            kv[keyIsOpened] == "true",
		WorkspacePath:     kv[keyWorkspacePath],
		Language:          kv[keyCodeLanguage],
		IsWorkspaceLoaded: kv[keyIsWorkspaceLoaded] == "true",
	}
	if v := kv[keyCurrentLesson]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return SessionState{}, fmt.Errorf("parse %s %q: %w", keyCurrentLesson, v, err)
		}
		st.CurrentLesson = n
	}
	return st, nil
}

func (r *stateRepo) Save(ctx context.Context, st SessionState) error {
	values := map[string]string{
		keySchemaVersion:     strconv.Itoa(StateSchemaVersion),
		keySessionID:         st.SessionID,
		keyIsOpened:          strconv.FormatBool(st.IsOpen),
		keyWorkspacePath:     st.WorkspacePath,
		keyCodeLanguage:      st.Language,
		keyCurrentLesson:     strconv.Itoa(st.CurrentLesson),
		keyIsWorkspaceLoaded: strconv.FormatBool(st.IsWorkspaceLoaded),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		if err := upsert(ctx, tx, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *stateRepo) Reset(ctx context.Context) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Delete(SessionStateTable.Name).
		Where(entsql.In("key", sessionKeys...)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset session state: %w", err)
	}
	return nil
}

func (r *stateRepo) SetCurrentLesson(ctx context.Context, n int) error {
	return upsert(ctx, r.db, keyCurrentLesson, strconv.Itoa(n))
}

func (r *stateRepo) SetWorkspaceLoaded(ctx context.Context, loaded bool) error {
	return upsert(ctx, r.db, keyIsWorkspaceLoaded, strconv.FormatBool(loaded))
}

func (r *stateRepo) ModelHostPath(ctx context.Context) (string, error) {
	kv, err := r.readAll(ctx)
	if err != nil {
		return "", err
	}
	return kv[keyModelHostPath], nil
}

func (r *stateRepo) SetModelHostPath(ctx context.Context, path string) error {
	return upsert(ctx, r.db, keyModelHostPath, path)
}

func (r *stateRepo) readAll(ctx context.Context) (map[string]string, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("key", "value").
		From(entsql.Table(SessionStateTable.Name)).
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session state: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan session state: %w", err)
		}
		kv[k] = v
	}
	return kv, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, key, value string) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Insert(SessionStateTable.Name).
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
