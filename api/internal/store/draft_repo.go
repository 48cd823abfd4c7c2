package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"agrismart-bot/api/internal/task"
)

// DraftRepo keeps the raw form values of each chat so an in-progress form
// survives a bot restart. Images and prediction results are never stored.
type DraftRepo struct{ DB *sql.DB }

func NewDraftRepo(db *sql.DB) *DraftRepo { return &DraftRepo{DB: db} }

const draftSchema = `
create table if not exists form_drafts (
	chat_id    bigint      not null,
	task       text        not null,
	values_json jsonb      not null,
	updated_at timestamptz not null default now(),
	primary key (chat_id, task)
)`

// EnsureSchema creates the drafts table when missing.
func (r *DraftRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, draftSchema); err != nil {
		return fmt.Errorf("create form_drafts: %w", err)
	}
	return nil
}

// SaveDraft upserts the values of one task. PK: (chat_id, task).
func (r *DraftRepo) SaveDraft(ctx context.Context, chatID int64, k task.Kind, values map[string]string) error {
	js, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	const q = `
insert into form_drafts(chat_id, task, values_json)
values ($1,$2,$3)
on conflict (chat_id, task)
do update set values_json=excluded.values_json, updated_at=now()`
	_, err = r.DB.ExecContext(ctx, q, chatID, string(k), js)
	return err
}

// LoadDrafts returns every saved task slice of a chat. Broken rows are skipped.
func (r *DraftRepo) LoadDrafts(ctx context.Context, chatID int64) (map[task.Kind]map[string]string, error) {
	const q = `select task, values_json from form_drafts where chat_id=$1`
	rows, err := r.DB.QueryContext(ctx, q, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[task.Kind]map[string]string)
	for rows.Next() {
		var (
			name string
			js   []byte
		)
		if err := rows.Scan(&name, &js); err != nil {
			return nil, err
		}
		k, err := task.Parse(name)
		if err != nil {
			continue
		}
		var vals map[string]string
		if err := json.Unmarshal(js, &vals); err != nil {
			continue
		}
		out[k] = vals
	}
	return out, rows.Err()
}
