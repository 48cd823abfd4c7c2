package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrismart-bot/api/internal/task"
)

func openTestRepo(t *testing.T) *DraftRepo {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewDraftRepo(db)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestDraftRepoRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	chatID := -time.Now().UnixNano()
	t.Cleanup(func() {
		_, _ = repo.DB.ExecContext(context.Background(), `delete from form_drafts where chat_id=$1`, chatID)
	})

	got, err := repo.LoadDrafts(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.SaveDraft(ctx, chatID, task.CropRecommendation, map[string]string{"N": "90", "ph": ""}))
	require.NoError(t, repo.SaveDraft(ctx, chatID, task.CropRecommendation, map[string]string{"N": "91", "ph": "6.5"}))
	require.NoError(t, repo.SaveDraft(ctx, chatID, task.FertilizerRecommendation, map[string]string{"soil_type": "Sandy"}))

	got, err = repo.LoadDrafts(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, map[task.Kind]map[string]string{
		task.CropRecommendation:       {"N": "91", "ph": "6.5"},
		task.FertilizerRecommendation: {"soil_type": "Sandy"},
	}, got)

	var rows int
	require.NoError(t, repo.DB.QueryRowContext(ctx,
		`select count(*) from form_drafts where chat_id=$1`, chatID).Scan(&rows))
	assert.Equal(t, 2, rows)
}

func TestDraftRepoSkipsUnknownTask(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	chatID := -time.Now().UnixNano()
	t.Cleanup(func() {
		_, _ = repo.DB.ExecContext(context.Background(), `delete from form_drafts where chat_id=$1`, chatID)
	})

	_, err := repo.DB.ExecContext(ctx,
		`insert into form_drafts(chat_id, task, values_json) values ($1, 'soil', '{"x":"1"}')`, chatID)
	require.NoError(t, err)
	require.NoError(t, repo.SaveDraft(ctx, chatID, task.DiseaseDetection, map[string]string{}))

	got, err := repo.LoadDrafts(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, map[task.Kind]map[string]string{task.DiseaseDetection: {}}, got)
}
