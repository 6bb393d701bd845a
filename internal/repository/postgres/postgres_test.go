package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/repository"
)

// newTestDB connects to POSTGRES_TEST_URL and empties the tables. The tests
// are skipped when the variable is unset so `go test ./...` needs no server.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, url, 4)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.pool.Exec(ctx, `TRUNCATE creators, posts, remixes RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func TestAddCreator_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.Creator{Platform: model.PlatformYouTube, Username: "foo"}
	created, err := db.AddCreator(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &model.Creator{Platform: model.PlatformYouTube, Username: "foo"}
	created, err = db.AddCreator(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestUpsertPosts_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := &model.Creator{Platform: model.PlatformInstagram, Username: "bar"}
	_, err := db.AddCreator(ctx, c)
	require.NoError(t, err)

	_, err = db.UpsertPosts(ctx, c.ID, []model.Post{
		{PlatformPostID: "p1", LikeCount: 10, Metric: model.MetricLikes, OutlierScore: 0.5},
		{PlatformPostID: "p2", LikeCount: 30, Metric: model.MetricLikes, OutlierScore: 1.5},
	})
	require.NoError(t, err)

	posts, err := db.ListPostsForCreator(ctx, c.ID, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].PlatformPostID)
	assert.Nil(t, posts[0].DurationSeconds)

	require.NoError(t, db.SaveTranscript(ctx, posts[0].ID, "kept"))

	_, err = db.UpsertPosts(ctx, c.ID, []model.Post{
		{PlatformPostID: "p2", LikeCount: 31, Metric: model.MetricLikes, OutlierScore: 1.1},
	})
	require.NoError(t, err)

	got, err := db.GetPost(ctx, posts[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 31, got.LikeCount)
	require.NotNil(t, got.Transcript)
	assert.Equal(t, "kept", *got.Transcript)
	assert.Equal(t, "bar", got.CreatorUsername)

	summaries, err := db.ListCreators(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].PostCount)
	assert.NotNil(t, summaries[0].LastSyncedAt)
}

func TestRemoveCreator_Cascade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := &model.Creator{Platform: model.PlatformYouTube, Username: "gone"}
	_, err := db.AddCreator(ctx, c)
	require.NoError(t, err)
	_, err = db.UpsertPosts(ctx, c.ID, []model.Post{{PlatformPostID: "v1"}})
	require.NoError(t, err)

	require.NoError(t, db.RemoveCreator(ctx, c.ID))

	outliers, err := db.ListTopOutliers(ctx, 0, repository.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, outliers)

	err = db.RemoveCreator(ctx, c.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpsertPosts_RejectedRowRollsBackBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := &model.Creator{Platform: model.PlatformYouTube, Username: "foo"}
	_, err := db.AddCreator(ctx, c)
	require.NoError(t, err)
	_, err = db.UpsertPosts(ctx, c.ID, []model.Post{{PlatformPostID: "v1", ViewCount: 10}})
	require.NoError(t, err)
	before, err := db.GetCreator(ctx, c.ID)
	require.NoError(t, err)

	_, err = db.pool.Exec(ctx, `
		CREATE OR REPLACE FUNCTION reject_bad_post() RETURNS trigger AS $$
		BEGIN
			IF NEW.platform_post_id = 'bad' THEN
				RAISE EXCEPTION 'rejected' USING ERRCODE = 'check_violation';
			END IF;
			RETURN NEW;
		END $$ LANGUAGE plpgsql;
		CREATE TRIGGER reject_bad_post BEFORE INSERT ON posts
			FOR EACH ROW EXECUTE FUNCTION reject_bad_post();`)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.pool.Exec(context.Background(), `DROP TRIGGER IF EXISTS reject_bad_post ON posts`)
	})

	_, err = db.UpsertPosts(ctx, c.ID, []model.Post{
		{PlatformPostID: "v1", ViewCount: 999},
		{PlatformPostID: "v2", ViewCount: 5},
		{PlatformPostID: "bad", ViewCount: 1},
	})
	require.ErrorIs(t, err, apperror.ErrConflict)
	assert.Contains(t, err.Error(), "post conflict with id bad")

	posts, err := db.ListPostsForCreator(ctx, c.ID, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.EqualValues(t, 10, posts[0].ViewCount)

	after, err := db.GetCreator(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, after.LastSyncedAt)
	assert.True(t, after.LastSyncedAt.Equal(*before.LastSyncedAt))
}
