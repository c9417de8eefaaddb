package repository

import (
	"context"
	"testing"
	"time"

	"sidestake/models"
	"sidestake/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRepository_StoreAndGet(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewMatchRepository(testDB.DB)
	ctx := context.Background()

	t.Run("match not found", func(t *testing.T) {
		match, err := repo.GetByID(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("round trip with odds", func(t *testing.T) {
		stored, err := repo.Store(ctx, []*models.Match{testutil.CreateTestMatch("m1")})
		require.NoError(t, err)
		assert.Equal(t, 1, stored)

		match, err := repo.GetByID(ctx, "m1")
		require.NoError(t, err)
		require.NotNil(t, match)

		assert.Equal(t, "los-angeles-lakers", match.Home.ID)
		assert.Equal(t, "Boston Celtics", match.Away.Name)
		assert.False(t, match.Completed)
		require.Contains(t, match.OddsBySource, "odds-api")
		assert.Equal(t, 1.91, match.OddsBySource["odds-api"].Home)
		assert.Equal(t, "odds-api", match.Provenance)
	})
}

func TestMatchRepository_StoreNeverRegresses(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewMatchRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.Store(ctx, []*models.Match{testutil.CreateTestMatchCompleted("m1", 101, 98)})
	require.NoError(t, err)

	// a later snapshot without scores or completion must not erase them
	stale := testutil.CreateTestMatch("m1")
	stale.Provenance = "score-feed"
	_, err = repo.Store(ctx, []*models.Match{stale})
	require.NoError(t, err)

	match, err := repo.GetByID(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, match)

	assert.True(t, match.Completed)
	require.NotNil(t, match.HomeScore)
	assert.Equal(t, 101, *match.HomeScore)
	require.NotNil(t, match.AwayScore)
	assert.Equal(t, 98, *match.AwayScore)
	assert.Equal(t, "score-feed", match.Provenance)
}

func TestMatchRepository_UpdateScores(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewMatchRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.Store(ctx, []*models.Match{testutil.CreateTestMatch("m1")})
	require.NoError(t, err)

	t.Run("known match updated", func(t *testing.T) {
		updated, err := repo.UpdateScores(ctx, "m1", 101, 98, true)
		require.NoError(t, err)
		assert.True(t, updated)

		match, err := repo.GetByID(ctx, "m1")
		require.NoError(t, err)
		assert.True(t, match.Completed)
		assert.Equal(t, "los-angeles-lakers", match.WinningSideID())
	})

	t.Run("unknown match reports false", func(t *testing.T) {
		updated, err := repo.UpdateScores(ctx, "missing", 1, 0, true)
		require.NoError(t, err)
		assert.False(t, updated)
	})
}

func TestMatchRepository_GetUpcoming(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewMatchRepository(testDB.DB)
	ctx := context.Background()

	early := testutil.CreateTestMatch("m1")
	late := testutil.CreateTestMatch("m2")
	late.ScheduledTime = late.ScheduledTime.Add(48 * time.Hour)
	done := testutil.CreateTestMatchCompleted("m3", 101, 98)

	_, err := repo.Store(ctx, []*models.Match{late, early, done})
	require.NoError(t, err)

	matches, err := repo.GetUpcoming(ctx, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "m1", matches[0].ID)
	assert.Equal(t, "m2", matches[1].ID)
}
