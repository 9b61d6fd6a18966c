package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRunRepository_CreateGet(t *testing.T) {
	repo := NewMemoryRunRepository()
	ctx := context.Background()

	run := sampleRun(time.Time{})
	run.ID = ""
	require.NoError(t, repo.Create(ctx, run))
	require.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Values, got.Values)

	// Возвращается копия
	got.Values[0].Value = -1
	again, _ := repo.GetByID(ctx, run.ID)
	assert.Equal(t, 15.0, again.Values[0].Value)
}

func TestMemoryRunRepository_NotFound(t *testing.T) {
	repo := NewMemoryRunRepository()

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), ErrRunNotFound)
}

func TestMemoryRunRepository_List(t *testing.T) {
	repo := NewMemoryRunRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		status := "optimal"
		if i%2 == 1 {
			status = "infeasible"
		}
		require.NoError(t, repo.Create(ctx, &Run{
			ID:           fmt.Sprintf("run-%d", i),
			ScenarioName: "seasonal",
			Status:       status,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
			Values:       []Value{{Category: "P", Key: "P[a,b](0)", Value: 1}},
		}))
	}

	runs, total, err := repo.List(ctx, &ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-4", runs[0].ID, "newest first")
	assert.Equal(t, "run-3", runs[1].ID)
	assert.Nil(t, runs[0].Values, "summaries carry no values")

	runs, total, err = repo.List(ctx, &ListOptions{Filter: &ListFilter{Status: "infeasible"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, runs, 2)

	since := base.Add(3 * time.Hour)
	runs, _, err = repo.List(ctx, &ListOptions{Filter: &ListFilter{Since: &since}})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, total, err = repo.List(ctx, &ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, runs)
}

func TestMemoryRunRepository_Delete(t *testing.T) {
	repo := NewMemoryRunRepository()
	ctx := context.Background()

	run := &Run{ScenarioName: "x"}
	require.NoError(t, repo.Create(ctx, run))
	require.NoError(t, repo.Delete(ctx, run.ID))

	_, err := repo.GetByID(ctx, run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
