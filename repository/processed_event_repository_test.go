package repository_test

import (
	"context"
	"testing"

	"license-service/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepo_MarkIfAbsent(t *testing.T) {
	repo := repository.NewMemoryProcessedEventRepo()
	ctx := context.Background()

	has, err := repo.Has(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, has)

	marked, err := repo.MarkIfAbsent(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.MarkIfAbsent(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, marked)

	has, err = repo.Has(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, has)
}
