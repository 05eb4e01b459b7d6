package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"license-service/repository"
	"license-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldProcess_Sequential(t *testing.T) {
	d := services.NewEventDeduplicator(repository.NewMemoryProcessedEventRepo())
	ctx := context.Background()

	first, err := d.ShouldProcess(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.ShouldProcess(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := d.ShouldProcess(ctx, "evt_2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestShouldProcess_EmptyID(t *testing.T) {
	d := services.NewEventDeduplicator(repository.NewMemoryProcessedEventRepo())

	_, err := d.ShouldProcess(context.Background(), "")
	assert.Error(t, err)
}

func TestShouldProcess_ConcurrentSameID(t *testing.T) {
	d := services.NewEventDeduplicator(repository.NewMemoryProcessedEventRepo())
	ctx := context.Background()

	const n = 64
	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := d.ShouldProcess(ctx, "evt_race")
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}
