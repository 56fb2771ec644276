package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_SubmitAndPoll(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	id, err := b.Submit(ctx, "a red cube", "img-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	res, err := b.Poll(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatePending, res.State)
	assert.Empty(t, res.Location)
	assert.Equal(t, 1, b.Len())
}

func TestMemoryBroker_UniqueIDs(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := b.Submit(ctx, "same prompt", "img")
		require.NoError(t, err)
		assert.False(t, seen[id], "job id reused: %s", id)
		seen[id] = true
	}
}

func TestMemoryBroker_PollUnknown(t *testing.T) {
	b := NewMemoryBroker()

	_, err := b.Poll(context.Background(), "does-not-exist")

	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryBroker_ClaimIsFIFO(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	first, _ := b.Submit(ctx, "first", "img-1")
	second, _ := b.Submit(ctx, "second", "img-2")

	job, err := b.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, job.ID)
	assert.Equal(t, "first", job.Prompt)
	assert.Equal(t, "img-1", job.ArtifactID)
	assert.Equal(t, 1, job.Attempts)

	job, err = b.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, job.ID)

	_, err = b.Claim(ctx)
	assert.ErrorIs(t, err, ErrNoJobAvailable)

	res, err := b.Poll(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, StateStarted, res.State)
}

func TestMemoryBroker_CompleteAndFail(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	okID, _ := b.Submit(ctx, "ok", "img-ok")
	badID, _ := b.Submit(ctx, "bad", "img-bad")
	_, _ = b.Claim(ctx)
	_, _ = b.Claim(ctx)

	require.NoError(t, b.Complete(ctx, okID, "/images/img-ok.png"))
	require.NoError(t, b.Fail(ctx, badID, "model refused"))

	res, err := b.Poll(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "/images/img-ok.png", res.Location)
	assert.Empty(t, res.Reason)

	res, err = b.Poll(ctx, badID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Location)
	assert.Equal(t, "model refused", res.Reason)
}

func TestMemoryBroker_TerminalStatesAreFinal(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	id, _ := b.Submit(ctx, "p", "img")
	_, _ = b.Claim(ctx)
	require.NoError(t, b.Complete(ctx, id, "/images/img.png"))

	assert.ErrorIs(t, b.Fail(ctx, id, "late failure"), ErrInvalidTransition)
	assert.ErrorIs(t, b.Complete(ctx, id, "/elsewhere.png"), ErrInvalidTransition)

	res, err := b.Poll(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "/images/img.png", res.Location)
}

func TestMemoryBroker_FinishRequiresClaim(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	id, _ := b.Submit(ctx, "p", "img")

	assert.ErrorIs(t, b.Complete(ctx, id, "/x.png"), ErrInvalidTransition)
	assert.ErrorIs(t, b.Complete(ctx, "missing", "/x.png"), ErrJobNotFound)
}

func TestMemoryBroker_RequeueStale(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	staleID, _ := b.Submit(ctx, "stale", "img-1")
	_, err := b.Claim(ctx)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	freshID, _ := b.Submit(ctx, "fresh", "img-2")
	_, err = b.Claim(ctx)
	require.NoError(t, err)

	moved, err := b.RequeueStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	res, _ := b.Poll(ctx, staleID)
	assert.Equal(t, StateRetry, res.State)
	res, _ = b.Poll(ctx, freshID)
	assert.Equal(t, StateStarted, res.State)

	job, err := b.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, staleID, job.ID)
	assert.Equal(t, 2, job.Attempts)
}

func TestMemoryBroker_Close(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	id, _ := b.Submit(ctx, "before", "img")
	require.NoError(t, b.Close())

	_, err := b.Submit(ctx, "after", "img")
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	res, err := b.Poll(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatePending, res.State)
}

func TestMemoryBroker_CancelledContext(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Submit(ctx, "p", "img")
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	_, err = b.Poll(ctx, "any")
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestMemoryBroker_ConcurrentClaimsAreExclusive(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	const n = 100
	for i := 0; i < n; i++ {
		_, err := b.Submit(ctx, "p", "img")
		require.NoError(t, err)
	}

	var mu sync.Mutex
	claimed := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := b.Claim(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, n)
	for id, count := range claimed {
		assert.Equal(t, 1, count, "job %s claimed more than once", id)
	}
}

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateSucceeded.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
	assert.False(t, StateStarted.IsTerminal())
	assert.False(t, StateRetry.IsTerminal())
}
