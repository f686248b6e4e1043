package build

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_CurrentBlocksUntilFirstBuild(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	require.True(t, tr.Pending())
	require.Nil(t, tr.Latest())

	got := make(chan *Result, 1)
	go func() {
		r, err := tr.Current(context.Background())
		assert.NoError(t, err)
		got <- r
	}()

	select {
	case <-got:
		t.Fatal("Current returned before the first build finished")
	case <-time.After(50 * time.Millisecond):
	}

	first := &Result{Outputs: map[string]Output{"/out/greet.hcl": {EntryPoint: "greet.hcl"}}}
	tr.End(first)

	select {
	case r := <-got:
		assert.Same(t, first, r)
		assert.Equal(t, uint64(1), r.Generation)
	case <-time.After(time.Second):
		t.Fatal("Current did not return after the build finished")
	}
	assert.False(t, tr.Pending())
}

func TestTracker_CurrentReturnsLatestWhenIdle(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	first := &Result{}
	tr.End(first)

	r, err := tr.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, r)
}

func TestTracker_RebuildWaitersSeeNewResult(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	tr.End(&Result{})

	tr.Start()
	tr.Start() // at most one pending build
	require.True(t, tr.Pending())

	const waiters = 5
	var wg sync.WaitGroup
	results := make(chan *Result, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := tr.Current(context.Background())
			assert.NoError(t, err)
			results <- r
		}()
	}

	time.Sleep(20 * time.Millisecond)
	second := &Result{}
	tr.End(second)
	wg.Wait()
	close(results)

	for r := range results {
		assert.Same(t, second, r)
		assert.Equal(t, uint64(2), r.Generation)
	}
}

func TestTracker_CurrentHonoursContext(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r, err := tr.Current(ctx)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned wait must not disturb later waiters.
	tr.End(&Result{})
	_, err = tr.Current(context.Background())
	assert.NoError(t, err)
}

func TestTracker_FailedBuild(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	tr.End(&Result{Errors: []error{errors.New("syntax error")}})

	r, err := tr.Current(context.Background())
	require.ErrorIs(t, err, ErrBuildFailed)
	require.NotNil(t, r)
	assert.ErrorContains(t, r.Err(), "syntax error")

	tr.Start()
	tr.End(&Result{})
	_, err = tr.Current(context.Background())
	assert.NoError(t, err)
}

func TestObservers_FanOut(t *testing.T) {
	t.Parallel()
	a, b := NewTracker(), NewTracker()
	obs := Observers{a, b}

	res := &Result{}
	obs.BuildFinished(res)
	assert.Same(t, res, a.Latest())
	assert.Same(t, res, b.Latest())

	obs.BuildStarted()
	assert.True(t, a.Pending())
	assert.True(t, b.Pending())
}
