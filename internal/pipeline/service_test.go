package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/spreadline/internal/store"
)

func TestService_RejectsConcurrentRuns(t *testing.T) {
	up := newFakeUpstream()
	up.entered = make(chan struct{})
	up.release = make(chan struct{})

	fs := store.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	svc := NewService(newRunner(up, fs), nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(ctx)
		done <- err
	}()

	select {
	case <-up.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached the upstream")
	}

	_, err := svc.Refresh(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = svc.Pending(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(up.release)
	require.NoError(t, <-done)

	last, ok := svc.LastRefresh()
	require.True(t, ok)
	assert.Equal(t, 5, last.Games)

	// The lock is released afterwards.
	records, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestService_LastRefreshEmpty(t *testing.T) {
	svc := NewService(newRunner(newFakeUpstream(), failingStore{}), nil)
	_, ok := svc.LastRefresh()
	assert.False(t, ok)
}

func TestService_AddReporterSeesRuns(t *testing.T) {
	fs := store.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	svc := NewService(newRunner(newFakeUpstream(), fs), nil)
	rep := &recorder{}
	svc.AddReporter(rep)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	_, err = svc.Pending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.starts)
	require.Len(t, rep.completed, 2)
	assert.Equal(t, RunKindHistory, rep.completed[0].Kind)
	assert.Equal(t, RunKindPending, rep.completed[1].Kind)
	assert.Contains(t, rep.weeks, [2]int{2016, 3})
}
