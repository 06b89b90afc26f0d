package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecomputer struct {
	calls atomic.Int32
	err   error
}

func (r *countingRecomputer) RecomputeLeaderboards(ctx context.Context, now time.Time) error {
	r.calls.Add(1)
	return r.err
}

func TestSchedulerRunsImmediately(t *testing.T) {
	rec := &countingRecomputer{}
	s := New(rec, 60)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return rec.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// 间隔不变时不重新排期
	require.NoError(t, s.Reschedule(60))
	require.NoError(t, s.Reschedule(30))
	assert.Equal(t, 30, s.interval)
	assert.Eventually(t, func() bool { return rec.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerSurvivesFailure(t *testing.T) {
	rec := &countingRecomputer{err: errors.New("db down")}
	s := New(rec, 0)
	assert.Equal(t, 10, s.interval)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return rec.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 10, normalize(-5))
	assert.Equal(t, 10, normalize(0))
	assert.Equal(t, 3, normalize(3))
}
