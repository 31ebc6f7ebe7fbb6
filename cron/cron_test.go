package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(zap.NewNop(), Spec{Name: "bad", Schedule: "not a schedule", Run: func(context.Context) (int, error) { return 0, nil }})
	require.Error(t, err)
}

func TestWrapRunsJob(t *testing.T) {
	var calls atomic.Int32
	s, err := New(zap.NewNop())
	require.NoError(t, err)

	ok := s.wrap(Spec{Name: "ok", Run: func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		calls.Add(1)
		return 2, nil
	}})
	failing := s.wrap(Spec{Name: "failing", Run: func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("boom")
	}})

	ok()
	failing()
	require.Equal(t, int32(2), calls.Load())
}
