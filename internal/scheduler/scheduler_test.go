package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"borsapulse/internal/infrastructure"
	"borsapulse/internal/shared/testutil"
)

func TestSchedulerRunsTaskOnSpec(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	s := New(context.Background(), logger)

	var runs atomic.Int32
	traced := make(chan string, 4)
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		traced <- infrastructure.GetTraceID(ctx)
		return nil
	}))

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.NotEmpty(t, <-traced)
}

func TestSchedulerAdd(t *testing.T) {
	s := New(context.Background(), nil)

	tests := []struct {
		name    string
		task    string
		spec    string
		wantErr bool
	}{
		{name: "six field spec", task: "nightly", spec: "0 30 18 * * 1-5"},
		{name: "descriptor", task: "cleanup", spec: "@hourly"},
		{name: "five field spec rejected", task: "legacy", spec: "30 18 * * 1-5", wantErr: true},
		{name: "duplicate name", task: "nightly", spec: "@daily", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(tt.task, tt.spec, func(context.Context) error { return nil })
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "cleanup", entries[0].Name)
	assert.Equal(t, "nightly", entries[1].Name)
}

func TestSchedulerRunNow(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	s := New(context.Background(), logger)

	require.NoError(t, s.Add("broken", "@daily", func(context.Context) error {
		return errors.New("store offline")
	}))

	require.NoError(t, s.RunNow("broken"))
	assert.Error(t, s.RunNow("missing"))
	assert.True(t, handler.ContainsMessage("scheduled task failed"))
}
