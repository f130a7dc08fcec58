//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

package analytics

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherPerSessionOrder(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{WorkerNum: 4, QueueSize: 64})
	d.Start()

	const sessions = 8
	const jobsPerSession = 50

	var mu sync.Mutex
	got := make(map[string][]int)

	for i := 0; i < jobsPerSession; i++ {
		for s := 0; s < sessions; s++ {
			sessionID := fmt.Sprintf("sess-%d", s)
			seq := i
			err := d.Submit(context.Background(), sessionID, func(context.Context) {
				mu.Lock()
				got[sessionID] = append(got[sessionID], seq)
				mu.Unlock()
			})
			require.NoError(t, err)
		}
	}
	d.Stop()

	for s := 0; s < sessions; s++ {
		sessionID := fmt.Sprintf("sess-%d", s)
		require.Len(t, got[sessionID], jobsPerSession)
		for i, seq := range got[sessionID] {
			assert.Equal(t, i, seq, "session %s out of order", sessionID)
		}
	}
}

func TestDispatcherSubmitValidation(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	d.Start()
	defer d.Stop()

	assert.Error(t, d.Submit(context.Background(), "", func(context.Context) {}))
	assert.Error(t, d.Submit(context.Background(), "sess-1", nil))
}

func TestDispatcherSyncFallbackWhenStopped(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})

	// Not started: jobs still run, just synchronously.
	ran := false
	require.NoError(t, d.Submit(context.Background(), "sess-1", func(context.Context) {
		ran = true
	}))
	assert.True(t, ran)
}

func TestDispatcherFullQueueKeepsOrder(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{WorkerNum: 1, QueueSize: 1})
	d.Start()

	gate := make(chan struct{})
	var mu sync.Mutex
	var got []string

	// Park the worker so the next job sits in the queue.
	require.NoError(t, d.Submit(context.Background(), "sess-1", func(context.Context) {
		<-gate
	}))
	require.NoError(t, d.Submit(context.Background(), "sess-1", func(context.Context) {
		mu.Lock()
		got = append(got, "first")
		mu.Unlock()
	}))

	// The queue is full now; this submit must wait for the slot instead of
	// running the job inline ahead of the queued one.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Submit(context.Background(), "sess-1", func(context.Context) {
			mu.Lock()
			got = append(got, "second")
			mu.Unlock()
		})
	}()

	close(gate)
	<-done
	d.Stop()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestDispatcherCancelledContext(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{WorkerNum: 1})
	d.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Jobs detach from the submission context; a cancelled one still runs.
	ran := false
	require.NoError(t, d.Submit(ctx, "sess-1", func(jobCtx context.Context) {
		ran = jobCtx.Err() == nil
	}))
	d.Stop()
	assert.True(t, ran)
}

func TestDispatcherRecoversFromPanic(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{WorkerNum: 1})
	d.Start()

	require.NoError(t, d.Submit(context.Background(), "sess-1", func(context.Context) {
		panic("boom")
	}))
	ran := false
	require.NoError(t, d.Submit(context.Background(), "sess-1", func(context.Context) {
		ran = true
	}))
	d.Stop()
	assert.True(t, ran)
}

func TestDispatcherStartStopIdempotent(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	d.Start()
	d.Start()
	d.Stop()
	d.Stop()
}
