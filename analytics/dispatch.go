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
	"errors"
	"sync"

	"trpc.group/trpc-go/trpc-dialogue-go/log"
	"trpc.group/trpc-go/trpc-dialogue-go/session"
)

// turnJob carries one queued unit of per-session work.
type turnJob struct {
	ctx       context.Context
	sessionID string
	fn        func(context.Context)
}

// Dispatcher serializes analytics work per session. Jobs for the same
// session id always hash to the same worker channel, so they run in
// submission order; jobs for different sessions run concurrently across
// workers.
type Dispatcher struct {
	workerNum int
	queueSize int
	jobChans  []chan *turnJob
	wg        sync.WaitGroup
	mu        sync.RWMutex
	started   bool
}

// DispatcherConfig configures the worker pool.
type DispatcherConfig struct {
	// WorkerNum is the number of worker goroutines. Defaults to 4.
	WorkerNum int
	// QueueSize is the per-worker channel capacity. Defaults to 16.
	QueueSize int
}

// NewDispatcher creates a dispatcher. Call Start before submitting jobs.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.WorkerNum <= 0 {
		config.WorkerNum = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 16
	}
	return &Dispatcher{
		workerNum: config.WorkerNum,
		queueSize: config.QueueSize,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.jobChans = make([]chan *turnJob, d.workerNum)
	for i := 0; i < d.workerNum; i++ {
		d.jobChans[i] = make(chan *turnJob, d.queueSize)
	}
	d.wg.Add(d.workerNum)
	for _, ch := range d.jobChans {
		go func(ch chan *turnJob) {
			defer d.wg.Done()
			for job := range ch {
				d.processJob(job)
			}
		}(ch)
	}
	d.started = true
}

// Stop closes the queues and waits for in-flight jobs to drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || len(d.jobChans) == 0 {
		return
	}
	for _, ch := range d.jobChans {
		close(ch)
	}
	d.wg.Wait()
	d.jobChans = nil
	d.started = false
}

// Submit enqueues fn on the session's worker, blocking while that worker's
// queue is full. Only when the dispatcher is not started does the job run
// synchronously on the caller.
func (d *Dispatcher) Submit(ctx context.Context, sessionID string, fn func(context.Context)) error {
	if sessionID == "" {
		return errors.New("session id required")
	}
	if fn == nil {
		return errors.New("nil job")
	}
	job := &turnJob{
		ctx:       context.WithoutCancel(ctx),
		sessionID: sessionID,
		fn:        fn,
	}
	if d.enqueueJob(job) {
		return nil
	}
	log.Debugf("dispatcher not started, processing synchronously: %s", sessionID)
	d.processJob(job)
	return nil
}

// enqueueJob sends the job to the session's worker channel. The send blocks
// when the queue is full: running the job inline instead would let it
// overtake jobs already queued for the same session. The read lock prevents
// a race with Stop, which closes the channels under the write lock; workers
// drain without the lock, so a blocked send always makes progress.
func (d *Dispatcher) enqueueJob(job *turnJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.started || len(d.jobChans) == 0 {
		return false
	}

	index := session.SlotHash(job.sessionID) % len(d.jobChans)
	d.jobChans[index] <- job
	return true
}

func (d *Dispatcher) processJob(job *turnJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic in turn worker for session %s: %v", job.sessionID, r)
		}
	}()

	ctx := job.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	job.fn(ctx)
}
