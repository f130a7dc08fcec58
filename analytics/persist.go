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
	"os"
	"path/filepath"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-dialogue-go/log"
)

const defaultPersistWorkers = 4

// snapshotJob carries pre-marshalled snapshot bytes to a writer goroutine.
// Marshalling happens on the session's owning goroutine, so the job never
// touches live session state.
type snapshotJob struct {
	path string
	data []byte
}

// persister writes snapshot files on a bounded worker pool. Write order does
// not matter across jobs; each job is a whole-file replace.
type persister struct {
	pool *ants.PoolWithFunc
}

func newPersister(workers int) (*persister, error) {
	if workers <= 0 {
		workers = defaultPersistWorkers
	}
	p := &persister{}
	pool, err := ants.NewPoolWithFunc(workers, func(arg any) {
		job, ok := arg.(*snapshotJob)
		if !ok {
			return
		}
		p.write(job)
	})
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// enqueue submits a job to the pool, falling back to a synchronous write if
// the pool rejects it. Snapshots are best-effort either way.
func (p *persister) enqueue(job *snapshotJob) {
	if err := p.pool.Invoke(job); err != nil {
		log.Warnf("snapshot pool rejected job, writing inline: %v", err)
		p.write(job)
	}
}

func (p *persister) write(job *snapshotJob) {
	if err := os.MkdirAll(filepath.Dir(job.path), 0o755); err != nil {
		log.Errorf("create snapshot directory failed: %v", err)
		return
	}
	if err := os.WriteFile(job.path, job.data, 0o644); err != nil {
		log.Errorf("write snapshot %s failed: %v", job.path, err)
		return
	}
	log.Debugf("snapshot written: %s (%d bytes)", job.path, len(job.data))
}

func (p *persister) release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
