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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersisterWritesSnapshot(t *testing.T) {
	p, err := newPersister(2)
	require.NoError(t, err)
	defer p.release()

	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	p.enqueue(&snapshotJob{path: path, data: []byte(`{"ok":true}`)})

	waitForFile(t, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestPersisterInlineFallbackAfterRelease(t *testing.T) {
	p, err := newPersister(1)
	require.NoError(t, err)
	p.release()

	// A released pool rejects Invoke; the write happens on the caller.
	path := filepath.Join(t.TempDir(), "snapshot.json")
	p.enqueue(&snapshotJob{path: path, data: []byte("{}")})

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestPersisterDefaultWorkers(t *testing.T) {
	p, err := newPersister(0)
	require.NoError(t, err)
	defer p.release()
	assert.Equal(t, defaultPersistWorkers, p.pool.Cap())
}
