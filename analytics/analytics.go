//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package analytics composes the per-session analytics components: stage
// tracking, user-context extraction, bounded conversation memory and quality
// scoring. All four consume the same per-turn event and write into state
// owned exclusively by one session; the caller must serialize turns per
// session (see Dispatcher).
package analytics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-dialogue-go/config"
	"trpc.group/trpc-go/trpc-dialogue-go/log"
	"trpc.group/trpc-go/trpc-dialogue-go/memory"
	"trpc.group/trpc-go/trpc-dialogue-go/quality"
	"trpc.group/trpc-go/trpc-dialogue-go/session"
	"trpc.group/trpc-go/trpc-dialogue-go/stage"
	"trpc.group/trpc-go/trpc-dialogue-go/turn"
	"trpc.group/trpc-go/trpc-dialogue-go/usercontext"
	"trpc.group/trpc-go/trpc-dialogue-go/usercontext/extractor"
)

// ErrSessionNotFound is returned when an operation targets an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// sessionEntry groups the four per-session components.
type sessionEntry struct {
	state   *session.Manager
	context *usercontext.Manager
	memory  *memory.Memory
	quality *quality.Tracker
}

// Analytics is the conversational analytics core. It owns disjoint state per
// session id; concurrent turns on the same session are undefined and must be
// serialized by the caller.
type Analytics struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	cfg       *config.Config
	extractor usercontext.Extractor
	persister *persister
}

// Option configures Analytics.
type Option func(*Analytics)

// WithConfig sets the configuration. Defaults are used when omitted.
func WithConfig(cfg *config.Config) Option {
	return func(a *Analytics) {
		if cfg != nil {
			a.cfg = cfg
		}
	}
}

// WithExtractor replaces the entity extractor implementation.
func WithExtractor(e usercontext.Extractor) Option {
	return func(a *Analytics) {
		if e != nil {
			a.extractor = e
		}
	}
}

// New creates the analytics core.
func New(opts ...Option) (*Analytics, error) {
	a := &Analytics{
		sessions:  make(map[string]*sessionEntry),
		cfg:       config.Default(),
		extractor: extractor.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	p, err := newPersister(a.cfg.Memory.Performance.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("create snapshot persister: %w", err)
	}
	a.persister = p
	return a, nil
}

// Close releases the snapshot worker pool.
func (a *Analytics) Close() {
	a.persister.release()
}

// StartSession creates the per-session state. An empty sessionID generates
// one from the configured prefix. The returned id identifies the session in
// every other call.
func (a *Analytics) StartSession(sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = a.cfg.Memory.Session.DefaultSessionPrefix + "-" + uuid.NewString()
	}

	entry := &sessionEntry{
		state:   session.NewManager(),
		context: usercontext.NewManager(sessionID, a.extractor),
		memory: memory.New(
			memory.WithMaxHistory(a.cfg.Memory.Strategy.MaxRecentTurns),
			memory.WithMaxSummaryLength(a.cfg.MaxResults()),
		),
		quality: quality.NewTracker(sessionID),
	}
	if _, err := entry.state.InitializeSession(sessionID); err != nil {
		return "", err
	}

	a.mu.Lock()
	a.sessions[sessionID] = entry
	a.mu.Unlock()
	return sessionID, nil
}

func (a *Analytics) entry(sessionID string) (*sessionEntry, error) {
	a.mu.RLock()
	entry, ok := a.sessions[sessionID]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return entry, nil
}

// BeginTurn opens the quality timer for a turn. It must be called before the
// turn's tools are dispatched.
func (a *Analytics) BeginTurn(sessionID string) error {
	entry, err := a.entry(sessionID)
	if err != nil {
		return err
	}
	entry.quality.StartTurn()
	return nil
}

// RecordToolCall records one tool invocation for the open turn.
func (a *Analytics) RecordToolCall(sessionID, toolName string) error {
	entry, err := a.entry(sessionID)
	if err != nil {
		return err
	}
	entry.quality.RecordToolCall(toolName)
	return nil
}

// CompleteTurn applies one finished turn to every component, in the fixed
// order: stage, tool results, user context, memory, quality. It returns the
// turn's quality metrics.
func (a *Analytics) CompleteTurn(sessionID, userInput, agentResponse string,
	toolCalls []turn.ToolRecord, result quality.TurnResult) (quality.TurnMetrics, error) {
	entry, err := a.entry(sessionID)
	if err != nil {
		return quality.TurnMetrics{}, err
	}

	entry.state.UpdateStage(userInput, toolCalls)
	entry.state.ApplyToolResults(toolCalls)
	entry.context.UpdateFromConversation(userInput, agentResponse, toolCalls)
	entry.memory.AddTurn(userInput, agentResponse, toolCalls)

	metrics, err := entry.quality.EndTurn(result)
	if err != nil {
		return quality.TurnMetrics{}, err
	}
	return metrics, nil
}

// ProcessTurn applies an already-finished turn in one call: it opens the
// turn, records the tool names from the log and completes it. Live callers
// that want response times measured should use BeginTurn, RecordToolCall and
// CompleteTurn directly instead.
func (a *Analytics) ProcessTurn(sessionID, userInput, agentResponse string,
	toolCalls []turn.ToolRecord, result quality.TurnResult) (quality.TurnMetrics, error) {
	if err := a.BeginTurn(sessionID); err != nil {
		return quality.TurnMetrics{}, err
	}
	for _, name := range turn.Names(toolCalls) {
		if err := a.RecordToolCall(sessionID, name); err != nil {
			return quality.TurnMetrics{}, err
		}
	}
	return a.CompleteTurn(sessionID, userInput, agentResponse, toolCalls, result)
}

// Stage returns the session's current conversation stage.
func (a *Analytics) Stage(sessionID string) (stage.Stage, error) {
	entry, err := a.entry(sessionID)
	if err != nil {
		return "", err
	}
	return entry.state.State().Stage, nil
}

// SessionState returns a copy of the session state.
func (a *Analytics) SessionState(sessionID string) (*session.State, error) {
	entry, err := a.entry(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.state.State().Clone(), nil
}

// UserContext returns the session's current user context.
func (a *Analytics) UserContext(sessionID string) (*usercontext.Context, error) {
	entry, err := a.entry(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.context.Context().Clone(), nil
}

// PromptContext renders the injectable prompt context for the next turn:
// the recent conversation summaries followed by the user context block.
// Sections without content are omitted.
func (a *Analytics) PromptContext(sessionID string) (string, error) {
	entry, err := a.entry(sessionID)
	if err != nil {
		return "", err
	}
	sections := make([]string, 0, 2)
	if memoryContext := entry.memory.ContextForPrompt(); memoryContext != "" {
		sections = append(sections, memoryContext)
	}
	if injection := entry.context.PromptInjection(); injection != "" {
		sections = append(sections, injection)
	}
	return joinSections(sections), nil
}

// QualitySummary returns the session's quality digest.
func (a *Analytics) QualitySummary(sessionID string) (quality.Summary, error) {
	entry, err := a.entry(sessionID)
	if err != nil {
		return quality.Summary{}, err
	}
	return entry.quality.Summary(), nil
}

// ClearSession drops every piece of state belonging to the session.
func (a *Analytics) ClearSession(sessionID string) error {
	entry, err := a.entry(sessionID)
	if err != nil {
		return err
	}
	entry.state.ClearSession()
	entry.context.Clear()
	entry.memory.Clear()

	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()
	return nil
}

// SaveSnapshot persists the session's memory and user context as JSON files
// under dir, asynchronously and best-effort. The snapshots are marshalled on
// the calling goroutine, so the caller's single-writer guarantee covers them.
func (a *Analytics) SaveSnapshot(sessionID, dir string) error {
	entry, err := a.entry(sessionID)
	if err != nil {
		return err
	}
	memoryData, err := entry.memory.Snapshot()
	if err != nil {
		return err
	}
	contextData, err := entry.context.Snapshot()
	if err != nil {
		return err
	}
	a.persister.enqueue(&snapshotJob{path: memoryPath(dir, sessionID), data: memoryData})
	a.persister.enqueue(&snapshotJob{path: contextPath(dir, sessionID), data: contextData})
	return nil
}

// RestoreSession rebuilds a session from snapshots written by SaveSnapshot.
// Load failures are propagated; a corrupted history file must not silently
// produce an empty session.
func (a *Analytics) RestoreSession(sessionID, dir string) error {
	if _, err := a.StartSession(sessionID); err != nil {
		return err
	}
	entry, err := a.entry(sessionID)
	if err != nil {
		return err
	}

	if err := entry.memory.LoadFile(memoryPath(dir, sessionID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	contextManager, err := usercontext.LoadManager(contextPath(dir, sessionID), a.extractor)
	switch {
	case err == nil:
		entry.context = contextManager
	case errors.Is(err, os.ErrNotExist):
		// No context snapshot; keep the empty manager.
	default:
		return err
	}
	log.Infof("session restored: %s", sessionID)
	return nil
}

func memoryPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".memory.json")
}

func contextPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".context.json")
}

func joinSections(sections []string) string {
	switch len(sections) {
	case 0:
		return ""
	case 1:
		return sections[0]
	default:
		return sections[0] + "\n\n" + sections[1]
	}
}
