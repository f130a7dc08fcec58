//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

package quality

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"trpc.group/trpc-go/trpc-dialogue-go/log"
	"trpc.group/trpc-go/trpc-dialogue-go/telemetry"
)

// ErrTurnNotStarted is returned by EndTurn when no turn is open. This is a
// caller bug, not a recoverable condition.
var ErrTurnNotStarted = errors.New("EndTurn called without a preceding StartTurn")

// TurnResult carries the caller-provided assessment of a finished turn.
type TurnResult struct {
	TaskCompleted      bool
	Outcome            Outcome
	NeedsClarification bool
	ProactiveGuidance  bool
	UserSatisfaction   *Satisfaction
}

// Tracker records per-turn quality metrics for one session. Within a turn
// callers must invoke StartTurn before any RecordToolCall, and EndTurn once
// per StartTurn; the caller guarantees at most one in-flight turn.
type Tracker struct {
	metrics SessionMetrics

	turnStarted bool
	turnStart   time.Time
	toolBuffer  []string

	now func() time.Time
}

// NewTracker creates a tracker for one session.
func NewTracker(sessionID string) *Tracker {
	return &Tracker{
		metrics: SessionMetrics{SessionID: sessionID},
		now:     time.Now,
	}
}

// StartTurn opens a new turn: it records the start timestamp and clears the
// tool-name buffer. An unfinished previous turn is silently discarded; no
// metrics are recorded for it.
func (t *Tracker) StartTurn() {
	if t.turnStarted {
		log.Debugf("discarding unfinished turn: session=%s, buffered_tools=%d",
			t.metrics.SessionID, len(t.toolBuffer))
	}
	t.turnStarted = true
	t.turnStart = t.now()
	t.toolBuffer = nil
}

// RecordToolCall appends a tool name to the open turn's buffer.
func (t *Tracker) RecordToolCall(toolName string) {
	t.toolBuffer = append(t.toolBuffer, toolName)
}

// EndTurn closes the open turn: it computes the response time, appends the
// turn metrics and recomputes every session aggregate. Calling it without a
// preceding StartTurn is a usage error and fails with ErrTurnNotStarted.
func (t *Tracker) EndTurn(result TurnResult) (TurnMetrics, error) {
	if !t.turnStarted {
		return TurnMetrics{}, ErrTurnNotStarted
	}

	turnMetrics := TurnMetrics{
		TurnID:              len(t.metrics.Turns) + 1,
		ResponseTimeSeconds: t.now().Sub(t.turnStart).Seconds(),
		ToolCallsCount:      len(t.toolBuffer),
		ToolCallNames:       append([]string(nil), t.toolBuffer...),
		TaskCompleted:       result.TaskCompleted,
		Outcome:             result.Outcome,
		NeedsClarification:  result.NeedsClarification,
		ProactiveGuidance:   result.ProactiveGuidance,
		UserSatisfaction:    result.UserSatisfaction,
	}

	t.metrics.Turns = append(t.metrics.Turns, turnMetrics)
	t.metrics.computeStats()

	t.turnStarted = false
	t.toolBuffer = nil

	telemetry.RecordTurn(context.Background(),
		turnMetrics.ResponseTimeSeconds, turnMetrics.ToolCallsCount, string(turnMetrics.Outcome))
	return turnMetrics, nil
}

// Metrics returns the session metrics. The returned value shares the turn
// list; callers must treat it as read-only.
func (t *Tracker) Metrics() *SessionMetrics {
	return &t.metrics
}

// Summary returns the session quality digest.
func (t *Tracker) Summary() Summary {
	return t.metrics.Summary()
}

// export is the full JSON dump layout.
type export struct {
	SessionID string        `json:"session_id"`
	Summary   Summary       `json:"summary"`
	Turns     []TurnMetrics `json:"turns"`
}

// ExportJSON dumps the summary and every turn as indented JSON.
func (t *Tracker) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(export{
		SessionID: t.metrics.SessionID,
		Summary:   t.metrics.Summary(),
		Turns:     t.metrics.Turns,
	}, "", "  ")
}
