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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by a fixed step on every call, so response times are
// deterministic.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newTestTracker(step time.Duration) *Tracker {
	tracker := NewTracker("sess-1")
	clock := &fakeClock{now: time.Unix(1700000000, 0), step: step}
	tracker.now = clock.Now
	return tracker
}

func TestEndTurnWithoutStartTurn(t *testing.T) {
	tracker := NewTracker("sess-1")
	_, err := tracker.EndTurn(TurnResult{})
	assert.ErrorIs(t, err, ErrTurnNotStarted)
}

func TestTurnLifecycle(t *testing.T) {
	tracker := newTestTracker(1500 * time.Millisecond)

	tracker.StartTurn()
	tracker.RecordToolCall("search_products")
	tracker.RecordToolCall("get_product_detail")
	turn, err := tracker.EndTurn(TurnResult{
		TaskCompleted: true,
		Outcome:       OutcomeSuccess,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, turn.TurnID)
	assert.InDelta(t, 1.5, turn.ResponseTimeSeconds, 1e-9)
	assert.Equal(t, 2, turn.ToolCallsCount)
	assert.Equal(t, []string{"search_products", "get_product_detail"}, turn.ToolCallNames)

	// EndTurn closes the turn; a second EndTurn is a usage error.
	_, err = tracker.EndTurn(TurnResult{})
	assert.ErrorIs(t, err, ErrTurnNotStarted)
}

// A StartTurn over an unfinished turn discards the buffer without recording
// metrics.
func TestStartTurnDiscardsUnfinishedTurn(t *testing.T) {
	tracker := newTestTracker(time.Second)

	tracker.StartTurn()
	tracker.RecordToolCall("search_products")

	tracker.StartTurn()
	turn, err := tracker.EndTurn(TurnResult{})
	require.NoError(t, err)

	assert.Equal(t, 1, turn.TurnID)
	assert.Zero(t, turn.ToolCallsCount)
	assert.Equal(t, 1, tracker.Metrics().TotalTurns)
}

func TestAggregates(t *testing.T) {
	tracker := newTestTracker(time.Second)

	outcomes := []TurnResult{
		{TaskCompleted: true, Outcome: OutcomeSuccess},
		{TaskCompleted: true, Outcome: OutcomePartial}, // completed but not successful
		{Outcome: OutcomeFailed, NeedsClarification: true},
		{TaskCompleted: true, Outcome: OutcomeSuccess, ProactiveGuidance: true},
	}
	for _, result := range outcomes {
		tracker.StartTurn()
		tracker.RecordToolCall("some_tool")
		_, err := tracker.EndTurn(result)
		require.NoError(t, err)
	}

	m := tracker.Metrics()
	assert.Equal(t, 4, m.TotalTurns)
	assert.Equal(t, 2, m.SuccessfulTasks)
	assert.Equal(t, 1, m.FailedTasks)
	assert.Equal(t, 4, m.TotalToolCalls)
	assert.InDelta(t, 0.25, m.ClarificationRate, 1e-9)
	assert.InDelta(t, 0.25, m.ProactiveRate, 1e-9)
	assert.InDelta(t, 0.5, m.SuccessRate(), 1e-9)
}

func TestAvgSatisfaction(t *testing.T) {
	tracker := newTestTracker(time.Second)

	satisfied := Satisfied
	verySatisfied := VerySatisfied
	for _, s := range []*Satisfaction{&satisfied, nil, &verySatisfied} {
		tracker.StartTurn()
		_, err := tracker.EndTurn(TurnResult{UserSatisfaction: s})
		require.NoError(t, err)
	}

	require.NotNil(t, tracker.Metrics().AvgSatisfaction)
	assert.InDelta(t, 4.5, *tracker.Metrics().AvgSatisfaction, 1e-9)
}

// A perfect session scores 100: fast turns, few tools, full success,
// proactive guidance on every turn.
func TestScorePerfectSession(t *testing.T) {
	tracker := newTestTracker(1500 * time.Millisecond)

	for i := 0; i < 2; i++ {
		tracker.StartTurn()
		tracker.RecordToolCall("search_products")
		if i == 0 {
			tracker.RecordToolCall("get_product_detail")
		}
		_, err := tracker.EndTurn(TurnResult{
			TaskCompleted:     true,
			Outcome:           OutcomeSuccess,
			ProactiveGuidance: true,
		})
		require.NoError(t, err)
	}

	// avgResponseTime=1.5s -> 15; avgToolCalls=1.5 -> 15; successRate=1 -> 40;
	// fluency = min(30, 15-0+15) = 30.
	assert.Equal(t, 100.0, tracker.Metrics().Score())
}

func TestScoreBanding(t *testing.T) {
	tests := []struct {
		name      string
		turns     []TurnMetrics
		wantScore float64
	}{
		{
			name:      "empty session scores zero",
			wantScore: 0,
		},
		{
			name: "mid band response time",
			turns: []TurnMetrics{
				{ResponseTimeSeconds: 3.0, ToolCallsCount: 1},
			},
			// time 10 + tool 15 + completion 0 + fluency 15.
			wantScore: 40,
		},
		{
			name: "slow and tool heavy",
			turns: []TurnMetrics{
				{ResponseTimeSeconds: 6.0, ToolCallsCount: 5, NeedsClarification: true},
			},
			// time 5 + tool 5 + completion 0 + fluency max(0, 15-15) = 0.
			wantScore: 10,
		},
		{
			name: "boundary avg of exactly 2s falls in mid band",
			turns: []TurnMetrics{
				{ResponseTimeSeconds: 2.0, ToolCallsCount: 2},
			},
			// time 10 (2.0 is not < 2.0) + tool 15 (2 <= 2) + fluency 15.
			wantScore: 40,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &SessionMetrics{SessionID: "sess-1", Turns: tt.turns}
			m.computeStats()
			assert.Equal(t, tt.wantScore, m.Score())
		})
	}
}

// Fluency is clamped to [0, 30] even when proactive guidance would push it
// past the band.
func TestScoreFluencyClamp(t *testing.T) {
	m := &SessionMetrics{SessionID: "sess-1", Turns: []TurnMetrics{
		{ResponseTimeSeconds: 1.0, ToolCallsCount: 1, ProactiveGuidance: true},
	}}
	m.computeStats()
	// time 15 + tool 15 + completion 0 + fluency min(30, 15+15) = 30.
	assert.Equal(t, 60.0, m.Score())
}

func TestSummary(t *testing.T) {
	tracker := newTestTracker(time.Second)
	tracker.StartTurn()
	tracker.RecordToolCall("view_cart")
	_, err := tracker.EndTurn(TurnResult{TaskCompleted: true, Outcome: OutcomeSuccess})
	require.NoError(t, err)

	summary := tracker.Summary()
	assert.Equal(t, "sess-1", summary.SessionID)
	assert.Equal(t, 1, summary.TotalTurns)
	assert.Equal(t, 1.0, summary.Efficiency.AvgResponseTime)
	assert.Equal(t, 1.0, summary.Efficiency.AvgToolCalls)
	assert.Equal(t, 1, summary.Efficiency.TotalToolCalls)
	assert.Equal(t, 1.0, summary.TaskCompletion.SuccessRate)
	assert.Equal(t, 100.0, summary.QualityScore)
}

func TestExportJSON(t *testing.T) {
	tracker := newTestTracker(time.Second)
	tracker.StartTurn()
	_, err := tracker.EndTurn(TurnResult{Outcome: OutcomeInterrupted})
	require.NoError(t, err)

	data, err := tracker.ExportJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sess-1", decoded["session_id"])
	turns, ok := decoded["turns"].([]any)
	require.True(t, ok)
	assert.Len(t, turns, 1)
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, OutcomeSuccess.Valid())
	assert.True(t, OutcomeInterrupted.Valid())
	assert.False(t, Outcome("unknown").Valid())
	assert.False(t, Outcome("").Valid())

	assert.True(t, Neutral.Valid())
	assert.False(t, Satisfaction(0).Valid())
	assert.False(t, Satisfaction(6).Valid())
}
