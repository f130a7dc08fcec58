//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package quality scores conversation sessions along three banded
// dimensions: efficiency (response time and tool usage), task completion and
// conversational fluency. Aggregates are recomputed deterministically from
// the full turn list on every append.
package quality

import (
	"math"
)

// Outcome is the completion status of one turn's task.
type Outcome string

// Task outcomes.
const (
	OutcomeSuccess     Outcome = "success"
	OutcomePartial     Outcome = "partial"
	OutcomeFailed      Outcome = "failed"
	OutcomeInterrupted Outcome = "interrupted"
)

// Valid reports whether o is one of the defined outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeFailed, OutcomeInterrupted:
		return true
	}
	return false
}

// Satisfaction is an optional manual user-satisfaction annotation.
type Satisfaction int

// Satisfaction levels.
const (
	VeryDissatisfied Satisfaction = 1
	Dissatisfied     Satisfaction = 2
	Neutral          Satisfaction = 3
	Satisfied        Satisfaction = 4
	VerySatisfied    Satisfaction = 5
)

// Valid reports whether s is within the annotated range.
func (s Satisfaction) Valid() bool {
	return s >= VeryDissatisfied && s <= VerySatisfied
}

// TurnMetrics holds the quality indicators of one turn. It is immutable
// after creation.
type TurnMetrics struct {
	TurnID              int           `json:"turn_id"`
	ResponseTimeSeconds float64       `json:"response_time"`
	ToolCallsCount      int           `json:"tool_calls_count"`
	ToolCallNames       []string      `json:"tool_calls_names,omitempty"`
	TaskCompleted       bool          `json:"task_completed"`
	Outcome             Outcome       `json:"outcome,omitempty"`
	NeedsClarification  bool          `json:"needs_clarification"`
	ProactiveGuidance   bool          `json:"proactive_guidance"`
	UserSatisfaction    *Satisfaction `json:"user_satisfaction,omitempty"`
}

// SessionMetrics is the ordered turn list plus cached aggregates. The
// aggregates are derived state: computeStats rebuilds all of them from the
// turn list and is invoked after every append.
type SessionMetrics struct {
	SessionID string        `json:"session_id"`
	Turns     []TurnMetrics `json:"turns"`

	TotalTurns        int     `json:"total_turns"`
	TotalResponseTime float64 `json:"total_response_time"`
	TotalToolCalls    int     `json:"total_tool_calls"`

	SuccessfulTasks int `json:"successful_tasks"`
	FailedTasks     int `json:"failed_tasks"`

	ClarificationRate float64 `json:"clarification_rate"`
	ProactiveRate     float64 `json:"proactive_rate"`

	AvgSatisfaction *float64 `json:"avg_satisfaction,omitempty"`
}

// computeStats recomputes every aggregate from the full turn list.
func (s *SessionMetrics) computeStats() {
	s.TotalTurns = len(s.Turns)
	if s.TotalTurns == 0 {
		return
	}

	s.TotalResponseTime = 0
	s.TotalToolCalls = 0
	s.SuccessfulTasks = 0
	s.FailedTasks = 0
	clarificationCount := 0
	proactiveCount := 0
	satisfactionSum := 0
	satisfactionCount := 0

	for _, t := range s.Turns {
		s.TotalResponseTime += t.ResponseTimeSeconds
		s.TotalToolCalls += t.ToolCallsCount
		// A turn is successful only when the task completed with a success
		// outcome; a completed-but-partial turn does not count.
		if t.TaskCompleted && t.Outcome == OutcomeSuccess {
			s.SuccessfulTasks++
		}
		if t.Outcome == OutcomeFailed {
			s.FailedTasks++
		}
		if t.NeedsClarification {
			clarificationCount++
		}
		if t.ProactiveGuidance {
			proactiveCount++
		}
		if t.UserSatisfaction != nil {
			satisfactionSum += int(*t.UserSatisfaction)
			satisfactionCount++
		}
	}

	s.ClarificationRate = float64(clarificationCount) / float64(s.TotalTurns)
	s.ProactiveRate = float64(proactiveCount) / float64(s.TotalTurns)
	if satisfactionCount > 0 {
		avg := float64(satisfactionSum) / float64(satisfactionCount)
		s.AvgSatisfaction = &avg
	} else {
		s.AvgSatisfaction = nil
	}
}

// SuccessRate returns the fraction of successful turns.
func (s *SessionMetrics) SuccessRate() float64 {
	if s.TotalTurns == 0 {
		return 0
	}
	return float64(s.SuccessfulTasks) / float64(s.TotalTurns)
}

// Score computes the composite quality score (0-100) with fixed banding, no
// interpolation: efficiency contributes up to 30, completion up to 40 and
// fluency up to 30.
func (s *SessionMetrics) Score() float64 {
	if s.TotalTurns == 0 {
		return 0
	}

	avgResponseTime := s.TotalResponseTime / float64(s.TotalTurns)
	avgToolCalls := float64(s.TotalToolCalls) / float64(s.TotalTurns)

	var timeScore float64
	switch {
	case avgResponseTime < 2.0:
		timeScore = 15
	case avgResponseTime < 5.0:
		timeScore = 10
	default:
		timeScore = 5
	}

	var toolScore float64
	switch {
	case avgToolCalls <= 2:
		toolScore = 15
	case avgToolCalls <= 4:
		toolScore = 10
	default:
		toolScore = 5
	}

	efficiency := timeScore + toolScore
	completion := s.SuccessRate() * 40
	fluency := 15 - s.ClarificationRate*15 + s.ProactiveRate*15
	fluency = math.Max(0, math.Min(30, fluency))

	return round2(efficiency + completion + fluency)
}

// Summary is the exported session quality digest.
type Summary struct {
	SessionID           string              `json:"session_id"`
	TotalTurns          int                 `json:"total_turns"`
	QualityScore        float64             `json:"quality_score"`
	Efficiency          EfficiencySummary   `json:"efficiency"`
	TaskCompletion      CompletionSummary   `json:"task_completion"`
	ConversationQuality ConversationSummary `json:"conversation_quality"`
	UserSatisfaction    *float64            `json:"user_satisfaction,omitempty"`
}

// EfficiencySummary groups the efficiency aggregates.
type EfficiencySummary struct {
	AvgResponseTime float64 `json:"avg_response_time"`
	AvgToolCalls    float64 `json:"avg_tool_calls"`
	TotalToolCalls  int     `json:"total_tool_calls"`
}

// CompletionSummary groups the task-completion aggregates.
type CompletionSummary struct {
	SuccessfulTasks int     `json:"successful_tasks"`
	FailedTasks     int     `json:"failed_tasks"`
	SuccessRate     float64 `json:"success_rate"`
}

// ConversationSummary groups the fluency aggregates.
type ConversationSummary struct {
	ClarificationRate float64 `json:"clarification_rate"`
	ProactiveRate     float64 `json:"proactive_rate"`
}

// Summary builds the exported digest of the session.
func (s *SessionMetrics) Summary() Summary {
	summary := Summary{
		SessionID:    s.SessionID,
		TotalTurns:   s.TotalTurns,
		QualityScore: s.Score(),
		Efficiency: EfficiencySummary{
			TotalToolCalls: s.TotalToolCalls,
		},
		TaskCompletion: CompletionSummary{
			SuccessfulTasks: s.SuccessfulTasks,
			FailedTasks:     s.FailedTasks,
		},
		ConversationQuality: ConversationSummary{
			ClarificationRate: round2(s.ClarificationRate),
			ProactiveRate:     round2(s.ProactiveRate),
		},
		UserSatisfaction: s.AvgSatisfaction,
	}
	if s.TotalTurns > 0 {
		summary.Efficiency.AvgResponseTime = round2(s.TotalResponseTime / float64(s.TotalTurns))
		summary.Efficiency.AvgToolCalls = round2(float64(s.TotalToolCalls) / float64(s.TotalTurns))
		summary.TaskCompletion.SuccessRate = round2(s.SuccessRate())
	}
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
