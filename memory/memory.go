//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package memory keeps a size-bounded, loss-aware log of turn summaries for
// prompt injection. Overflowed turns are merged into a rollup entry instead
// of being dropped, so old context degrades gracefully rather than vanishing.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-dialogue-go/log"
	"trpc.group/trpc-go/trpc-dialogue-go/turn"
)

const (
	// defaultMaxHistory is the default number of retained entries.
	defaultMaxHistory = 10
	// defaultMaxSummaryLength is the default number of summaries injected
	// into the prompt.
	defaultMaxSummaryLength = 5

	// Source text is truncated before summarization.
	userInputSummaryRunes     = 100
	agentResponseSummaryRunes = 50

	// promptHeader prefixes the rendered history context.
	promptHeader = "# 对话历史摘要"
	// rollupSeparator joins overflowed summaries inside a rollup entry.
	rollupSeparator = " | "
)

// Entry is one stored turn summary.
type Entry struct {
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory is the bounded conversation memory of one session.
type Memory struct {
	maxHistory       int
	maxSummaryLength int
	entries          []Entry
}

// Option configures a Memory.
type Option func(*Memory)

// WithMaxHistory sets the maximum number of retained entries.
func WithMaxHistory(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

// WithMaxSummaryLength sets the number of recent summaries rendered into the
// prompt context. Values above maxHistory are capped at render time.
func WithMaxSummaryLength(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxSummaryLength = n
		}
	}
}

// New creates a conversation memory.
func New(opts ...Option) *Memory {
	m := &Memory{
		maxHistory:       defaultMaxHistory,
		maxSummaryLength: defaultMaxSummaryLength,
	}
	for _, opt := range opts {
		opt(m)
	}
	log.Infof("conversation memory initialized: max_history=%d, max_summary_length=%d",
		m.maxHistory, m.maxSummaryLength)
	return m
}

// AddTurn summarizes one turn, appends it and enforces the history bound.
func (m *Memory) AddTurn(userInput, agentResponse string, toolCalls []turn.ToolRecord) Entry {
	entry := Entry{
		Summary:   summarize(userInput, agentResponse, toolCalls),
		Timestamp: time.Now(),
	}
	m.entries = append(m.entries, entry)
	m.truncate()
	log.Debugf("conversation turn recorded: entries=%d, tools=%d", len(m.entries), len(toolCalls))
	return entry
}

// summarize renders the one-line turn summary: truncated user input, the
// tool names if any, and the truncated agent response.
func summarize(userInput, agentResponse string, toolCalls []turn.ToolRecord) string {
	userSummary := truncateRunes(userInput, userInputSummaryRunes)

	toolSummary := ""
	if len(toolCalls) > 0 {
		toolSummary = ", 调用工具: " + strings.Join(turn.Names(toolCalls), ", ")
	}

	responseSummary := truncateRunes(agentResponse, agentResponseSummaryRunes)
	if responseSummary != agentResponse {
		responseSummary += "..."
	}

	return fmt.Sprintf("用户: %s%s → %s", userSummary, toolSummary, responseSummary)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// truncate enforces the history bound. Entries beyond the most recent ones
// are merged into a single rollup entry placed at position 0; the rollup
// occupies one retained slot, so the total never exceeds maxHistory.
// Overflowed turns are summarized, never silently dropped.
func (m *Memory) truncate() {
	if len(m.entries) <= m.maxHistory {
		return
	}
	keep := m.maxHistory - 1
	cut := len(m.entries) - keep
	overflow := m.entries[:cut]
	retained := m.entries[cut:]

	summaries := make([]string, 0, len(overflow))
	for _, e := range overflow {
		summaries = append(summaries, e.Summary)
	}
	rollup := Entry{
		Summary:   strings.Join(summaries, rollupSeparator),
		Timestamp: overflow[len(overflow)-1].Timestamp,
	}

	merged := make([]Entry, 0, m.maxHistory)
	merged = append(merged, rollup)
	m.entries = append(merged, retained...)
}

// Entries returns the stored entries, oldest first.
func (m *Memory) Entries() []Entry {
	return m.entries
}

// ContextForPrompt renders the most recent summaries, numbered one per line
// under a fixed header, for prompt injection. At most maxSummaryLength (and
// never more than maxHistory) entries are included.
func (m *Memory) ContextForPrompt() string {
	if len(m.entries) == 0 {
		return ""
	}
	n := m.maxSummaryLength
	if n > m.maxHistory {
		n = m.maxHistory
	}
	recent := m.entries
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	lines := []string{promptHeader}
	for i, entry := range recent {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, entry.Summary))
	}
	return strings.Join(lines, "\n")
}

// Clear drops all entries.
func (m *Memory) Clear() {
	count := len(m.entries)
	m.entries = nil
	log.Infof("conversation memory cleared: %d entries removed", count)
}

// Snapshot marshals the entries as a JSON array. Callers that persist
// asynchronously take the snapshot on the owning goroutine and hand only the
// bytes to the writer.
func (m *Memory) Snapshot() ([]byte, error) {
	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal conversation memory: %w", err)
	}
	return data, nil
}

// SaveFile writes the entries as a JSON array. Persistence is best-effort:
// failures are logged and returned, and the in-memory log stays valid.
func (m *Memory) SaveFile(path string) error {
	data, err := m.Snapshot()
	if err != nil {
		log.Errorf("marshal conversation memory failed: %v", err)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Errorf("save conversation memory failed: %v", err)
		return fmt.Errorf("save conversation memory: %w", err)
	}
	log.Infof("conversation memory saved: %s (%d entries)", path, len(m.entries))
	return nil
}

// LoadFile replaces the entries with the contents of a file written by
// SaveFile, then re-applies the history bound so the invariants hold no
// matter what the file contains. Load failures are propagated.
func (m *Memory) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read conversation memory file: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode conversation memory file: %w", err)
	}
	m.entries = entries
	m.truncate()
	log.Infof("conversation memory loaded: %s (%d entries)", path, len(m.entries))
	return nil
}
