//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

package usercontext

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-dialogue-go/log"
	"trpc.group/trpc-go/trpc-dialogue-go/turn"
)

// Extractor produces a partial context from one turn of conversation.
// The canonical implementation lives in usercontext/extractor.
type Extractor interface {
	ExtractFromConversation(userInput, agentResponse string, toolCalls []turn.ToolRecord) *Context
}

// Manager owns the user context of one session: it merges newly extracted
// information every turn, keeps pre-merge history snapshots for audit, and
// persists best-effort JSON snapshots.
type Manager struct {
	sessionID string
	context   *Context
	extractor Extractor
	history   []*Context
}

// NewManager creates a manager with an empty context.
func NewManager(sessionID string, extractor Extractor) *Manager {
	return &Manager{
		sessionID: sessionID,
		context:   New(),
		extractor: extractor,
	}
}

// SessionID returns the owning session id.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// Context returns the current context. Callers must not retain it across
// turns without cloning.
func (m *Manager) Context() *Context {
	return m.context
}

// History returns the pre-merge context snapshots, oldest first.
func (m *Manager) History() []*Context {
	return m.history
}

// UpdateFromConversation extracts information from the turn and merges it
// into the session context. A snapshot of the pre-merge state is kept when
// the extraction produced anything.
func (m *Manager) UpdateFromConversation(userInput, agentResponse string, toolCalls []turn.ToolRecord) {
	incoming := m.extractor.ExtractFromConversation(userInput, agentResponse, toolCalls)
	if incoming == nil || incoming.IsEmpty() {
		return
	}
	m.history = append(m.history, m.context.Clone())
	m.context.Merge(incoming)
	log.Infof("user context updated: %s", m.formatSummary())
}

// SetRecentOrder explicitly records an order id, with the same validation as
// extraction. Invalid ids are ignored.
func (m *Manager) SetRecentOrder(orderID string) {
	if orderID == "" {
		return
	}
	if !IsValidOrderID(orderID) {
		log.Debugf("ignoring invalid order id: %s", orderID)
		return
	}
	m.history = append(m.history, m.context.Clone())
	m.context.AddOrderID(orderID)
	m.context.RecentOrderID = orderID
	m.context.LastUpdated = time.Now()
	log.Infof("recent order set explicitly: %s", orderID)
}

// PromptInjection returns the context rendered for prompt injection, or an
// empty string when there is nothing to inject.
func (m *Manager) PromptInjection() string {
	if m.context.IsEmpty() {
		return ""
	}
	return m.context.ToPromptContext()
}

// Clear resets the context and drops the history.
func (m *Manager) Clear() {
	m.context = New()
	m.history = nil
	log.Infof("user context cleared: session=%s", m.sessionID)
}

// snapshotFile is the persisted context file layout.
type snapshotFile struct {
	SessionID string     `json:"session_id"`
	Context   *Context   `json:"context"`
	History   []*Context `json:"history"`
}

// Snapshot marshals the context file layout. Callers that persist
// asynchronously take the snapshot on the owning goroutine and hand only the
// bytes to the writer.
func (m *Manager) Snapshot() ([]byte, error) {
	data, err := json.MarshalIndent(snapshotFile{
		SessionID: m.sessionID,
		Context:   m.context,
		History:   m.history,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal user context: %w", err)
	}
	return data, nil
}

// SaveFile writes the context and its history to a JSON file. Persistence is
// best-effort: failures are logged and returned, and the in-memory state
// stays valid either way.
func (m *Manager) SaveFile(path string) error {
	data, err := m.Snapshot()
	if err != nil {
		log.Errorf("marshal user context failed: %v", err)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Errorf("save user context failed: %v", err)
		return fmt.Errorf("save user context: %w", err)
	}
	log.Infof("user context saved: %s", path)
	return nil
}

// LoadManager restores a manager from a file written by SaveFile. Unlike
// saving, load failures are propagated: the caller must know that a session
// history could not be restored.
func LoadManager(path string, extractor Extractor) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read user context file: %w", err)
	}
	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode user context file: %w", err)
	}
	m := NewManager(file.SessionID, extractor)
	if file.Context != nil {
		m.context = file.Context
	}
	m.history = file.History
	log.Infof("user context loaded: %s", path)
	return m, nil
}

// formatSummary renders a masked one-line summary for logs: only the last 4
// digits of the phone and the last 8 characters of the order id are shown.
func (m *Manager) formatSummary() string {
	var parts []string
	if m.context.UserID != nil {
		parts = append(parts, fmt.Sprintf("user_id=%d", *m.context.UserID))
	}
	if phone := m.context.Phone; len(phone) >= 4 {
		parts = append(parts, "phone="+phone[len(phone)-4:])
	}
	if orderID := m.context.RecentOrderID; len(orderID) >= 8 {
		parts = append(parts, "order="+orderID[len(orderID)-8:])
	}
	if m.context.RecentProductID != nil {
		parts = append(parts, fmt.Sprintf("product=%d", *m.context.RecentProductID))
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, ", ")
}
