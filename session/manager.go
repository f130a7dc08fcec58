//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-dialogue-go/log"
	"trpc.group/trpc-go/trpc-dialogue-go/stage"
	"trpc.group/trpc-go/trpc-dialogue-go/turn"
)

// Manager owns the state of one conversation session and applies the
// per-turn stage and tool-result updates.
type Manager struct {
	state *State
}

// NewManager creates a manager with no active session.
func NewManager() *Manager {
	return &Manager{}
}

// InitializeSession starts a fresh session, replacing any previous state.
func (m *Manager) InitializeSession(sessionID string) (*State, error) {
	state, err := NewState(sessionID)
	if err != nil {
		return nil, err
	}
	m.state = state
	log.Infof("session created: %s", sessionID)
	return state, nil
}

// State returns the current session state, or nil if no session is active.
func (m *Manager) State() *State {
	return m.state
}

// UpdateStage infers the stage implied by this turn and applies it. Tool
// evidence outranks keyword fallbacks; when neither fires the stage is left
// unchanged, or set to Idle when no session state exists yet.
func (m *Manager) UpdateStage(userInput string, toolCalls []turn.ToolRecord) stage.Stage {
	newStage, reason, ok := stage.Infer(userInput, turn.Names(toolCalls))
	if !ok {
		if m.state == nil {
			return stage.Idle
		}
		newStage, reason = m.state.Stage, "unchanged"
	}
	if m.state == nil {
		return newStage
	}
	old := m.state.Stage
	m.state.Stage = newStage
	m.state.LastActive = time.Now()
	log.Infof("session stage transition: %s -> %s (session=%s, reason=%s)",
		old, newStage, m.state.SessionID, reason)
	return newStage
}

// viewCartResult is the subset of the view_cart observation we read.
type viewCartResult struct {
	Items []json.RawMessage `json:"items"`
}

// createOrderResult is the subset of the create_order observation we read.
type createOrderResult struct {
	Order struct {
		OrderID string `json:"order_id"`
	} `json:"order"`
}

// ApplyToolResults updates session state from the turn's tool log. Malformed
// observations are ignored; the corresponding fields are left unchanged.
func (m *Manager) ApplyToolResults(toolLog []turn.ToolRecord) {
	if m.state == nil {
		return
	}
	for _, entry := range toolLog {
		switch entry.Tool {
		case "view_cart":
			var result viewCartResult
			if err := json.Unmarshal([]byte(entry.Observation), &result); err != nil {
				continue
			}
			if result.Items != nil {
				m.state.CartItemCount = len(result.Items)
			}
		case "create_order":
			var result createOrderResult
			if err := json.Unmarshal([]byte(entry.Observation), &result); err != nil {
				continue
			}
			if result.Order.OrderID != "" {
				m.state.CurrentOrderID = result.Order.OrderID
				m.state.RecentOrderID = result.Order.OrderID
			}
		case "get_product_detail":
			productID, ok := entry.IntInput("product_id")
			if !ok {
				continue
			}
			if !containsInt(m.state.ViewedProductIDs, productID) {
				m.state.ViewedProductIDs = append(m.state.ViewedProductIDs, productID)
				if len(m.state.ViewedProductIDs) > maxViewedProducts {
					m.state.ViewedProductIDs = m.state.ViewedProductIDs[len(m.state.ViewedProductIDs)-maxViewedProducts:]
				}
			}
			m.state.CurrentProductID = productID
		}
	}
}

// ContextSummary renders a one-line text summary of the session state for
// logs and prompt headers.
func (m *Manager) ContextSummary() string {
	if m.state == nil {
		return "无活跃会话"
	}
	parts := []string{fmt.Sprintf("阶段: %s", m.state.Stage)}
	if m.state.CartItemCount > 0 {
		parts = append(parts, fmt.Sprintf("购物车: %d件", m.state.CartItemCount))
	}
	if m.state.CurrentOrderID != "" {
		parts = append(parts, fmt.Sprintf("当前订单: #%s", m.state.CurrentOrderID))
	}
	if len(m.state.ViewedProductIDs) > 0 {
		parts = append(parts, fmt.Sprintf("浏览过: %d个商品", len(m.state.ViewedProductIDs)))
	}
	return strings.Join(parts, " | ")
}

// ClearSession drops the current session state.
func (m *Manager) ClearSession() {
	if m.state != nil {
		log.Infof("session cleared: %s", m.state.SessionID)
	}
	m.state = nil
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
