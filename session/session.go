//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package session tracks shopping-dialogue session state: the conversation
// stage, the product and order the user is currently working with, and a
// short intent history. Each State is owned by exactly one session and must
// be driven by a single writer at a time.
package session

import (
	"errors"
	"time"

	"github.com/spaolacci/murmur3"

	"trpc.group/trpc-go/trpc-dialogue-go/stage"
)

// ErrSessionIDRequired is the error for session id required.
var ErrSessionIDRequired = errors.New("sessionID is required")

const (
	// maxIntentHistory bounds the intent ring; the oldest entries are dropped.
	maxIntentHistory = 10
	// maxViewedProducts bounds the viewed-product list with FIFO eviction.
	maxViewedProducts = 5
)

// State is the mutable per-session conversation state.
type State struct {
	SessionID        string      `json:"session_id"`
	Stage            stage.Stage `json:"stage"`
	CurrentProductID int         `json:"current_product_id,omitempty"`
	CurrentOrderID   string      `json:"current_order_id,omitempty"`
	RecentOrderID    string      `json:"recent_order_id,omitempty"`
	CartItemCount    int         `json:"cart_item_count"`
	ViewedProductIDs []int       `json:"viewed_product_ids,omitempty"`
	IntentHistory    []string    `json:"intent_history,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	LastActive       time.Time   `json:"last_active"`

	// Hash is the pre-computed slot hash for per-session work dispatching.
	// It is calculated once during session creation using murmur3 of the
	// session id and never modified afterwards.
	Hash int `json:"-"`
}

// NewState creates session state in the initial greeting stage.
func NewState(sessionID string) (*State, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	now := time.Now()
	return &State{
		SessionID:  sessionID,
		Stage:      stage.Greeting,
		CreatedAt:  now,
		LastActive: now,
		Hash:       SlotHash(sessionID),
	}, nil
}

// SlotHash computes the murmur3 dispatch hash for a session id. Callers that
// serialize turns with one worker per session use it to pick a worker slot.
func SlotHash(sessionID string) int {
	return int(murmur3.Sum32([]byte(sessionID)))
}

// AddIntent appends an intent to the history, keeping only the most recent
// entries.
func (s *State) AddIntent(intent string) {
	s.IntentHistory = append(s.IntentHistory, intent)
	if len(s.IntentHistory) > maxIntentHistory {
		s.IntentHistory = s.IntentHistory[len(s.IntentHistory)-maxIntentHistory:]
	}
	s.LastActive = time.Now()
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	copied := *s
	copied.ViewedProductIDs = append([]int(nil), s.ViewedProductIDs...)
	copied.IntentHistory = append([]string(nil), s.IntentHistory...)
	return &copied
}
