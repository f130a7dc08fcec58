//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package turn defines the per-turn event types shared by all analytics components.
// One turn is a user input, an agent response and zero or more tool invocations.
package turn

import (
	"strconv"
)

// ToolRecord is one tool invocation observed during a turn. Input holds the
// structured arguments the tool was dispatched with; Observation is the raw
// textual result returned by the tool (often JSON, but never guaranteed to be).
type ToolRecord struct {
	Tool        string         `json:"tool"`
	Input       map[string]any `json:"input,omitempty"`
	Observation string         `json:"observation,omitempty"`
}

// Names returns the tool names of the given records, in invocation order.
func Names(records []ToolRecord) []string {
	if len(records) == 0 {
		return nil
	}
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Tool)
	}
	return names
}

// IntInput reads an integer argument from the record input. JSON decoding
// yields float64 for numbers, and some callers pass numeric strings, so all
// three representations are accepted.
func (r ToolRecord) IntInput(key string) (int, bool) {
	v, ok := r.Input[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// StringInput reads a string argument from the record input. Numeric values
// are formatted rather than rejected, mirroring the tolerant reads used for
// tool payloads elsewhere.
func (r ToolRecord) StringInput(key string) (string, bool) {
	v, ok := r.Input[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatInt(int64(s), 10), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	default:
		return "", false
	}
}
