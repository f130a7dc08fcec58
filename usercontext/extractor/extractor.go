//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package extractor implements best-effort, regex-driven extraction of user
// context fields from free text and tool payloads. The bounds it enforces
// ([1,9999] product ids, >=18 char ORD order ids, CN mobile phones) are
// heuristics tuned to one deployment's id formats; do not widen them without
// a source of truth.
package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-dialogue-go/log"
	"trpc.group/trpc-go/trpc-dialogue-go/turn"
	"trpc.group/trpc-go/trpc-dialogue-go/usercontext"
)

// minAddressRunes is the minimum accepted address length after trimming.
const minAddressRunes = 5

var (
	userIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)用户\s*ID[：:\s]*(\d+)`),
		regexp.MustCompile(`(?i)user_id[：:=\s]+(\d+)`),
		regexp.MustCompile(`用户编号[：:\s]*(\d+)`),
		// Bare "用户 N" form, capped at 6 digits to avoid swallowing phones.
		regexp.MustCompile(`用户[：:\s]+(\d{1,6})\b`),
	}
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:电话|手机|联系方式)[：:\s]+(1[3-9]\d{9})`),
		regexp.MustCompile(`(?i)(?:phone|mobile|contact_phone)[：:=\s]+(1[3-9]\d{9})`),
		regexp.MustCompile(`\b(1[3-9]\d{9})\b`),
	}
	orderIDPatterns = []*regexp.Regexp{
		// Only complete order numbers: ORD prefix plus at least 15 digits.
		regexp.MustCompile(`\b(ORD\d{15,})\b`),
		regexp.MustCompile(`订单号?[：:\s]+(ORD\d{15,})`),
		regexp.MustCompile(`(?i)order_id[：:=\s]+(ORD\d{15,})`),
	}
	productIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)商品\s*ID[：:\s]*(\d{1,4})\b`),
		regexp.MustCompile(`(?i)product_id[：:=\s]+(\d{1,4})\b`),
	}
	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:地址|配送地址)[：:\s]+([^，。,\n]{4,50})`),
		regexp.MustCompile(`(?i)(?:address|shipping_address)[：:=\s]+([^,\n]{4,50})`),
	}
)

// Extractor is a stateless pattern matcher over conversation text and tool
// payloads. It is safe for concurrent use.
type Extractor struct{}

var _ usercontext.Extractor = (*Extractor)(nil)

// New creates an extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractFromText scans text and returns a partial context with every field
// family that matched. A pattern miss leaves the field unset; it is never an
// error.
func (e *Extractor) ExtractFromText(text string) *usercontext.Context {
	ctx := usercontext.New()

	// User id: first successful pattern wins.
	for _, pattern := range userIDPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		userID, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		ctx.SetUserID(userID)
		break
	}

	// Phone: first pattern whose capture passes validation wins.
	for _, pattern := range phonePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if usercontext.IsValidPhone(match[1]) {
			ctx.Phone = match[1]
			break
		}
	}

	// Order ids: every valid match across all patterns is collected, and the
	// last match in scan order becomes the recent pointer.
	for _, pattern := range orderIDPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			orderID := match[1]
			if usercontext.IsValidOrderID(orderID) {
				ctx.AddOrderID(orderID)
				ctx.RecentOrderID = orderID
			}
		}
	}

	// Product ids: same collection rule, bounded to the accepted range.
	for _, pattern := range productIDPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			productID, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if usercontext.IsValidProductID(productID) {
				ctx.AddViewedProductID(productID)
				ctx.SetRecentProductID(productID)
			}
		}
	}

	// Address: first sufficiently long match wins.
	for _, pattern := range addressPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		address := strings.TrimSpace(match[1])
		if utf8.RuneCountInString(address) >= minAddressRunes {
			ctx.Address = address
			break
		}
	}

	return ctx
}

// ExtractFromToolCalls mirrors the text field semantics over structured tool
// inputs, and re-runs text extraction over the observation of order-creation
// tools to recover the order id they echo back.
func (e *Extractor) ExtractFromToolCalls(toolCalls []turn.ToolRecord) *usercontext.Context {
	ctx := usercontext.New()

	for _, call := range toolCalls {
		if userID, ok := call.IntInput("user_id"); ok {
			ctx.SetUserID(userID)
		}
		if productID, ok := call.IntInput("product_id"); ok {
			if usercontext.IsValidProductID(productID) {
				ctx.AddViewedProductID(productID)
				ctx.SetRecentProductID(productID)
			}
		}
		if address, ok := call.StringInput("shipping_address"); ok && address != "" {
			ctx.Address = address
		}
		if phone, ok := call.StringInput("contact_phone"); ok {
			if usercontext.IsValidPhone(phone) {
				ctx.Phone = phone
			}
		}
		if orderID, ok := call.StringInput("order_id"); ok {
			if usercontext.IsValidOrderID(orderID) {
				ctx.AddOrderID(orderID)
				ctx.RecentOrderID = orderID
			}
		}

		if strings.Contains(strings.ToLower(call.Tool), "create_order") {
			extracted := e.ExtractFromText(call.Observation)
			if extracted.RecentOrderID != "" && usercontext.IsValidOrderID(extracted.RecentOrderID) {
				ctx.AddOrderID(extracted.RecentOrderID)
				ctx.RecentOrderID = extracted.RecentOrderID
			}
		}
	}

	return ctx
}

// ExtractFromConversation extracts from the full turn, merging the partial
// results in a fixed order: user text, then agent text, then tool calls.
func (e *Extractor) ExtractFromConversation(userInput, agentResponse string, toolCalls []turn.ToolRecord) *usercontext.Context {
	ctx := usercontext.New()
	ctx.Merge(e.ExtractFromText(userInput))
	ctx.Merge(e.ExtractFromText(agentResponse))
	if len(toolCalls) > 0 {
		ctx.Merge(e.ExtractFromToolCalls(toolCalls))
	}

	if !ctx.IsEmpty() {
		var userID any
		if ctx.UserID != nil {
			userID = *ctx.UserID
		}
		log.Debugf("extracted user context: user_id=%v, phone=%q, order_id=%q, product_ids=%d",
			userID, ctx.Phone, ctx.RecentOrderID, len(ctx.ViewedProductIDs))
	}
	return ctx
}
