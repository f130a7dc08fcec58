//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package stage defines the conversation stage machine for shopping dialogues.
// Stages are inferred per turn, first from the tools invoked and then from
// keyword fallbacks over the user input; rules are evaluated in a fixed
// priority order and the first match wins.
package stage

import (
	"strings"
)

// Stage is the task phase a conversation is currently in.
type Stage string

// Conversation stages. The string values are stable and appear in persisted
// session snapshots and logs.
const (
	Greeting        Stage = "greeting"  // initial greeting
	Browsing        Stage = "browsing"  // browsing products
	Selecting       Stage = "selecting" // inspecting one product
	CartManagement  Stage = "cart"      // managing the cart
	Checkout        Stage = "checkout"  // placing an order
	OrderTracking   Stage = "tracking"  // tracking an order
	CustomerService Stage = "service"   // after-sales service
	Idle            Stage = "idle"      // no active task
)

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool {
	switch s {
	case Greeting, Browsing, Selecting, CartManagement, Checkout,
		OrderTracking, CustomerService, Idle:
		return true
	}
	return false
}

// toolRule maps tool-name evidence to a stage. A rule either matches tool
// names by substring or by exact membership, never both.
type toolRule struct {
	substring string
	exact     []string
	stage     Stage
}

// Tool rules in priority order; the first matching rule wins.
var toolRules = []toolRule{
	{substring: "search_products", stage: Browsing},
	{substring: "get_product_detail", stage: Selecting},
	{exact: []string{"add_to_cart", "view_cart", "remove_from_cart"}, stage: CartManagement},
	{substring: "create_order", stage: Checkout},
	{exact: []string{"process_payment", "get_order_detail", "track_shipment"}, stage: OrderTracking},
	{exact: []string{"create_support_ticket", "process_return"}, stage: CustomerService},
}

// keywordRule maps user-input keywords to a stage.
type keywordRule struct {
	keywords []string
	stage    Stage
}

// Keyword fallbacks in priority order, tested only when no tool rule matched.
var keywordRules = []keywordRule{
	{keywords: []string{"搜索", "找", "看看", "推荐", "有什么", "商品"}, stage: Browsing},
	{keywords: []string{"购物车", "加入", "加购", "移除"}, stage: CartManagement},
	{keywords: []string{"下单", "购买", "结算", "支付"}, stage: Checkout},
	{keywords: []string{"订单", "物流", "快递", "发货"}, stage: OrderTracking},
	{keywords: []string{"退货", "换货", "售后", "客服", "投诉"}, stage: CustomerService},
}

// Infer derives the stage implied by this turn's evidence. It returns the
// matched stage together with a human-readable reason for transition logs.
// When neither tool rules nor keyword fallbacks fire, ok is false and the
// caller keeps its current stage (or Idle if it has none).
func Infer(userInput string, toolNames []string) (s Stage, reason string, ok bool) {
	for _, rule := range toolRules {
		for _, name := range toolNames {
			if rule.substring != "" {
				if strings.Contains(name, rule.substring) {
					return rule.stage, "tool:" + name, true
				}
				continue
			}
			for _, exact := range rule.exact {
				if name == exact {
					return rule.stage, "tool:" + name, true
				}
			}
		}
	}

	inputLower := strings.ToLower(userInput)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(inputLower, kw) {
				return rule.stage, "keyword:" + kw, true
			}
		}
	}
	return "", "", false
}
