//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferFromTools(t *testing.T) {
	tests := []struct {
		name      string
		toolNames []string
		want      Stage
	}{
		{name: "search maps to browsing", toolNames: []string{"search_products"}, want: Browsing},
		{name: "search matched by substring", toolNames: []string{"ontology_search_products_v2"}, want: Browsing},
		{name: "product detail maps to selecting", toolNames: []string{"get_product_detail"}, want: Selecting},
		{name: "cart tools map to cart", toolNames: []string{"add_to_cart"}, want: CartManagement},
		{name: "view cart maps to cart", toolNames: []string{"view_cart"}, want: CartManagement},
		{name: "create order maps to checkout", toolNames: []string{"create_order"}, want: Checkout},
		{name: "payment maps to tracking", toolNames: []string{"process_payment"}, want: OrderTracking},
		{name: "shipping maps to tracking", toolNames: []string{"track_shipment"}, want: OrderTracking},
		{name: "support ticket maps to service", toolNames: []string{"create_support_ticket"}, want: CustomerService},
		{name: "return maps to service", toolNames: []string{"process_return"}, want: CustomerService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, ok := Infer("随便说点什么", tt.toolNames)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, reason, "tool:")
		})
	}
}

// Tool rules outrank keyword fallbacks: a search tool wins even when the
// input mentions returns.
func TestInferToolRulePriority(t *testing.T) {
	got, _, ok := Infer("我要退货", []string{"search_products"})
	assert.True(t, ok)
	assert.Equal(t, Browsing, got)
}

func TestInferFromKeywords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Stage
	}{
		{name: "browse keyword", input: "帮我找一款蓝牙耳机", want: Browsing},
		{name: "recommend keyword", input: "有什么推荐的吗", want: Browsing},
		{name: "cart keyword", input: "加入购物车", want: CartManagement},
		{name: "checkout keyword", input: "我要下单", want: Checkout},
		{name: "payment keyword", input: "怎么支付", want: Checkout},
		{name: "tracking keyword", input: "我的快递到哪了", want: OrderTracking},
		{name: "service keyword", input: "我要退货", want: CustomerService},
		{name: "complaint keyword", input: "我要投诉", want: CustomerService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, ok := Infer(tt.input, nil)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, reason, "keyword:")
		})
	}
}

// Keyword lists are tested in priority order: "购物车" (cart) appears before
// the checkout list, so a mixed sentence resolves to cart management.
func TestInferKeywordPriority(t *testing.T) {
	got, _, ok := Infer("把购物车里的东西都购买了", nil)
	assert.True(t, ok)
	assert.Equal(t, CartManagement, got)
}

func TestInferNoMatch(t *testing.T) {
	_, _, ok := Infer("你好", nil)
	assert.False(t, ok)

	_, _, ok = Infer("hello there", []string{"unrelated_tool"})
	assert.False(t, ok)
}

func TestStageValid(t *testing.T) {
	for _, s := range []Stage{Greeting, Browsing, Selecting, CartManagement,
		Checkout, OrderTracking, CustomerService, Idle} {
		assert.True(t, s.Valid(), "stage %q should be valid", s)
	}
	assert.False(t, Stage("unknown").Valid())
	assert.False(t, Stage("").Valid())
}
