//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package usercontext maintains the structured user context extracted from a
// conversation: identity, contact, order and product references. Scalars are
// merged latest-wins; id sets only ever grow through merge. Each Context is
// owned by one session and must never be shared across sessions.
package usercontext

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Product id bounds. Ids outside this range are treated as false positives
// (they collide with order numbers and phone numbers in free text).
const (
	MinProductID = 1
	MaxProductID = 9999
)

// minOrderIDLength is the minimum accepted length of an order id including
// its three-letter prefix. Shorter matches are discarded as false positives.
const minOrderIDLength = 18

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// IsValidOrderID reports whether orderID has the accepted order number
// format: ORD prefix and at least 18 characters in total.
func IsValidOrderID(orderID string) bool {
	return strings.HasPrefix(orderID, "ORD") && len(orderID) >= minOrderIDLength
}

// IsValidPhone reports whether phone is a well-formed CN mobile number.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// IsValidProductID reports whether id is within the accepted product range.
func IsValidProductID(id int) bool {
	return id >= MinProductID && id <= MaxProductID
}

// Context holds the user information accumulated for one session.
// The zero value is not ready to use; call New.
type Context struct {
	UserID   *int
	UserName string
	Phone    string
	Address  string

	RecentOrderID string
	OrderIDs      map[string]struct{}

	RecentProductID  *int
	ViewedProductIDs map[int]struct{}

	LastUpdated time.Time
}

// New creates an empty context.
func New() *Context {
	return &Context{
		OrderIDs:         make(map[string]struct{}),
		ViewedProductIDs: make(map[int]struct{}),
		LastUpdated:      time.Now(),
	}
}

// AddOrderID records an order id in the set. It does not validate; callers
// are expected to check IsValidOrderID first.
func (c *Context) AddOrderID(orderID string) {
	c.OrderIDs[orderID] = struct{}{}
}

// AddViewedProductID records a product id in the viewed set.
func (c *Context) AddViewedProductID(id int) {
	c.ViewedProductIDs[id] = struct{}{}
}

// SetUserID sets the user id scalar.
func (c *Context) SetUserID(id int) {
	c.UserID = &id
}

// SetRecentProductID sets the recent-product pointer.
func (c *Context) SetRecentProductID(id int) {
	c.RecentProductID = &id
}

// Merge folds incoming into c. Scalars are latest-wins: a non-empty incoming
// value overwrites the existing one. Sets are union-only and never shrink.
// The two rules are deliberately distinct; do not unify them.
func (c *Context) Merge(incoming *Context) {
	if incoming == nil {
		return
	}
	if incoming.UserID != nil {
		id := *incoming.UserID
		c.UserID = &id
	}
	if incoming.UserName != "" {
		c.UserName = incoming.UserName
	}
	if incoming.Phone != "" {
		c.Phone = incoming.Phone
	}
	if incoming.Address != "" {
		c.Address = incoming.Address
	}
	if incoming.RecentOrderID != "" {
		c.RecentOrderID = incoming.RecentOrderID
	}
	if incoming.RecentProductID != nil {
		id := *incoming.RecentProductID
		c.RecentProductID = &id
	}
	for orderID := range incoming.OrderIDs {
		c.OrderIDs[orderID] = struct{}{}
	}
	for productID := range incoming.ViewedProductIDs {
		c.ViewedProductIDs[productID] = struct{}{}
	}
	c.LastUpdated = time.Now()
}

// IsEmpty reports whether the context carries no information at all.
func (c *Context) IsEmpty() bool {
	return c.UserID == nil &&
		c.UserName == "" &&
		c.Phone == "" &&
		c.Address == "" &&
		c.RecentOrderID == "" &&
		c.RecentProductID == nil &&
		len(c.OrderIDs) == 0 &&
		len(c.ViewedProductIDs) == 0
}

// Clone returns a deep copy of the context, used for history snapshots.
func (c *Context) Clone() *Context {
	copied := New()
	copied.Merge(c)
	copied.LastUpdated = c.LastUpdated
	return copied
}

// sortedOrderIDs returns the order id set as a sorted list.
func (c *Context) sortedOrderIDs() []string {
	ids := make([]string, 0, len(c.OrderIDs))
	for id := range c.OrderIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortedProductIDs returns the viewed product set as a sorted list.
func (c *Context) sortedProductIDs() []int {
	ids := make([]int, 0, len(c.ViewedProductIDs))
	for id := range c.ViewedProductIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ToPromptContext renders the non-empty fields as a fixed-order bullet list
// for prompt injection. Only validated order ids are shown: the recent order
// first, then up to 2 other distinct ids. Products show the recent pointer
// first, then up to 4 other distinct ids within the accepted range.
func (c *Context) ToPromptContext() string {
	var lines []string

	if c.UserID != nil {
		lines = append(lines, fmt.Sprintf("- 用户ID: %d", *c.UserID))
	}
	if c.UserName != "" {
		lines = append(lines, "- 用户姓名: "+c.UserName)
	}
	if c.Phone != "" {
		lines = append(lines, "- 联系电话: "+c.Phone)
	}
	if c.Address != "" {
		lines = append(lines, "- 配送地址: "+c.Address)
	}

	var validOrders []string
	for _, orderID := range c.sortedOrderIDs() {
		if IsValidOrderID(orderID) {
			validOrders = append(validOrders, orderID)
		}
	}
	recentOrderValid := false
	for _, orderID := range validOrders {
		if orderID == c.RecentOrderID {
			recentOrderValid = true
			break
		}
	}
	if recentOrderValid {
		lines = append(lines, "- 最近订单: "+c.RecentOrderID)
	}
	if len(validOrders) > 1 {
		var others []string
		for _, orderID := range validOrders {
			if orderID != c.RecentOrderID {
				others = append(others, orderID)
			}
		}
		if len(others) > 2 {
			others = others[len(others)-2:]
		}
		if len(others) > 0 {
			lines = append(lines, "- 历史订单: "+strings.Join(others, ", "))
		}
	}

	var validProducts []int
	for _, productID := range c.sortedProductIDs() {
		if IsValidProductID(productID) {
			validProducts = append(validProducts, productID)
		}
	}
	recentProductValid := false
	if c.RecentProductID != nil {
		for _, productID := range validProducts {
			if productID == *c.RecentProductID {
				recentProductValid = true
				break
			}
		}
	}
	if recentProductValid {
		lines = append(lines, fmt.Sprintf("- 当前关注商品ID: %d", *c.RecentProductID))
	}
	if len(validProducts) > 1 {
		var others []string
		for _, productID := range validProducts {
			if c.RecentProductID == nil || productID != *c.RecentProductID {
				others = append(others, strconv.Itoa(productID))
			}
		}
		if len(others) > 4 {
			others = others[len(others)-4:]
		}
		if len(others) > 0 {
			lines = append(lines, "- 浏览过的商品ID: "+strings.Join(others, ", "))
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return "**用户上下文信息**:\n" + strings.Join(lines, "\n")
}

// contextJSON is the wire form of Context. Sets are encoded as ordered lists
// so that snapshots are stable and diffable.
type contextJSON struct {
	UserID           *int      `json:"user_id,omitempty"`
	UserName         string    `json:"user_name,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Address          string    `json:"address,omitempty"`
	RecentOrderID    string    `json:"recent_order_id,omitempty"`
	OrderIDs         []string  `json:"order_ids"`
	RecentProductID  *int      `json:"recent_product_id,omitempty"`
	ViewedProductIDs []int     `json:"viewed_product_ids"`
	LastUpdated      time.Time `json:"last_updated"`
}

// MarshalJSON implements json.Marshaler.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(contextJSON{
		UserID:           c.UserID,
		UserName:         c.UserName,
		Phone:            c.Phone,
		Address:          c.Address,
		RecentOrderID:    c.RecentOrderID,
		OrderIDs:         c.sortedOrderIDs(),
		RecentProductID:  c.RecentProductID,
		ViewedProductIDs: c.sortedProductIDs(),
		LastUpdated:      c.LastUpdated,
	})
}

// UnmarshalJSON implements json.Unmarshaler, re-creating the sets from their
// list encoding.
func (c *Context) UnmarshalJSON(data []byte) error {
	var wire contextJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.UserID = wire.UserID
	c.UserName = wire.UserName
	c.Phone = wire.Phone
	c.Address = wire.Address
	c.RecentOrderID = wire.RecentOrderID
	c.RecentProductID = wire.RecentProductID
	c.LastUpdated = wire.LastUpdated
	c.OrderIDs = make(map[string]struct{}, len(wire.OrderIDs))
	for _, orderID := range wire.OrderIDs {
		c.OrderIDs[orderID] = struct{}{}
	}
	c.ViewedProductIDs = make(map[int]struct{}, len(wire.ViewedProductIDs))
	for _, productID := range wire.ViewedProductIDs {
		c.ViewedProductIDs[productID] = struct{}{}
	}
	return nil
}
