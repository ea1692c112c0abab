// Package cache is a process-local, fixed-TTL read-through layer. Keys are
// typed by entity so that invalidation names exactly what it drops.
package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Skotchmaster/school_canteen/internal/metrics"
)

type kind uint8

const (
	kindMenu kind = iota + 1
	kindCategories
	kindStats
	kindProfile
	kindOrders
	kindOrder
)

var kindNames = map[kind]string{
	kindMenu:       "menu",
	kindCategories: "categories",
	kindStats:      "stats",
	kindProfile:    "profile",
	kindOrders:     "orders",
	kindOrder:      "order",
}

type Key struct {
	kind kind
	id   uint
}

func MenuKey() Key { return Key{kind: kindMenu} }
func CategoriesKey() Key { return Key{kind: kindCategories} }
func StatsKey() Key { return Key{kind: kindStats} }
func ProfileKey(userID uint) Key { return Key{kind: kindProfile, id: userID} }
func OrdersKey(userID uint) Key { return Key{kind: kindOrders, id: userID} }
func OrderKey(orderID uint) Key { return Key{kind: kindOrder, id: orderID} }

func (k Key) String() string {
	if k.id == 0 {
		return kindNames[k.kind]
	}
	return fmt.Sprintf("%s:%d", kindNames[k.kind], k.id)
}

// Cache is safe for concurrent use. A nil *Cache is a valid cache that never hits.
type Cache struct {
	lru *expirable.LRU[Key, any]
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{lru: expirable.NewLRU[Key, any](size, nil, ttl)}
}

func (c *Cache) Get(k Key) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(k)
	metrics.RecordCacheLookup(kindNames[k.kind], ok)
	return v, ok
}

func (c *Cache) Set(k Key, v any) {
	if c == nil {
		return
	}
	c.lru.Add(k, v)
}

func (c *Cache) Delete(keys ...Key) {
	if c == nil {
		return
	}
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

// InvalidateUser drops everything derived from the user's balance or order history.
func (c *Cache) InvalidateUser(userID uint) {
	c.Delete(ProfileKey(userID), OrdersKey(userID), StatsKey())
}

func (c *Cache) InvalidateOrder(orderID, userID uint) {
	c.Delete(OrderKey(orderID))
	c.InvalidateUser(userID)
}

func (c *Cache) InvalidateMenu() {
	c.Delete(MenuKey(), CategoriesKey())
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Fetch returns the cached value for k or loads, stores and returns it.
// Load errors are not cached.
func Fetch[T any](c *Cache, k Key, load func() (T, error)) (T, error) {
	if v, ok := c.Get(k); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(k, v)
	return v, nil
}
