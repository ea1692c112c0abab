package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InvalidateUser(t *testing.T) {
	c := New(16, time.Minute)

	c.Set(ProfileKey(1), "profile-1")
	c.Set(OrdersKey(1), "orders-1")
	c.Set(ProfileKey(2), "profile-2")
	c.Set(StatsKey(), "stats")
	c.Set(MenuKey(), "menu")

	c.InvalidateUser(1)

	_, ok := c.Get(ProfileKey(1))
	assert.False(t, ok)
	_, ok = c.Get(OrdersKey(1))
	assert.False(t, ok)
	_, ok = c.Get(StatsKey())
	assert.False(t, ok)

	v, ok := c.Get(ProfileKey(2))
	require.True(t, ok)
	assert.Equal(t, "profile-2", v)
	_, ok = c.Get(MenuKey())
	assert.True(t, ok)
}

func TestCache_InvalidateOrder(t *testing.T) {
	c := New(16, time.Minute)
	c.Set(OrderKey(10), "order")
	c.Set(OrdersKey(3), "orders")

	c.InvalidateOrder(10, 3)

	assert.Equal(t, 0, c.Len())
}

func TestCache_Expires(t *testing.T) {
	c := New(16, 20*time.Millisecond)
	c.Set(MenuKey(), "menu")

	assert.Eventually(t, func() bool {
		_, ok := c.Get(MenuKey())
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestFetch(t *testing.T) {
	c := New(16, time.Minute)
	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"soup"}, nil
	}

	v, err := Fetch(c, MenuKey(), load)
	require.NoError(t, err)
	assert.Equal(t, []string{"soup"}, v)

	v, err = Fetch(c, MenuKey(), load)
	require.NoError(t, err)
	assert.Equal(t, []string{"soup"}, v)
	assert.Equal(t, 1, calls)

	_, err = Fetch(c, CategoriesKey(), func() ([]string, error) { return nil, errors.New("boom") })
	require.Error(t, err)
	_, ok := c.Get(CategoriesKey())
	assert.False(t, ok)
}

func TestNilCache(t *testing.T) {
	var c *Cache

	c.Set(MenuKey(), "menu")
	_, ok := c.Get(MenuKey())
	assert.False(t, ok)
	c.InvalidateUser(1)

	v, err := Fetch(c, MenuKey(), func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "menu", MenuKey().String())
	assert.Equal(t, "profile:5", ProfileKey(5).String())
}
