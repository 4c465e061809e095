package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	en := Key("evidence", "en", "Mercury")
	es := Key("evidence", "es", "Mercury")

	assert.True(t, strings.HasPrefix(en, "evidence:v1:en:"))
	assert.NotEqual(t, en, es)
	assert.Equal(t, en, Key("evidence", "en", "Mercury"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("evidence", "en", "Blue whale")
	require.NoError(t, c.Set(key, []byte(`{"kind":"found"}`), 0))

	v, ok := c.Get(key)
	require.True(t, ok)
	assert.JSONEq(t, `{"kind":"found"}`, string(v))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), ":")

	require.NoError(t, c.Set("short", []byte("x"), -time.Second))
	_, ok = c.Get("short")
	assert.False(t, ok)
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("not json"), 0644))
	_, ok := c.Get("bad")
	assert.False(t, ok)

	assert.NoError(t, c.Delete("never-written"))
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	first := NewLayeredCache(time.Minute, dir, time.Hour)
	require.NoError(t, first.Set("k", []byte("v"), 0))

	// A fresh process only has the disk layer populated
	second := NewLayeredCache(time.Minute, dir, time.Hour)
	v, ok := second.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	mem := second.memory.(*MemoryCache)
	assert.Equal(t, 1, mem.Len())
}

func TestNew(t *testing.T) {
	assert.IsType(t, Nop{}, New(model.CacheConfig{Enabled: false}))
	assert.IsType(t, &MemoryCache{}, New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute}))
	assert.IsType(t, &LayeredCache{}, New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}))

	n := Nop{}
	require.NoError(t, n.Set("k", []byte("v"), 0))
	_, ok := n.Get("k")
	assert.False(t, ok)
}
