package cache

import (
	"testing"
	"time"
)

func TestCacheKey_Stable(t *testing.T) {
	a := CacheKey("text-embedding-3-small", "budget increased")
	b := CacheKey("text-embedding-3-small", "budget increased")
	c := CacheKey("text-embedding-3-small", "budget  increased")
	if a != b {
		t.Error("expected identical keys for identical parts")
	}
	if a == c {
		t.Error("expected different keys for different text")
	}
	if CacheKey("ab", "c") == CacheKey("a", "bc") {
		t.Error("expected part boundaries to affect the key")
	}
}

func TestVectorCodec(t *testing.T) {
	v := []float64{0, 1.5, -2.25, 1e-9}
	got, err := DecodeVector(EncodeVector(v))
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: expected %v, got %v", i, v[i], got[i])
		}
	}
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	key := CacheKey("k")

	writer := NewLayeredCache(time.Minute, dir, time.Hour)
	if err := writer.Set(key, []byte("vector"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A fresh layered cache has an empty memory layer
	reader := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok := reader.Get(key)
	if !ok || string(got) != "vector" {
		t.Fatalf("expected disk hit, got %q, %v", got, ok)
	}
	if _, ok := reader.layers[0].Get(key); !ok {
		t.Error("expected value promoted to memory")
	}

	if err := reader.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := reader.Get(key); ok {
		t.Error("expected miss after delete")
	}
	if err := reader.Delete(key); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Set("expired", []byte("x"), -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get("expired"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	buf := []byte("abc")
	if err := c.Set("k", buf, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	buf[0] = 'x'

	got, ok := c.Get("k")
	if !ok || string(got) != "abc" {
		t.Fatalf("expected stored copy %q, got %q, %v", "abc", got, ok)
	}
	got[1] = 'y'
	if again, _ := c.Get("k"); string(again) != "abc" {
		t.Errorf("expected returned value to be a copy, got %q", again)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", c.Len())
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Hour, time.Hour)
	if err := c.Set("short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected entry to expire")
	}
}

func TestLayered_PromotesAcrossLayers(t *testing.T) {
	fast := NewMemoryCache(time.Minute, 0)
	mid := NewMemoryCache(time.Minute, 0)
	slow := NewMemoryCache(time.Minute, 0)
	_ = slow.Set("k", []byte("v"), 0)

	c := NewLayered(fast, mid, slow)
	if got, ok := c.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("expected hit from slowest layer, got %q, %v", got, ok)
	}
	if _, ok := fast.Get("k"); !ok {
		t.Error("expected value promoted to first layer")
	}
	if _, ok := mid.Get("k"); !ok {
		t.Error("expected value promoted to second layer")
	}
}
