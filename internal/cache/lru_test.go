package cache

import (
	"runtime"
	"strconv"
	"testing"
)

type blob struct {
	name string
	data [64]byte
}

func newBlob(name string) *blob { return &blob{name: name} }

func TestStoreAndGet(t *testing.T) {
	c := New[string, blob](4)
	if !c.Store("a", newBlob("a")) {
		t.Fatal("first store should succeed")
	}
	if c.Store("a", newBlob("other")) {
		t.Error("duplicate store should be ignored")
	}
	v, ok := c.Get("a")
	if !ok || v.name != "a" {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("unexpected hit")
	}
}

func TestRecencyOrder(t *testing.T) {
	c := New[string, blob](10)
	for _, k := range []string{"a", "b", "c"} {
		c.Store(k, newBlob(k))
	}
	c.Get("a")
	keys := c.Keys()
	want := []string{"a", "c", "b"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestLiveCountBounded(t *testing.T) {
	const capacity = 10
	c := New[int, blob](capacity)
	var held []*blob
	for i := 0; i < 100; i++ {
		b := newBlob(strconv.Itoa(i))
		held = append(held, b)
		c.Store(i, b)
		if c.LiveLen() > capacity {
			t.Fatalf("after %d stores LiveLen = %d", i+1, c.LiveLen())
		}
	}
	// Everything is still referenced, so demoted entries stay retrievable
	// until the hard eviction pass runs.
	if c.Len() < c.LiveLen() {
		t.Errorf("Len %d < LiveLen %d", c.Len(), c.LiveLen())
	}
	v, ok := c.Get(99)
	if !ok || v != held[99] {
		t.Error("most recent entry should be retrievable")
	}
	runtime.KeepAlive(held)
}

func TestDemotedEntrySurvivesWhileHeld(t *testing.T) {
	c := New[string, blob](4)
	keep := newBlob("keep")
	c.Store("keep", keep)
	for i := 0; i < 4; i++ {
		c.Store(strconv.Itoa(i), newBlob(strconv.Itoa(i)))
	}
	// keep was coldest, so it is demoted, not evicted.
	if c.Len() != 5 || c.LiveLen() != 4 {
		t.Fatalf("Len=%d LiveLen=%d, want 5 and 4", c.Len(), c.LiveLen())
	}
	runtime.GC()
	v, ok := c.Get("keep")
	if !ok || v != keep {
		t.Fatal("externally held value should be retrievable after demotion")
	}
	if c.LiveLen() > 4 {
		t.Errorf("promotion overflowed: LiveLen = %d", c.LiveLen())
	}
	runtime.KeepAlive(keep)
}

func TestCollectedEntryIsMiss(t *testing.T) {
	c := New[string, blob](4)
	c.Store("gone", newBlob("gone"))
	for i := 0; i < 4; i++ {
		c.Store(strconv.Itoa(i), newBlob(strconv.Itoa(i)))
	}
	runtime.GC()
	runtime.GC()
	if v, ok := c.Get("gone"); ok {
		t.Fatalf("collected entry returned %v", v)
	}
	if c.Len() != 4 {
		t.Errorf("dead entry should be pruned, Len = %d", c.Len())
	}
}

func TestEraseAndClear(t *testing.T) {
	c := New[string, blob](4)
	c.Store("a", newBlob("a"))
	c.Store("b", newBlob("b"))
	if !c.Erase("a") || c.Erase("a") {
		t.Error("Erase should report presence once")
	}
	if c.Len() != 1 || c.LiveLen() != 1 {
		t.Errorf("Len=%d LiveLen=%d", c.Len(), c.LiveLen())
	}
	c.Clear()
	if c.Len() != 0 || c.LiveLen() != 0 {
		t.Error("Clear left entries behind")
	}
	if !c.Store("a", newBlob("a")) {
		t.Error("store after clear should succeed")
	}
}
