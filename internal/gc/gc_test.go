package gc

import (
	"errors"
	"testing"
)

type node struct {
	name  string
	edges []*node
}

func (n *node) SurrenderReferences(c Collector) {
	for i := range n.edges {
		i := i
		if n.edges[i] == nil {
			continue
		}
		c.SurrenderPointer(n.edges[i], func() { n.edges[i] = nil }, n.name)
	}
}

func TestCollectBreaksUnreachableCycles(t *testing.T) {
	h := NewHeap()
	root := &node{name: "root"}
	kept := &node{name: "kept"}
	a := &node{name: "a"}
	b := &node{name: "b"}
	root.edges = []*node{kept}
	a.edges = []*node{b}
	b.edges = []*node{a}
	for _, n := range []*node{root, kept, a, b} {
		h.Register(n)
	}

	stats := h.Collect(root)
	if stats.Marked != 2 {
		t.Errorf("Marked = %d, want 2", stats.Marked)
	}
	if stats.Swept != 2 || stats.Broken != 2 {
		t.Errorf("Swept = %d, Broken = %d, want 2 and 2", stats.Swept, stats.Broken)
	}
	if a.edges[0] != nil || b.edges[0] != nil {
		t.Error("cycle references were not broken")
	}
	if root.edges[0] != kept {
		t.Error("reachable reference was broken")
	}
	if h.Len() != 2 || h.Contains(a) {
		t.Errorf("heap still holds swept objects: %d", h.Len())
	}
}

func TestBreakReferences(t *testing.T) {
	a := &node{name: "a"}
	a.edges = []*node{{name: "x"}, nil, {name: "y"}}
	if n := BreakReferences(a); n != 2 {
		t.Errorf("BreakReferences = %d, want 2", n)
	}
}

func TestWorkQueueDefersAndCancels(t *testing.T) {
	var q WorkQueue
	ran := 0
	q.Schedule("one", func() error { ran++; return nil })
	q.Schedule("two", func() error {
		q.Schedule("later", func() error { ran++; return nil })
		return errors.New("boom")
	})
	q.Schedule("gone", func() error { ran++; return nil })
	if ran != 0 {
		t.Fatal("work ran inline")
	}
	if n := q.Cancel("gone"); n != 1 {
		t.Fatalf("Cancel = %d, want 1", n)
	}

	results := q.RunPending()
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !errors.Is(results[0].Err, ErrCancelled) {
		t.Errorf("first result should be the cancelled item, got %+v", results[0])
	}
	if results[2].Err == nil {
		t.Error("expected error from item two")
	}
	if ran != 1 || q.Pending() != 1 {
		t.Errorf("ran = %d, pending = %d", ran, q.Pending())
	}
	q.RunPending()
	if ran != 2 {
		t.Errorf("ran = %d after second run", ran)
	}
}

func TestWorkQueueRecoversPanics(t *testing.T) {
	var q WorkQueue
	q.Schedule("bad", func() error { panic("oops") })
	results := q.RunPending()
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("expected panic to be reported, got %+v", results)
	}
}

func TestScheduleCollect(t *testing.T) {
	var q WorkQueue
	h := NewHeap()
	orphan := &node{name: "orphan"}
	h.Register(orphan)
	var got Stats
	q.ScheduleCollect(h, func() []Collectible { return nil }, func(s Stats) { got = s })
	if h.Len() != 1 {
		t.Fatal("collection ran inline")
	}
	q.RunPending()
	if got.Swept != 1 || h.Len() != 0 {
		t.Errorf("stats = %+v, heap len = %d", got, h.Len())
	}
}
