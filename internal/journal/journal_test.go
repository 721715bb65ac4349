package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/funvibe/formula/internal/classes"
	"github.com/funvibe/formula/internal/evaluator"
)

const nodeSrc = `
properties:
  v: {type: int, default: 0}
  child: {type: "class Node|null", default: null}
`

func setup(t *testing.T) (*Journal, *classes.Registry) {
	t.Helper()
	l := classes.NewMemoryLoader()
	l.Add("Node", nodeSrc)
	r := classes.Init(l)

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j, r
}

func testIntegerObject(t *testing.T, obj evaluator.Object, expected int64) {
	t.Helper()
	result, ok := obj.(*evaluator.Integer)
	if !ok {
		t.Fatalf("object is not Integer. got=%T (%+v)", obj, obj)
	}
	if result.Value != expected {
		t.Errorf("object has wrong value. got=%d, want=%d", result.Value, expected)
	}
}

func newNode(r *classes.Registry, v int64) *classes.Instance {
	m := evaluator.NewMap()
	m.Set(evaluator.NewString("v"), evaluator.NewInteger(v))
	return r.Create("Node", m)
}

func TestRecordAndReplay(t *testing.T) {
	ctx := context.Background()
	j, r := setup(t)

	root := newNode(r, 1)
	if err := j.Snapshot(ctx, root); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	prev := classes.DeepClone(root)
	root.MutateValue("v", evaluator.NewInteger(2))
	first, err := j.Record(ctx, prev, root)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	prev = classes.DeepClone(root)
	root.MutateValue("child", newNode(r, 7))
	if _, err := j.Record(ctx, prev, root); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, n, err := j.Replay(ctx, r, root.ID(), 0)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != 2 {
		t.Errorf("applied %d diffs, want 2", n)
	}
	if got == root || got.ID() != root.ID() {
		t.Errorf("replay must rebuild the graph with the same identity")
	}
	testIntegerObject(t, got.QueryValue("v"), 2)
	child, ok := got.QueryValue("child").(*classes.Instance)
	if !ok {
		t.Fatalf("child = %v", got.QueryValue("child"))
	}
	testIntegerObject(t, child.QueryValue("v"), 7)

	partial, n, err := j.Replay(ctx, r, root.ID(), first)
	if err != nil {
		t.Fatalf("Replay up to %d: %v", first, err)
	}
	if n != 1 {
		t.Errorf("applied %d diffs, want 1", n)
	}
	testIntegerObject(t, partial.QueryValue("v"), 2)
	if partial.QueryValue("child") != evaluator.NULL {
		t.Errorf("child = %v, want null", partial.QueryValue("child"))
	}
}

func TestSnapshotResetsDiffs(t *testing.T) {
	ctx := context.Background()
	j, r := setup(t)

	root := newNode(r, 1)
	if err := j.Snapshot(ctx, root); err != nil {
		t.Fatal(err)
	}
	prev := classes.DeepClone(root)
	root.MutateValue("v", evaluator.NewInteger(3))
	if _, err := j.Record(ctx, prev, root); err != nil {
		t.Fatal(err)
	}

	s, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Snapshots != 1 || s.Diffs != 1 || s.Bytes == 0 {
		t.Errorf("stats = %+v", s)
	}

	if err := j.Snapshot(ctx, root); err != nil {
		t.Fatal(err)
	}
	entries, err := j.Entries(ctx, root.ID(), 0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d diffs survived a new snapshot", len(entries))
	}
	got, err := j.Load(ctx, r, root.ID())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	testIntegerObject(t, got.QueryValue("v"), 3)

	roots, err := j.Roots(ctx)
	if err != nil || len(roots) != 1 || roots[0] != root.ID() {
		t.Errorf("Roots = %v (%v)", roots, err)
	}
}

func TestReplayUnknownRoot(t *testing.T) {
	j, r := setup(t)
	if _, _, err := j.Replay(context.Background(), r, uuid.New(), 0); err == nil {
		t.Error("replaying an unknown root must fail")
	}
}

func TestMemoryJournal(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()
	seq, err := j.Append(context.Background(), uuid.New(), &classes.Diff{Data: "x", Size: 1})
	if err != nil || seq != 1 {
		t.Errorf("Append = %d, %v", seq, err)
	}
}
