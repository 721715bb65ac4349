package gc

import (
	"errors"
	"fmt"
)

// ErrCancelled is the result of a work item cancelled before it ran.
var ErrCancelled = errors.New("work item cancelled")

// WorkItem is a deferred unit of work.
type WorkItem struct {
	Name string
	Run  func() error
}

// Result reports how a work item finished.
type Result struct {
	Name string
	Err  error
}

// WorkQueue holds work the surrounding engine runs when it chooses to.
// Nothing scheduled here runs inline.
type WorkQueue struct {
	items     []WorkItem
	cancelled []Result
}

func (q *WorkQueue) Schedule(name string, run func() error) {
	q.items = append(q.items, WorkItem{Name: name, Run: run})
}

// ScheduleCollect queues a collection of h from the roots returned by
// roots at the time the item runs.
func (q *WorkQueue) ScheduleCollect(h *Heap, roots func() []Collectible, done func(Stats)) {
	q.Schedule("gc", func() error {
		stats := h.Collect(roots()...)
		if done != nil {
			done(stats)
		}
		return nil
	})
}

func (q *WorkQueue) Pending() int {
	return len(q.items)
}

// Cancel drops pending items named name. Their results are reported as
// ErrCancelled by the next RunPending.
func (q *WorkQueue) Cancel(name string) int {
	kept := q.items[:0]
	n := 0
	for _, it := range q.items {
		if it.Name == name {
			q.cancelled = append(q.cancelled, Result{Name: it.Name, Err: ErrCancelled})
			n++
			continue
		}
		kept = append(kept, it)
	}
	q.items = kept
	return n
}

// RunPending runs the items scheduled before the call. Items they
// schedule wait for the next call. A panicking item is reported as an
// error and does not stop the others.
func (q *WorkQueue) RunPending() []Result {
	items := q.items
	q.items = nil
	results := q.cancelled
	q.cancelled = nil
	for _, it := range items {
		results = append(results, Result{Name: it.Name, Err: runItem(it)})
	}
	return results
}

func runItem(it WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work item %s panicked: %v", it.Name, r)
		}
	}()
	return it.Run()
}
