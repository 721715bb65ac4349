// Package gc defines how reference-holding runtime objects cooperate with a
// collector. Every such object surrenders each reference it owns to a
// visiting Collector; the same traversal serves marking and forced
// reference breaking during teardown.
package gc

// Collectible is implemented by every object that owns references to
// other collectibles.
type Collectible interface {
	SurrenderReferences(c Collector)
}

// Collector visits the references a Collectible owns. clear drops the
// reference from its owner; desc names it for diagnostics.
type Collector interface {
	SurrenderPointer(target Collectible, clear func(), desc string)
}

// Stats summarizes one collection.
type Stats struct {
	Marked int
	Swept  int
	Broken int
}

type marker struct {
	marked map[Collectible]bool
	stack  []Collectible
}

func (m *marker) SurrenderPointer(target Collectible, clear func(), desc string) {
	if target == nil || m.marked[target] {
		return
	}
	m.marked[target] = true
	m.stack = append(m.stack, target)
}

type breaker struct {
	broken int
}

func (b *breaker) SurrenderPointer(target Collectible, clear func(), desc string) {
	if target == nil || clear == nil {
		return
	}
	clear()
	b.broken++
}

// Heap tracks registered collectibles.
type Heap struct {
	objects map[Collectible]struct{}
}

func NewHeap() *Heap {
	return &Heap{objects: make(map[Collectible]struct{})}
}

func (h *Heap) Register(c Collectible) {
	h.objects[c] = struct{}{}
}

func (h *Heap) Unregister(c Collectible) {
	delete(h.objects, c)
}

func (h *Heap) Contains(c Collectible) bool {
	_, ok := h.objects[c]
	return ok
}

func (h *Heap) Len() int {
	return len(h.objects)
}

// Reachable returns every collectible reachable from roots, roots included.
func Reachable(roots ...Collectible) map[Collectible]bool {
	m := &marker{marked: make(map[Collectible]bool)}
	for _, r := range roots {
		m.SurrenderPointer(r, nil, "root")
	}
	for len(m.stack) > 0 {
		top := m.stack[len(m.stack)-1]
		m.stack = m.stack[:len(m.stack)-1]
		top.SurrenderReferences(m)
	}
	return m.marked
}

// Collect marks everything reachable from roots and breaks the
// references of registered objects that were not reached, which frees
// cycles among them. Swept objects are unregistered.
func (h *Heap) Collect(roots ...Collectible) Stats {
	marked := Reachable(roots...)
	stats := Stats{Marked: len(marked)}

	var garbage []Collectible
	for obj := range h.objects {
		if !marked[obj] {
			garbage = append(garbage, obj)
		}
	}
	b := &breaker{}
	for _, obj := range garbage {
		obj.SurrenderReferences(b)
		delete(h.objects, obj)
	}
	stats.Swept = len(garbage)
	stats.Broken = b.broken
	return stats
}

// BreakReferences clears every reference c owns and returns how many
// were cleared.
func BreakReferences(c Collectible) int {
	b := &breaker{}
	c.SurrenderReferences(b)
	return b.broken
}
