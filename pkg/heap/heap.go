// Package heap implements the VM's tagged value store.
//
// Architecture:
//
// The heap is a flat collection of boxed Values, each reachable only
// through an opaque Ref handle — never a raw pointer. This is the same
// choice the reference interpreter this package is modeled on makes:
// a map from a stable integer id to a boxed object, rather than Go
// pointers directly into a GC'd value, so that pkg/gc's mark-and-sweep
// cycle can drop entries from the map without the VM ever holding a
// pointer that silently dangles. A Ref stays valid across any number of
// instructions; it only stops being valid once a GC cycle determines it
// is unreachable and sweeps it.
//
// Every object carries a color (see Color) that pkg/gc flips during a
// mark phase and resets during sweep. The heap package itself never
// collects — it only stores, allocates and exposes iteration for the
// collector.
//
// Example:
//
//	h := heap.New()
//	a := h.Alloc(heap.Value{Kind: heap.Int, Int: 1})
//	b := h.Alloc(heap.Value{Kind: heap.Empty})
//	p := h.Alloc(heap.Value{Kind: heap.Pair, A: b, B: a})
//	v := h.Get(p) // Value{Kind: Pair, A: b, B: a}
package heap

import "fmt"

// Kind identifies which variant of Value is populated. This is the
// runtime value set fixed by the system this package implements — it is
// not meant to be extended casually, since pkg/vm, pkg/compiler and
// pkg/bytecode all assume exactly these nine shapes.
type Kind uint8

const (
	Empty Kind = iota
	Int
	Double
	Str
	VectorInt
	Label
	Pair
	Tagged
	Closure
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "Empty"
	case Int:
		return "Int"
	case Double:
		return "Double"
	case Str:
		return "Str"
	case VectorInt:
		return "VectorInt"
	case Label:
		return "Label"
	case Pair:
		return "Pair"
	case Tagged:
		return "Tagged"
	case Closure:
		return "Closure"
	default:
		return "Unknown"
	}
}

// Color is the GC mark state carried in every object's header. The
// numbering skips 1, the grey state of a tri-color scheme; this
// collector is two-color and has no third state.
type Color uint8

const (
	// White is the unmarked state: a candidate for sweeping.
	White Color = 0
	// Black is the marked state: reachable from a root as of the most
	// recent mark phase.
	Black Color = 2
)

// Ref is an opaque, stable handle to a heap object. It is never
// dereferenced directly — always through Heap.Get. The zero Ref is never
// allocated by New/Alloc, so it is safe to use as a "no value" sentinel
// where a Ref field may be absent (e.g. Value.A on a non-Pair Value).
type Ref uint64

// Value is the tagged union of every runtime value shape. Only the
// fields relevant to Kind are meaningful; this mirrors pkg/bytecode's
// Instr, and for the same reason — one Go type the VM can switch on,
// rather than a type-per-variant that would need an interface and a
// type assertion on every access.
type Value struct {
	Kind Kind

	Int    int64
	Double float64
	Str    string
	Vector *PersistentVector

	// Label, used by Kind == Label and the second component of Kind ==
	// Closure, is a bytecode.Label. It is stored as a plain uint64 here
	// (rather than importing pkg/bytecode) to keep pkg/heap free of any
	// dependency on the compiler/bytecode layer — only pkg/vm needs to
	// know both types at once.
	LabelVal uint64

	// A, B hold the two Refs of a Pair, or (A, B) = (environment Ref,
	// closure entry Label) for Closure — in that case B duplicates
	// LabelVal and is not a Ref, so Refs reports only A for a Closure.
	A, B Ref

	// Tag is populated for Kind == Tagged: the constructor tag, with the
	// payload Ref held in A.
	Tag uint64
}

// Refs returns the Refs directly reachable from v, for use by a tracer
// walking the heap graph. Scalars and Empty return no Refs.
func (v Value) Refs() []Ref {
	switch v.Kind {
	case Pair:
		return []Ref{v.A, v.B}
	case Tagged:
		return []Ref{v.A}
	case Closure:
		return []Ref{v.A}
	default:
		return nil
	}
}

// header is the per-object bookkeeping the GC needs: the boxed value
// plus its mark color.
type header struct {
	value Value
	color Color
}

// Heap is the VM's object store. It is owned exclusively by one VM
// instance; Heap values are never shared across VMs.
type Heap struct {
	objects map[Ref]*header
	nextRef Ref
}

// New returns an empty Heap.
func New() *Heap {
	return &Heap{objects: make(map[Ref]*header), nextRef: 1}
}

// Alloc boxes val and returns a fresh Ref to it, colored White.
func (h *Heap) Alloc(val Value) Ref {
	r := h.nextRef
	h.nextRef++
	h.objects[r] = &header{value: val, color: White}
	return r
}

// Get returns the Value behind ref. It panics if ref does not name a
// live object — dereferencing a ref the GC has already swept, or one
// that was never allocated, is an invariant violation upstream, not a
// recoverable runtime condition (see pkg/vm's RuntimeError for the
// program-level errors that are recoverable).
func (h *Heap) Get(ref Ref) Value {
	obj, ok := h.objects[ref]
	if !ok {
		panic(fmt.Sprintf("heap: dereferenced unknown or collected ref %d", ref))
	}
	return obj.value
}

// Set overwrites the Value stored at ref in place, without changing its
// identity or color. Used by BinVectorIntUpdateMut and similar in-place
// primitives, where an existing handle must observe the mutation.
func (h *Heap) Set(ref Ref, val Value) {
	obj, ok := h.objects[ref]
	if !ok {
		panic(fmt.Sprintf("heap: set on unknown or collected ref %d", ref))
	}
	obj.value = val
}

// Len returns the number of live objects, the quantity pkg/gc's
// threshold policy compares against.
func (h *Heap) Len() int { return len(h.objects) }

// Color returns ref's current mark color.
func (h *Heap) Color(ref Ref) Color { return h.objects[ref].color }

// SetColor sets ref's mark color. Used only by pkg/gc during a cycle.
func (h *Heap) SetColor(ref Ref, c Color) { h.objects[ref].color = c }

// Each calls fn once for every currently live Ref. Used by pkg/gc's
// sweep phase to find objects to drop.
func (h *Heap) Each(fn func(Ref)) {
	for ref := range h.objects {
		fn(ref)
	}
}

// Delete removes ref from the heap. Used only by pkg/gc's sweep phase.
func (h *Heap) Delete(ref Ref) {
	delete(h.objects, ref)
}
