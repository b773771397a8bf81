package heap

import "testing"

func TestAllocGet(t *testing.T) {
	h := New()
	r := h.Alloc(Value{Kind: Int, Int: 42})

	got := h.Get(r)
	if got.Kind != Int || got.Int != 42 {
		t.Fatalf("Get(%d) = %+v, want Kind=Int Int=42", r, got)
	}
}

func TestAllocAssignsDistinctRefs(t *testing.T) {
	h := New()
	a := h.Alloc(Value{Kind: Empty})
	b := h.Alloc(Value{Kind: Empty})
	if a == b {
		t.Fatalf("Alloc returned the same ref twice: %d", a)
	}
}

func TestGetUnknownRefPanics(t *testing.T) {
	h := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unknown ref, got none")
		}
	}()
	h.Get(Ref(999))
}

func TestSetMutatesInPlace(t *testing.T) {
	h := New()
	r := h.Alloc(Value{Kind: Int, Int: 1})
	h.Set(r, Value{Kind: Int, Int: 2})
	if got := h.Get(r); got.Int != 2 {
		t.Fatalf("Get after Set = %d, want 2", got.Int)
	}
}

func TestPairRefs(t *testing.T) {
	h := New()
	a := h.Alloc(Value{Kind: Int, Int: 1})
	b := h.Alloc(Value{Kind: Int, Int: 2})
	pair := Value{Kind: Pair, A: a, B: b}

	refs := pair.Refs()
	if len(refs) != 2 || refs[0] != a || refs[1] != b {
		t.Fatalf("Pair.Refs() = %v, want [%d %d]", refs, a, b)
	}
}

func TestScalarRefsAreEmpty(t *testing.T) {
	for _, v := range []Value{
		{Kind: Empty},
		{Kind: Int, Int: 1},
		{Kind: Double, Double: 1.5},
		{Kind: Str, Str: "x"},
		{Kind: Label, LabelVal: 3},
	} {
		if refs := v.Refs(); len(refs) != 0 {
			t.Errorf("Kind %s: Refs() = %v, want empty", v.Kind, refs)
		}
	}
}

func TestTaggedAndClosureRefs(t *testing.T) {
	h := New()
	payload := h.Alloc(Value{Kind: Empty})
	env := h.Alloc(Value{Kind: Empty})

	tagged := Value{Kind: Tagged, Tag: 5, A: payload}
	if refs := tagged.Refs(); len(refs) != 1 || refs[0] != payload {
		t.Fatalf("Tagged.Refs() = %v, want [%d]", refs, payload)
	}

	closure := Value{Kind: Closure, A: env, LabelVal: 10}
	if refs := closure.Refs(); len(refs) != 1 || refs[0] != env {
		t.Fatalf("Closure.Refs() = %v, want [%d]", refs, env)
	}
}

func TestLenAndEachAndDelete(t *testing.T) {
	h := New()
	r1 := h.Alloc(Value{Kind: Empty})
	r2 := h.Alloc(Value{Kind: Empty})

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}

	seen := map[Ref]bool{}
	h.Each(func(r Ref) { seen[r] = true })
	if !seen[r1] || !seen[r2] {
		t.Fatalf("Each did not visit all refs: %v", seen)
	}

	h.Delete(r1)
	if h.Len() != 1 {
		t.Fatalf("Len() after Delete = %d, want 1", h.Len())
	}
}

func TestColorDefaultsWhite(t *testing.T) {
	h := New()
	r := h.Alloc(Value{Kind: Empty})
	if c := h.Color(r); c != White {
		t.Fatalf("Color(new ref) = %v, want White", c)
	}
	h.SetColor(r, Black)
	if c := h.Color(r); c != Black {
		t.Fatalf("Color after SetColor(Black) = %v, want Black", c)
	}
}

func TestPersistentVectorFillAndGet(t *testing.T) {
	v := NewPersistentVector(4, 7)
	if v.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", v.Len())
	}
	for i := int64(0); i < 4; i++ {
		if got := v.Get(i); got != 7 {
			t.Errorf("Get(%d) = %d, want 7", i, got)
		}
	}
}

func TestPersistentVectorUpdateDoesNotMutate(t *testing.T) {
	v := NewPersistentVector(3, 0)
	updated := v.Update(1, 99)

	if v.Get(1) != 0 {
		t.Fatalf("original vector mutated: Get(1) = %d, want 0", v.Get(1))
	}
	if updated.Get(1) != 99 {
		t.Fatalf("updated vector Get(1) = %d, want 99", updated.Get(1))
	}
}

func TestPersistentVectorUpdateMutSharesMutation(t *testing.T) {
	v := NewPersistentVector(3, 0)
	alias := v
	v.UpdateMut(2, 42)

	if alias.Get(2) != 42 {
		t.Fatalf("alias did not observe in-place update: Get(2) = %d, want 42", alias.Get(2))
	}
}

func TestPersistentVectorOutOfRangePanics(t *testing.T) {
	v := NewPersistentVector(2, 0)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range Get, got none")
		}
	}()
	v.Get(5)
}
