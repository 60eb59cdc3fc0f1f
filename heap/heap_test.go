package heap

import "testing"

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestAllocateFree(t *testing.T) {
	h := newTestHeap(t)
	o, err := h.Allocate(KindOpaque, 2)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if o.NumChunks() != 2 {
		t.Fatalf("NumChunks = %d, want 2", o.NumChunks())
	}
	if o.Page() == nil {
		t.Fatalf("Page() = nil")
	}
	h.Free(o, false)
	if !o.isFree() {
		t.Fatalf("object not marked free after Free")
	}
}

func TestFreeDoubleFreePanics(t *testing.T) {
	h := newTestHeap(t)
	o, err := h.Allocate(KindOpaque, 1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	h.Free(o, false)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double free")
		}
	}()
	h.Free(o, false)
}

// TestCrossKindChunkReuse checks that a chunk freed by one kind can back
// an object of a different kind afterward, since the free lists are
// indexed purely by chunk count.
func TestCrossKindChunkReuse(t *testing.T) {
	h := newTestHeap(t)

	// A 256-byte string spans the same 17 chunks as NewTable(1)'s
	// minimum table, so the table lands in the string's exact size class.
	s, err := h.NewString(string(make([]byte, 256)))
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	chunks := s.NumChunks()

	// Allocate a padding object after the string so that freeing the
	// string links its chunk into a free list instead of just shrinking
	// the page's bump cursor back in place.
	pad, err := h.Allocate(KindOpaque, 4)
	if err != nil {
		t.Fatalf("Allocate pad: %v", err)
	}
	_ = pad

	h.Free(s, false)

	tbl, err := h.NewTable(1)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if tbl.Kind != KindTable {
		t.Fatalf("Kind = %v, want table", tbl.Kind)
	}
	if tbl != s || tbl.NumChunks() != chunks {
		t.Fatalf("table did not reuse the freed string's %d-chunk cell", chunks)
	}
}

func TestStringInterning(t *testing.T) {
	h := newTestHeap(t)
	a, err := h.NewString("hello")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	b, err := h.NewString("hello")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if a != b {
		t.Fatalf("expected interned strings to share an object")
	}
	c, err := h.NewString("world")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if a == c {
		t.Fatalf("unrelated strings must not share an object")
	}
}

type stackRoots []Value

func (s stackRoots) MarkRoots(tick func(Value)) {
	for _, v := range s {
		tick(v)
	}
}

func TestGCSweepsUnreachableString(t *testing.T) {
	h := newTestHeap(t)
	keep, err := h.NewString("kept")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if _, err := h.NewString("dropped"); err != nil {
		t.Fatalf("NewString: %v", err)
	}
	// The empty-string sentinel New allocates is interned too.
	if len(h.interned) != 3 {
		t.Fatalf("interned count = %d, want 3", len(h.interned))
	}

	h.Collect(stackRoots{FromObject(keep)})

	if len(h.interned) != 2 {
		t.Fatalf("interned count after collect = %d, want 2", len(h.interned))
	}
	if _, ok := h.interned[keep.StringHash()]; !ok {
		t.Fatalf("kept string was swept")
	}
}

func TestGCIdempotent(t *testing.T) {
	h := newTestHeap(t)
	keep, err := h.NewString("stable")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	roots := stackRoots{FromObject(keep)}

	h.Collect(roots)
	first := h.Report()
	h.Collect(roots)
	second := h.Report()

	if len(first.Pages) != len(second.Pages) {
		t.Fatalf("page count changed across idempotent collections: %d vs %d", len(first.Pages), len(second.Pages))
	}
	if first.InternCount != second.InternCount {
		t.Fatalf("intern count changed across idempotent collections: %d vs %d", first.InternCount, second.InternCount)
	}
}

func TestGCTraversesTableAndArray(t *testing.T) {
	h := newTestHeap(t)

	arr, err := h.NewArray(2)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	held, err := h.NewString("held-by-array")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	arr.ArrayAppend(FromObject(held))

	tbl, err := h.NewTable(2)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	tblHeld, err := h.NewString("held-by-table")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	key, err := h.NewString("k")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if err := tbl.Set(h, FromObject(key), FromObject(tblHeld)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	h.Collect(stackRoots{FromObject(arr), FromObject(tbl)})

	if _, ok := h.interned[held.StringHash()]; !ok {
		t.Fatalf("array-held string swept despite reachable array root")
	}
	if _, ok := h.interned[tblHeld.StringHash()]; !ok {
		t.Fatalf("table-held string swept despite reachable table root")
	}
}

func TestTableGetSetGrow(t *testing.T) {
	h := newTestHeap(t)
	tbl, err := h.NewTable(2)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	for i := 0; i < 20; i++ {
		key := Number(float64(i))
		if err := tbl.Set(h, key, Number(float64(i*i))); err != nil {
			t.Fatalf("Set(%d): %v", i, err)
		}
	}
	for i := 0; i < 20; i++ {
		got := tbl.Get(Number(float64(i)))
		if !got.IsNumber() || got.AsNumber() != float64(i*i) {
			t.Fatalf("Get(%d) = %v, want %d", i, got, i*i)
		}
	}
	if tbl.TableCount() != 20 {
		t.Fatalf("TableCount = %d, want 20", tbl.TableCount())
	}
	if missing := tbl.Get(Number(999)); !missing.IsNone() {
		t.Fatalf("Get(missing) = %v, want none", missing)
	}
}

func TestTableDuplicate(t *testing.T) {
	h := newTestHeap(t)
	src, err := h.NewTable(4)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if err := src.Set(h, Number(1), Number(2)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	dup, err := src.Duplicate(h)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if err := dup.Set(h, Number(1), Number(99)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := src.Get(Number(1)); got.AsNumber() != 2 {
		t.Fatalf("source table mutated by duplicate's Set: got %v", got)
	}
}

func TestArrayOperations(t *testing.T) {
	h := newTestHeap(t)
	arr, err := h.NewArray(0)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	arr.ArrayAppend(Number(1))
	arr.ArrayAppend(Number(2))
	arr.ArraySet(5, Number(6))

	if arr.ArrayLen() != 6 {
		t.Fatalf("ArrayLen = %d, want 6", arr.ArrayLen())
	}
	if got := arr.ArrayGet(1); got.AsNumber() != 2 {
		t.Fatalf("ArrayGet(1) = %v, want 2", got)
	}
	if got := arr.ArrayGet(3); !got.IsNone() {
		t.Fatalf("ArrayGet(3) = %v, want none (hole)", got)
	}
	if got := arr.ArrayGet(100); !got.IsNone() {
		t.Fatalf("ArrayGet(out of range) = %v, want none", got)
	}
}

func TestFreeListConsistencyAfterCollect(t *testing.T) {
	h := newTestHeap(t)
	for i := 0; i < 8; i++ {
		if _, err := h.NewString(string(rune('a' + i))); err != nil {
			t.Fatalf("NewString: %v", err)
		}
	}
	h.Collect(stackRoots(nil))
	report := h.Report()
	for _, fl := range report.FreeLists {
		if fl.FreeChunks < 0 {
			t.Fatalf("negative free chunk count in class %d", fl.Class)
		}
	}
}

func TestReportRoundTrip(t *testing.T) {
	h := newTestHeap(t)
	if _, err := h.NewString("report-me"); err != nil {
		t.Fatalf("NewString: %v", err)
	}
	r := h.Report()
	b, err := MarshalReport(r)
	if err != nil {
		t.Fatalf("MarshalReport: %v", err)
	}
	got, err := UnmarshalReport(b)
	if err != nil {
		t.Fatalf("UnmarshalReport: %v", err)
	}
	if got.Debt != r.Debt || got.InternCount != r.InternCount {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestFunctionAndPrototypeTraversal(t *testing.T) {
	h := newTestHeap(t)
	constStr, err := h.NewString("const")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	proto, err := h.NewPrototype(PrototypeSpec{
		Code:      []Insn{NewInsn(OpRET, 0, 0, 0)},
		Constants: []Value{FromObject(constStr)},
		NumArgs:   0,
		NumLocals: 1,
	})
	if err != nil {
		t.Fatalf("NewPrototype: %v", err)
	}
	env, err := h.NewTable(1)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	upvalStr, err := h.NewString("upvalue")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	fn, err := h.NewFunction(proto, []Value{FromObject(upvalStr)}, env)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}

	h.Collect(stackRoots{FromObject(fn)})

	if _, ok := h.interned[constStr.StringHash()]; !ok {
		t.Fatalf("prototype constant swept despite reachable function root")
	}
	if _, ok := h.interned[upvalStr.StringHash()]; !ok {
		t.Fatalf("function upvalue swept despite reachable function root")
	}
}

func TestPrototypeTraversalTicksJITEntry(t *testing.T) {
	h := newTestHeap(t)
	jit, err := h.Allocate(KindOpaque, 1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	proto, err := h.NewPrototype(PrototypeSpec{
		Code:      []Insn{NewInsn(OpRET, 0, 0, 0)},
		NumArgs:   0,
		NumLocals: 1,
	})
	if err != nil {
		t.Fatalf("NewPrototype: %v", err)
	}
	proto.SetJITEntry(jit)

	fn, err := h.NewFunction(proto, nil, nil)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}

	h.Collect(stackRoots{FromObject(fn)})

	if jit.isFree() {
		t.Fatalf("opaque JIT entry swept despite being reachable only via the prototype's jitEntry")
	}
}
