package heap

// tableOverflowFactor is the number of extra probe slots appended past a
// table's nominal capacity, so a linear probe started near the end of the
// bucket array can run past it without wrapping around. ITER's table
// iteration bound is size()+tableOverflowFactor, matching
// original_source/src/vm/interp.cpp's ITER case.
const tableOverflowFactor = 4

const tableLoadFactor = 0.75

type tableEntry struct {
	key   Value
	value Value
}

// tableData is the payload of a KindTable object: an open-addressed hash
// map of tagged (key, value) pairs. A none key marks an empty slot.
type tableData struct {
	entries []tableEntry // length cap+tableOverflowFactor
	cap     int          // nominal logical capacity, a power of two
	count   int          // number of occupied slots
}

func (o *Object) table() *tableData { return o.payload.(*tableData) }

func newTableData(cap int) *tableData {
	if cap < 4 {
		cap = 4
	}
	cap = nextPow2(cap)
	return &tableData{entries: make([]tableEntry, cap+tableOverflowFactor), cap: cap}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// NewTable allocates a new table object whose nominal bucket capacity is
// capacity rounded up to a power of two (at least 4). The table grows once
// an insert would take its entry count past three quarters of that
// capacity, so NewTable(4) grows on its fourth entry.
func (h *Heap) NewTable(capacity int) (*Object, error) {
	td := newTableData(capacity)
	chunks := h.chunksFor(uintptr(len(td.entries)) * tableEntrySize)
	o, err := h.Allocate(KindTable, chunks)
	if err != nil {
		return nil, err
	}
	o.payload = td
	return o, nil
}

const tableEntrySize = 32 // bookkeeping estimate: two Values per entry

// TableSize returns a table's nominal bucket capacity (not its live-entry
// count), matching the original's t->size() used as ITER's iteration
// bound.
func (o *Object) TableSize() int { return o.table().cap }

// TableCount returns the number of live entries in a table.
func (o *Object) TableCount() int { return o.table().count }

// ProbeLimit returns the number of slots ITER should scan: a table's
// nominal capacity plus its overflow region.
func (o *Object) ProbeLimit() int { return o.table().cap + tableOverflowFactor }

// EntryAt returns the key and value at raw slot i (0 <= i < ProbeLimit),
// and whether that slot is occupied.
func (o *Object) EntryAt(i int) (Value, Value, bool) {
	e := &o.table().entries[i]
	if e.key.IsNone() {
		return None, None, false
	}
	return e.key, e.value, true
}

func hashValue(v Value) uint64 {
	switch v.kind {
	case KindNone:
		return 0
	case KindBool:
		if v.b {
			return 1
		}
		return 2
	case KindNumber:
		return Value{kind: KindNumber, n: v.n}.Imm()
	default:
		return uint64(uintptr(pointerOf(v.obj)))
	}
}

// Get looks up key in the table, returning None if absent. Indexing a
// table with a none key always yields None (none can never be a stored
// key, so the lookup degenerates safely).
func (o *Object) Get(key Value) Value {
	td := o.table()
	if key.IsNone() || td.cap == 0 {
		return None
	}
	idx := int(hashValue(key)) & (td.cap - 1)
	for i := 0; i < td.cap+tableOverflowFactor-idx; i++ {
		e := &td.entries[idx+i]
		if e.key.IsNone() {
			return None
		}
		if e.key.Equal(key) {
			return e.value
		}
	}
	return None
}

// Set stores value under key, growing the table first if it is at its
// load-factor threshold. Returns an error only if growth requires a heap
// allocation that the allocator refuses.
func (o *Object) Set(h *Heap, key, value Value) error {
	if key.IsNone() {
		panic("heap: Table.Set: none is not a valid key")
	}
	td := o.table()
	if float64(td.count+1) > tableLoadFactor*float64(td.cap) {
		if err := o.grow(h); err != nil {
			return err
		}
		td = o.table()
	}
	idx := int(hashValue(key)) & (td.cap - 1)
	for i := 0; i < td.cap+tableOverflowFactor-idx; i++ {
		e := &td.entries[idx+i]
		if e.key.IsNone() {
			e.key, e.value = key, value
			td.count++
			return nil
		}
		if e.key.Equal(key) {
			e.value = value
			return nil
		}
	}
	// Ran past the overflow region: grow and retry once.
	if err := o.grow(h); err != nil {
		return err
	}
	return o.Set(h, key, value)
}

func (o *Object) grow(h *Heap) error {
	old := o.table()
	fresh := newTableData(old.cap * 2)
	for _, e := range old.entries {
		if e.key.IsNone() {
			continue
		}
		idx := int(hashValue(e.key)) & (fresh.cap - 1)
		for i := 0; i < fresh.cap+tableOverflowFactor-idx; i++ {
			if fresh.entries[idx+i].key.IsNone() {
				fresh.entries[idx+i] = e
				fresh.count++
				break
			}
		}
	}
	o.payload = fresh
	h.debt += h.chunksFor(uintptr(len(fresh.entries)) * tableEntrySize)
	return nil
}

// Duplicate deep-copies a table, used by TDUP to instantiate a constant
// table template.
func (o *Object) Duplicate(h *Heap) (*Object, error) {
	src := o.table()
	dst, err := h.NewTable(src.cap)
	if err != nil {
		return nil, err
	}
	for _, e := range src.entries {
		if e.key.IsNone() {
			continue
		}
		if err := dst.Set(h, e.key, e.value); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (td *tableData) destroy() {
	td.entries = nil
	td.count = 0
}

func (o *Object) traverseTable(tick func(*Object)) {
	td := o.table()
	for _, e := range td.entries {
		if e.key.IsNone() {
			continue
		}
		if p := e.key.AsObject(); p != nil {
			tick(p)
		}
		if p := e.value.AsObject(); p != nil {
			tick(p)
		}
	}
}
