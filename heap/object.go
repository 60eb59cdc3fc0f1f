package heap

// Header is the fixed prefix every GC-managed object carries: its kind,
// its length in chunks, a back-pointer to the page that owns it, the
// mark-stage bit flipped each collection, and a free-list link used only
// while the header is linked into a free list.
//
// Headers may not move: once an Object is allocated its address is stable
// until it is returned to a free list (and reused in place) or its page is
// released back to the allocator.
type Header struct {
	Kind      Kind
	numChunks uint32
	page      *Page
	stage     bool
	nextFree  *Object
}

// Object is a heap cell: a Header plus a kind-specific payload. The
// payload is stored behind an interface rather than as raw bytes so a
// free cell can be reused for a different Kind in place — a free list
// is indexed purely by chunk count, so a freed string's chunk can later
// back a table — without needing unsafe reinterpretation of raw memory
// to get it. See DESIGN.md's Open Question on cross-kind chunk reuse.
type Object struct {
	Header
	payload any
}

// NumChunks returns the number of allocation-granularity chunks o spans.
func (o *Object) NumChunks() uint32 { return o.numChunks }

// Page returns the page that owns o, in O(1).
func (o *Object) Page() *Page { return o.page }

func (o *Object) isFree() bool { return o.Kind == kindFree }

// init reinitializes o in place for a fresh allocation of the given kind
// and chunk length, clearing any previous payload and free-list linkage.
// This is the moment a free chunk may change Kind: reuse across kinds is
// intentional, not a bug.
func (o *Object) init(kind Kind, chunks uint32, page *Page, stage bool) {
	o.Kind = kind
	o.numChunks = chunks
	o.page = page
	o.stage = stage
	o.nextFree = nil
	o.payload = nil
}

// tick is the GC's per-object visit: if o is already at the current
// stage, it has been visited this cycle and tick is a no-op. Otherwise o
// is marked at the current stage, its owned references are traversed (for
// traversable kinds), and its owning page's alive-object counter is
// incremented.
//
// Mirrors original_source/src/vm/gc.cpp header::gc_tick.
func (o *Object) tick(s stageContext, tick func(*Object)) {
	if o == nil || o.stage == bool(s) {
		return
	}
	o.stage = bool(s)
	if o.Kind.traversable() {
		switch o.Kind {
		case KindArray:
			o.traverseArray(tick)
		case KindTable:
			o.traverseTable(tick)
		case KindFunction:
			o.traverseFunction(tick)
		case KindPrototype:
			o.traversePrototype(tick)
		}
	}
	o.page.aliveObjects++
}

// stageContext is the current mark stage; equality with an object's stage
// bit means "reached this cycle". Modeled as a distinct type (rather than
// a bare bool) so tick call sites read as "tick at this stage", matching
// original_source's gc::stage_context.
type stageContext bool
