package heap

import "fmt"

// PageAllocator is the pluggable backing-store callback:
// alloc(ctx, ptr, n_pages, grow) -> ptr. grow=true with page=nil requests
// a fresh page of at least chunks chunks (rounded up to PageGranularity);
// grow=false releases page. Every page a PageAllocator returns must
// eventually be released through the same callback.
type PageAllocator func(ctx any, page *Page, chunks uint32, grow bool) *Page

// DefaultAllocator is the PageAllocator used when Config.Allocator is
// nil: it allocates/drops ordinary Go *Page values, relying on Go's own
// collector to reclaim a released page's backing memory.
func DefaultAllocator(_ any, page *Page, chunks uint32, grow bool) *Page {
	if !grow {
		return nil
	}
	cap := chunksPerPage
	if int(chunks) > cap {
		cap = int(roundUpPow2Multiple(chunks, chunksPerPage))
	}
	return &Page{totalChunks: uint32(cap)}
}

func roundUpPow2Multiple(n uint32, multiple int) uint32 {
	m := uint32(multiple)
	return ((n + m - 1) / m) * m
}

// Heap is lumen's managed heap: the page ring, the size-class free lists,
// the weak string-intern set, the mark stage bit, the GC debt counter,
// and the pluggable page allocator. The interpreter-owned portion of
// runtime state — the value stack, globals, call frames — lives in
// package vm instead.
type Heap struct {
	initial *Page // never freed; holds the VM sentinel header
	ring    *Page // any page in the ring; used as the iteration anchor

	free freeLists

	interned    map[uint64][]*Object
	emptyString *Object

	stage   bool
	debt    uint32
	greedy  bool // if true, pages are never returned to the allocator

	allocCtx   any
	allocFn    PageAllocator

	vmRoot *Object // sentinel header counted as permanently alive
}

// Config configures a Heap at construction time.
type Config struct {
	// Allocator is the page-backing callback. DefaultAllocator is used
	// when nil.
	Allocator PageAllocator
	// AllocatorCtx is passed through to Allocator unchanged.
	AllocatorCtx any
	// Greedy disables returning empty pages to the allocator.
	Greedy bool
	// GCInterval is the debt threshold that should trigger a collection
	// at the next safe point. The Heap itself never collects implicitly
	// and does not retain this value: New only substitutes a default of
	// 1<<20 for zero on its own copy of the Config, and a host compares
	// Debt against its own threshold.
	GCInterval uint32
}

// New creates a Heap with its initial page (holding the VM sentinel
// header) and empty-string sentinel already allocated.
func New(cfg Config) (*Heap, error) {
	allocFn := cfg.Allocator
	if allocFn == nil {
		allocFn = DefaultAllocator
	}
	h := &Heap{
		interned: make(map[uint64][]*Object),
		allocFn:  allocFn,
		allocCtx: cfg.AllocatorCtx,
		greedy:   cfg.Greedy,
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = 1 << 20
	}
	h.debt = 0

	initial := allocFn(h.allocCtx, nil, chunksPerPage, true)
	if initial == nil {
		return nil, fmt.Errorf("heap: New: allocator refused the initial page")
	}
	initial.next, initial.prev = initial, initial
	h.initial = initial
	h.ring = initial

	h.vmRoot = initial.allocArena(1)
	h.vmRoot.Kind = kindVMRoot
	initial.aliveObjects = 1

	empty, err := h.NewString("")
	if err != nil {
		return nil, fmt.Errorf("heap: New: %w", err)
	}
	h.emptyString = empty

	return h, nil
}

// Debt returns the allocation-debt counter accumulated since the last
// collection, for a host to compare against its own GC-interval policy.
func (h *Heap) Debt() uint32 { return h.debt }

// chunksFor converts a byte size into a chunk count, rounding up and
// charging the fixed per-object overhead.
func (h *Heap) chunksFor(bytes uintptr) uint32 {
	n := (bytes + headerOverhead + ChunkSize - 1) / ChunkSize
	if n == 0 {
		n = 1
	}
	return uint32(n)
}

// forEachPage visits every page in the ring exactly once.
func (h *Heap) forEachPage(fn func(*Page) bool) *Page {
	start := h.ring
	p := start
	for {
		if fn(p) {
			return p
		}
		p = p.next
		if p == start {
			return nil
		}
	}
}

// Allocate returns a freshly initialized object of the given kind
// spanning at least chunks chunks, following a four-step search order:
// exact size class, then first-fit in the next larger class, then
// bump-allocation in any page with room, then a fresh page from the
// allocator callback.
//
// Grounded on original_source/src/vm/gc.cpp state::allocate_uninit.
func (h *Heap) Allocate(kind Kind, chunks uint32) (*Object, error) {
	if chunks == 0 {
		chunks = 1
	}

	// Step 1: exact size class, first chunk that fits.
	class := sizeClassOf(chunks)
	o := h.free.popExact(class, chunks, false)

	// Step 2: next larger size class, first-fit of any length.
	if o == nil && class+1 < numSizeClasses {
		o = h.free.popExact(class+1, chunks, true)
	}

	if o != nil {
		page := o.page
		if leftover := o.numChunks - chunks; leftover > 0 {
			o.numChunks = chunks
			rem := &Object{}
			rem.init(KindNone, leftover, page, false)
			// Keep page.objects in chunk order: the remainder sits right
			// after o, not at the bump cursor.
			for i, x := range page.objects {
				if x == o {
					page.objects = append(page.objects[:i+1], append([]*Object{rem}, page.objects[i+1:]...)...)
					break
				}
			}
			h.free.push(rem)
		}
		o.init(kind, chunks, page, h.stage)
		page.numObjects++
		h.debt += chunks
		return o, nil
	}

	// Step 3: bump-allocate from any page in the ring with room.
	if page := h.forEachPage(func(p *Page) bool { return p.checkSpace(chunks) }); page != nil {
		o := page.allocArena(chunks)
		o.init(kind, chunks, page, h.stage)
		h.debt += chunks
		return o, nil
	}

	// Step 4: request a fresh page from the allocator callback.
	page := h.allocFn(h.allocCtx, nil, chunks, true)
	if page == nil {
		return nil, fmt.Errorf("heap: Allocate: allocator exhausted requesting %d chunks", chunks)
	}
	page.next, page.prev = page, page
	linkPageAfter(h.ring, page)

	o = page.allocArena(chunks)
	o.init(kind, chunks, page, h.stage)
	h.debt += chunks
	return o, nil
}

// Free releases o back to its page: either shrinking the bump cursor (if
// o abuts it) or linking o into its size class's free list. withinGC
// should be true only when called from inside Collect's sweep phase, in
// which case the page's alive-object counter (already reset for this
// cycle) is left untouched.
//
// Grounded on original_source/src/vm/gc.cpp state::free.
func (h *Heap) Free(o *Object, withinGC bool) {
	if o.isFree() {
		panic("heap: Free: double free")
	}
	page := o.page
	if !withinGC {
		page.aliveObjects--
	}
	page.numObjects--

	if o.Kind == KindTable {
		o.table().destroy()
	}

	if page.isLastAllocated(o) {
		page.nextChunk -= o.numChunks
		page.objects = page.objects[:len(page.objects)-1]
		o.Kind = kindFree
	} else {
		h.free.push(o)
	}
}
