package heap

// RootMarker supplies the collector with the set of values a host
// considers live independent of the heap's own intern set and VM
// sentinel. A typical implementer (package vm's Interp) walks its
// value stack, open call frames' register windows, and its globals
// table.
//
// Grounded on original_source/src/vm/gc.cpp's root-marking callback
// passed into gc::collect.
type RootMarker interface {
	MarkRoots(tick func(Value))
}

// Collect runs one full mark-sweep cycle: flip the stage bit, mark every
// object reachable from roots (plus the heap's own permanent roots — the
// VM sentinel and the empty-string sentinel), sweep every page for
// objects that were not reached this cycle, sweep the weak string-intern
// set, and return any page left with no live objects to the allocator
// (unless running in greedy mode).
//
// Grounded on original_source/src/vm/gc.cpp's gc::collect.
func (h *Heap) Collect(marker RootMarker) {
	newStage := !h.stage
	sc := stageContext(newStage)

	h.forEachPage(func(p *Page) bool {
		if p != h.initial {
			p.aliveObjects = 0
		}
		return false
	})
	h.initial.aliveObjects = 1 // the VM sentinel header, always alive
	h.debt = 0

	var tickObj func(*Object)
	tickObj = func(o *Object) { o.tick(sc, tickObj) }

	h.vmRoot.stage = newStage
	tickObj(h.emptyString)
	if marker != nil {
		marker.MarkRoots(func(v Value) {
			if p := v.AsObject(); p != nil {
				tickObj(p)
			}
		})
	}

	h.stage = newStage
	h.internSweep(sc)

	var dead []*Page
	h.forEachPage(func(p *Page) bool {
		h.sweepPage(p, sc)
		if p != h.initial && p.aliveObjects == 0 && !h.greedy {
			dead = append(dead, p)
		}
		return false
	})

	for _, p := range dead {
		h.retirePage(p)
	}
}

// sweepPage frees every object on p that was not reached this cycle,
// leaving already-free chunks untouched.
func (h *Heap) sweepPage(p *Page, sc stageContext) {
	for _, o := range p.objects {
		if o.isFree() || o.Kind == kindVMRoot {
			continue
		}
		if o.stage != bool(sc) {
			h.Free(o, true)
		}
	}
}

// retirePage unlinks an empty page from the ring, removes its chunks
// from the free lists, and hands it back to the allocator callback.
func (h *Heap) retirePage(p *Page) {
	for _, o := range p.objects {
		if o.isFree() {
			h.free.remove(o)
		}
	}
	if h.ring == p {
		h.ring = p.next
	}
	unlinkPage(p)
	h.allocFn(h.allocCtx, p, 0, false)
}
