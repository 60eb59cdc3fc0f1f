package heap

import "hash/fnv"

// stringData is the payload of a KindString object: an immutable byte
// string with its length and hash precomputed at creation time.
type stringData struct {
	bytes []byte
	hash  uint64
}

func (o *Object) string() *stringData { return o.payload.(*stringData) }

// StringBytes returns the raw bytes backing a string object.
func (o *Object) StringBytes() []byte { return o.string().bytes }

// StringLen returns the length, in bytes, of a string object.
func (o *Object) StringLen() int { return len(o.string().bytes) }

// StringHash returns the precomputed hash of a string object.
func (o *Object) StringHash() uint64 { return o.string().hash }

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

// NewString interns s: if an equal string is already interned, the
// existing Object is returned and reused; otherwise a fresh string object
// is allocated and chained onto the weak intern set's bucket for its hash.
//
// Strings are interned through a weak set swept each GC cycle: the intern
// set does not keep entries alive by itself, it only deduplicates objects
// that are already reachable from elsewhere.
// Each hash bucket holds every interned string sharing that hash, not just
// the most recent one, so a collision never evicts an earlier string from
// future lookup/reuse.
func (h *Heap) NewString(s string) (*Object, error) {
	b := []byte(s)
	hv := hashBytes(b)
	for _, o := range h.interned[hv] {
		if string(o.string().bytes) == s {
			return o, nil
		}
	}
	chunks := h.chunksFor(stringObjectSize(len(b)))
	o, err := h.Allocate(KindString, chunks)
	if err != nil {
		return nil, err
	}
	o.payload = &stringData{bytes: b, hash: hv}
	h.interned[hv] = append(h.interned[hv], o)
	return o, nil
}

// EmptyString returns the heap's shared empty-string sentinel, a
// permanent GC root.
func (h *Heap) EmptyString() *Object { return h.emptyString }

func stringObjectSize(n int) uintptr {
	return headerOverhead + uintptr(n)
}

// internSweep drops every interned entry whose object did not survive the
// current mark stage — the weak-set sweep a full collection cycle runs
// after mark completes.
func (h *Heap) internSweep(s stageContext) {
	for k, bucket := range h.interned {
		kept := bucket[:0]
		for _, o := range bucket {
			if o.stage == bool(s) {
				kept = append(kept, o)
			}
		}
		if len(kept) == 0 {
			delete(h.interned, k)
		} else {
			h.interned[k] = kept
		}
	}
}
