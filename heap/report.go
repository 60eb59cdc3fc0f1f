package heap

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// PageReport summarizes one page's bookkeeping counters.
type PageReport struct {
	TotalChunks  uint32 `cbor:"total_chunks"`
	NextChunk    uint32 `cbor:"next_chunk"`
	NumObjects   uint32 `cbor:"num_objects"`
	AliveObjects uint32 `cbor:"alive_objects"`
}

// SizeClassReport summarizes one free-list size class.
type SizeClassReport struct {
	Class      int `cbor:"class"`
	FreeChunks int `cbor:"free_chunks"`
}

// Report is a point-in-time diagnostic snapshot of a Heap: its page
// ring, its free-list occupancy, the weak intern-set size, and the
// current allocation debt. It exists to give the heap's testable
// properties (free-list consistency, GC idempotence, debt accounting) a
// serializable artifact a test can diff, not just an in-process
// assertion.
type Report struct {
	Pages       []PageReport      `cbor:"pages"`
	FreeLists   []SizeClassReport `cbor:"free_lists"`
	InternCount int               `cbor:"intern_count"`
	Debt        uint32            `cbor:"debt"`
	Stage       bool              `cbor:"stage"`
}

// Report produces a snapshot of h's current state.
func (h *Heap) Report() Report {
	internCount := 0
	for _, bucket := range h.interned {
		internCount += len(bucket)
	}
	r := Report{Debt: h.debt, Stage: h.stage, InternCount: internCount}
	h.forEachPage(func(p *Page) bool {
		r.Pages = append(r.Pages, PageReport{
			TotalChunks:  p.totalChunks,
			NextChunk:    p.nextChunk,
			NumObjects:   p.numObjects,
			AliveObjects: p.aliveObjects,
		})
		return false
	})
	for class := 0; class < numSizeClasses; class++ {
		n := 0
		for it := h.free[class]; it != nil; it = it.nextFree {
			n++
		}
		if n > 0 {
			r.FreeLists = append(r.FreeLists, SizeClassReport{Class: class, FreeChunks: n})
		}
	}
	return r
}

// cborEncMode is the canonical CBOR encoding mode used for reports, so
// two snapshots of equivalent state always marshal to identical bytes.
// Mirrors the teacher's vm/dist package's own cborEncMode construction.
var cborEncMode = func() cbor.EncMode {
	m, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("heap: building canonical cbor encode mode: %w", err))
	}
	return m
}()

// MarshalReport encodes r using canonical CBOR.
func MarshalReport(r Report) ([]byte, error) {
	b, err := cborEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("heap: MarshalReport: %w", err)
	}
	return b, nil
}

// UnmarshalReport decodes a Report previously produced by MarshalReport.
func UnmarshalReport(b []byte) (Report, error) {
	var r Report
	if err := cbor.Unmarshal(b, &r); err != nil {
		return Report{}, fmt.Errorf("heap: UnmarshalReport: %w", err)
	}
	return r, nil
}
