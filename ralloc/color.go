package ralloc

import "math/bits"

// tryColor mirrors mopt_ralloc.cpp's try_color: recursive simplification
// with K GP colors and M FP colors. It picks a node whose degree is below
// its class's limit and removes it, recursing on the rest; if none
// qualifies, it removes the highest-priority over-limit node instead and
// keeps going rather than aborting. On the way
// back out it reinserts the node and either reuses a coalescing hint's
// color, picks the lowest color free among its neighbors, or — if none
// fits K/M — assigns it a spill slot distinct from every live neighbor's.
// Returns the number of GP and FP nodes that had to spill.
func tryColor(gr []graphNode, K, M int) (spillGP, spillFP int) {
	var pick, overlimit *graphNode
	pickIdx, overlimitIdx := -1, -1
	for i := range gr {
		n := &gr[i]
		if n.color != 0 {
			continue
		}
		deg := n.vtx.popcount()
		if deg == 0 {
			continue
		}
		deg--
		limit := K
		if n.isFP {
			limit = M
		}
		if deg >= limit {
			if overlimit == nil || overlimit.priority > n.priority {
				overlimit, overlimitIdx = n, i
			}
		} else {
			pick, pickIdx = n, i
			break
		}
	}
	if pick == nil {
		if overlimit == nil {
			return 0, 0
		}
		pick, pickIdx = overlimit, overlimitIdx
	}

	saved := pick.vtx
	pick.vtx = newBitset(len(gr))
	saved.each(func(i int) { gr[i].vtx.clear(pickIdx) })

	spillGP, spillFP = tryColor(gr, K, M)

	colorMask := ^uint64(0)
	saved.each(func(i int) {
		gr[i].vtx.set(pickIdx)
		if gr[i].color != 0 && i != pickIdx {
			colorMask &^= 1 << uint(gr[i].color-1)
		}
	})
	pick.vtx = saved

	for _, h := range pick.hints {
		if h < 0 {
			continue
		}
		hint := &gr[h]
		if hint.color != 0 && colorMask&(1<<uint(hint.color-1)) != 0 {
			pick.color = hint.color
			return spillGP, spillFP
		}
	}

	limit := K
	if pick.isFP {
		limit = M
	}
	n := bits.TrailingZeros64(colorMask)
	if n >= limit {
		if pick.isFP {
			spillFP++
		} else {
			spillGP++
		}
		pick.color = 0
		pick.spillSlot = 1
		for {
			changed := false
			for i := range gr {
				if i != pickIdx && gr[i].spillSlot == pick.spillSlot && gr[i].vtx.get(pickIdx) {
					pick.spillSlot++
					changed = true
					break
				}
			}
			if !changed {
				break
			}
		}
	} else {
		pick.color = int32(n + 1)
	}
	return spillGP, spillFP
}
