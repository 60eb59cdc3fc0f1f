package ralloc

// raPrioHotBias scales a node's (use_count+1) weight into its simplify
// priority, named after mopt_ralloc.cpp's RA_PRIO_HOT_BIAS.
const raPrioHotBias = 12.0

// graphNode is one register's entry in the interference graph: the set of
// registers it interferes with (vtx, including itself while uncolored),
// a simplify priority, up to four move-coalescing hints, and the color or
// spill slot try_color eventually assigns it.
type graphNode struct {
	vtx       bitset
	priority  float64
	hints     [4]int
	hintNext  int
	color     int32
	spillSlot int32
	isFP      bool
}

func (n *graphNode) addHint(idx int) {
	n.hints[n.hintNext%len(n.hints)] = idx
	n.hintNext++
}

type regMeta struct {
	isFP bool
	phys int32
}

// buildGraph runs liveness to a fixpoint and constructs the interference
// graph from the result. Grounded on mopt_ralloc.cpp's build_graph.
func buildGraph(proc *Procedure) []graphNode {
	n := int(proc.nextUID)
	useCount := make([]int, n)
	meta := make([]regMeta, n)

	for _, bb := range proc.BasicBlocks {
		for i := range bb.Instructions {
			insn := &bb.Instructions[i]
			insn.forEachOperand(func(r *Reg, isRead bool) {
				uid := int(r.UID())
				meta[uid] = regMeta{isFP: r.IsFP(), phys: r.Color()}
				if isRead {
					useCount[uid]++
				}
				if insn.Op.isMemTouch() {
					useCount[uid] += 100
				}
			})
		}
	}

	for _, bb := range proc.BasicBlocks {
		bb.def = newBitset(n)
		bb.ref = newBitset(n)
		bb.inLive = newBitset(n)
		bb.outLive = newBitset(n)
		for i := range bb.Instructions {
			insn := &bb.Instructions[i]
			insn.forEachOperand(func(r *Reg, isRead bool) {
				if isPseudo(*r) {
					return
				}
				uid := int(r.UID())
				if isRead {
					if !bb.def.get(uid) {
						bb.ref.set(uid)
					}
				} else {
					bb.def.set(uid)
				}
			})
		}
	}

	for {
		changed := false
		for _, bb := range proc.BasicBlocks {
			newLive := newBitset(n)
			for _, s := range bb.Successors {
				newLive.union(s.inLive)
			}
			newLive.difference(bb.def)
			newLive.union(bb.ref)
			if !newLive.equal(bb.inLive) {
				changed = true
				bb.inLive = newLive
			}
		}
		if !changed {
			break
		}
	}
	for _, bb := range proc.BasicBlocks {
		bb.outLive = newBitset(n)
		for _, s := range bb.Successors {
			bb.outLive.union(s.inLive)
		}
	}

	gr := make([]graphNode, n)
	for i := range gr {
		gr[i].vtx = newBitset(n)
		gr[i].vtx.set(i)
		gr[i].hints = [4]int{-1, -1, -1, -1}
		gr[i].priority = float64(useCount[i]+1) * raPrioHotBias
		gr[i].isFP = meta[i].isFP
		if meta[i].phys != 0 {
			gr[i].color = meta[i].phys
		}
	}

	regAt := func(uid int) Reg {
		m := meta[uid]
		return Reg{uid: int32(uid), fp: m.isFP, phys: m.phys}
	}
	addVertex := func(a, b Reg) {
		if !interferesWith(a, b) {
			return
		}
		au, bu := int(a.UID()), int(b.UID())
		gr[au].vtx.set(bu)
		gr[bu].vtx.set(au)
	}
	addSet := func(live bitset, def Reg) {
		live.each(func(i int) { addVertex(def, regAt(i)) })
	}

	for _, bb := range proc.BasicBlocks {
		live := bb.outLive.clone()
		for idx := len(bb.Instructions) - 1; idx >= 0; idx-- {
			insn := &bb.Instructions[idx]
			if insn.Op.isMove() && len(insn.Ins) == 1 && !insn.Out.IsNone() {
				src, dst := int(insn.Ins[0].UID()), int(insn.Out.UID())
				gr[src].addHint(dst)
				gr[dst].addHint(src)
			}
			if !insn.Out.IsNone() {
				live.clear(int(insn.Out.UID()))
				addSet(live, insn.Out)
			}
			for _, r := range insn.Ins {
				live.set(int(r.UID()))
			}
			for _, r := range insn.Ins {
				addSet(live, r)
			}
		}
	}
	return gr
}

func cloneGraph(gr []graphNode) []graphNode {
	out := make([]graphNode, len(gr))
	for i, n := range gr {
		out[i] = n
		out[i].vtx = n.vtx.clone()
	}
	return out
}
