package ralloc

import "fmt"

// SPReg tags the base of a spill's memory operand ([SP + slot*8]); this
// package never colors it, it exists only to label Mem.Base.
var SPReg = Reg{uid: -2}

// spillArgs replaces the three fixed argument pseudo-registers with fresh
// virtuals and prepends moves from the platform's argument registers at
// the procedure's entry block, before the allocator proper ever runs.
func spillArgs(proc *Procedure) {
	vmReg, tosReg, nargsReg := NoReg, NoReg, NoReg
	for _, bb := range proc.BasicBlocks {
		for i := range bb.Instructions {
			insn := &bb.Instructions[i]
			insn.forEachOperand(func(r *Reg, isRead bool) {
				switch r.UID() {
				case RegVM:
					if vmReg.IsNone() {
						vmReg = proc.NextGP()
					}
					*r = vmReg
				case RegTOS:
					if tosReg.IsNone() {
						tosReg = proc.NextGP()
					}
					*r = tosReg
				case RegNArgs:
					if nargsReg.IsNone() {
						nargsReg = proc.NextGP()
					}
					*r = nargsReg
				}
			})
		}
	}
	if len(proc.BasicBlocks) == 0 {
		return
	}
	var prelude []MInsn
	for i, r := range []Reg{vmReg, tosReg, nargsReg} {
		if r.IsNone() {
			continue
		}
		prelude = append(prelude, MInsn{Op: OpMovGP, Out: r, Ins: []Reg{proc.PhysicalGP(ArgumentColor(i, 0))}})
	}
	entry := proc.BasicBlocks[0]
	entry.Instructions = append(prelude, entry.Instructions...)
}

type spillEntry struct {
	src, dst Reg
	slot     int32
}

// spillAndSwap rewrites r to a fresh virtual standing in for its spilled
// slot, reusing an earlier entry in list if this instruction already
// touched the same spilled virtual — mopt_ralloc.cpp's spill_and_swap,
// which bounds reloads/stores to a small fixed table for the same reason.
func spillAndSwap(proc *Procedure, list *[]spillEntry, r *Reg, infoSlot, slotOffset int32, numSpillSlots *int32) {
	for i := range *list {
		if (*list)[i].src.Equal(*r) {
			*r = (*list)[i].dst
			return
		}
	}
	var dst Reg
	if r.IsFP() {
		dst = proc.NextFP()
	} else {
		dst = proc.NextGP()
	}
	slot := infoSlot + slotOffset - 1
	*list = append(*list, spillEntry{src: *r, dst: dst, slot: slot})
	*r = dst
	if slot+1 > *numSpillSlots {
		*numSpillSlots = slot + 1
	}
}

// Allocate colors every virtual register in proc, inserting reload/store
// code where coloring cannot avoid a spill, and records the used register
// masks and frame size on proc. It panics if coloring fails to converge
// within 32 iterations, which signals a broken allocator invariant rather
// than anything a caller could recover from.
//
// Grounded on mopt_ralloc.cpp's allocate_registers.
func Allocate(proc *Procedure) {
	spillArgs(proc)
	gr := buildGraph(proc)

	maxK, maxM := NumGPReg, NumFPReg
	K := min(maxK, max(len(gpVolatile), 2))
	M := min(maxM, max(len(fpVolatile), 2))
	grCopy := cloneGraph(gr)

	var numSpillSlots int32
	for step := 0; ; step++ {
		if step >= 32 {
			panic(fmt.Sprintf("ralloc: Allocate: coloring did not converge within 32 iterations (K=%d M=%d)", K, M))
		}

		spillGP, spillFP := tryColor(gr, K, M)
		if spillGP == 0 && spillFP == 0 {
			break
		}

		increaseK := spillGP > 0 && K != maxK
		increaseM := spillFP > 0 && M != maxM
		if increaseK {
			K++
		}
		if increaseM {
			M++
		}
		if increaseK || increaseM {
			gr = cloneGraph(grCopy)
			continue
		}

		slotOffset := numSpillSlots
		for _, bb := range proc.BasicBlocks {
			newInsns := make([]MInsn, 0, len(bb.Instructions))
			for i := range bb.Instructions {
				insn := bb.Instructions[i]
				var reloads, stores []spillEntry
				insn.forEachOperand(func(r *Reg, isRead bool) {
					if isPseudo(*r) || !r.IsVirtual() || int(r.UID()) >= len(gr) {
						return
					}
					info := &gr[r.UID()]
					if info.spillSlot == 0 {
						return
					}
					if isRead {
						spillAndSwap(proc, &reloads, r, info.spillSlot, slotOffset, &numSpillSlots)
					} else {
						spillAndSwap(proc, &stores, r, info.spillSlot, slotOffset, &numSpillSlots)
					}
				})
				if len(reloads) == 0 && len(stores) == 0 {
					newInsns = append(newInsns, insn)
					continue
				}
				for _, e := range reloads {
					op := OpLoadGP
					if e.src.IsFP() {
						op = OpLoadFP
					}
					newInsns = append(newInsns, MInsn{Op: op, Out: e.dst, Mem: &MemOperand{Base: SPReg, Disp: e.slot * 8}})
				}
				newInsns = append(newInsns, insn)
				for _, e := range stores {
					op := OpStoreGP
					if e.src.IsFP() {
						op = OpStoreFP
					}
					newInsns = append(newInsns, MInsn{Op: op, Ins: []Reg{e.dst}, Mem: &MemOperand{Base: SPReg, Disp: e.slot * 8}})
				}
			}
			bb.Instructions = newInsns
		}

		gr = buildGraph(proc)
		grCopy = cloneGraph(gr)
	}

	proc.UsedStackLength = ((numSpillSlots + 1) &^ 1) * 8

	for _, bb := range proc.BasicBlocks {
		for i := range bb.Instructions {
			insn := &bb.Instructions[i]
			insn.forEachOperand(func(r *Reg, isRead bool) {
				if isPseudo(*r) || !r.IsVirtual() {
					return
				}
				color := gr[r.UID()].color
				if color == 0 {
					panic("ralloc: Allocate: virtual register left uncolored after coloring converged")
				}
				if r.IsFP() {
					proc.UsedFPMask |= 1 << uint(color-1)
				} else {
					proc.UsedGPMask |= 1 << uint(color-1)
				}
				*r = physicalReg(r.UID(), color, r.IsFP())
			})
		}
	}

	for _, bb := range proc.BasicBlocks {
		kept := bb.Instructions[:0]
		for _, insn := range bb.Instructions {
			if insn.Op.isMove() && len(insn.Ins) == 1 && insn.Out.Color() == insn.Ins[0].Color() {
				continue
			}
			kept = append(kept, insn)
		}
		bb.Instructions = kept
	}
}
