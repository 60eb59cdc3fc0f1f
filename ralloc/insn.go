package ralloc

// Op is a machine instruction's mnemonic. The allocator treats every
// opcode opaquely except for the move and memory forms it special-cases:
// register-to-register moves seed coalescing hints and are candidates for
// erasure once coloring turns them into self-moves; load/store forms
// penalize spilling the register they reference.
type Op uint8

const (
	OpGeneric Op = iota
	OpMovGP
	OpMovFP
	OpLoadGP
	OpLoadFP
	OpStoreGP
	OpStoreFP
)

func (o Op) String() string {
	switch o {
	case OpMovGP:
		return "movi"
	case OpMovFP:
		return "movf"
	case OpLoadGP:
		return "loadi64"
	case OpLoadFP:
		return "loadf64"
	case OpStoreGP:
		return "storei64"
	case OpStoreFP:
		return "storef64"
	default:
		return "insn"
	}
}

func (o Op) isMove() bool {
	return o == OpMovGP || o == OpMovFP
}

func (o Op) isMemTouch() bool {
	return o == OpLoadGP || o == OpLoadFP || o == OpStoreGP || o == OpStoreFP
}

// MemOperand is a [base+disp] memory reference. It is unused by ordinary
// instructions and populated only on the loads/stores Allocate inserts to
// service a spilled virtual register.
type MemOperand struct {
	Base Reg
	Disp int32
}

// MInsn is one instruction in a machine procedure under allocation. Out is
// the register it defines (NoReg if it defines none); Ins are every
// register it reads, in source order. A move instruction's single input is
// its source; build_graph only records a coalescing hint when that source
// is itself a register (as opposed to a move-immediate).
type MInsn struct {
	Op  Op
	Out Reg
	Ins []Reg
	Mem *MemOperand
}

// forEachOperand visits every register this instruction defines or reads,
// in the order the def, then reads. Visitors may rewrite a register in
// place through the pointer, mirroring mopt_ralloc.cpp's for_each_reg.
func (i *MInsn) forEachOperand(fn func(r *Reg, isRead bool)) {
	if !i.Out.IsNone() {
		fn(&i.Out, false)
	}
	for k := range i.Ins {
		fn(&i.Ins[k], true)
	}
}
