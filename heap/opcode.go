package heap

// Opcode identifies one of the interpreter's bytecode operations. This
// enumerates the full opcode family the interpreter in package vm
// dispatches on; their semantics live in vm's dispatch loop, not here.
type Opcode uint8

const (
	OpNOP Opcode = iota
	OpBP

	// Arithmetic/logical, unary.
	OpTYPE
	OpLNOT
	OpANEG

	// Arithmetic/logical, binary.
	OpAADD
	OpASUB
	OpAMUL
	OpADIV
	OpAMOD
	OpAPOW
	OpLAND
	OpLOR
	OpCEQ
	OpCNE
	OpCLT
	OpCGT
	OpCLE
	OpCGE

	// Data movement.
	OpMOV
	OpCMOV
	OpKIMM
	OpKGET
	OpUGET
	OpUSET
	OpGGET
	OpGSET

	// Control.
	OpJMP
	OpJS
	OpJNS
	OpRET
	OpTHRW

	// Tables.
	OpTGET
	OpTSET
	OpTNEW
	OpTDUP

	// Functions.
	OpFDUP
	OpCALL
	OpINVK

	// Iteration.
	OpITER
)

func (op Opcode) String() string {
	switch op {
	case OpNOP:
		return "NOP"
	case OpBP:
		return "BP"
	case OpTYPE:
		return "TYPE"
	case OpLNOT:
		return "LNOT"
	case OpANEG:
		return "ANEG"
	case OpAADD:
		return "AADD"
	case OpASUB:
		return "ASUB"
	case OpAMUL:
		return "AMUL"
	case OpADIV:
		return "ADIV"
	case OpAMOD:
		return "AMOD"
	case OpAPOW:
		return "APOW"
	case OpLAND:
		return "LAND"
	case OpLOR:
		return "LOR"
	case OpCEQ:
		return "CEQ"
	case OpCNE:
		return "CNE"
	case OpCLT:
		return "CLT"
	case OpCGT:
		return "CGT"
	case OpCLE:
		return "CLE"
	case OpCGE:
		return "CGE"
	case OpMOV:
		return "MOV"
	case OpCMOV:
		return "CMOV"
	case OpKIMM:
		return "KIMM"
	case OpKGET:
		return "KGET"
	case OpUGET:
		return "UGET"
	case OpUSET:
		return "USET"
	case OpGGET:
		return "GGET"
	case OpGSET:
		return "GSET"
	case OpJMP:
		return "JMP"
	case OpJS:
		return "JS"
	case OpJNS:
		return "JNS"
	case OpRET:
		return "RET"
	case OpTHRW:
		return "THRW"
	case OpTGET:
		return "TGET"
	case OpTSET:
		return "TSET"
	case OpTNEW:
		return "TNEW"
	case OpTDUP:
		return "TDUP"
	case OpFDUP:
		return "FDUP"
	case OpCALL:
		return "CALL"
	case OpINVK:
		return "INVK"
	case OpITER:
		return "ITER"
	default:
		return "???"
	}
}

// Insn is a single bytecode instruction: an opcode and three signed
// 16-bit operands, the shape a front-end compiler emits. KIMM additionally
// carries a constant value, reached through the Const/Imm accessor pair.
// Imm exposes the same 64-bit encoding the source's instruction-embedded
// immediate carries, rather than overlaying A/B/C's memory directly (see
// heap.Value.Imm for why this implementation favors an accessor over
// byte-level overlay tricks).
type Insn struct {
	Op      Opcode
	A, B, C int16
	konst   Value
}

// NewInsn builds a plain three-operand instruction.
func NewInsn(op Opcode, a, b, c int16) Insn {
	return Insn{Op: op, A: a, B: b, C: c}
}

// NewKIMM builds a KIMM instruction loading v into register a.
func NewKIMM(a int16, v Value) Insn {
	return Insn{Op: OpKIMM, A: a, konst: v}
}

// Const returns the constant value embedded in a KIMM instruction.
func (i Insn) Const() Value { return i.konst }

// Imm returns the instruction's embedded 64-bit immediate. Only valid on
// a KIMM instruction.
func (i Insn) Imm() uint64 { return i.konst.Imm() }
