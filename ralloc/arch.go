package ralloc

// NativeReg names a physical machine register. This package never emits
// machine code; NativeReg exists so ToNative can hand a JIT emitter (out of
// scope here — no such emitter is implemented in this tree) a concrete
// register identity for an assigned color.
type NativeReg string

const noNativeReg NativeReg = ""

// System V AMD64 register classes, grounded on
// original_source/include/ir/arch.hpp's LI_ABI_SYSV64 branch. This is the
// only ABI table wired in: the source picks between SysV64 and MS64 with a
// compile-time flag, and nothing in this repo's scope needs a second ABI,
// since no x86 JIT emitter is implemented here.
var (
	gpNonvolatile = []NativeReg{"RBP", "RBX", "R12", "R13", "R14", "R15"}
	gpVolatile    = []NativeReg{"RAX", "RDI", "RSI", "RDX", "RCX", "R8", "R9", "R10", "R11"}
	gpArgument    = []NativeReg{"RDI", "RSI", "RDX", "RCX", "R8", "R9"}

	fpNonvolatile []NativeReg // SysV64 has no callee-saved XMM registers
	fpVolatile    = []NativeReg{
		"XMM0", "XMM1", "XMM2", "XMM3", "XMM4", "XMM5", "XMM6", "XMM7",
		"XMM8", "XMM9", "XMM10", "XMM11", "XMM12", "XMM13", "XMM14", "XMM15",
	}
	fpArgument = []NativeReg{"XMM0", "XMM1", "XMM2", "XMM3", "XMM4", "XMM5", "XMM6", "XMM7"}
)

// combinedArgCounter mirrors arch.hpp's combined_arg_counter: SysV64 tracks
// GP and FP argument positions independently.
const combinedArgCounter = false

// NumGPReg and NumFPReg bound K and M's growth in the iterative coloring
// loop: a class can never need more colors than it has physical registers.
var (
	NumGPReg = len(gpVolatile) + len(gpNonvolatile)
	NumFPReg = len(fpVolatile) + len(fpNonvolatile)
)

// gpByColor and fpByColor lay out the same order try_color's colors are
// drawn from: color 1 is the first volatile register, colors past the
// volatile count are the non-volatile tail.
var (
	gpByColor = append(append([]NativeReg{}, gpVolatile...), gpNonvolatile...)
	fpByColor = append(append([]NativeReg{}, fpVolatile...), fpNonvolatile...)
)

// ToNative recovers the real register identifier for a signed color, the
// shape a JIT emitter would call `arch::to_native(color)` with: a positive
// color names a GP register, a negative one an FP register (negated back
// to a 1-based index), and 0 is never a valid color. This mirrors
// arch.hpp's single signed `reg` type, where FP and GP colors share one
// numberline split by sign rather than a separate bool parameter.
func ToNative(color int32) NativeReg {
	table, idx := gpByColor, int(color)-1
	if color < 0 {
		table, idx = fpByColor, int(-color)-1
	}
	if idx < 0 || idx >= len(table) {
		return noNativeReg
	}
	return table[idx]
}

// ArgumentColor returns the 1-based GP color an argument at the given
// zero-based position is passed in, or 0 if that argument is passed on the
// stack instead.
//
// original_source's map_argument_native computes this as
// `size(table) < index ? table[index] : invalid`, which is inverted: index
// is already zero-based, so the correct bounds check is `index <
// size(table)`. This port uses the corrected direction.
func ArgumentColor(gpArgIndex, fpArgIndex int) int32 {
	idx := gpArgIndex
	if combinedArgCounter {
		idx = gpArgIndex + fpArgIndex
	}
	if idx < 0 || idx >= len(gpArgument) {
		return 0
	}
	return colorOf(gpByColor, gpArgument[idx])
}

// FPArgumentColor is ArgumentColor's FP counterpart; the interpreter's own
// calling convention never passes floating-point arguments, but a future
// JIT-compiled callee reached through the same ABI would need it.
func FPArgumentColor(gpArgIndex, fpArgIndex int) int32 {
	idx := fpArgIndex
	if combinedArgCounter {
		idx = gpArgIndex + fpArgIndex
	}
	if idx < 0 || idx >= len(fpArgument) {
		return 0
	}
	return colorOf(fpByColor, fpArgument[idx])
}

func colorOf(table []NativeReg, name NativeReg) int32 {
	for i, r := range table {
		if r == name {
			return int32(i + 1)
		}
	}
	return 0
}
