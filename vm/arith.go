package vm

import (
	"fmt"
	"math"

	"github.com/lumenrt/lumen/heap"
)

// ApplyUnary implements TYPE/LNOT/ANEG, the shared delegate every unary
// opcode in the dispatch loop routes through. The returned bool is the
// opcode's ok flag: false turns the instruction into an exception return
// carrying the returned value. A non-nil error is a resource error —
// an allocation the heap refused — and is always propagated to the
// caller rather than folded into the ok/value pair.
func ApplyUnary(h *heap.Heap, v heap.Value, op heap.Opcode) (heap.Value, bool, error) {
	switch op {
	case heap.OpTYPE:
		s, err := h.NewString(v.Kind().String())
		if err != nil {
			return heap.None, false, fmt.Errorf("vm: TYPE: %w", err)
		}
		return heap.FromObject(s), true, nil
	case heap.OpLNOT:
		return heap.Bool(!v.Truthy()), true, nil
	case heap.OpANEG:
		if !v.IsNumber() {
			return typeError(h, "ANEG: value is not a number")
		}
		return heap.Number(-v.AsNumber()), true, nil
	default:
		panic(fmt.Sprintf("vm: ApplyUnary: not a unary opcode: %v", op))
	}
}

// ApplyBinary implements the arithmetic, logical, and comparison
// opcodes, the shared delegate every binary opcode in the dispatch loop
// routes through.
func ApplyBinary(h *heap.Heap, a, b heap.Value, op heap.Opcode) (heap.Value, bool, error) {
	switch op {
	case heap.OpAADD, heap.OpASUB, heap.OpAMUL, heap.OpADIV, heap.OpAMOD, heap.OpAPOW:
		if !a.IsNumber() || !b.IsNumber() {
			v, ok, err := typeError(h, "arithmetic on non-number")
			return v, ok, err
		}
		return heap.Number(applyArith(op, a.AsNumber(), b.AsNumber())), true, nil
	case heap.OpLAND:
		return heap.Bool(a.Truthy() && b.Truthy()), true, nil
	case heap.OpLOR:
		return heap.Bool(a.Truthy() || b.Truthy()), true, nil
	case heap.OpCEQ:
		return heap.Bool(a.Equal(b)), true, nil
	case heap.OpCNE:
		return heap.Bool(!a.Equal(b)), true, nil
	case heap.OpCLT, heap.OpCGT, heap.OpCLE, heap.OpCGE:
		if !a.IsNumber() || !b.IsNumber() {
			return typeError(h, "comparison on non-number")
		}
		return heap.Bool(applyCompare(op, a.AsNumber(), b.AsNumber())), true, nil
	default:
		panic(fmt.Sprintf("vm: ApplyBinary: not a binary opcode: %v", op))
	}
}

func applyArith(op heap.Opcode, a, b float64) float64 {
	switch op {
	case heap.OpAADD:
		return a + b
	case heap.OpASUB:
		return a - b
	case heap.OpAMUL:
		return a * b
	case heap.OpADIV:
		return a / b
	case heap.OpAMOD:
		return math.Mod(a, b)
	case heap.OpAPOW:
		return math.Pow(a, b)
	}
	panic("unreachable")
}

func applyCompare(op heap.Opcode, a, b float64) bool {
	switch op {
	case heap.OpCLT:
		return a < b
	case heap.OpCGT:
		return a > b
	case heap.OpCLE:
		return a <= b
	case heap.OpCGE:
		return a >= b
	}
	panic("unreachable")
}

func typeError(h *heap.Heap, msg string) (heap.Value, bool, error) {
	s, err := h.NewString(msg)
	if err != nil {
		return heap.None, false, fmt.Errorf("vm: %s: %w", msg, err)
	}
	return heap.FromObject(s), false, nil
}
