package vm

import (
	"fmt"

	"github.com/lumenrt/lumen/heap"
)

// Interp is the interpreter's owned state: the value stack and its top
// index, the global environment table, and the heap both live on. It
// implements heap.RootMarker so a host can pass it directly to
// Heap.Collect.
//
// Grounded on original_source/src/vm/interp.cpp's vm::call and the
// vm state fields it carries across calls.
type Interp struct {
	H       *heap.Heap
	Globals *heap.Object // KindTable

	stack    []heap.Value
	stackTop int

	frames []CallFrame // debug stack; not consulted by dispatch
}

// New creates an interpreter with the given initial stack capacity.
func New(h *heap.Heap, stackCapacity int) (*Interp, error) {
	globals, err := h.NewTable(16)
	if err != nil {
		return nil, fmt.Errorf("vm: New: %w", err)
	}
	if stackCapacity < 64 {
		stackCapacity = 64
	}
	return &Interp{
		H:       h,
		Globals: globals,
		stack:   make([]heap.Value, stackCapacity),
	}, nil
}

// MarkRoots implements heap.RootMarker: every stack slot below the
// current top is a live root; slots at or above it are conservatively
// dead.
func (vm *Interp) MarkRoots(tick func(heap.Value)) {
	for i := 0; i < vm.stackTop; i++ {
		tick(vm.stack[i])
	}
	tick(heap.FromObject(vm.Globals))
}

func (vm *Interp) allocStack(n int) int {
	begin := vm.stackTop
	need := begin + n
	if need > len(vm.stack) {
		grown := make([]heap.Value, need*2)
		copy(grown, vm.stack)
		vm.stack = grown
	}
	vm.stackTop = need
	return begin
}

// CallFunction is the host-facing entry point: call fn with args and
// return its result plus whether that result is an exception.
func (vm *Interp) CallFunction(fn *heap.Object, args []heap.Value) (heap.Value, bool, error) {
	callsite := vm.allocStack(1 + len(args))
	vm.stack[callsite] = heap.FromObject(fn)
	copy(vm.stack[callsite+1:], args)

	ok, err := vm.Call(callsite, len(args))
	result := vm.stack[callsite]
	vm.stackTop = callsite
	if err != nil {
		return heap.None, false, err
	}
	return result, !ok, nil
}

// Call invokes the function at stack[callsite] with n_args arguments
// following it, placing its outcome back at the same slot. It returns
// true on success and false if the callee raised an exception; in both cases
// stack[callsite] holds the result or the exception payload. A non-nil
// error indicates a resource error (an allocation the heap refused),
// which unlike a bytecode-level exception is not representable as a
// callsite-slot value.
//
// Grounded on original_source/src/vm/interp.cpp's vm::call.
func (vm *Interp) Call(callsite, nArgs int) (bool, error) {
	stackFrame := vm.stackTop
	argsBegin := callsite + 1

	ret := func(value heap.Value, isException bool) (bool, error) {
		vm.stackTop = stackFrame
		vm.stack[callsite] = value
		return !isException, nil
	}

	fv := vm.stack[callsite]
	switch {
	case fv.Kind() == heap.KindNative:
		result, isExc, err := fv.AsObject().CallNative(vm.stack[argsBegin : argsBegin+nArgs])
		if err != nil {
			return false, fmt.Errorf("vm: Call: native function: %w", err)
		}
		return ret(result, isExc)
	case fv.Kind() != heap.KindFunction:
		s, err := vm.H.NewString("invoking non-function")
		if err != nil {
			return false, fmt.Errorf("vm: Call: %w", err)
		}
		return ret(heap.FromObject(s), true)
	}

	fn := fv.AsObject()
	proto := fn.Prototype()
	numLocals := proto.NumLocals()
	localsBegin := vm.allocStack(numLocals)

	frame := CallFrame{Callsite: callsite, ArgsBegin: argsBegin, LocalsBegin: localsBegin, NumArgs: nArgs, Fn: fn}
	vm.frames = append(vm.frames, frame)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()

	refReg := func(r int16) *heap.Value {
		if r >= 0 {
			return &vm.stack[localsBegin+int(r)]
		}
		r = -(r + 1)
		return &vm.stack[argsBegin+int(r)]
	}

	code := proto.Code()
	for ip := 0; ; {
		insn := code[ip]
		ip++

		switch insn.Op {
		case heap.OpTYPE, heap.OpLNOT, heap.OpANEG:
			r, ok, err := ApplyUnary(vm.H, *refReg(insn.B), insn.Op)
			if err != nil {
				return false, err
			}
			if !ok {
				return ret(r, true)
			}
			*refReg(insn.A) = r

		case heap.OpAADD, heap.OpASUB, heap.OpAMUL, heap.OpADIV, heap.OpAMOD, heap.OpAPOW,
			heap.OpLAND, heap.OpLOR, heap.OpCEQ, heap.OpCNE, heap.OpCLT, heap.OpCGT, heap.OpCLE, heap.OpCGE:
			r, ok, err := ApplyBinary(vm.H, *refReg(insn.B), *refReg(insn.C), insn.Op)
			if err != nil {
				return false, err
			}
			if !ok {
				return ret(r, true)
			}
			*refReg(insn.A) = r

		case heap.OpCMOV:
			if refReg(insn.B).Truthy() {
				*refReg(insn.A) = *refReg(insn.C)
			} else {
				*refReg(insn.A) = heap.None
			}

		case heap.OpMOV:
			*refReg(insn.A) = *refReg(insn.B)

		case heap.OpTHRW:
			if e := *refReg(insn.A); !e.IsNone() {
				return ret(e, true)
			}

		case heap.OpRET:
			return ret(*refReg(insn.A), false)

		case heap.OpJNS:
			if !refReg(insn.B).Truthy() {
				ip += int(insn.A)
			}

		case heap.OpJS:
			if refReg(insn.B).Truthy() {
				ip += int(insn.A)
			}

		case heap.OpJMP:
			ip += int(insn.A)

		case heap.OpITER:
			found, err := vm.iterStep(refReg, insn)
			if err != nil {
				var v heap.Value
				v, _, err2 := typeError(vm.H, err.Error())
				if err2 != nil {
					return false, err2
				}
				return ret(v, true)
			}
			if !found {
				ip += int(insn.A)
			}

		case heap.OpKIMM:
			*refReg(insn.A) = insn.Const()

		case heap.OpKGET:
			*refReg(insn.A) = proto.Constant(int(insn.B))

		case heap.OpUGET:
			*refReg(insn.A) = fn.Upvalue(int(insn.B))

		case heap.OpUSET:
			fn.SetUpvalue(int(insn.A), *refReg(insn.B))

		case heap.OpTGET:
			tbl := *refReg(insn.C)
			if tbl.IsNone() {
				*refReg(insn.A) = heap.None
				break
			}
			if !tbl.IsTable() {
				return ret(mustTypeError(vm.H, "indexing non-table"), true)
			}
			*refReg(insn.A) = tbl.AsObject().Get(*refReg(insn.B))

		case heap.OpTSET:
			tblSlot := refReg(insn.C)
			if tblSlot.IsNone() {
				t, err := vm.H.NewTable(0)
				if err != nil {
					return false, fmt.Errorf("vm: TSET: %w", err)
				}
				*tblSlot = heap.FromObject(t)
			} else if !tblSlot.IsTable() {
				return ret(mustTypeError(vm.H, "indexing non-table"), true)
			}
			if err := tblSlot.AsObject().Set(vm.H, *refReg(insn.A), *refReg(insn.B)); err != nil {
				return false, fmt.Errorf("vm: TSET: %w", err)
			}

		case heap.OpGGET:
			*refReg(insn.A) = fn.Env().Get(*refReg(insn.B))

		case heap.OpGSET:
			if err := fn.Env().Set(vm.H, *refReg(insn.A), *refReg(insn.B)); err != nil {
				return false, fmt.Errorf("vm: GSET: %w", err)
			}

		case heap.OpTNEW:
			t, err := vm.H.NewTable(int(insn.B))
			if err != nil {
				return false, fmt.Errorf("vm: TNEW: %w", err)
			}
			*refReg(insn.A) = heap.FromObject(t)

		case heap.OpTDUP:
			tbl := proto.Constant(int(insn.B)).AsObject()
			dup, err := tbl.Duplicate(vm.H)
			if err != nil {
				return false, fmt.Errorf("vm: TDUP: %w", err)
			}
			*refReg(insn.A) = heap.FromObject(dup)

		case heap.OpFDUP:
			src := proto.Constant(int(insn.B)).AsObject()
			r := src
			if src.UpvalueCount() > 0 {
				dup, err := vm.H.NewFunction(src.Prototype(), make([]heap.Value, src.UpvalueCount()), src.Env())
				if err != nil {
					return false, fmt.Errorf("vm: FDUP: %w", err)
				}
				for i := 0; i < src.UpvalueCount(); i++ {
					dup.SetUpvalue(i, *refReg(insn.C+int16(i)))
				}
				r = dup
			}
			*refReg(insn.A) = heap.FromObject(r)

		case heap.OpCALL:
			if insn.A < 0 || int(insn.A)+int(insn.B)+1 > numLocals {
				panic("vm: CALL: callsite/arg window exceeds locals region")
			}
			site := localsBegin + int(insn.A)
			ok, err := vm.Call(site, int(insn.B))
			if err != nil {
				return false, err
			}
			if !ok {
				return ret(vm.stack[site], true)
			}

		case heap.OpINVK:
			if insn.B < 0 || int(insn.B)+int(insn.C)+1 > numLocals {
				panic("vm: INVK: callsite/arg window exceeds locals region")
			}
			site := localsBegin + int(insn.B)
			ok, err := vm.Call(site, int(insn.C))
			if err != nil {
				return false, err
			}
			if !ok {
				ip += int(insn.A)
			}

		case heap.OpBP:
			// breakpoint hook; no host debugger attached in this build.

		case heap.OpNOP:

		default:
			panic(fmt.Sprintf("vm: Call: unrecognized opcode %v", insn.Op))
		}
	}
}

// iterStep advances one ITER instruction's cursor, writing (key, value)
// into the two registers following b when an entry is found.
func (vm *Interp) iterStep(refReg func(int16) *heap.Value, insn heap.Insn) (bool, error) {
	target := *refReg(insn.C)
	iter := refReg(insn.B)
	k := refReg(insn.B + 1)
	v := refReg(insn.B + 2)

	if target.IsNone() {
		return false, nil
	}

	it := int(iter.AsNumber())

	switch {
	case target.IsString():
		b := target.AsObject().StringBytes()
		if it >= len(b) {
			return false, nil
		}
		*k = heap.Number(float64(it))
		*v = heap.Number(float64(b[it]))
		*iter = heap.Number(float64(it + 1))
		return true, nil

	case target.IsTable():
		tbl := target.AsObject()
		limit := tbl.ProbeLimit()
		for ; it < limit; it++ {
			key, value, ok := tbl.EntryAt(it)
			if ok {
				*k = key
				*v = value
				*iter = heap.Number(float64(it + 1))
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("cannot iterate %s", target.Kind())
	}
}

func mustTypeError(h *heap.Heap, msg string) heap.Value {
	v, _, err := typeError(h, msg)
	if err != nil {
		panic(err)
	}
	return v
}
