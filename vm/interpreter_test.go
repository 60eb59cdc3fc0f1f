package vm

import (
	"testing"

	"github.com/lumenrt/lumen/heap"
)

// protoBuilder is a small fluent assembler for constructing Prototype
// objects in tests, in the teacher's NewCompiledMethodBuilder style.
type protoBuilder struct {
	h         *heap.Heap
	code      []heap.Insn
	constants []heap.Value
	numArgs   int
	numLocals int
	numUval   int
}

func newProtoBuilder(h *heap.Heap) *protoBuilder {
	return &protoBuilder{h: h}
}

func (b *protoBuilder) setArgs(n int) *protoBuilder   { b.numArgs = n; return b }
func (b *protoBuilder) setLocals(n int) *protoBuilder { b.numLocals = n; return b }
func (b *protoBuilder) setUpvalues(n int) *protoBuilder { b.numUval = n; return b }

func (b *protoBuilder) emit(insn heap.Insn) *protoBuilder {
	b.code = append(b.code, insn)
	return b
}

func (b *protoBuilder) addConstant(v heap.Value) int16 {
	b.constants = append(b.constants, v)
	return int16(len(b.constants) - 1)
}

func (b *protoBuilder) build(t *testing.T) *heap.Object {
	t.Helper()
	p, err := b.h.NewPrototype(heap.PrototypeSpec{
		Code:        b.code,
		Constants:   b.constants,
		NumArgs:     b.numArgs,
		NumLocals:   b.numLocals,
		NumUpvalues: b.numUval,
	})
	if err != nil {
		t.Fatalf("NewPrototype: %v", err)
	}
	return p
}

func newTestInterp(t *testing.T) *Interp {
	t.Helper()
	h, err := heap.New(heap.Config{})
	if err != nil {
		t.Fatalf("heap.New: %v", err)
	}
	vm, err := New(h, 0)
	if err != nil {
		t.Fatalf("vm.New: %v", err)
	}
	return vm
}

func mustFunction(t *testing.T, vm *Interp, proto *heap.Object) *heap.Object {
	t.Helper()
	fn, err := vm.H.NewFunction(proto, nil, vm.Globals)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	return fn
}

func TestReturnImmediate(t *testing.T) {
	vm := newTestInterp(t)
	b := newProtoBuilder(vm.H).setLocals(1)
	b.emit(heap.NewKIMM(0, heap.Number(42)))
	b.emit(heap.NewInsn(heap.OpRET, 0, 0, 0))
	fn := mustFunction(t, vm, b.build(t))

	result, isExc, err := vm.CallFunction(fn, nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if isExc {
		t.Fatalf("unexpected exception: %v", result)
	}
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}

func TestThrowPropagatesAsException(t *testing.T) {
	vm := newTestInterp(t)
	b := newProtoBuilder(vm.H).setLocals(1)
	strConst, err := vm.H.NewString("x")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	b.emit(heap.NewKIMM(0, heap.FromObject(strConst)))
	b.emit(heap.NewInsn(heap.OpTHRW, 0, 0, 0))
	b.emit(heap.NewInsn(heap.OpRET, 0, 0, 0))
	fn := mustFunction(t, vm, b.build(t))

	result, isExc, err := vm.CallFunction(fn, nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if !isExc {
		t.Fatalf("expected exception, got ok result %v", result)
	}
	if !result.IsString() || string(result.AsObject().StringBytes()) != "x" {
		t.Fatalf("result = %v, want %q", result, "x")
	}
}

// TestTSetAutoVivifiesNoneSlot exercises TSET on a none-holding local,
// then TGET of the same key, confirming the auto-vivification path.
func TestTSetAutoVivifiesNoneSlot(t *testing.T) {
	vm := newTestInterp(t)
	b := newProtoBuilder(vm.H).setLocals(4)
	keyStr, err := vm.H.NewString("k")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	valNum := heap.Number(7)

	// r0 := none (the table slot, left as the zero value)
	// r1 := "k"            (key)
	// r2 := 7              (value)
	// TSET r1, r2, r0       -> tbl[key] = value, r0 becomes a table
	// TGET r3, r1, r0       -> r3 = tbl[key]
	// RET r3
	b.emit(heap.NewKIMM(1, heap.FromObject(keyStr)))
	b.emit(heap.NewKIMM(2, valNum))
	b.emit(heap.NewInsn(heap.OpTSET, 1, 2, 0))
	b.emit(heap.NewInsn(heap.OpTGET, 3, 1, 0))
	b.emit(heap.NewInsn(heap.OpRET, 3, 0, 0))
	fn := mustFunction(t, vm, b.build(t))

	result, isExc, err := vm.CallFunction(fn, nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if isExc {
		t.Fatalf("unexpected exception: %v", result)
	}
	if !result.IsNumber() || result.AsNumber() != 7 {
		t.Fatalf("result = %v, want 7", result)
	}
}

func TestArithmeticAndComparison(t *testing.T) {
	vm := newTestInterp(t)
	b := newProtoBuilder(vm.H).setLocals(4)
	b.emit(heap.NewKIMM(0, heap.Number(3)))
	b.emit(heap.NewKIMM(1, heap.Number(4)))
	b.emit(heap.NewInsn(heap.OpAADD, 2, 0, 1)) // r2 = 7
	b.emit(heap.NewInsn(heap.OpCLT, 3, 0, 1))  // r3 = 3 < 4
	b.emit(heap.NewInsn(heap.OpRET, 2, 0, 0))
	fn := mustFunction(t, vm, b.build(t))

	result, isExc, err := vm.CallFunction(fn, nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if isExc || !result.IsNumber() || result.AsNumber() != 7 {
		t.Fatalf("result = %v, isExc = %v, want 7", result, isExc)
	}
}

func TestArithmeticOnNonNumberIsTypeError(t *testing.T) {
	vm := newTestInterp(t)
	b := newProtoBuilder(vm.H).setLocals(3)
	str, err := vm.H.NewString("nope")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	b.emit(heap.NewKIMM(0, heap.FromObject(str)))
	b.emit(heap.NewKIMM(1, heap.Number(1)))
	b.emit(heap.NewInsn(heap.OpAADD, 2, 0, 1))
	b.emit(heap.NewInsn(heap.OpRET, 2, 0, 0))
	fn := mustFunction(t, vm, b.build(t))

	result, isExc, err := vm.CallFunction(fn, nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if !isExc {
		t.Fatalf("expected type-error exception, got ok result %v", result)
	}
	if !result.IsString() {
		t.Fatalf("exception payload = %v, want a string", result)
	}
}

func TestCallsNestedFunction(t *testing.T) {
	vm := newTestInterp(t)

	// callee(arg) = arg * 2
	calleeB := newProtoBuilder(vm.H).setArgs(1).setLocals(1)
	calleeB.emit(heap.NewKIMM(0, heap.Number(2)))
	calleeB.emit(heap.NewInsn(heap.OpAMUL, 0, -1, 0)) // r0 = arg0 * r0
	calleeB.emit(heap.NewInsn(heap.OpRET, 0, 0, 0))
	calleeFn := mustFunction(t, vm, calleeB.build(t))

	// caller() = callee(21)
	callerB := newProtoBuilder(vm.H).setLocals(2)
	calleeConst := callerB.addConstant(heap.FromObject(calleeFn))
	callerB.emit(heap.NewInsn(heap.OpKGET, 0, calleeConst, 0))
	callerB.emit(heap.NewKIMM(1, heap.Number(21)))
	callerB.emit(heap.NewInsn(heap.OpCALL, 0, 1, 0))
	callerB.emit(heap.NewInsn(heap.OpRET, 0, 0, 0))
	callerFn := mustFunction(t, vm, callerB.build(t))

	result, isExc, err := vm.CallFunction(callerFn, nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if isExc || !result.IsNumber() || result.AsNumber() != 42 {
		t.Fatalf("result = %v, isExc = %v, want 42", result, isExc)
	}
}

func TestIterateTable(t *testing.T) {
	vm := newTestInterp(t)
	tbl, err := vm.H.NewTable(4)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := tbl.Set(vm.H, heap.Number(float64(i)), heap.Number(float64(i*10))); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	b := newProtoBuilder(vm.H).setLocals(6)
	tblConst := b.addConstant(heap.FromObject(tbl))
	// r0 = tbl ; r1 = iter cursor (starts at 0, the zero value) ; r2,r3 = k,v
	// r4 = accumulator
	b.emit(heap.NewInsn(heap.OpKGET, 0, tblConst, 0))
	b.emit(heap.NewKIMM(4, heap.Number(0)))
	loop := len(b.code)
	b.emit(heap.NewInsn(heap.OpITER, 3, 1, 0)) // a=exit-offset placeholder, patched below
	b.emit(heap.NewInsn(heap.OpAADD, 4, 4, 3))
	jmpIdx := len(b.code)
	b.emit(heap.NewInsn(heap.OpJMP, int16(loop-(jmpIdx+1)), 0, 0))
	exitPos := len(b.code)
	b.emit(heap.NewInsn(heap.OpRET, 4, 0, 0))
	b.code[loop].A = int16(exitPos - (loop + 1))

	fn := mustFunction(t, vm, b.build(t))
	result, isExc, err := vm.CallFunction(fn, nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if isExc {
		t.Fatalf("unexpected exception: %v", result)
	}
	if !result.IsNumber() || result.AsNumber() != 30 {
		t.Fatalf("result = %v, want 30 (0+10+20)", result)
	}
}

func TestInterpreterDeterminism(t *testing.T) {
	run := func() float64 {
		vm := newTestInterp(t)
		b := newProtoBuilder(vm.H).setLocals(2)
		b.emit(heap.NewKIMM(0, heap.Number(5)))
		b.emit(heap.NewKIMM(1, heap.Number(6)))
		b.emit(heap.NewInsn(heap.OpAMUL, 0, 0, 1))
		b.emit(heap.NewInsn(heap.OpRET, 0, 0, 0))
		fn := mustFunction(t, vm, b.build(t))
		result, isExc, err := vm.CallFunction(fn, nil)
		if err != nil || isExc {
			t.Fatalf("CallFunction: result=%v isExc=%v err=%v", result, isExc, err)
		}
		return result.AsNumber()
	}
	if run() != run() {
		t.Fatalf("interpreter is not deterministic across identical runs")
	}
}
