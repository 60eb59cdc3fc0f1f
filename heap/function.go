package heap

// functionData is the payload of a KindFunction object: a closure over a
// prototype, with its own upvalue cells and an environment table (the
// table GGET/GSET consult). Grounded on original_source/src/vm/function.cpp's function struct
// and function::create.
type functionData struct {
	proto    *Object // KindPrototype
	env      *Object // KindTable; the closure's global environment
	upvalues []Value
}

func (o *Object) function() *functionData { return o.payload.(*functionData) }

// NewFunction allocates a closure over proto, copying upvalues by value
// (each upvalue cell is itself a Value, so shared mutable upvalues are
// modeled as a pointer to a heap object stored in the cell, matching
// original_source's boxed-upvalue convention). env is the table GGET/GSET
// resolve names against. It is stored as given: a nil env is not replaced
// by the VM's global table, and there is no setter to attach one later.
func (h *Heap) NewFunction(proto *Object, upvalues []Value, env *Object) (*Object, error) {
	if proto == nil || proto.Kind != KindPrototype {
		panic("heap: NewFunction: proto must be a prototype object")
	}
	chunks := h.chunksFor(uintptr(16 + len(upvalues)*int(valueSize)))
	o, err := h.Allocate(KindFunction, chunks)
	if err != nil {
		return nil, err
	}
	cp := make([]Value, len(upvalues))
	copy(cp, upvalues)
	o.payload = &functionData{proto: proto, env: env, upvalues: cp}
	return o, nil
}

// Prototype returns a function's compiled prototype.
func (o *Object) Prototype() *Object { return o.function().proto }

// Env returns a function's default environment table.
func (o *Object) Env() *Object { return o.function().env }

// UpvalueCount returns the number of upvalue cells a function carries.
func (o *Object) UpvalueCount() int { return len(o.function().upvalues) }

// Upvalue returns the value held in upvalue cell i.
func (o *Object) Upvalue(i int) Value { return o.function().upvalues[i] }

// SetUpvalue overwrites upvalue cell i.
func (o *Object) SetUpvalue(i int, v Value) { o.function().upvalues[i] = v }

func (o *Object) traverseFunction(tick func(*Object)) {
	fd := o.function()
	tick(fd.proto)
	if fd.env != nil {
		tick(fd.env)
	}
	for _, v := range fd.upvalues {
		if p := v.AsObject(); p != nil {
			tick(p)
		}
	}
}

// prototypeData is the payload of a KindPrototype object: the immutable
// compiled form of a function body, shared by every closure created over
// it. Grounded on original_source/src/vm/function.cpp's function_proto
// struct and function_proto::create.
type prototypeData struct {
	code      []Insn
	constants []Value
	lines     []int32 // source line number per instruction, parallel to code
	source    string  // source-chunk name, for diagnostics

	numArgs     int
	numUpvalues int
	numLocals   int

	// jitEntry is an opaque compiled-code handle a JIT backend may attach
	// after lowering code through package ralloc. The interpreter ignores
	// it; only a host that owns a JIT is expected to set or read it.
	jitEntry any
}

func (o *Object) prototype() *prototypeData { return o.payload.(*prototypeData) }

// PrototypeSpec describes a compiled function body, for NewPrototype.
type PrototypeSpec struct {
	Code        []Insn
	Constants   []Value
	Lines       []int32
	Source      string
	NumArgs     int
	NumUpvalues int
	NumLocals   int
}

// NewPrototype allocates an immutable compiled-function object.
func (h *Heap) NewPrototype(spec PrototypeSpec) (*Object, error) {
	chunks := h.chunksFor(uintptr(len(spec.Code)*8 + len(spec.Constants)*int(valueSize) + len(spec.Lines)*4))
	o, err := h.Allocate(KindPrototype, chunks)
	if err != nil {
		return nil, err
	}
	o.payload = &prototypeData{
		code:        spec.Code,
		constants:   spec.Constants,
		lines:       spec.Lines,
		source:      spec.Source,
		numArgs:     spec.NumArgs,
		numUpvalues: spec.NumUpvalues,
		numLocals:   spec.NumLocals,
	}
	return o, nil
}

// Code returns a prototype's instruction stream.
func (o *Object) Code() []Insn { return o.prototype().code }

// Constant returns constant slot i from a prototype's constant pool.
func (o *Object) Constant(i int) Value { return o.prototype().constants[i] }

// Line returns the source line number associated with instruction i, or
// 0 if no line table was supplied.
func (o *Object) Line(i int) int32 {
	p := o.prototype()
	if i < 0 || i >= len(p.lines) {
		return 0
	}
	return p.lines[i]
}

// Source returns a prototype's source-chunk name.
func (o *Object) Source() string { return o.prototype().source }

// NumArgs, NumUpvalues and NumLocals report a prototype's fixed frame
// shape, used by the interpreter to size a CallFrame's register window.
func (o *Object) NumArgs() int     { return o.prototype().numArgs }
func (o *Object) NumUpvalues() int { return o.prototype().numUpvalues }
func (o *Object) NumLocals() int   { return o.prototype().numLocals }

// JITEntry returns the opaque JIT-compiled entry point attached to a
// prototype, or nil if none has been attached.
func (o *Object) JITEntry() any { return o.prototype().jitEntry }

// SetJITEntry attaches a JIT-compiled entry point to a prototype. A host
// with no JIT backend never calls this.
func (o *Object) SetJITEntry(entry any) { o.prototype().jitEntry = entry }

func (o *Object) traversePrototype(tick func(*Object)) {
	pd := o.prototype()
	for _, v := range pd.constants {
		if p := v.AsObject(); p != nil {
			tick(p)
		}
	}
	if j, ok := pd.jitEntry.(*Object); ok && j != nil {
		tick(j)
	}
}

// NativeFunc is the call contract for a host-provided native function:
// given its arguments, it returns a result value and whether that result
// is an exception, mirroring the interpreter's own non-throwing
// propagation convention.
type NativeFunc func(args []Value) (Value, bool, error)

// nativeData is the payload of a KindNative object.
type nativeData struct {
	name string
	fn   NativeFunc
}

func (o *Object) native() *nativeData { return o.payload.(*nativeData) }

// NewNative allocates a native function handle wrapping fn.
func (h *Heap) NewNative(name string, fn NativeFunc) (*Object, error) {
	o, err := h.Allocate(KindNative, h.chunksFor(8))
	if err != nil {
		return nil, err
	}
	o.payload = &nativeData{name: name, fn: fn}
	return o, nil
}

// NativeName returns a native function's diagnostic name.
func (o *Object) NativeName() string { return o.native().name }

// CallNative invokes a native function with args.
func (o *Object) CallNative(args []Value) (Value, bool, error) {
	return o.native().fn(args)
}
