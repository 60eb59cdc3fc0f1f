package heap

// arrayData is the payload of a KindArray object: a growable, dense
// array of tagged values, one of the collector's recursed-into reference
// kinds. No opcode constructs one directly; arrays are created through
// the host/native-function surface, since the front-end/FFI layer that
// would emit a dedicated opcode is out of scope for this module.
type arrayData struct {
	items []Value
}

func (o *Object) array() *arrayData { return o.payload.(*arrayData) }

// NewArray allocates a new array object with room for at least capacity
// elements before it must grow.
func (h *Heap) NewArray(capacity int) (*Object, error) {
	chunks := h.chunksFor(uintptr(capacity) * valueSize)
	o, err := h.Allocate(KindArray, chunks)
	if err != nil {
		return nil, err
	}
	o.payload = &arrayData{items: make([]Value, 0, capacity)}
	return o, nil
}

const valueSize = 40 // bookkeeping estimate: Value's struct size

// ArrayLen returns the number of elements in an array.
func (o *Object) ArrayLen() int { return len(o.array().items) }

// ArrayGet returns the element at index i, or None if i is out of range.
func (o *Object) ArrayGet(i int) Value {
	a := o.array()
	if i < 0 || i >= len(a.items) {
		return None
	}
	return a.items[i]
}

// ArraySet stores value at index i, growing the array if necessary.
func (o *Object) ArraySet(i int, value Value) {
	a := o.array()
	for i >= len(a.items) {
		a.items = append(a.items, None)
	}
	a.items[i] = value
}

// ArrayAppend appends value, growing the array by one.
func (o *Object) ArrayAppend(value Value) {
	a := o.array()
	a.items = append(a.items, value)
}

func (o *Object) traverseArray(tick func(*Object)) {
	for _, v := range o.array().items {
		if p := v.AsObject(); p != nil {
			tick(p)
		}
	}
}
