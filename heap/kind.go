package heap

// Kind identifies the runtime type of a Value or a heap Object.
type Kind uint8

const (
	// KindNone is the value held by an empty slot.
	KindNone Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindNumber is an IEEE-754 double.
	KindNumber
	// KindString is a heap-allocated immutable byte string.
	KindString
	// KindTable is a heap-allocated open-addressed hash map.
	KindTable
	// KindArray is a heap-allocated growable value array.
	KindArray
	// KindFunction is a heap-allocated closure (function instance).
	KindFunction
	// KindPrototype is a heap-allocated immutable compiled function.
	KindPrototype
	// KindOpaque is a host-defined opaque handle, not traversed by the GC.
	KindOpaque
	// KindNative is a heap-allocated native (host) function handle.
	KindNative

	// kindVMRoot marks the VM sentinel header allocated in the initial
	// page. It is never returned to user code and is never swept.
	kindVMRoot
	// kindFree marks a header currently linked into a free list.
	kindFree
)

// traversable reports whether objects of this kind own references the
// collector must recurse into.
func (k Kind) traversable() bool {
	switch k {
	case KindArray, KindTable, KindFunction, KindPrototype:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	case KindPrototype:
		return "prototype"
	case KindOpaque:
		return "opaque"
	case KindNative:
		return "native-function"
	case kindVMRoot:
		return "vm"
	case kindFree:
		return "free"
	default:
		return "unknown"
	}
}
