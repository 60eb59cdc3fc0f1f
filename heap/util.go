package heap

import "unsafe"

// pointerOf returns o's address as a uintptr, used only to derive a hash
// bucket for object-identity keys in Table.Get/Set. The address is never
// stored or round-tripped back into a pointer, so this does not carry the
// GC-visibility hazard NaN-boxing would (see DESIGN.md's Open Question on
// Value's representation).
func pointerOf(o *Object) uintptr {
	return uintptr(unsafe.Pointer(o))
}
