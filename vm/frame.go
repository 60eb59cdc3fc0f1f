package vm

import "github.com/lumenrt/lumen/heap"

// CallFrame is the logical record of one in-flight call, projected onto
// the interpreter's value stack rather than reified as a separate data
// structure: the function slot, the argument window, and the locals
// region the frame's prototype declared. Interp pushes one per active
// call onto a debug stack that no code in this package reads — control flow
// itself recurses through ordinary Go calls to Interp.Call, the same way
// the original recurses through native C++ calls.
type CallFrame struct {
	Callsite    int // stack slot holding the callee, then the result
	ArgsBegin   int
	LocalsBegin int
	NumArgs     int
	Fn          *heap.Object // the function instance, or nil at the root
}
