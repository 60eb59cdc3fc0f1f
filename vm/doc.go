// Package vm implements the bytecode interpreter: the call protocol,
// the opcode dispatch loop, and the shared apply_unary/apply_binary
// arithmetic delegates. It operates on heap.Object/heap.Value and owns
// the value stack and global environment heap.Heap itself does not.
package vm
