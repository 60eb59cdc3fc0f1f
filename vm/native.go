package vm

import (
	"fmt"

	"github.com/lumenrt/lumen/heap"
)

// RegisterNative wraps fn as a native function object and binds it
// under name in the interpreter's globals table, the mechanism a host
// uses to expose its FFI surface to interpreted code (adapted to Go's
// explicit error returns rather than the C ABI's
// `(vm*, callsite, n_args) -> ok` shape).
func (vm *Interp) RegisterNative(name string, fn heap.NativeFunc) error {
	nv, err := vm.H.NewNative(name, fn)
	if err != nil {
		return fmt.Errorf("vm: RegisterNative(%s): %w", name, err)
	}
	key, err := vm.H.NewString(name)
	if err != nil {
		return fmt.Errorf("vm: RegisterNative(%s): %w", name, err)
	}
	if err := vm.Globals.Set(vm.H, heap.FromObject(key), heap.FromObject(nv)); err != nil {
		return fmt.Errorf("vm: RegisterNative(%s): %w", name, err)
	}
	return nil
}
