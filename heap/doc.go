// Package heap implements lumen's managed heap: a page-backed arena of
// fixed-granularity chunks, size-class free lists, and a mark-sweep
// collector over the object graph (strings, tables, arrays, functions,
// function prototypes, and opaque/native-function handles).
//
// It also owns the tagged Value representation shared by the rest of the
// runtime, since the garbage collector needs to walk values wherever they
// live (the operand stack, globals, upvalues) to find live objects.
package heap
