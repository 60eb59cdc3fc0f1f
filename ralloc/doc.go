// Package ralloc implements the graph-coloring register allocator: given a
// machine procedure expressed over virtual and pre-colored physical
// registers, it assigns every virtual register a physical color or a spill
// slot, inserts the reload/store code spilling requires, and reports the
// used-register masks and frame size a JIT emitter's prolog/epilog needs.
//
// Grounded on original_source/src/ir/mopt_ralloc.cpp's allocate_registers
// pipeline (argument spilling, liveness, interference graph, recursive
// coloring, iterate-until-clean, rewrite) and original_source's arch.hpp
// register tables.
package ralloc
