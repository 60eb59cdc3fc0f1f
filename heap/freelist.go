package heap

import "math/bits"

// numSizeClasses is the number of buckets in the free-list index. Size
// class i holds chunks whose length is in (2^(i-1), 2^i], a coarse
// bucketing of chunk counts. The last class catches every chunk length
// larger than the rest can express.
const numSizeClasses = 24

// sizeClassOf returns the free-list bucket a chunk run of the given
// length belongs to.
func sizeClassOf(chunks uint32) int {
	if chunks == 0 {
		return 0
	}
	class := bits.Len32(chunks - 1)
	if class >= numSizeClasses {
		class = numSizeClasses - 1
	}
	return class
}

// freeLists is the heap-wide array of singly linked free chunk lists,
// indexed by size class. Every free chunk is reachable from exactly one
// list; no live chunk is.
type freeLists [numSizeClasses]*Object

// push links o onto its size class's free list.
func (f *freeLists) push(o *Object) {
	class := sizeClassOf(o.numChunks)
	o.Kind = kindFree
	o.nextFree = f[class]
	f[class] = o
}

// popExact removes and returns the first free chunk in size class class
// whose length is at least chunks (if excess is true, the first chunk of
// any length in that class), or nil if none fits.
func (f *freeLists) popExact(class int, chunks uint32, excess bool) *Object {
	var prev *Object
	for it := f[class]; it != nil; it = it.nextFree {
		if excess || it.numChunks >= chunks {
			if prev == nil {
				f[class] = it.nextFree
			} else {
				prev.nextFree = it.nextFree
			}
			return it
		}
		prev = it
	}
	return nil
}

// remove unlinks o from its size class's free list, used when a page
// holding o is being returned to the allocator.
func (f *freeLists) remove(o *Object) {
	class := sizeClassOf(o.numChunks)
	var prev *Object
	for it := f[class]; it != nil; it = it.nextFree {
		if it == o {
			if prev == nil {
				f[class] = it.nextFree
			} else {
				prev.nextFree = it.nextFree
			}
			return
		}
		prev = it
	}
}
