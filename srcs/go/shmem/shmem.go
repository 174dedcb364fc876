// Package shmem defines the one-sided primitives the collectives are built on.
// Every address is symmetric: the same SymAddr names the same object on
// every PE.
package shmem

import (
	"fmt"
	"unsafe"
)

// SymAddr is a byte offset into the symmetric heap. The zero value is never
// returned by an Allocator and stands for "no buffer".
type SymAddr int

const Nil SymAddr = 0

// WordSize is the size of a synchronization word (int64).
const WordSize = 8

func (a SymAddr) IsNil() bool {
	return a == Nil
}

// Word returns the address of the i-th int64 word starting at a.
func (a SymAddr) Word(i int) SymAddr {
	return a + SymAddr(i*WordSize)
}

// Add returns a displaced by n bytes.
func (a SymAddr) Add(n int) SymAddr {
	return a + SymAddr(n)
}

// Cmp is the comparison used by WaitUntil and Test.
type Cmp int

const (
	CmpEQ Cmp = iota
	CmpNE
	CmpGT
	CmpGE
	CmpLT
	CmpLE
)

var cmpNames = map[Cmp]string{
	CmpEQ: `==`,
	CmpNE: `!=`,
	CmpGT: `>`,
	CmpGE: `>=`,
	CmpLT: `<`,
	CmpLE: `<=`,
}

func (c Cmp) String() string {
	return cmpNames[c]
}

// Eval reports whether x c v holds.
func (c Cmp) Eval(x, v int64) bool {
	switch c {
	case CmpEQ:
		return x == v
	case CmpNE:
		return x != v
	case CmpGT:
		return x > v
	case CmpGE:
		return x >= v
	case CmpLT:
		return x < v
	case CmpLE:
		return x <= v
	}
	panic(fmt.Sprintf("invalid comparator %d", int(c)))
}

// SignalOp is how PutSignal updates the signal word.
type SignalOp int

const (
	SignalSet SignalOp = iota
	SignalAdd
)

// Transport is the primitive interface of one PE.
//
// Blocking puts and gets are complete when they return. Non-blocking ones
// (NBI) may complete at any time before the next Fence (ordering with later
// operations to the same PE) or Quiet (completion of everything). Atomics and
// signals are not ordered after earlier non-blocking operations unless a Fence
// separates them.
type Transport interface {
	MyPE() int
	NPEs() int

	// Local returns the n bytes at addr of the calling PE's heap.
	Local(addr SymAddr, n int) []byte

	Put(dst SymAddr, src []byte, pe int)
	Get(dst []byte, src SymAddr, pe int)
	PutNBI(dst SymAddr, src []byte, pe int)
	GetNBI(dst []byte, src SymAddr, pe int)
	// IPut copies nelems elements of elemSize bytes, taking every srcStride-th
	// element of src and writing every dstStride-th element at dst.
	IPut(dst SymAddr, src []byte, dstStride, srcStride, elemSize, nelems, pe int)
	// PutSignal delivers src and then updates sig; a PE observing the
	// signal observes the data.
	PutSignal(dst SymAddr, src []byte, sig SymAddr, value int64, op SignalOp, pe int)

	AtomicAdd(dst SymAddr, value int64, pe int)
	AtomicInc(dst SymAddr, pe int)
	AtomicFetch(src SymAddr, pe int) int64
	AtomicSet(dst SymAddr, value int64, pe int)
	AtomicSwap(dst SymAddr, value int64, pe int) int64
	AtomicCompareSwap(dst SymAddr, cond, value int64, pe int) int64

	// WaitUntil blocks until the local word at ivar satisfies cmp against
	// value and returns the observed value.
	WaitUntil(ivar SymAddr, cmp Cmp, value int64) int64
	Test(ivar SymAddr, cmp Cmp, value int64) bool

	Fence()
	Quiet()
}

// Allocator hands out zeroed symmetric memory. Calls are collective: every PE
// must make the same sequence of calls so that the offsets agree. Malloc does
// not synchronize, so a peer may write to the range before its owner's call
// returns, and those writes must survive it.
type Allocator interface {
	Malloc(nbytes int) SymAddr
}

// SizeOf returns the size in bytes of one T.
func SizeOf[T any]() int {
	var x T
	return int(unsafe.Sizeof(x))
}

// View reinterprets n elements of type T at addr of the local heap.
func View[T any](t Transport, addr SymAddr, n int) []T {
	if n == 0 {
		return nil
	}
	b := t.Local(addr, n*SizeOf[T]())
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

// AsBytes reinterprets a typed slice as its underlying bytes.
func AsBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*SizeOf[T]())
}

// Malloc allocates n symmetric elements of T.
func Malloc[T any](a Allocator, n int) SymAddr {
	return a.Malloc(n * SizeOf[T]())
}
