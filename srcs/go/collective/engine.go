// Package collective implements the collective operations of a PGAS runtime
// on top of one-sided primitives: barrier and sync, broadcast, collect and
// fcollect, alltoall and alltoalls, and reductions. Every operation has
// several algorithms; which one runs is selected per operation and element
// type by a registry.
package collective

import (
	"fmt"
	"time"

	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/config"
	"github.com/lsds/kungfu-shmem/srcs/go/monitor"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/profile"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/utils/assert"
)

type Options struct {
	// TreeDegree is the degree of complete trees.
	TreeDegree int
	// KnomialRadix is the radix of k-nomial trees.
	KnomialRadix int
	Registry     *registry.Registry
	// Profiler, if set, times every call as `op/algorithm`.
	Profiler *profile.Profiler
}

func DefaultOptions() Options {
	return Options{
		TreeDegree:   config.TreeDegree,
		KnomialRadix: config.KnomialRadix,
		Registry:     registry.Default,
	}
}

// Engine runs collectives for one PE.
type Engine struct {
	t     shmem.Transport
	opts  Options
	world plan.ActiveSet

	worldSync shmem.SymAddr
	check     struct {
		pSync    shmem.SymAddr
		pWrk     shmem.SymAddr
		src, dst shmem.SymAddr
	}
}

// New is collective: every PE must call it in the same order relative to its
// other symmetric allocations.
func New(t shmem.Transport, a shmem.Allocator, opts Options) *Engine {
	if opts.TreeDegree < 1 {
		opts.TreeDegree = config.Default.TreeDegree
	}
	if opts.KnomialRadix < 2 {
		opts.KnomialRadix = config.Default.KnomialRadix
	}
	if opts.Registry == nil {
		opts.Registry = registry.Default
	}
	e := &Engine{
		t:     t,
		opts:  opts,
		world: plan.World(t.NPEs()),
	}
	e.worldSync = NewPSync(a, BarrierSyncSize)
	e.check.pSync = NewPSync(a, ReduceSyncSize)
	e.check.pWrk = a.Malloc(digestSize)
	e.check.src = a.Malloc(digestSize)
	e.check.dst = a.Malloc(digestSize)
	return e
}

func (e *Engine) Transport() shmem.Transport {
	return e.t
}

func (e *Engine) World() plan.ActiveSet {
	return e.world
}

func (e *Engine) arity(kind plan.TreeKind) int {
	switch kind {
	case plan.Complete:
		return e.opts.TreeDegree
	case plan.Knomial:
		return e.opts.KnomialRadix
	}
	return 2
}

// Workspace is what every algorithm operates on. Counts are in elements,
// Root is an index in Set.
type Workspace struct {
	Dst, Src  shmem.SymAddr
	Count     int
	ElemSize  int
	Root      int
	DstStride int
	SrcStride int
	Set       plan.ActiveSet
	PSync     shmem.SymAddr
	PWrk      shmem.SymAddr
}

func (w *Workspace) Bytes() int {
	return w.Count * w.ElemSize
}

// index returns the position of the calling PE in w.Set and the size of the set.
func (e *Engine) index(w *Workspace) (int, int) {
	idx, _ := w.Set.Index(e.t.MyPE())
	return idx, w.Set.Size
}

func (e *Engine) validate(w *Workspace) {
	assert.OK(w.Set.Validate(e.t.NPEs()))
	_, ok := w.Set.Index(e.t.MyPE())
	assert.Truef(ok, "PE %d is not in active set %s", e.t.MyPE(), w.Set)
	assert.Truef(!w.PSync.IsNil(), "pSync is not set")
	assert.Truef(w.Count >= 0, "negative count %d", w.Count)
}

// disjoint asserts that [a, a+n) and [b, b+m) do not overlap.
func disjoint(a shmem.SymAddr, n int, b shmem.SymAddr, m int) {
	if n == 0 || m == 0 {
		return
	}
	assert.Truef(a+shmem.SymAddr(n) <= b || b+shmem.SymAddr(m) <= a, "overlapping buffers [%d, +%d) and [%d, +%d)", a, n, b, m)
}

// copyLocal copies n bytes of the calling PE's heap from src to dst.
func (e *Engine) copyLocal(dst, src shmem.SymAddr, n int) {
	if dst == src || n == 0 {
		return
	}
	copy(e.t.Local(dst, n), e.t.Local(src, n))
}

// Func is the signature of every untyped algorithm.
type Func func(e *Engine, w *Workspace)

func (e *Engine) run(op registry.Operation, name string, f func()) {
	var scope *profile.Scope
	if e.opts.Profiler != nil {
		scope = e.opts.Profiler.Profile(op.String() + `/` + name)
	}
	t0 := time.Now()
	f()
	monitor.ObserveCollective(op.String(), name, time.Since(t0))
	if scope != nil {
		scope.Done()
	}
}

// barrier and sync are the rendezvous used inside other algorithms, on a
// region of their pSync.
func (e *Engine) barrier(set plan.ActiveSet, pSync shmem.SymAddr) {
	a := registry.MustBind(e.opts.Registry, registry.Barrier, ``, BarrierAlgorithms, DefaultBarrier)
	a.Fn(e, &Workspace{Set: set, PSync: pSync})
}

func (e *Engine) sync(set plan.ActiveSet, pSync shmem.SymAddr) {
	a := registry.MustBind(e.opts.Registry, registry.Sync, ``, SyncAlgorithms, DefaultSync)
	a.Fn(e, &Workspace{Set: set, PSync: pSync})
}

func (e *Engine) String() string {
	return fmt.Sprintf("PE %d/%d", e.t.MyPE(), e.t.NPEs())
}
