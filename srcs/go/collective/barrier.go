package collective

import (
	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
)

const (
	DefaultBarrier = `binomial_tree`
	DefaultSync    = `binomial_tree`
)

var BarrierAlgorithms = registry.Table[Func]{
	{Name: `linear`, Fn: barrierLinear},
	{Name: `complete_tree`, Fn: barrierTree(plan.Complete)},
	{Name: `binomial_tree`, Fn: barrierTree(plan.Binomial)},
	{Name: `knomial_tree`, Fn: barrierTree(plan.Knomial)},
	{Name: `dissemination`, Fn: barrierDissemination},
}

// SyncAlgorithms are the barriers preceded by a quiet: a PE leaving sync
// observes every write issued before the others entered it.
var SyncAlgorithms = func() registry.Table[Func] {
	t := make(registry.Table[Func], 0, len(BarrierAlgorithms))
	for _, a := range BarrierAlgorithms {
		t = append(t, registry.Algorithm[Func]{Name: a.Name, Fn: withQuiet(a.Fn)})
	}
	return t
}()

func withQuiet(f Func) Func {
	return func(e *Engine, w *Workspace) {
		e.t.Quiet()
		f(e, w)
	}
}

// barrierLinear gathers arrivals at index 0, which then releases everyone.
func barrierLinear(e *Engine, w *Workspace) {
	idx, n := e.index(w)
	if n == 1 {
		return
	}
	t := e.t
	if idx == 0 {
		consume(t, w.PSync, 0, int64(n-1))
		for i := 1; i < n; i++ {
			t.AtomicInc(w.PSync.Word(1), w.Set.PE(i))
		}
		return
	}
	t.AtomicInc(w.PSync.Word(0), w.Set.PE(0))
	consume(t, w.PSync, 1, 1)
}

// barrierTree gathers arrivals up a tree rooted at index 0 and releases down
// the same tree.
func barrierTree(kind plan.TreeKind) Func {
	return func(e *Engine, w *Workspace) {
		idx, n := e.index(w)
		if n == 1 {
			return
		}
		t := e.t
		arity := e.arity(kind)
		node := plan.Tree(kind, n, arity, idx, make([]int, 0, plan.MaxChildren(kind, n, arity)))
		consume(t, w.PSync, 0, int64(len(node.Children)))
		if !node.IsRoot() {
			t.AtomicInc(w.PSync.Word(0), w.Set.PE(node.Parent))
			consume(t, w.PSync, 1, 1)
		}
		for _, c := range node.Children {
			t.AtomicInc(w.PSync.Word(1), w.Set.PE(c))
		}
	}
}

// barrierDissemination signals idx+2^r and waits for idx-2^r in round r.
func barrierDissemination(e *Engine, w *Workspace) {
	idx, n := e.index(w)
	t := e.t
	for r, d := 0, 1; d < n; r, d = r+1, d*2 {
		t.AtomicInc(w.PSync.Word(r), w.Set.PE((idx+d)%n))
		consume(t, w.PSync, r, 1)
	}
}

// Barrier waits until every PE of set has entered it. It does not order
// earlier puts, use Sync for that.
func Barrier(e *Engine, set plan.ActiveSet, pSync shmem.SymAddr) {
	w := &Workspace{Set: set, PSync: pSync}
	e.validate(w)
	a := registry.MustBind(e.opts.Registry, registry.Barrier, ``, BarrierAlgorithms, DefaultBarrier)
	e.run(registry.Barrier, a.Name, func() { a.Fn(e, w) })
}

// Sync is Barrier plus visibility: every put issued before entering Sync is
// complete when any PE leaves it.
func Sync(e *Engine, set plan.ActiveSet, pSync shmem.SymAddr) {
	w := &Workspace{Set: set, PSync: pSync}
	e.validate(w)
	a := registry.MustBind(e.opts.Registry, registry.Sync, ``, SyncAlgorithms, DefaultSync)
	e.run(registry.Sync, a.Name, func() { a.Fn(e, w) })
}

// BarrierWith runs the named barrier algorithm.
func BarrierWith(e *Engine, algo string, set plan.ActiveSet, pSync shmem.SymAddr) error {
	return runWith(e, registry.Barrier, BarrierAlgorithms, algo, &Workspace{Set: set, PSync: pSync})
}

func SyncWith(e *Engine, algo string, set plan.ActiveSet, pSync shmem.SymAddr) error {
	return runWith(e, registry.Sync, SyncAlgorithms, algo, &Workspace{Set: set, PSync: pSync})
}

func (e *Engine) BarrierAll() {
	Barrier(e, e.world, e.worldSync)
}

func (e *Engine) SyncAll() {
	Sync(e, e.world, e.worldSync)
}
