package collective

import (
	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
)

const DefaultBroadcast = `binomial_tree`

var BroadcastAlgorithms = registry.Table[Func]{
	{Name: `linear`, Fn: bcastLinear},
	{Name: `complete_tree`, Fn: bcastTree(plan.Complete, false)},
	{Name: `binomial_tree`, Fn: bcastTree(plan.Binomial, false)},
	{Name: `knomial_tree`, Fn: bcastTree(plan.Knomial, false)},
	{Name: `knomial_tree_signal`, Fn: bcastTree(plan.Knomial, true)},
	{Name: `scatter_collect`, Fn: bcastScatterCollect},
}

// bcastTrivial handles the cases that need no communication.
func bcastTrivial(e *Engine, w *Workspace) bool {
	if w.Set.Size == 1 {
		e.copyLocal(w.Dst, w.Src, w.Bytes())
		return true
	}
	return w.Count == 0
}

func bcastLinear(e *Engine, w *Workspace) {
	if bcastTrivial(e, w) {
		return
	}
	idx, n := e.index(w)
	t := e.t
	if idx != w.Root {
		consume(t, w.PSync, 0, 1)
		return
	}
	data := t.Local(w.Src, w.Bytes())
	for i := 0; i < n; i++ {
		if i == idx {
			continue
		}
		t.Put(w.Dst, data, w.Set.PE(i))
		notify(t, w.PSync, 0, w.Set.PE(i))
	}
	e.copyLocal(w.Dst, w.Src, w.Bytes())
}

// bcastTree pushes from the root down a tree; every PE forwards from its dst
// once its own payload has arrived. With signal the payload and its arrival
// flag travel in one PutSignal.
func bcastTree(kind plan.TreeKind, signal bool) Func {
	return func(e *Engine, w *Workspace) {
		if bcastTrivial(e, w) {
			return
		}
		idx, n := e.index(w)
		t := e.t
		arity := e.arity(kind)
		r := plan.Relative(idx, w.Root, n)
		node := plan.Tree(kind, n, arity, r, make([]int, 0, plan.MaxChildren(kind, n, arity)))
		src := w.Dst
		if node.IsRoot() {
			src = w.Src
		} else {
			consume(t, w.PSync, 0, 1)
		}
		data := t.Local(src, w.Bytes())
		for _, c := range node.Children {
			pe := w.Set.PE(plan.Absolute(c, w.Root, n))
			if signal {
				t.PutSignal(w.Dst, data, w.PSync.Word(0), 1, shmem.SignalAdd, pe)
			} else {
				t.Put(w.Dst, data, pe)
				notify(t, w.PSync, 0, pe)
			}
		}
		if node.IsRoot() {
			e.copyLocal(w.Dst, w.Src, w.Bytes())
		}
	}
}

// bcastScatterCollect sends shard i of the payload to index i, then the
// shards travel around a ring until every PE holds all of them.
func bcastScatterCollect(e *Engine, w *Workspace) {
	if bcastTrivial(e, w) {
		return
	}
	idx, n := e.index(w)
	t := e.t
	shards := plan.EvenPartition(plan.Interval{Begin: 0, End: w.Count}, n)
	shard := func(i int) plan.Interval { return shards[i].Scale(w.ElemSize) }

	if idx == w.Root {
		e.copyLocal(w.Dst, w.Src, w.Bytes())
		for i := 0; i < n; i++ {
			if i == idx {
				continue
			}
			s := shard(i)
			t.Put(w.Dst.Add(s.Begin), t.Local(w.Src.Add(s.Begin), s.Len()), w.Set.PE(i))
			notify(t, w.PSync, 0, w.Set.PE(i))
		}
	} else {
		consume(t, w.PSync, 0, 1)
	}

	next := (idx + 1) % n
	for s := 0; s < n-1; s++ {
		if s > 0 && idx != w.Root {
			t.WaitUntil(w.PSync.Word(1), shmem.CmpGE, int64(s))
		}
		if next == w.Root {
			continue
		}
		sh := shard((idx - s + n) % n)
		t.Put(w.Dst.Add(sh.Begin), t.Local(w.Dst.Add(sh.Begin), sh.Len()), w.Set.PE(next))
		notify(t, w.PSync, 1, w.Set.PE(next))
	}
	if idx != w.Root {
		consume(t, w.PSync, 1, int64(n-1))
	}
}

// Broadcast copies nelems elements at src of the root, an index in set, to
// dst of every PE of set, the root included.
func Broadcast[T any](e *Engine, dst, src shmem.SymAddr, nelems, root int, set plan.ActiveSet, pSync shmem.SymAddr) {
	w := bcastWorkspace[T](dst, src, nelems, root, set, pSync)
	dispatch(e, registry.Broadcast, typeTag[T](), BroadcastAlgorithms, DefaultBroadcast, w)
}

func BroadcastWith[T any](e *Engine, algo string, dst, src shmem.SymAddr, nelems, root int, set plan.ActiveSet, pSync shmem.SymAddr) error {
	w := bcastWorkspace[T](dst, src, nelems, root, set, pSync)
	return runWith(e, registry.Broadcast, BroadcastAlgorithms, algo, w)
}

func bcastWorkspace[T any](dst, src shmem.SymAddr, nelems, root int, set plan.ActiveSet, pSync shmem.SymAddr) *Workspace {
	return &Workspace{
		Dst:      dst,
		Src:      src,
		Count:    nelems,
		ElemSize: shmem.SizeOf[T](),
		Root:     root,
		Set:      set,
		PSync:    pSync,
	}
}
