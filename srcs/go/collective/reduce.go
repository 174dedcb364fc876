package collective

import (
	"slices"

	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/base"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/utils/assert"
)

const DefaultReduce = `rec_dbl`

// ReduceFunc is the signature of the reduction algorithms over T.
type ReduceFunc[T base.Number] func(e *Engine, w *Workspace, op base.Op[T])

func ReduceAlgorithms[T base.Number]() registry.Table[ReduceFunc[T]] {
	return registry.Table[ReduceFunc[T]]{
		{Name: `linear`, Fn: reduceLinear[T]},
		{Name: `binomial`, Fn: reduceBinomial[T]},
		{Name: `rec_dbl`, Fn: reduceRecDbl[T]},
		{Name: `rabenseifner`, Fn: reduceRabenseifner[T]},
		{Name: `rabenseifner2`, Fn: reduceRabenseifner2[T]},
	}
}

// reduceTrivial handles the cases that need no communication.
func reduceTrivial(e *Engine, w *Workspace) bool {
	if w.Set.Size == 1 {
		e.copyLocal(w.Dst, w.Src, w.Bytes())
		return true
	}
	return w.Count == 0
}

// bcastResult sends dst of index 0 down a binomial tree.
func bcastResult(e *Engine, w *Workspace) {
	bcastTree(plan.Binomial, false)(e, &Workspace{
		Dst:      w.Dst,
		Src:      w.Dst,
		Count:    w.Count,
		ElemSize: w.ElemSize,
		Root:     0,
		Set:      w.Set,
		PSync:    w.PSync.Word(reduceBcast),
	})
}

// reduceLinear has index 0 get and fold every contribution in turn.
func reduceLinear[T base.Number](e *Engine, w *Workspace, op base.Op[T]) {
	if reduceTrivial(e, w) {
		return
	}
	idx, n := e.index(w)
	t := e.t
	e.barrier(w.Set, w.PSync.Word(reduceBarrier))
	if idx == 0 {
		acc := slices.Clone(shmem.View[T](t, w.Src, w.Count))
		tmp := make([]T, w.Count)
		for i := 1; i < n; i++ {
			t.Get(shmem.AsBytes(tmp), w.Src, w.Set.PE(i))
			base.Transform(acc, tmp, op)
		}
		copy(shmem.View[T](t, w.Dst, w.Count), acc)
	}
	e.barrier(w.Set, w.PSync.Word(reduceBarrier))
	bcastResult(e, w)
}

// reduceBinomial folds up a binomial tree rooted at index 0: a parent gets
// the partial result of each child from the child's dst.
func reduceBinomial[T base.Number](e *Engine, w *Workspace, op base.Op[T]) {
	if reduceTrivial(e, w) {
		return
	}
	idx, n := e.index(w)
	t := e.t
	node := plan.BinomialTree(n, idx, make([]int, 0, plan.MaxChildren(plan.Binomial, n, 2)))
	acc := slices.Clone(shmem.View[T](t, w.Src, w.Count))
	consume(t, w.PSync, reduceHandoff, int64(len(node.Children)))
	tmp := make([]T, w.Count)
	for _, c := range node.Children {
		t.Get(shmem.AsBytes(tmp), w.Dst, w.Set.PE(c))
		base.Transform(acc, tmp, op)
	}
	copy(shmem.View[T](t, w.Dst, w.Count), acc)
	if !node.IsRoot() {
		t.AtomicInc(w.PSync.Word(reduceHandoff), w.Set.PE(node.Parent))
	}
	bcastResult(e, w)
}

// p2sGroup folds the indices from the largest power of two p2s up into
// idx-p2s. It returns the accumulator of a member of the power of two
// subset, or false for an index that only waits for the result.
func p2sGroup[T base.Number](e *Engine, w *Workspace, op base.Op[T]) ([]T, bool) {
	idx, n := e.index(w)
	t := e.t
	p2s := plan.FloorPowerOfTwo(n)
	if idx >= p2s {
		partner := w.Set.PE(idx - p2s)
		t.Put(w.PWrk, t.Local(w.Src, w.Bytes()), partner)
		notify(t, w.PSync, reduceHandoff, partner)
		consume(t, w.PSync, reduceResult, 1)
		return nil, false
	}
	acc := slices.Clone(shmem.View[T](t, w.Src, w.Count))
	if idx < n-p2s {
		consume(t, w.PSync, reduceHandoff, 1)
		base.Transform(acc, shmem.View[T](t, w.PWrk, w.Count), op)
	}
	return acc, true
}

// p2sReturn sends the result in dst back to idx+p2s.
func p2sReturn(e *Engine, w *Workspace) {
	idx, n := e.index(w)
	if p2s := plan.FloorPowerOfTwo(n); idx < n-p2s {
		pe := w.Set.PE(idx + p2s)
		e.t.Put(w.Dst, e.t.Local(w.Dst, w.Bytes()), pe)
		notify(e.t, w.PSync, reduceResult, pe)
	}
}

// swap sends data into pWrk of peer at byte offset off and waits for the
// peer's data in its own pWrk. The ready word of round r guards against
// overwriting pWrk before its owner has folded the previous round.
func swap(t shmem.Transport, w *Workspace, r int, peer int, off int, data []byte) {
	t.AtomicInc(w.PSync.Word(reduceReady(r)), peer)
	consume(t, w.PSync, reduceReady(r), 1)
	t.Put(w.PWrk.Add(off), data, peer)
	notify(t, w.PSync, reduceData(r), peer)
	consume(t, w.PSync, reduceData(r), 1)
}

// reduceRecDbl exchanges the whole vector with idx^2^r in round r.
func reduceRecDbl[T base.Number](e *Engine, w *Workspace, op base.Op[T]) {
	if reduceTrivial(e, w) {
		return
	}
	acc, ok := p2sGroup(e, w, op)
	if !ok {
		return
	}
	idx, n := e.index(w)
	t := e.t
	p2s := plan.FloorPowerOfTwo(n)
	wrk := shmem.View[T](t, w.PWrk, w.Count)
	for r, d := 0, 1; d < p2s; r, d = r+1, d*2 {
		swap(t, w, r, w.Set.PE(idx^d), 0, shmem.AsBytes(acc))
		base.Transform(acc, wrk, op)
	}
	copy(shmem.View[T](t, w.Dst, w.Count), acc)
	p2sReturn(e, w)
}

// reduceScatter halves the range of blocks in each round, keeping the lower
// half when bit r of idx is 0. It returns the range of blocks held before
// each round; after the last round idx holds block BitReverse(idx).
func reduceScatter[T base.Number](e *Engine, w *Workspace, op base.Op[T], acc []T, blocks []plan.Interval) []plan.Interval {
	idx, n := e.index(w)
	t := e.t
	p2s := plan.FloorPowerOfTwo(n)
	wrk := shmem.View[T](t, w.PWrk, w.Count)
	elems := func(r plan.Interval) plan.Interval {
		return blocks[r.Begin].Union(blocks[r.End-1])
	}
	held := plan.Interval{Begin: 0, End: p2s}
	var trace []plan.Interval
	for r, d := 0, 1; d < p2s; r, d = r+1, d*2 {
		trace = append(trace, held)
		mid := (held.Begin + held.End) / 2
		keep, give := plan.Interval{Begin: held.Begin, End: mid}, plan.Interval{Begin: mid, End: held.End}
		if idx&d != 0 {
			keep, give = give, keep
		}
		g, k := elems(give), elems(keep)
		swap(t, w, r, w.Set.PE(idx^d), g.Begin*w.ElemSize, shmem.AsBytes(acc[g.Begin:g.End]))
		base.Transform(acc[k.Begin:k.End], wrk[k.Begin:k.End], op)
		held = keep
	}
	assert.True(held.Begin == plan.BitReverse(idx, plan.Log2(p2s)))
	trace = append(trace, held)
	return trace
}

// reduceRabenseifner is a reduce-scatter followed by an all-gather that
// retraces the rounds backwards, each PE putting what it holds straight to
// its final place in the peer's dst.
func reduceRabenseifner[T base.Number](e *Engine, w *Workspace, op base.Op[T]) {
	if reduceTrivial(e, w) {
		return
	}
	acc, ok := p2sGroup(e, w, op)
	if !ok {
		return
	}
	idx, n := e.index(w)
	t := e.t
	p2s := plan.FloorPowerOfTwo(n)
	blocks := plan.EvenPartition(plan.Interval{Begin: 0, End: w.Count}, p2s)
	trace := reduceScatter(e, w, op, acc, blocks)
	bytes := func(r plan.Interval) plan.Interval {
		return blocks[r.Begin].Union(blocks[r.End-1]).Scale(w.ElemSize)
	}

	mine := bytes(trace[len(trace)-1])
	copy(t.Local(w.Dst.Add(mine.Begin), mine.Len()), shmem.AsBytes(acc)[mine.Begin:mine.End])
	for r := len(trace) - 2; r >= 0; r-- {
		held := bytes(trace[r+1])
		peer := w.Set.PE(idx ^ (1 << r))
		t.Put(w.Dst.Add(held.Begin), t.Local(w.Dst.Add(held.Begin), held.Len()), peer)
		notify(t, w.PSync, reduceGather+r, peer)
		consume(t, w.PSync, reduceGather+r, 1)
	}
	p2sReturn(e, w)
}

// reduceRabenseifner2 replaces the all-gather of reduceRabenseifner by a ring
// over the power of two subset.
func reduceRabenseifner2[T base.Number](e *Engine, w *Workspace, op base.Op[T]) {
	if reduceTrivial(e, w) {
		return
	}
	acc, ok := p2sGroup(e, w, op)
	if !ok {
		return
	}
	idx, n := e.index(w)
	t := e.t
	p2s := plan.FloorPowerOfTwo(n)
	logp := plan.Log2(p2s)
	blocks := plan.EvenPartition(plan.Interval{Begin: 0, End: w.Count}, p2s)
	reduceScatter(e, w, op, acc, blocks)

	mine := blocks[plan.BitReverse(idx, logp)].Scale(w.ElemSize)
	copy(t.Local(w.Dst.Add(mine.Begin), mine.Len()), shmem.AsBytes(acc)[mine.Begin:mine.End])
	next := w.Set.PE((idx + 1) % p2s)
	for s := 0; s < p2s-1; s++ {
		if s > 0 {
			t.WaitUntil(w.PSync.Word(reduceGather), shmem.CmpGE, int64(s))
		}
		b := blocks[plan.BitReverse((idx-s+p2s)%p2s, logp)].Scale(w.ElemSize)
		t.Put(w.Dst.Add(b.Begin), t.Local(w.Dst.Add(b.Begin), b.Len()), next)
		notify(t, w.PSync, reduceGather, next)
	}
	consume(t, w.PSync, reduceGather, int64(p2s-1))
	p2sReturn(e, w)
}

// ToAll reduces nreduce elements at src of every PE of set with op into dst
// of every PE. dst may be src. pWrk holds at least ReduceWrkSize(nreduce)
// elements.
func ToAll[T base.Number](e *Engine, op base.OP, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) {
	o, err := base.OpFor[T](op)
	assert.OK(err)
	w := reduceWorkspace[T](dst, src, nreduce, set, pWrk, pSync)
	e.prepare(registry.Reduce, w)
	a := registry.MustBind(e.opts.Registry, registry.Reduce, typeTag[T](), ReduceAlgorithms[T](), DefaultReduce)
	e.run(registry.Reduce, a.Name, func() { a.Fn(e, w, o) })
}

func ToAllWith[T base.Number](e *Engine, algo string, op base.OP, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) error {
	a, ok := ReduceAlgorithms[T]().Lookup(algo)
	if !ok {
		return unknown(registry.Reduce, algo)
	}
	o, err := base.OpFor[T](op)
	if err != nil {
		return err
	}
	w := reduceWorkspace[T](dst, src, nreduce, set, pWrk, pSync)
	e.prepare(registry.Reduce, w)
	e.run(registry.Reduce, a.Name, func() { a.Fn(e, w, o) })
	return nil
}

func reduceWorkspace[T base.Number](dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) *Workspace {
	return &Workspace{
		Dst:      dst,
		Src:      src,
		Count:    nreduce,
		ElemSize: shmem.SizeOf[T](),
		Set:      set,
		PSync:    pSync,
		PWrk:     pWrk,
	}
}

func SumToAll[T base.Number](e *Engine, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) {
	ToAll[T](e, base.SUM, dst, src, nreduce, set, pWrk, pSync)
}

func ProdToAll[T base.Number](e *Engine, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) {
	ToAll[T](e, base.PROD, dst, src, nreduce, set, pWrk, pSync)
}

func MinToAll[T base.Number](e *Engine, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) {
	ToAll[T](e, base.MIN, dst, src, nreduce, set, pWrk, pSync)
}

func MaxToAll[T base.Number](e *Engine, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) {
	ToAll[T](e, base.MAX, dst, src, nreduce, set, pWrk, pSync)
}

func AndToAll[T base.Integer](e *Engine, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) {
	ToAll[T](e, base.AND, dst, src, nreduce, set, pWrk, pSync)
}

func OrToAll[T base.Integer](e *Engine, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) {
	ToAll[T](e, base.OR, dst, src, nreduce, set, pWrk, pSync)
}

func XorToAll[T base.Integer](e *Engine, dst, src shmem.SymAddr, nreduce int, set plan.ActiveSet, pWrk, pSync shmem.SymAddr) {
	ToAll[T](e, base.XOR, dst, src, nreduce, set, pWrk, pSync)
}
