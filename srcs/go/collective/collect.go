package collective

import (
	"slices"

	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/utils/assert"
)

const (
	DefaultCollect  = `bruck`
	DefaultFCollect = `bruck`
)

// CollectAlgorithms concatenate contributions of different lengths. Each
// learns the lengths of its peers before it can place their blocks.
var CollectAlgorithms = registry.Table[Func]{
	{Name: `linear`, Fn: collectLinear},
	{Name: `all_linear`, Fn: collectAllLinear},
	{Name: `all_linear1`, Fn: withLengths(directLengths, func(e *Engine, w *Workspace, offs []int) { allLinear1(e, w, offs, false) })},
	{Name: `rec_dbl`, Fn: withLengths(directLengths, gatherRecDbl)},
	{Name: `ring`, Fn: withLengths(directLengths, gatherRing)},
	{Name: `bruck`, Fn: withLengths(bruckLengths, func(e *Engine, w *Workspace, offs []int) { gatherBruck(e, w, offs, false) })},
	{Name: `bruck_no_rotate`, Fn: withLengths(bruckLengths, func(e *Engine, w *Workspace, offs []int) { gatherBruckNoRotate(e, w, offs, false) })},
	{Name: `bruck_signal`, Fn: withLengths(bruckLengths, func(e *Engine, w *Workspace, offs []int) { gatherBruckNoRotate(e, w, offs, true) })},
	{Name: `bruck_inplace`, Fn: withLengths(bruckLengths, func(e *Engine, w *Workspace, offs []int) { gatherBruck(e, w, offs, true) })},
}

// FCollectAlgorithms concatenate contributions of the same length, so every
// offset is known upfront.
var FCollectAlgorithms = registry.Table[Func]{
	{Name: `linear`, Fn: func(e *Engine, w *Workspace) {
		idx, n := e.index(w)
		gatherLinear(e, w, idx*w.Bytes(), n*w.Bytes())
	}},
	{Name: `all_linear`, Fn: func(e *Engine, w *Workspace) {
		idx, _ := e.index(w)
		gatherAllLinear(e, w, idx*w.Bytes())
	}},
	{Name: `all_linear1`, Fn: uniform(func(e *Engine, w *Workspace, offs []int) { allLinear1(e, w, offs, true) })},
	{Name: `rec_dbl`, Fn: uniform(gatherRecDbl)},
	{Name: `ring`, Fn: uniform(gatherRing)},
	{Name: `bruck`, Fn: uniform(func(e *Engine, w *Workspace, offs []int) { gatherBruck(e, w, offs, false) })},
	{Name: `bruck_no_rotate`, Fn: uniform(func(e *Engine, w *Workspace, offs []int) { gatherBruckNoRotate(e, w, offs, false) })},
	{Name: `bruck_signal`, Fn: uniform(func(e *Engine, w *Workspace, offs []int) { gatherBruckNoRotate(e, w, offs, true) })},
	{Name: `bruck_inplace`, Fn: uniform(func(e *Engine, w *Workspace, offs []int) { gatherBruck(e, w, offs, true) })},
	{Name: `neighbor_exchange`, Fn: uniform(gatherNeighborExchange)},
}

// gatherFunc places the blocks given their byte offsets in dst: block i is
// [offs[i], offs[i+1]).
type gatherFunc func(e *Engine, w *Workspace, offs []int)

func withLengths(learn func(e *Engine, w *Workspace) []int, g gatherFunc) Func {
	return func(e *Engine, w *Workspace) {
		if w.Set.Size == 1 {
			e.copyLocal(w.Dst, w.Src, w.Bytes())
			return
		}
		g(e, w, plan.Prefix(learn(e, w)))
	}
}

func uniform(g gatherFunc) Func {
	return func(e *Engine, w *Workspace) {
		if w.Set.Size == 1 {
			e.copyLocal(w.Dst, w.Src, w.Bytes())
			return
		}
		g(e, w, plan.Uniform(w.Set.Size, w.Bytes()))
	}
}

// prefixChain passes the running offset from index i to i+1, stored as
// offset+1 so that the baseline means "not yet". It returns the byte offset
// of the calling PE's block.
func prefixChain(e *Engine, w *Workspace) int {
	idx, n := e.index(w)
	t := e.t
	var off int
	if idx > 0 {
		off = int(take(t, w.PSync, collectChain)) - 1
	}
	if idx+1 < n {
		t.AtomicSet(w.PSync.Word(collectChain), int64(off+w.Bytes()+1), w.Set.PE(idx+1))
	}
	return off
}

// directLengths has every PE write its length into one word per member on
// every peer.
func directLengths(e *Engine, w *Workspace) []int {
	idx, n := e.index(w)
	assert.Truef(n <= SignalCapacity, "active set of %d exceeds %d", n, SignalCapacity)
	t := e.t
	for i := 0; i < n; i++ {
		t.AtomicSet(w.PSync.Word(collectLens+idx), int64(w.Bytes()+1), w.Set.PE(i))
	}
	lens := make([]int, n)
	for i := range lens {
		lens[i] = int(take(t, w.PSync, collectLens+i)) - 1
	}
	return lens
}

// bruckLengths runs the Bruck exchange on the lengths: word k of the lengths
// region holds the length of index idx+k.
func bruckLengths(e *Engine, w *Workspace) []int {
	idx, n := e.index(w)
	assert.Truef(n <= SignalCapacity, "active set of %d exceeds %d", n, SignalCapacity)
	t := e.t
	lens := w.PSync.Word(collectLens)
	shmem.View[int64](t, lens, 1)[0] = int64(w.Bytes())
	for r, d := 0, 1; d < n; r, d = r+1, d*2 {
		cnt := min(d, n-d)
		peer := w.Set.PE((idx - d + n) % n)
		t.Put(lens.Word(d), t.Local(lens, cnt*shmem.WordSize), peer)
		notify(t, w.PSync, collectRounds+r, peer)
		consume(t, w.PSync, collectRounds+r, 1)
	}
	rotated := shmem.View[int64](t, lens, n)
	out := make([]int, n)
	for k, v := range rotated {
		out[(idx+k)%n] = int(v)
	}
	clear(rotated)
	return out
}

// gatherLinear puts every block to index 0, which then sends the whole
// result to everyone. total < 0 means only the last index knows it.
func gatherLinear(e *Engine, w *Workspace, off, total int) {
	idx, n := e.index(w)
	if n == 1 {
		e.copyLocal(w.Dst, w.Src, w.Bytes())
		return
	}
	t := e.t
	root := w.Set.PE(0)
	t.Put(w.Dst.Add(off), t.Local(w.Src, w.Bytes()), root)
	if total < 0 && idx == n-1 {
		t.Fence()
		t.AtomicSet(w.PSync.Word(collectCounter), int64(off+w.Bytes()+1), root)
	}
	e.sync(w.Set, w.PSync.Word(collectBarrier))
	if idx != 0 {
		consume(t, w.PSync, collectCounter, 1)
		return
	}
	if total < 0 {
		total = int(take(t, w.PSync, collectCounter)) - 1
	}
	data := t.Local(w.Dst, total)
	for i := 1; i < n; i++ {
		t.Put(w.Dst, data, w.Set.PE(i))
		notify(t, w.PSync, collectCounter, w.Set.PE(i))
	}
}

func collectLinear(e *Engine, w *Workspace) {
	gatherLinear(e, w, prefixChain(e, w), -1)
}

// gatherAllLinear puts the calling PE's block to every peer and syncs.
func gatherAllLinear(e *Engine, w *Workspace, off int) {
	idx, n := e.index(w)
	t := e.t
	data := t.Local(w.Src, w.Bytes())
	for i := 1; i < n; i++ {
		t.Put(w.Dst.Add(off), data, w.Set.PE((idx+i)%n))
	}
	e.copyLocal(w.Dst.Add(off), w.Src, w.Bytes())
	if n > 1 {
		e.sync(w.Set, w.PSync.Word(collectBarrier))
	}
}

func collectAllLinear(e *Engine, w *Workspace) {
	gatherAllLinear(e, w, prefixChain(e, w))
}

// allLinear1 puts the calling PE's block to every peer and counts arrivals
// instead of syncing.
func allLinear1(e *Engine, w *Workspace, offs []int, signal bool) {
	idx, n := e.index(w)
	t := e.t
	dst := w.Dst.Add(offs[idx])
	data := t.Local(w.Src, w.Bytes())
	for i := 1; i < n; i++ {
		pe := w.Set.PE((idx + i) % n)
		if signal {
			t.PutSignal(dst, data, w.PSync.Word(collectCounter), 1, shmem.SignalAdd, pe)
		} else {
			t.Put(dst, data, pe)
			notify(t, w.PSync, collectCounter, pe)
		}
	}
	e.copyLocal(dst, w.Src, w.Bytes())
	consume(t, w.PSync, collectCounter, int64(n-1))
}

// gatherRecDbl exchanges with idx^2^r in round r, doubling the held blocks.
// Indices from the largest power of two p2s up hand their block to idx-p2s
// first and get the whole result back at the end; a member then sends the
// blocks of its group's partners along with the group.
func gatherRecDbl(e *Engine, w *Workspace, offs []int) {
	idx, n := e.index(w)
	t := e.t
	p2s := plan.FloorPowerOfTwo(n)
	extra := n - p2s
	e.copyLocal(w.Dst.Add(offs[idx]), w.Src, w.Bytes())
	if idx >= p2s {
		partner := w.Set.PE(idx - p2s)
		t.Put(w.Dst.Add(offs[idx]), t.Local(w.Src, w.Bytes()), partner)
		notify(t, w.PSync, collectCounter, partner)
		consume(t, w.PSync, collectCounter, 1)
		return
	}
	if idx < extra {
		consume(t, w.PSync, collectCounter, 1)
	}
	span := func(a, b int) (shmem.SymAddr, []byte) {
		return w.Dst.Add(offs[a]), t.Local(w.Dst.Add(offs[a]), offs[b]-offs[a])
	}
	for r, d := 0, 1; d < p2s; r, d = r+1, d*2 {
		peer := w.Set.PE(idx ^ d)
		g := idx &^ (d - 1)
		addr, data := span(g, g+d)
		t.Put(addr, data, peer)
		if g+p2s < n {
			addr, data := span(g+p2s, min(g+d+p2s, n))
			t.Put(addr, data, peer)
		}
		notify(t, w.PSync, collectData+r, peer)
		consume(t, w.PSync, collectData+r, 1)
	}
	if idx < extra {
		peer := w.Set.PE(idx + p2s)
		t.Put(w.Dst, t.Local(w.Dst, offs[n]), peer)
		notify(t, w.PSync, collectCounter, peer)
	}
}

// gatherRing forwards, at step s, the block of idx-s to idx+1.
func gatherRing(e *Engine, w *Workspace, offs []int) {
	idx, n := e.index(w)
	t := e.t
	e.copyLocal(w.Dst.Add(offs[idx]), w.Src, w.Bytes())
	next := w.Set.PE((idx + 1) % n)
	for s := 0; s < n-1; s++ {
		if s > 0 {
			t.WaitUntil(w.PSync.Word(collectCounter), shmem.CmpGE, int64(s))
		}
		b := (idx - s + n) % n
		addr := w.Dst.Add(offs[b])
		t.Put(addr, t.Local(addr, offs[b+1]-offs[b]), next)
		notify(t, w.PSync, collectCounter, next)
	}
	consume(t, w.PSync, collectCounter, int64(n-1))
}

// circular returns the bytes of blocks [a, a+k) taken modulo n.
func circular(offs []int, a, k int) int {
	n := len(offs) - 1
	if b := a + k; b > n {
		return offs[n] - offs[a] + offs[b-n]
	}
	return offs[a+k] - offs[a]
}

// gatherBruck keeps dst rotated during the rounds: position k holds the block
// of idx+k. In round r the first min(2^r, n-2^r) positions go to position
// 2^r of idx-2^r. A final local rotation restores the order, through a
// temporary buffer or with three reversals.
func gatherBruck(e *Engine, w *Workspace, offs []int, inplace bool) {
	idx, n := e.index(w)
	t := e.t
	total := offs[n]
	e.copyLocal(w.Dst, w.Src, w.Bytes())
	for r, d := 0, 1; d < n; r, d = r+1, d*2 {
		cnt := min(d, n-d)
		j := (idx - d + n) % n
		t.Put(w.Dst.Add(circular(offs, j, d)), t.Local(w.Dst, circular(offs, idx, cnt)), w.Set.PE(j))
		notify(t, w.PSync, collectData+r, w.Set.PE(j))
		consume(t, w.PSync, collectData+r, 1)
	}
	buf := t.Local(w.Dst, total)
	k := offs[idx]
	if k == 0 {
		return
	}
	if inplace {
		slices.Reverse(buf)
		slices.Reverse(buf[:k])
		slices.Reverse(buf[k:])
		return
	}
	tmp := make([]byte, total)
	copy(tmp[k:], buf[:total-k])
	copy(tmp[:k], buf[total-k:])
	copy(buf, tmp)
}

// gatherBruckNoRotate sends the same blocks as gatherBruck but straight to
// their final offsets, in two puts when the blocks wrap around.
func gatherBruckNoRotate(e *Engine, w *Workspace, offs []int, signal bool) {
	idx, n := e.index(w)
	t := e.t
	e.copyLocal(w.Dst.Add(offs[idx]), w.Src, w.Bytes())
	for r, d := 0, 1; d < n; r, d = r+1, d*2 {
		cnt := min(d, n-d)
		peer := w.Set.PE((idx - d + n) % n)
		ranges := []plan.Interval{{Begin: offs[idx], End: offs[min(idx+cnt, n)]}}
		if idx+cnt > n {
			ranges = append(ranges, plan.Interval{Begin: 0, End: offs[idx+cnt-n]})
		}
		for i, rg := range ranges {
			addr := w.Dst.Add(rg.Begin)
			data := t.Local(addr, rg.Len())
			if signal && i == len(ranges)-1 {
				t.PutSignal(addr, data, w.PSync.Word(collectData+r), 1, shmem.SignalAdd, peer)
			} else {
				t.Put(addr, data, peer)
			}
		}
		if !signal {
			notify(t, w.PSync, collectData+r, peer)
		}
		consume(t, w.PSync, collectData+r, 1)
	}
}

// gatherNeighborExchange pairs idx with an adjacent index, alternating
// between the left and right neighbour. The first step swaps one block, every
// later step forwards the two blocks received in the step before.
func gatherNeighborExchange(e *Engine, w *Workspace, offs []int) {
	idx, n := e.index(w)
	assert.Truef(n%2 == 0, "neighbor_exchange needs an even number of PEs, got %d", n)
	t := e.t
	var neighbor, from, step [2]int
	if idx%2 == 0 {
		neighbor = [2]int{(idx + 1) % n, (idx - 1 + n) % n}
		from = [2]int{idx, idx}
		step = [2]int{2, -2}
	} else {
		neighbor = [2]int{(idx - 1 + n) % n, (idx + 1) % n}
		from = [2]int{neighbor[0], neighbor[0]}
		step = [2]int{-2, 2}
	}
	e.copyLocal(w.Dst.Add(offs[idx]), w.Src, w.Bytes())

	var got [2]int64
	send := func(p, b, k int) {
		addr := w.Dst.Add(offs[b])
		t.Put(addr, t.Local(addr, offs[b+k]-offs[b]), w.Set.PE(neighbor[p]))
		notify(t, w.PSync, collectRounds+p, w.Set.PE(neighbor[p]))
		got[p]++
		t.WaitUntil(w.PSync.Word(collectRounds+p), shmem.CmpGE, got[p])
	}
	send(0, idx, 1)
	sendFrom := idx
	if idx%2 != 0 {
		sendFrom = from[0]
	}
	for i := 1; i < n/2; i++ {
		p := i % 2
		from[p] = (from[p] + step[p] + n) % n
		send(p, sendFrom, 2)
		sendFrom = from[p]
	}
	for p := range got {
		if got[p] > 0 {
			t.AtomicAdd(w.PSync.Word(collectRounds+p), -got[p], t.MyPE())
		}
	}
}

// Collect concatenates the nelems elements at src of every PE of set, in the
// order of set, into dst. nelems may differ across PEs.
func Collect[T any](e *Engine, dst, src shmem.SymAddr, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) {
	w := gatherWorkspace[T](dst, src, nelems, set, pSync)
	dispatch(e, registry.Collect, typeTag[T](), CollectAlgorithms, DefaultCollect, w)
}

func CollectWith[T any](e *Engine, algo string, dst, src shmem.SymAddr, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) error {
	w := gatherWorkspace[T](dst, src, nelems, set, pSync)
	return runWith(e, registry.Collect, CollectAlgorithms, algo, w)
}

// FCollect is Collect with the same nelems on every PE.
func FCollect[T any](e *Engine, dst, src shmem.SymAddr, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) {
	w := gatherWorkspace[T](dst, src, nelems, set, pSync)
	dispatch(e, registry.FCollect, typeTag[T](), FCollectAlgorithms, DefaultFCollect, w)
}

func FCollectWith[T any](e *Engine, algo string, dst, src shmem.SymAddr, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) error {
	w := gatherWorkspace[T](dst, src, nelems, set, pSync)
	return runWith(e, registry.FCollect, FCollectAlgorithms, algo, w)
}

func gatherWorkspace[T any](dst, src shmem.SymAddr, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) *Workspace {
	return &Workspace{
		Dst:      dst,
		Src:      src,
		Count:    nelems,
		ElemSize: shmem.SizeOf[T](),
		Set:      set,
		PSync:    pSync,
	}
}
