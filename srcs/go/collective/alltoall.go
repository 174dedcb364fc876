package collective

import (
	"fmt"

	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/utils/assert"
)

const (
	DefaultAllToAll  = `shift_exchange_counter`
	DefaultAllToAlls = `shift_exchange_counter`
)

// schedule returns the peers of idx in the order they are sent to, idx
// excluded.
type schedule func(idx, n int) []int

func shiftExchange(idx, n int) []int {
	peers := make([]int, 0, n-1)
	for i := 1; i < n; i++ {
		peers = append(peers, (idx+i)%n)
	}
	return peers
}

func xorPairwiseExchange(idx, n int) []int {
	assert.Truef(plan.IsPowerOfTwo(n), "xor_pairwise_exchange needs a power of two number of PEs, got %d", n)
	peers := make([]int, 0, n-1)
	for i := 1; i < n; i++ {
		peers = append(peers, idx^i)
	}
	return peers
}

func colorPairwiseExchange(idx, n int) []int {
	peers := make([]int, 0, n-1)
	for r := 0; r < plan.EdgeColorRounds(n); r++ {
		if p := plan.EdgeColor(r, idx, n); p >= 0 {
			peers = append(peers, p)
		}
	}
	return peers
}

type discipline int

const (
	withBarrier discipline = iota
	withCounter
	withSignal
)

var schedules = []struct {
	name string
	fn   schedule
}{
	{`shift_exchange`, shiftExchange},
	{`xor_pairwise_exchange`, xorPairwiseExchange},
	{`color_pairwise_exchange`, colorPairwiseExchange},
}

var disciplines = []struct {
	name string
	d    discipline
}{
	{`barrier`, withBarrier},
	{`counter`, withCounter},
	{`signal`, withSignal},
}

func alltoallTable(strided bool) registry.Table[Func] {
	var t registry.Table[Func]
	for _, s := range schedules {
		for _, d := range disciplines {
			t = append(t, registry.Algorithm[Func]{
				Name: fmt.Sprintf("%s_%s", s.name, d.name),
				Fn:   exchange(s.fn, d.d, strided),
			})
		}
	}
	return t
}

var (
	AllToAllAlgorithms  = alltoallTable(false)
	AllToAllsAlgorithms = alltoallTable(true)
)

// block addresses the elements exchanged between two indices.
type block struct {
	w       *Workspace
	strided bool
}

func (b block) stride(s int) int {
	if b.strided {
		return s
	}
	return 1
}

// src is the start of the elements idx sends to index j.
func (b block) src(j int) shmem.SymAddr {
	return b.w.Src.Add(j * b.w.Count * b.stride(b.w.SrcStride) * b.w.ElemSize)
}

// dst is the start of the elements index j receives from idx.
func (b block) dst(idx int) shmem.SymAddr {
	return b.w.Dst.Add(idx * b.w.Count * b.stride(b.w.DstStride) * b.w.ElemSize)
}

func (b block) srcBytes(t shmem.Transport, j int) []byte {
	if b.w.Count == 0 {
		return nil
	}
	n := ((b.w.Count-1)*b.stride(b.w.SrcStride) + 1) * b.w.ElemSize
	return t.Local(b.src(j), n)
}

func (b block) put(t shmem.Transport, idx, j int) {
	pe := b.w.Set.PE(j)
	if b.strided {
		t.IPut(b.dst(idx), b.srcBytes(t, j), b.w.DstStride, b.w.SrcStride, b.w.ElemSize, b.w.Count, pe)
		return
	}
	t.Put(b.dst(idx), b.srcBytes(t, j), pe)
}

// exchange sends block j of src to every index j in schedule order and
// waits for completion according to d: a sync over the set, one counter
// incremented by every peer, or one signal word per peer.
func exchange(sched schedule, d discipline, strided bool) Func {
	return func(e *Engine, w *Workspace) {
		idx, n := e.index(w)
		t := e.t
		b := block{w: w, strided: strided}
		if d == withSignal {
			assert.Truef(n <= SignalCapacity, "active set of %d exceeds %d", n, SignalCapacity)
		}
		if n == 1 {
			b.put(t, idx, idx)
			return
		}
		for _, j := range sched(idx, n) {
			switch d {
			case withBarrier:
				b.put(t, idx, j)
			case withCounter:
				b.put(t, idx, j)
				notify(t, w.PSync, alltoallCounter, w.Set.PE(j))
			case withSignal:
				if strided {
					b.put(t, idx, j)
					notify(t, w.PSync, alltoallSignals+idx, w.Set.PE(j))
				} else {
					t.PutSignal(b.dst(idx), b.srcBytes(t, j), w.PSync.Word(alltoallSignals+idx), 1, shmem.SignalAdd, w.Set.PE(j))
				}
			}
		}
		b.put(t, idx, idx)
		switch d {
		case withBarrier:
			e.sync(w.Set, w.PSync.Word(alltoallBarrier))
		case withCounter:
			consume(t, w.PSync, alltoallCounter, int64(n-1))
		case withSignal:
			for j := 0; j < n; j++ {
				if j != idx {
					consume(t, w.PSync, alltoallSignals+j, 1)
				}
			}
		}
	}
}

// AllToAll sends block j of nelems elements at src to index j of set, which
// stores it as block idx of its dst.
func AllToAll[T any](e *Engine, dst, src shmem.SymAddr, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) {
	w := alltoallWorkspace[T](dst, src, 1, 1, nelems, set, pSync)
	dispatch(e, registry.AllToAll, typeTag[T](), AllToAllAlgorithms, DefaultAllToAll, w)
}

func AllToAllWith[T any](e *Engine, algo string, dst, src shmem.SymAddr, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) error {
	w := alltoallWorkspace[T](dst, src, 1, 1, nelems, set, pSync)
	return runWith(e, registry.AllToAll, AllToAllAlgorithms, algo, w)
}

// AllToAlls is AllToAll over strided elements: element k for index j is
// src[(j*nelems+k)*srcStride] and lands at dst[(idx*nelems+k)*dstStride].
func AllToAlls[T any](e *Engine, dst, src shmem.SymAddr, dstStride, srcStride, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) {
	w := alltoallWorkspace[T](dst, src, dstStride, srcStride, nelems, set, pSync)
	dispatch(e, registry.AllToAlls, typeTag[T](), AllToAllsAlgorithms, DefaultAllToAlls, w)
}

func AllToAllsWith[T any](e *Engine, algo string, dst, src shmem.SymAddr, dstStride, srcStride, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) error {
	w := alltoallWorkspace[T](dst, src, dstStride, srcStride, nelems, set, pSync)
	return runWith(e, registry.AllToAlls, AllToAllsAlgorithms, algo, w)
}

func alltoallWorkspace[T any](dst, src shmem.SymAddr, dstStride, srcStride, nelems int, set plan.ActiveSet, pSync shmem.SymAddr) *Workspace {
	return &Workspace{
		Dst:       dst,
		Src:       src,
		Count:     nelems,
		ElemSize:  shmem.SizeOf[T](),
		DstStride: dstStride,
		SrcStride: srcStride,
		Set:       set,
		PSync:     pSync,
	}
}
