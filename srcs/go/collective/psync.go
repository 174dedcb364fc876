package collective

import "github.com/lsds/kungfu-shmem/srcs/go/shmem"

// SyncValue is the value every pSync word holds between two calls.
const SyncValue int64 = 0

const (
	// MaxRounds bounds the number of doubling rounds: active sets have fewer
	// than 2^MaxRounds members.
	MaxRounds = 32

	// SignalCapacity bounds the size of active sets for algorithms that keep
	// one pSync word per member.
	SignalCapacity = 1024
)

// Barrier and sync: [0] arrivals, [1] release, or [r] for dissemination
// round r.
const BarrierSyncSize = MaxRounds

// Broadcast: [0] payload arrived, [1] scatter_collect ring counter.
const BcastSyncSize = 2

// Collect and fcollect:
//
//	[0]                      offset chain
//	[1]                      arrival counter / total
//	[2, 2+MaxRounds)         length rounds (bruck), neighbor counters
//	[2+MaxRounds, 2+2*MaxRounds)  data rounds
//	[collectLens, +SignalCapacity)  lengths
//	[collectBarrier, +BarrierSyncSize)
const (
	collectChain   = 0
	collectCounter = 1
	collectRounds  = 2
	collectData    = collectRounds + MaxRounds
	collectLens    = collectData + MaxRounds
	collectBarrier = collectLens + SignalCapacity

	CollectSyncSize = collectBarrier + BarrierSyncSize
)

// Alltoall and alltoalls: [0] counter, [1, 1+SignalCapacity) signals, then a
// barrier.
const (
	alltoallCounter = 0
	alltoallSignals = 1
	alltoallBarrier = alltoallSignals + SignalCapacity

	AlltoallSyncSize = alltoallBarrier + BarrierSyncSize
)

// Reduction:
//
//	[0]                   handoff from a member outside the power of two subset
//	[1]                   result returned to it
//	[2+2r], [3+2r]        ready and data of round r
//	[reduceGather, +SignalCapacity)  all-gather rounds and ring counter
//	[reduceBarrier, +BarrierSyncSize)
//	[reduceBcast, +BcastSyncSize)
const (
	reduceHandoff = 0
	reduceResult  = 1
	reduceRounds  = 2
	reduceGather  = reduceRounds + 2*MaxRounds
	reduceBarrier = reduceGather + SignalCapacity
	reduceBcast   = reduceBarrier + BarrierSyncSize

	ReduceSyncSize = reduceBcast + BcastSyncSize
)

// ReduceWrkSize is the number of elements pWrk needs for nreduce elements.
func ReduceWrkSize(nreduce int) int {
	return max(nreduce, 1)
}

func reduceReady(r int) int { return reduceRounds + 2*r }
func reduceData(r int) int  { return reduceRounds + 2*r + 1 }

// NewPSync allocates n pSync words, all at SyncValue.
func NewPSync(a shmem.Allocator, n int) shmem.SymAddr {
	return shmem.Malloc[int64](a, n)
}

// consume takes k arrivals at word i of pSync: it waits for them and
// subtracts them, so increments already made for a later call survive.
func consume(t shmem.Transport, pSync shmem.SymAddr, i int, k int64) {
	if k == 0 {
		return
	}
	addr := pSync.Word(i)
	t.WaitUntil(addr, shmem.CmpGE, k)
	t.AtomicAdd(addr, -k, t.MyPE())
}

// take waits until word i differs from SyncValue, resets it and returns the
// value it held.
func take(t shmem.Transport, pSync shmem.SymAddr, i int) int64 {
	addr := pSync.Word(i)
	v := t.WaitUntil(addr, shmem.CmpNE, SyncValue)
	t.AtomicAdd(addr, -v, t.MyPE())
	return v
}

// notify delivers one arrival at word i of pe, after the puts already issued
// to pe.
func notify(t shmem.Transport, pSync shmem.SymAddr, i int, pe int) {
	t.Fence()
	t.AtomicInc(pSync.Word(i), pe)
}
