package collective

import (
	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/base"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/utils/assert"
)

// Team pairs an active set with the pSync and reduction scratch of its own
// collectives. Team collectives end with a barrier of the team, so they can
// be issued back to back on the same buffers.
type Team struct {
	set   plan.ActiveSet
	pSync shmem.SymAddr
	pWrk  shmem.SymAddr
	wrk   int
}

// Regions of the team pSync, one per operation.
const (
	teamSync     = 0
	teamFence    = teamSync + BarrierSyncSize
	teamBcast    = teamFence + BarrierSyncSize
	teamCollect  = teamBcast + BcastSyncSize
	teamAlltoall = teamCollect + CollectSyncSize
	teamReduce   = teamAlltoall + AlltoallSyncSize

	TeamSyncSize = teamReduce + ReduceSyncSize
)

// DefaultTeamWrkSize is the scratch of a team, in bytes: larger reductions
// run in chunks.
const DefaultTeamWrkSize = 64 << 10

// NewTeam allocates the symmetric state of a team over set. Like Malloc it is
// collective over all PEs, members of set or not.
func NewTeam(a shmem.Allocator, set plan.ActiveSet, wrkBytes int) *Team {
	if wrkBytes <= 0 {
		wrkBytes = DefaultTeamWrkSize
	}
	return &Team{
		set:   set,
		pSync: NewPSync(a, TeamSyncSize),
		pWrk:  a.Malloc(wrkBytes),
		wrk:   wrkBytes,
	}
}

func (t *Team) NRanks() int { return t.set.Size }
func (t *Team) Start() int  { return t.set.Start }
func (t *Team) Stride() int { return t.set.Stride() }

func (t *Team) Set() plan.ActiveSet  { return t.set }
func (t *Team) PSync() shmem.SymAddr { return t.pSync }

func (t *Team) region(i int) shmem.SymAddr {
	return t.pSync.Word(i)
}

// fence waits until every member has returned from the last collective.
func (t *Team) fence(e *Engine) {
	e.barrier(t.set, t.region(teamFence))
}

func TeamSync(e *Engine, t *Team) {
	Sync(e, t.set, t.region(teamSync))
}

// TeamBroadcast sends nelems elements at src of the member of index root to
// dst of every member.
func TeamBroadcast[T any](e *Engine, t *Team, dst, src shmem.SymAddr, nelems, root int) {
	Broadcast[T](e, dst, src, nelems, root, t.set, t.region(teamBcast))
	t.fence(e)
}

func TeamCollect[T any](e *Engine, t *Team, dst, src shmem.SymAddr, nelems int) {
	Collect[T](e, dst, src, nelems, t.set, t.region(teamCollect))
	t.fence(e)
}

func TeamFCollect[T any](e *Engine, t *Team, dst, src shmem.SymAddr, nelems int) {
	FCollect[T](e, dst, src, nelems, t.set, t.region(teamCollect))
	t.fence(e)
}

func TeamAllToAll[T any](e *Engine, t *Team, dst, src shmem.SymAddr, nelems int) {
	AllToAll[T](e, dst, src, nelems, t.set, t.region(teamAlltoall))
	t.fence(e)
}

func TeamAllToAlls[T any](e *Engine, t *Team, dst, src shmem.SymAddr, dstStride, srcStride, nelems int) {
	AllToAlls[T](e, dst, src, dstStride, srcStride, nelems, t.set, t.region(teamAlltoall))
	t.fence(e)
}

// TeamReduce reduces with the scratch of the team, in chunks of as many
// elements as it holds.
func TeamReduce[T base.Number](e *Engine, t *Team, op base.OP, dst, src shmem.SymAddr, nreduce int) {
	size := shmem.SizeOf[T]()
	chunk := t.wrk / size
	assert.Truef(chunk >= 1, "team scratch of %d bytes cannot hold one element of %d bytes", t.wrk, size)
	for off := 0; off < nreduce; off += chunk {
		k := min(chunk, nreduce-off)
		ToAll[T](e, op, dst.Add(off*size), src.Add(off*size), k, t.set, t.pWrk, t.region(teamReduce))
		t.fence(e)
	}
}
