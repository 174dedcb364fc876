package collective

import (
	"testing"

	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/base"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem/fabric"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/maps"
)

func TestBytesConsensus(t *testing.T) {
	runWorld(t, 5, func(e *Engine, pe *fabric.PE) error {
		assert.True(t, e.BytesConsensus([]byte("same everywhere")))
		assert.True(t, e.BytesConsensus(nil))
		assert.False(t, e.BytesConsensus([]byte{1, 2, byte(pe.MyPE() % 2)}))
		return nil
	})
}

func TestCheckBindings(t *testing.T) {
	const n = 4
	regs := make([]*registry.Registry, n)
	for i := range regs {
		algo := `linear`
		if i == 2 {
			algo = `dissemination`
		}
		env := map[string]string{`BARRIER_ALGO`: algo}
		regs[i] = registry.New(func(k string) string { return env[k] })
	}
	optsOf := func(pe *fabric.PE) Options {
		opts := testOptions
		opts.Registry = regs[pe.MyPE()]
		return opts
	}
	runWorldWith(t, n, optsOf, func(e *Engine, pe *fabric.PE) error {
		_, err := registry.Bind(regs[pe.MyPE()], registry.Sync, ``, SyncAlgorithms, DefaultSync)
		assert.NoError(t, err)
		assert.NoError(t, e.CheckBindings())
		assert.NoError(t, e.CheckBindings())

		_, err = registry.Bind(regs[pe.MyPE()], registry.Barrier, ``, BarrierAlgorithms, DefaultBarrier)
		assert.NoError(t, err)
		assert.ErrorIs(t, e.CheckBindings(), errInconsistentBindings)
		return nil
	})
}

func TestPreconditions(t *testing.T) {
	run := func(n int, fn func(e *Engine, pe *fabric.PE)) error {
		f := fabric.New(n, fabric.Options{HeapSize: 1 << 16})
		opts := testOptions
		opts.Registry = registry.New(noEnv)
		return f.Run(func(pe *fabric.PE) error {
			fn(New(pe, pe, opts), pe)
			return nil
		})
	}
	err := run(3, func(e *Engine, pe *fabric.PE) {
		p := NewPSync(pe, BarrierSyncSize)
		Barrier(e, plan.ActiveSet{Start: 0, LogStride: 0, Size: 2}, p)
	})
	assert.ErrorContains(t, err, "PE 2 is not in active set (0,0,2)")

	err = run(2, func(e *Engine, pe *fabric.PE) {
		Barrier(e, plan.ActiveSet{Start: 0, LogStride: 1, Size: 2}, NewPSync(pe, BarrierSyncSize))
	})
	assert.ErrorContains(t, err, "invalid active set")

	err = run(2, func(e *Engine, pe *fabric.PE) {
		Barrier(e, e.World(), shmem.Nil)
	})
	assert.ErrorContains(t, err, "pSync is not set")

	err = run(3, func(e *Engine, pe *fabric.PE) {
		x := shmem.Malloc[int32](pe, 3)
		AllToAllWith[int32](e, `xor_pairwise_exchange_counter`, x, shmem.Malloc[int32](pe, 3), 1, e.World(), NewPSync(pe, AlltoallSyncSize))
	})
	assert.ErrorContains(t, err, "power of two")

	err = run(3, func(e *Engine, pe *fabric.PE) {
		x := shmem.Malloc[int32](pe, 3)
		FCollectWith[int32](e, `neighbor_exchange`, x, shmem.Malloc[int32](pe, 1), 1, e.World(), NewPSync(pe, CollectSyncSize))
	})
	assert.ErrorContains(t, err, "even number")

	err = run(2, func(e *Engine, pe *fabric.PE) {
		x := shmem.Malloc[float64](pe, 2)
		ToAll[float64](e, base.XOR, x, x, 1, e.World(), x.Add(8), NewPSync(pe, ReduceSyncSize))
	})
	assert.ErrorContains(t, err, "XOR on f64")

	err = run(2, func(e *Engine, pe *fabric.PE) {
		x := shmem.Malloc[int32](pe, 4)
		AllToAll[int32](e, x, x.Add(4), 2, e.World(), NewPSync(pe, AlltoallSyncSize))
	})
	assert.ErrorContains(t, err, "overlapping buffers")

	err = run(2, func(e *Engine, pe *fabric.PE) {
		x := shmem.Malloc[int32](pe, 4)
		ToAll[int32](e, base.SUM, x, x, 2, e.World(), shmem.Nil, NewPSync(pe, ReduceSyncSize))
	})
	assert.ErrorContains(t, err, "pWrk is not set")
}

func TestUnknownAlgorithm(t *testing.T) {
	runWorld(t, 2, func(e *Engine, pe *fabric.PE) error {
		p := NewPSync(pe, ReduceSyncSize)
		assert.ErrorIs(t, BarrierWith(e, `butterfly`, e.World(), p), registry.ErrUnknownAlgorithm)
		assert.ErrorIs(t, ToAllWith[int32](e, `ring`, base.SUM, p, p, 0, e.World(), p, p), registry.ErrUnknownAlgorithm)
		return nil
	})
}

func TestAlgorithmNames(t *testing.T) {
	names := func(table registry.Table[Func]) []string { return table.Names() }
	assert.Equal(t, []string{`linear`, `complete_tree`, `binomial_tree`, `knomial_tree`, `dissemination`}, names(BarrierAlgorithms))
	assert.Equal(t, names(BarrierAlgorithms), names(SyncAlgorithms))
	assert.Len(t, AllToAllAlgorithms, 9)
	assert.Contains(t, names(AllToAllsAlgorithms), `color_pairwise_exchange_signal`)
	assert.NotContains(t, names(CollectAlgorithms), `neighbor_exchange`)
	assert.Contains(t, names(FCollectAlgorithms), `neighbor_exchange`)
	assert.Equal(t, []string{`linear`, `binomial`, `rec_dbl`, `rabenseifner`, `rabenseifner2`}, ReduceAlgorithms[int8]().Names())

	type fallback struct {
		name  string
		table registry.Table[Func]
	}
	defaults := map[registry.Operation]fallback{
		registry.Barrier:   {DefaultBarrier, BarrierAlgorithms},
		registry.Sync:      {DefaultSync, SyncAlgorithms},
		registry.Broadcast: {DefaultBroadcast, BroadcastAlgorithms},
		registry.Collect:   {DefaultCollect, CollectAlgorithms},
		registry.FCollect:  {DefaultFCollect, FCollectAlgorithms},
		registry.AllToAll:  {DefaultAllToAll, AllToAllAlgorithms},
		registry.AllToAlls: {DefaultAllToAlls, AllToAllsAlgorithms},
	}
	for _, op := range maps.Keys(defaults) {
		d := defaults[op]
		_, ok := d.table.Lookup(d.name)
		assert.True(t, ok, "%s: %s", op, d.name)
	}
	_, ok := ReduceAlgorithms[float64]().Lookup(DefaultReduce)
	assert.True(t, ok, DefaultReduce)
}
