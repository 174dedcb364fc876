package collective

import (
	"fmt"
	"testing"
	"time"

	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/plan"
	"github.com/lsds/kungfu-shmem/srcs/go/profile"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSizes = []int{1, 2, 3, 4, 5, 7, 8}

func noEnv(string) string { return `` }

var testOptions = Options{TreeDegree: 3, KnomialRadix: 3}

// runWorld runs fn on n PEs of a fresh fabric, each with its own Engine over
// a registry shared by the PEs.
func runWorld(t *testing.T, n int, fn func(e *Engine, pe *fabric.PE) error) *fabric.Fabric {
	t.Helper()
	opts := testOptions
	opts.Registry = registry.New(noEnv)
	return runWorldWith(t, n, func(*fabric.PE) Options { return opts }, fn)
}

func runWorldWith(t *testing.T, n int, optsOf func(*fabric.PE) Options, fn func(e *Engine, pe *fabric.PE) error) *fabric.Fabric {
	t.Helper()
	f := fabric.New(n, fabric.Options{HeapSize: 1 << 20, Timeout: time.Minute})
	require.NoError(t, f.Run(func(pe *fabric.PE) error {
		return fn(New(pe, pe, optsOf(pe)), pe)
	}))
	return f
}

// requireBaseline checks that the first words of pSync are at SyncValue on every PE.
func requireBaseline(t *testing.T, f *fabric.Fabric, pSync shmem.SymAddr, words int) {
	t.Helper()
	for pe := 0; pe < f.Size(); pe++ {
		heap := f.Heap(pe)[pSync : int(pSync)+words*shmem.WordSize]
		for i, b := range heap {
			if b != 0 {
				require.Failf(t, "pSync not reset", "PE %d: word %d", pe, i/shmem.WordSize)
			}
		}
	}
}

func rootsOf(n int) []int {
	if n == 1 {
		return []int{0}
	}
	if n == 2 {
		return []int{0, 1}
	}
	return []int{0, n / 2, n - 1}
}

func TestBarrier(t *testing.T) {
	tables := map[string]registry.Table[Func]{
		`barrier`: BarrierAlgorithms,
		`sync`:    SyncAlgorithms,
	}
	for kind, table := range tables {
		for _, a := range table {
			for _, n := range testSizes {
				t.Run(fmt.Sprintf("%s/%s/n=%d", kind, a.Name, n), func(t *testing.T) {
					var pSync shmem.SymAddr
					f := runWorld(t, n, func(e *Engine, pe *fabric.PE) error {
						counter := pe.Malloc(shmem.WordSize)
						p := NewPSync(pe, BarrierSyncSize)
						if pe.MyPE() == 0 {
							pSync = p
						}
						for round := 1; round <= 4; round++ {
							pe.AtomicInc(counter, 0)
							if err := runWith(e, registry.Barrier, table, a.Name, &Workspace{Set: e.World(), PSync: p}); err != nil {
								return err
							}
							assert.GreaterOrEqual(t, pe.AtomicFetch(counter, 0), int64(round*n))
						}
						return nil
					})
					requireBaseline(t, f, pSync, BarrierSyncSize)
				})
			}
		}
	}
}

func TestSyncCompletesNonBlockingPuts(t *testing.T) {
	for _, a := range SyncAlgorithms {
		t.Run(a.Name, func(t *testing.T) {
			runWorld(t, 5, func(e *Engine, pe *fabric.PE) error {
				me, n := pe.MyPE(), pe.NPEs()
				x := shmem.Malloc[int64](pe, 1)
				p := NewPSync(pe, BarrierSyncSize)
				pe.PutNBI(x, shmem.AsBytes([]int64{int64(me + 1)}), (me+1)%n)
				if err := SyncWith(e, a.Name, e.World(), p); err != nil {
					return err
				}
				assert.Equal(t, int64((me-1+n)%n+1), shmem.View[int64](pe, x, 1)[0])
				return nil
			})
		})
	}
}

func TestBroadcast(t *testing.T) {
	const count = 13
	for _, a := range BroadcastAlgorithms {
		for _, n := range testSizes {
			for _, root := range rootsOf(n) {
				t.Run(fmt.Sprintf("%s/n=%d/root=%d", a.Name, n, root), func(t *testing.T) {
					var pSync shmem.SymAddr
					f := runWorld(t, n, func(e *Engine, pe *fabric.PE) error {
						dst := shmem.Malloc[int32](pe, count)
						src := shmem.Malloc[int32](pe, count)
						p := NewPSync(pe, BcastSyncSize)
						bar := NewPSync(pe, BarrierSyncSize)
						if pe.MyPE() == 0 {
							pSync = p
						}
						for round := 0; round < 2; round++ {
							for i := range shmem.View[int32](pe, src, count) {
								shmem.View[int32](pe, src, count)[i] = int32(pe.MyPE()*1000 + round*100 + i)
							}
							if err := BroadcastWith[int32](e, a.Name, dst, src, count, root, e.World(), p); err != nil {
								return err
							}
							for i, x := range shmem.View[int32](pe, dst, count) {
								assert.Equal(t, int32(root*1000+round*100+i), x)
							}
							Barrier(e, e.World(), bar)
						}
						return nil
					})
					requireBaseline(t, f, pSync, BcastSyncSize)
				})
			}
		}
	}
}

func TestBroadcastEmptyAndInPlace(t *testing.T) {
	for _, a := range BroadcastAlgorithms {
		t.Run(a.Name, func(t *testing.T) {
			runWorld(t, 4, func(e *Engine, pe *fabric.PE) error {
				buf := shmem.Malloc[int64](pe, 3)
				p := NewPSync(pe, BcastSyncSize)
				copy(shmem.View[int64](pe, buf, 3), []int64{int64(pe.MyPE()), 7, 8})
				if err := BroadcastWith[int64](e, a.Name, buf, buf, 0, 1, e.World(), p); err != nil {
					return err
				}
				assert.Equal(t, int64(pe.MyPE()), shmem.View[int64](pe, buf, 3)[0])
				e.BarrierAll()
				if err := BroadcastWith[int64](e, a.Name, buf, buf, 3, 1, e.World(), p); err != nil {
					return err
				}
				assert.Equal(t, []int64{1, 7, 8}, shmem.View[int64](pe, buf, 3))
				return nil
			})
		})
	}
}

func fcollectNames(n int) []string {
	var names []string
	for _, a := range FCollectAlgorithms {
		if a.Name == `neighbor_exchange` && n%2 != 0 {
			continue
		}
		names = append(names, a.Name)
	}
	return names
}

func TestFCollect(t *testing.T) {
	const count = 3
	for _, n := range testSizes {
		for _, name := range fcollectNames(n) {
			t.Run(fmt.Sprintf("%s/n=%d", name, n), func(t *testing.T) {
				var pSync shmem.SymAddr
				f := runWorld(t, n, func(e *Engine, pe *fabric.PE) error {
					dst := shmem.Malloc[int32](pe, n*count)
					src := shmem.Malloc[int32](pe, count)
					p := NewPSync(pe, CollectSyncSize)
					bar := NewPSync(pe, BarrierSyncSize)
					if pe.MyPE() == 0 {
						pSync = p
					}
					for i := range count {
						shmem.View[int32](pe, src, count)[i] = int32(pe.MyPE()*10 + i)
					}
					for round := 0; round < 2; round++ {
						if err := FCollectWith[int32](e, name, dst, src, count, e.World(), p); err != nil {
							return err
						}
						got := shmem.View[int32](pe, dst, n*count)
						for i := range n {
							for k := range count {
								assert.Equal(t, int32(i*10+k), got[i*count+k], "block %d", i)
							}
						}
						Barrier(e, e.World(), bar)
						clear(got)
						Barrier(e, e.World(), bar)
					}
					return nil
				})
				requireBaseline(t, f, pSync, CollectSyncSize)
			})
		}
	}
}

func collectLen(i int) int {
	return (i*5 + 2) % 4
}

func TestCollect(t *testing.T) {
	for _, a := range CollectAlgorithms {
		for _, n := range testSizes {
			t.Run(fmt.Sprintf("%s/n=%d", a.Name, n), func(t *testing.T) {
				var want []int16
				for i := range n {
					for k := range collectLen(i) {
						want = append(want, int16(i*100+k))
					}
				}
				var pSync shmem.SymAddr
				f := runWorld(t, n, func(e *Engine, pe *fabric.PE) error {
					me := pe.MyPE()
					dst := shmem.Malloc[int16](pe, len(want))
					src := shmem.Malloc[int16](pe, 4)
					p := NewPSync(pe, CollectSyncSize)
					bar := NewPSync(pe, BarrierSyncSize)
					if me == 0 {
						pSync = p
					}
					for k := range collectLen(me) {
						shmem.View[int16](pe, src, 4)[k] = int16(me*100 + k)
					}
					for round := 0; round < 2; round++ {
						if err := CollectWith[int16](e, a.Name, dst, src, collectLen(me), e.World(), p); err != nil {
							return err
						}
						got := shmem.View[int16](pe, dst, len(want))
						assert.Equal(t, want, append([]int16(nil), got...))
						Barrier(e, e.World(), bar)
						clear(got)
						Barrier(e, e.World(), bar)
					}
					return nil
				})
				requireBaseline(t, f, pSync, CollectSyncSize)
			})
		}
	}
}

func alltoallNames(table registry.Table[Func], n int) []string {
	var names []string
	for _, a := range table {
		if len(a.Name) > 3 && a.Name[:3] == `xor` && !plan.IsPowerOfTwo(n) {
			continue
		}
		names = append(names, a.Name)
	}
	return names
}

func TestAllToAll(t *testing.T) {
	const count = 2
	for _, n := range testSizes {
		for _, name := range alltoallNames(AllToAllAlgorithms, n) {
			t.Run(fmt.Sprintf("%s/n=%d", name, n), func(t *testing.T) {
				var pSync shmem.SymAddr
				f := runWorld(t, n, func(e *Engine, pe *fabric.PE) error {
					me := pe.MyPE()
					dst := shmem.Malloc[int64](pe, n*count)
					src := shmem.Malloc[int64](pe, n*count)
					p := NewPSync(pe, AlltoallSyncSize)
					bar := NewPSync(pe, BarrierSyncSize)
					if me == 0 {
						pSync = p
					}
					s := shmem.View[int64](pe, src, n*count)
					for j := range n {
						for k := range count {
							s[j*count+k] = int64(me*100 + j*10 + k)
						}
					}
					for round := 0; round < 2; round++ {
						if err := AllToAllWith[int64](e, name, dst, src, count, e.World(), p); err != nil {
							return err
						}
						got := shmem.View[int64](pe, dst, n*count)
						for i := range n {
							for k := range count {
								assert.Equal(t, int64(i*100+me*10+k), got[i*count+k])
							}
						}
						Barrier(e, e.World(), bar)
						clear(got)
						Barrier(e, e.World(), bar)
					}
					return nil
				})
				requireBaseline(t, f, pSync, AlltoallSyncSize)
			})
		}
	}
}

func TestAllToAlls(t *testing.T) {
	const (
		count     = 2
		dstStride = 2
		srcStride = 3
	)
	for _, n := range testSizes {
		for _, name := range alltoallNames(AllToAllsAlgorithms, n) {
			t.Run(fmt.Sprintf("%s/n=%d", name, n), func(t *testing.T) {
				var pSync shmem.SymAddr
				f := runWorld(t, n, func(e *Engine, pe *fabric.PE) error {
					me := pe.MyPE()
					dst := shmem.Malloc[int32](pe, n*count*dstStride)
					src := shmem.Malloc[int32](pe, n*count*srcStride)
					p := NewPSync(pe, AlltoallSyncSize)
					if me == 0 {
						pSync = p
					}
					s := shmem.View[int32](pe, src, n*count*srcStride)
					for j := range n {
						for k := range count {
							s[(j*count+k)*srcStride] = int32(me*100 + j*10 + k)
						}
					}
					if err := AllToAllsWith[int32](e, name, dst, src, dstStride, srcStride, count, e.World(), p); err != nil {
						return err
					}
					got := shmem.View[int32](pe, dst, n*count*dstStride)
					for i := range n {
						for k := range count {
							assert.Equal(t, int32(i*100+me*10+k), got[(i*count+k)*dstStride])
							assert.Zero(t, got[(i*count+k)*dstStride+1])
						}
					}
					return nil
				})
				requireBaseline(t, f, pSync, AlltoallSyncSize)
			})
		}
	}
}

func TestSetOfStridedPEs(t *testing.T) {
	set := plan.ActiveSet{Start: 1, LogStride: 1, Size: 3}
	runWorld(t, 7, func(e *Engine, pe *fabric.PE) error {
		dst := shmem.Malloc[int32](pe, 3)
		src := shmem.Malloc[int32](pe, 1)
		wrk := shmem.Malloc[int32](pe, 1)
		bar := NewPSync(pe, BarrierSyncSize)
		pc := NewPSync(pe, CollectSyncSize)
		pr := NewPSync(pe, ReduceSyncSize)
		pb := NewPSync(pe, BcastSyncSize)
		idx, ok := set.Index(pe.MyPE())
		if !ok {
			return nil
		}
		shmem.View[int32](pe, src, 1)[0] = int32(pe.MyPE())
		FCollect[int32](e, dst, src, 1, set, pc)
		assert.Equal(t, []int32{1, 3, 5}, shmem.View[int32](pe, dst, 3))
		Barrier(e, set, bar)
		SumToAll[int32](e, dst, src, 1, set, wrk, pr)
		assert.Equal(t, int32(9), shmem.View[int32](pe, dst, 1)[0])
		Barrier(e, set, bar)
		shmem.View[int32](pe, src, 1)[0] = int32(idx)
		Broadcast[int32](e, dst, src, 1, 2, set, pb)
		assert.Equal(t, int32(2), shmem.View[int32](pe, dst, 1)[0])
		return nil
	})
}

func TestScenarioA(t *testing.T) {
	runWorld(t, 4, func(e *Engine, pe *fabric.PE) error {
		dst := shmem.Malloc[int32](pe, 4)
		src := shmem.Malloc[int32](pe, 1)
		p := NewPSync(pe, CollectSyncSize)
		shmem.View[int32](pe, src, 1)[0] = int32(pe.MyPE())
		FCollect[int32](e, dst, src, 1, e.World(), p)
		assert.Equal(t, []int32{0, 1, 2, 3}, shmem.View[int32](pe, dst, 4))
		return nil
	})
}

func TestScenarioC(t *testing.T) {
	type pair struct{ P, Q int32 }
	runWorld(t, 4, func(e *Engine, pe *fabric.PE) error {
		me := pe.MyPE()
		dst := shmem.Malloc[pair](pe, 4)
		src := shmem.Malloc[pair](pe, 4)
		p := NewPSync(pe, AlltoallSyncSize)
		for q, s := 0, shmem.View[pair](pe, src, 4); q < 4; q++ {
			s[q] = pair{int32(me), int32(q)}
		}
		AllToAll[pair](e, dst, src, 1, e.World(), p)
		if me == 2 {
			assert.Equal(t, []pair{{0, 2}, {1, 2}, {2, 2}, {3, 2}}, shmem.View[pair](pe, dst, 4))
		}
		return nil
	})
}

func TestTypeTag(t *testing.T) {
	assert.Equal(t, `i32`, typeTag[int32]())
	assert.Equal(t, `f64`, typeTag[float64]())
	assert.Equal(t, `64`, typeTag[struct{ P, Q int32 }]())
	assert.Equal(t, `8`, typeTag[bool]())
}

func TestProfiler(t *testing.T) {
	p := profile.New()
	opts := testOptions
	opts.Registry = registry.New(noEnv)
	opts.Profiler = p
	runWorldWith(t, 3, func(*fabric.PE) Options { return opts }, func(e *Engine, pe *fabric.PE) error {
		buf := shmem.Malloc[int64](pe, 2)
		pSync := NewPSync(pe, BcastSyncSize)
		assert.NoError(t, BroadcastWith[int64](e, `linear`, buf.Add(8), buf, 1, 0, e.World(), pSync))
		return nil
	})
	assert.Equal(t, int64(3), p.Count(`broadcast/linear`))
}
