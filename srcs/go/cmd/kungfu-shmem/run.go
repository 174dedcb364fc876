package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/lsds/kungfu-shmem/srcs/go/collective"
	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/base"
	"github.com/lsds/kungfu-shmem/srcs/go/log"
	"github.com/lsds/kungfu-shmem/srcs/go/monitor"
	"github.com/lsds/kungfu-shmem/srcs/go/profile"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem/fabric"
	"github.com/lsds/kungfu-shmem/srcs/go/utils"
	"github.com/spf13/cobra"
	"github.com/unixpickle/essentials"
)

type benchParams struct {
	op      registry.Operation
	algo    string
	np      int
	count   int
	root    int
	iters   int
	reduce  base.OP
	timeout time.Duration
}

type benchResult struct {
	elapsed  time.Duration
	bytes    int64 // payload moved per PE per iteration
	metrics  *monitor.NetMetrics
	bindings []registry.Binding
	profiler *profile.Profiler
}

var (
	runParams = benchParams{reduce: base.SUM}
	dtypeName string
	metricsOn int
	profileOn bool
	perPEOn   bool
)

var runCmd = &cobra.Command{
	Use:   "run <operation>",
	Short: "Run a collective on in-process PEs and report its throughput",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := registry.ParseOperation(args[0])
		if err != nil {
			return err
		}
		dt, err := base.ParseDataType(dtypeName)
		if err != nil {
			return err
		}
		p := runParams
		p.op = op
		if p.np < 1 || p.count < 0 || p.iters < 1 {
			return fmt.Errorf("invalid run: np=%d count=%d iters=%d", p.np, p.count, p.iters)
		}
		if p.root < 0 || p.root >= p.np {
			return fmt.Errorf("invalid root %d for %d PEs", p.root, p.np)
		}
		if metricsOn > 0 {
			monitor.StartServer(metricsOn)
			defer monitor.StopServer()
		}
		r, err := benchDataType(dt, p)
		if err != nil {
			return err
		}
		report(cmd, p, dt, r)
		if metricsOn > 0 {
			waitSignal()
		}
		return nil
	},
}

func init() {
	flags := runCmd.Flags()
	flags.IntVarP(&runParams.np, "np", "n", 4, "number of PEs")
	flags.StringVar(&runParams.algo, "algo", "", "algorithm name, selected from the environment if empty")
	flags.IntVar(&runParams.count, "count", 1024, "elements per PE")
	flags.IntVar(&runParams.root, "root", 0, "root index of broadcast")
	flags.IntVar(&runParams.iters, "iters", 10, "iterations")
	flags.Var(&runParams.reduce, "op", "reduction operator")
	flags.DurationVar(&runParams.timeout, "timeout", time.Minute, "abort the run after this long")
	flags.StringVar(&dtypeName, "type", base.I32.String(), "element type")
	flags.IntVar(&metricsOn, "metrics-port", 0, "serve /metrics on this port and wait for a signal after the run")
	flags.BoolVar(&profileOn, "profile", false, "print the time spent in each algorithm, summed over PEs")
	flags.BoolVar(&perPEOn, "per-pe", false, "print the traffic issued by each PE")
}

func benchDataType(dt base.DataType, p benchParams) (*benchResult, error) {
	switch dt {
	case base.U8:
		return bench[uint8](p)
	case base.U16:
		return bench[uint16](p)
	case base.U32:
		return bench[uint32](p)
	case base.U64:
		return bench[uint64](p)
	case base.I8:
		return bench[int8](p)
	case base.I16:
		return bench[int16](p)
	case base.I32:
		return bench[int32](p)
	case base.I64:
		return bench[int64](p)
	case base.F32:
		return bench[float32](p)
	case base.F64:
		return bench[float64](p)
	}
	return nil, fmt.Errorf("unsupported data type %s", dt)
}

func bench[T base.Number](p benchParams) (*benchResult, error) {
	fopts := fabric.DefaultOptions()
	fopts.Timeout = p.timeout
	fopts.HeapSize = heapSize[T](p)
	f := fabric.New(p.np, fopts)
	copts := collective.DefaultOptions()
	copts.Registry = registry.New(env.Getenv)
	r := &benchResult{metrics: f.Metrics()}
	if profileOn {
		r.profiler = profile.New()
		copts.Profiler = r.profiler
	}
	err := f.Run(func(pe *fabric.PE) error {
		e := collective.New(pe, pe, copts)
		step, nbytes := prepare[T](e, pe, p)
		e.BarrierAll()
		d, err := utils.Measure(func() error {
			for i := 0; i < p.iters; i++ {
				if err := step(); err != nil {
					return err
				}
				e.BarrierAll()
			}
			return nil
		})
		if err != nil {
			return err
		}
		if pe.MyPE() == 0 {
			r.elapsed, r.bytes = d, int64(nbytes)
		}
		if len(p.algo) == 0 {
			return e.CheckBindings()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.bindings = copts.Registry.Bindings()
	log.Debugf("fabric %s: %v", f.ID(), r.bindings)
	return r, nil
}

// heapSize fits the buffers of the largest operation with room for the
// engine's own allocations.
func heapSize[T any](p benchParams) int {
	buffers := 3 * p.np * p.count * shmem.SizeOf[T]()
	return buffers + 1<<20
}

// prepare allocates the buffers of p.op and returns one iteration of it with
// the payload bytes it moves per PE.
func prepare[T base.Number](e *collective.Engine, pe *fabric.PE, p benchParams) (func() error, int) {
	n, me := pe.NPEs(), pe.MyPE()
	set := e.World()
	nb := p.count * shmem.SizeOf[T]()
	fill := func(addr shmem.SymAddr, k int) {
		xs := shmem.View[T](pe, addr, k)
		for i := range xs {
			xs[i] = T(me + i)
		}
	}
	switch p.op {
	case registry.Barrier, registry.Sync:
		pSync := collective.NewPSync(pe, collective.BarrierSyncSize)
		if p.op == registry.Barrier {
			return func() error {
				if len(p.algo) == 0 {
					collective.Barrier(e, set, pSync)
					return nil
				}
				return collective.BarrierWith(e, p.algo, set, pSync)
			}, 0
		}
		return func() error {
			if len(p.algo) == 0 {
				collective.Sync(e, set, pSync)
				return nil
			}
			return collective.SyncWith(e, p.algo, set, pSync)
		}, 0
	case registry.Broadcast:
		pSync := collective.NewPSync(pe, collective.BcastSyncSize)
		src, dst := shmem.Malloc[T](pe, p.count), shmem.Malloc[T](pe, p.count)
		fill(src, p.count)
		return func() error {
			if len(p.algo) == 0 {
				collective.Broadcast[T](e, dst, src, p.count, p.root, set, pSync)
				return nil
			}
			return collective.BroadcastWith[T](e, p.algo, dst, src, p.count, p.root, set, pSync)
		}, nb
	case registry.Collect, registry.FCollect:
		pSync := collective.NewPSync(pe, collective.CollectSyncSize)
		src, dst := shmem.Malloc[T](pe, p.count), shmem.Malloc[T](pe, n*p.count)
		fill(src, p.count)
		if p.op == registry.Collect {
			return func() error {
				if len(p.algo) == 0 {
					collective.Collect[T](e, dst, src, p.count, set, pSync)
					return nil
				}
				return collective.CollectWith[T](e, p.algo, dst, src, p.count, set, pSync)
			}, n * nb
		}
		return func() error {
			if len(p.algo) == 0 {
				collective.FCollect[T](e, dst, src, p.count, set, pSync)
				return nil
			}
			return collective.FCollectWith[T](e, p.algo, dst, src, p.count, set, pSync)
		}, n * nb
	case registry.AllToAll, registry.AllToAlls:
		pSync := collective.NewPSync(pe, collective.AlltoallSyncSize)
		src, dst := shmem.Malloc[T](pe, n*p.count), shmem.Malloc[T](pe, n*p.count)
		fill(src, n*p.count)
		if p.op == registry.AllToAll {
			return func() error {
				if len(p.algo) == 0 {
					collective.AllToAll[T](e, dst, src, p.count, set, pSync)
					return nil
				}
				return collective.AllToAllWith[T](e, p.algo, dst, src, p.count, set, pSync)
			}, n * nb
		}
		return func() error {
			if len(p.algo) == 0 {
				collective.AllToAlls[T](e, dst, src, 1, 1, p.count, set, pSync)
				return nil
			}
			return collective.AllToAllsWith[T](e, p.algo, dst, src, 1, 1, p.count, set, pSync)
		}, n * nb
	default:
		pSync := collective.NewPSync(pe, collective.ReduceSyncSize)
		src, dst := shmem.Malloc[T](pe, p.count), shmem.Malloc[T](pe, p.count)
		pWrk := shmem.Malloc[T](pe, collective.ReduceWrkSize(p.count))
		fill(src, p.count)
		return func() error {
			if len(p.algo) == 0 {
				collective.ToAll[T](e, p.reduce, dst, src, p.count, set, pWrk, pSync)
				return nil
			}
			return collective.ToAllWith[T](e, p.algo, p.reduce, dst, src, p.count, set, pWrk, pSync)
		}, nb
	}
}

func report(cmd *cobra.Command, p benchParams, dt base.DataType, r *benchResult) {
	w := cmd.OutOrStdout()
	algo := p.algo
	for _, b := range r.bindings {
		if b.Op == p.op {
			algo = b.Name
		}
	}
	per := r.elapsed / time.Duration(p.iters)
	fmt.Fprintf(w, "%s %s np=%d count=%d type=%s: %s per iteration", p.op, algo, p.np, p.count, dt, per)
	if r.bytes > 0 {
		fmt.Fprintf(w, ", %s", utils.ShowRate(utils.Rate(r.bytes*int64(p.iters), r.elapsed)))
	}
	fmt.Fprintln(w)
	egress, ingress, atomics := r.metrics.Totals()
	fmt.Fprintf(w, "egress %d ingress %d atomics %d\n", egress, ingress, atomics)
	if perPEOn {
		writeTraffic(w, r.metrics, p.np)
	}
	if r.profiler != nil {
		r.profiler.WriteSummary(w)
	}
}

func writeTraffic(w io.Writer, m *monitor.NetMetrics, np int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PE\tEGRESS\tINGRESS\tATOMICS")
	for pe := 0; pe < np; pe++ {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", pe, m.EgressOf(pe), m.IngressOf(pe), m.AtomicsOf(pe))
	}
	essentials.Must(tw.Flush())
}
