// Package fabric is an in-process implementation of shmem.Transport: every PE
// is a goroutine and every symmetric heap is a private arena of this process.
// It exists to run and test the collectives without an RDMA network.
package fabric

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/config"
	"github.com/lsds/kungfu-shmem/srcs/go/log"
	"github.com/lsds/kungfu-shmem/srcs/go/monitor"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"golang.org/x/sync/errgroup"
)

const (
	// heapBase keeps offset 0 free so that shmem.Nil is never allocated.
	heapBase  = 64
	heapAlign = 16

	DefaultHeapSize = 16 << 20
)

var errAborted = errors.New("aborted")

type Options struct {
	HeapSize       int
	Backoff        shmem.Backoff
	StallDetection bool
	StallPeriod    time.Duration
	// Timeout aborts a Run that takes longer; zero means no limit.
	Timeout time.Duration
}

// DefaultOptions derives the options from the process configuration.
func DefaultOptions() Options {
	backoff, err := shmem.ParseBackoff(config.WaitBackoff)
	if err != nil {
		backoff = shmem.YieldBackoff{}
	}
	return Options{
		HeapSize:       DefaultHeapSize,
		Backoff:        backoff,
		StallDetection: config.EnableStallDetection,
		StallPeriod:    config.StallPeriod,
	}
}

// Fabric connects n PEs. Heaps and allocation state outlive a Run, so
// several programs can run in sequence and the heaps can be inspected after.
type Fabric struct {
	id      uuid.UUID
	n       int
	words   [][]uint64
	heaps   [][]byte
	brks    []int
	opts    Options
	metrics *monitor.NetMetrics
	logger  *log.Logger
}

func New(n int, opts Options) *Fabric {
	if n < 1 {
		panic(fmt.Sprintf("invalid number of PEs: %d", n))
	}
	if opts.HeapSize <= 0 {
		opts.HeapSize = DefaultHeapSize
	}
	if opts.Backoff == nil {
		opts.Backoff = shmem.YieldBackoff{}
	}
	f := &Fabric{
		id:      uuid.New(),
		n:       n,
		words:   make([][]uint64, n),
		heaps:   make([][]byte, n),
		brks:    make([]int, n),
		opts:    opts,
		metrics: monitor.NewNetMetrics(),
	}
	f.logger = log.With(`fabric ` + f.id.String()[:8])
	nw := (opts.HeapSize + shmem.WordSize - 1) / shmem.WordSize
	for i := range f.words {
		f.words[i] = make([]uint64, nw)
		f.heaps[i] = unsafe.Slice((*byte)(unsafe.Pointer(&f.words[i][0])), nw*shmem.WordSize)
		f.brks[i] = heapBase
	}
	f.logger.Debugf("%s: %d PEs, %d bytes of heap each", f.id, n, nw*shmem.WordSize)
	return f
}

func (f *Fabric) ID() uuid.UUID {
	return f.id
}

func (f *Fabric) Size() int {
	return f.n
}

func (f *Fabric) Metrics() *monitor.NetMetrics {
	return f.metrics
}

// Heap returns the whole heap of a PE, for inspection outside a Run.
func (f *Fabric) Heap(pe int) []byte {
	return f.heaps[pe]
}

// Run executes fn on every PE concurrently and waits for all of them.
// A PE that fails or panics aborts the PEs blocked in WaitUntil.
func (f *Fabric) Run(fn func(pe *PE) error) error {
	ctx := context.Background()
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < f.n; i++ {
		pe := &PE{f: f, rank: i, ctx: ctx, logger: f.logger.With(fmt.Sprintf("PE %d", i))}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					if r == errAborted {
						err = fmt.Errorf("PE %d: %w: %v", pe.rank, errAborted, context.Cause(ctx))
						return
					}
					err = fmt.Errorf("PE %d: %v", pe.rank, r)
				}
			}()
			return fn(pe)
		})
	}
	return g.Wait()
}

// IsAborted reports whether err comes from a PE unblocked by the failure of
// another PE or by the timeout.
func IsAborted(err error) bool {
	return errors.Is(err, errAborted)
}

func (f *Fabric) word(pe int, addr shmem.SymAddr) *int64 {
	if addr%shmem.WordSize != 0 {
		panic(fmt.Sprintf("misaligned symmetric word %d", addr))
	}
	return (*int64)(unsafe.Pointer(&f.words[pe][int(addr)/shmem.WordSize]))
}

func (f *Fabric) bytes(pe int, addr shmem.SymAddr, n int) []byte {
	return f.heaps[pe][int(addr) : int(addr)+n]
}

// malloc hands out zeroed memory without synchronizing: the arenas exist
// from New and are never reused, so a peer may write to a range before its
// owner has allocated it.
func (f *Fabric) malloc(pe int, nbytes int) shmem.SymAddr {
	addr := f.brks[pe]
	brk := addr + (nbytes+heapAlign-1)/heapAlign*heapAlign
	if brk > len(f.heaps[pe]) {
		panic(fmt.Sprintf("PE %d: symmetric heap exhausted: %d + %d > %d", pe, addr, nbytes, len(f.heaps[pe])))
	}
	f.brks[pe] = brk
	return shmem.SymAddr(addr)
}

func atomicLoad(p *int64) int64 {
	return atomic.LoadInt64(p)
}
