package fabric

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lsds/kungfu-shmem/srcs/go/log"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/utils"
)

// PE is the view of the fabric from one PE. It is not safe for concurrent
// use: a PE is a single thread of execution.
type PE struct {
	f       *Fabric
	rank    int
	ctx     context.Context
	logger  *log.Logger
	pending []func()
}

var (
	_ shmem.Transport = (*PE)(nil)
	_ shmem.Allocator = (*PE)(nil)
)

func (p *PE) MyPE() int {
	return p.rank
}

func (p *PE) NPEs() int {
	return p.f.n
}

func (p *PE) Malloc(nbytes int) shmem.SymAddr {
	return p.f.malloc(p.rank, nbytes)
}

func (p *PE) Local(addr shmem.SymAddr, n int) []byte {
	return p.f.bytes(p.rank, addr, n)
}

func (p *PE) Put(dst shmem.SymAddr, src []byte, pe int) {
	copy(p.f.bytes(pe, dst, len(src)), src)
	p.f.metrics.Egress(p.rank, len(src))
}

func (p *PE) Get(dst []byte, src shmem.SymAddr, pe int) {
	copy(dst, p.f.bytes(pe, src, len(dst)))
	p.f.metrics.Ingress(p.rank, len(dst))
}

// PutNBI is delivered at the next Fence or Quiet; src must stay unchanged
// until then.
func (p *PE) PutNBI(dst shmem.SymAddr, src []byte, pe int) {
	p.pending = append(p.pending, func() { p.Put(dst, src, pe) })
}

func (p *PE) GetNBI(dst []byte, src shmem.SymAddr, pe int) {
	p.pending = append(p.pending, func() { p.Get(dst, src, pe) })
}

func (p *PE) IPut(dst shmem.SymAddr, src []byte, dstStride, srcStride, elemSize, nelems, pe int) {
	for i := 0; i < nelems; i++ {
		s := src[i*srcStride*elemSize : i*srcStride*elemSize+elemSize]
		copy(p.f.bytes(pe, dst.Add(i*dstStride*elemSize), elemSize), s)
	}
	p.f.metrics.Egress(p.rank, nelems*elemSize)
}

func (p *PE) PutSignal(dst shmem.SymAddr, src []byte, sig shmem.SymAddr, value int64, op shmem.SignalOp, pe int) {
	p.Put(dst, src, pe)
	switch op {
	case shmem.SignalSet:
		p.AtomicSet(sig, value, pe)
	case shmem.SignalAdd:
		p.AtomicAdd(sig, value, pe)
	default:
		panic(fmt.Sprintf("invalid signal op %d", int(op)))
	}
}

func (p *PE) AtomicAdd(dst shmem.SymAddr, value int64, pe int) {
	atomic.AddInt64(p.f.word(pe, dst), value)
	p.f.metrics.Atomic(p.rank)
}

func (p *PE) AtomicInc(dst shmem.SymAddr, pe int) {
	p.AtomicAdd(dst, 1, pe)
}

func (p *PE) AtomicFetch(src shmem.SymAddr, pe int) int64 {
	p.f.metrics.Atomic(p.rank)
	return atomic.LoadInt64(p.f.word(pe, src))
}

func (p *PE) AtomicSet(dst shmem.SymAddr, value int64, pe int) {
	atomic.StoreInt64(p.f.word(pe, dst), value)
	p.f.metrics.Atomic(p.rank)
}

func (p *PE) AtomicSwap(dst shmem.SymAddr, value int64, pe int) int64 {
	p.f.metrics.Atomic(p.rank)
	return atomic.SwapInt64(p.f.word(pe, dst), value)
}

func (p *PE) AtomicCompareSwap(dst shmem.SymAddr, cond, value int64, pe int) int64 {
	w := p.f.word(pe, dst)
	p.f.metrics.Atomic(p.rank)
	for {
		old := atomic.LoadInt64(w)
		if old != cond {
			return old
		}
		if atomic.CompareAndSwapInt64(w, cond, value) {
			return old
		}
	}
}

func (p *PE) WaitUntil(ivar shmem.SymAddr, cmp shmem.Cmp, value int64) int64 {
	w := p.f.word(p.rank, ivar)
	if x := atomicLoad(w); cmp.Eval(x, value) {
		return x
	}
	var sd *utils.StallDetector
	if p.f.opts.StallDetection {
		sd = utils.InstallStallDetector(fmt.Sprintf("wait_until(%d %s %d)", ivar, cmp, value), p.f.opts.StallPeriod, p.logger.Warnf)
		defer sd.Stop()
	}
	for attempt := 0; ; attempt++ {
		if x := atomicLoad(w); cmp.Eval(x, value) {
			return x
		}
		if p.ctx.Err() != nil {
			panic(errAborted)
		}
		p.f.opts.Backoff.Pause(attempt)
	}
}

func (p *PE) Test(ivar shmem.SymAddr, cmp shmem.Cmp, value int64) bool {
	return cmp.Eval(atomicLoad(p.f.word(p.rank, ivar)), value)
}

func (p *PE) Fence() {
	p.drain()
}

func (p *PE) Quiet() {
	p.drain()
}

func (p *PE) drain() {
	for _, op := range p.pending {
		op()
	}
	p.pending = p.pending[:0]
}
