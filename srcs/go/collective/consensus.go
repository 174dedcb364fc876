package collective

import (
	"errors"
	"fmt"

	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/base"
	"github.com/lsds/kungfu-shmem/srcs/go/log"
	"golang.org/x/crypto/blake2b"
)

const digestSize = blake2b.Size256

var errInconsistentBindings = errors.New("inconsistent algorithm bindings")

// BytesConsensus reports whether bs is the same on every PE: the MIN and the
// MAX of each byte must agree. len(bs) must not exceed the digest size and
// must be the same everywhere. It is collective over all PEs.
func (e *Engine) BytesConsensus(bs []byte) bool {
	if len(bs) == 0 {
		return true
	}
	if len(bs) > digestSize {
		panic(fmt.Sprintf("consensus over %d bytes, at most %d", len(bs), digestSize))
	}
	t := e.t
	copy(t.Local(e.check.src, len(bs)), bs)
	lo := e.reduceBytes(base.MIN, len(bs))
	hi := e.reduceBytes(base.MAX, len(bs))
	for i := range lo {
		if lo[i] != hi[i] {
			return false
		}
	}
	return true
}

// reduceBytes always runs dissemination and rec_dbl, so the check itself
// neither depends on nor adds to the bindings it verifies.
func (e *Engine) reduceBytes(op base.OP, n int) []byte {
	o, _ := base.OpFor[uint8](op)
	barrierDissemination(e, &Workspace{Set: e.world, PSync: e.check.pSync.Word(reduceBarrier)})
	reduceRecDbl(e, &Workspace{
		Dst:      e.check.dst,
		Src:      e.check.src,
		Count:    n,
		ElemSize: 1,
		Set:      e.world,
		PSync:    e.check.pSync,
		PWrk:     e.check.pWrk,
	}, o)
	out := make([]byte, n)
	copy(out, e.t.Local(e.check.dst, n))
	return out
}

// CheckBindings fails when PEs have bound different algorithms. All PEs must
// have made the same binding calls before.
func (e *Engine) CheckBindings() error {
	d := e.opts.Registry.Digest()
	if !e.BytesConsensus(d[:]) {
		log.Errorf("%s: bindings %v", e, e.opts.Registry.Bindings())
		return errInconsistentBindings
	}
	return nil
}
