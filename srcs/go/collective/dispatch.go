package collective

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/lsds/kungfu-shmem/srcs/go/collective/registry"
	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/base"
	"github.com/lsds/kungfu-shmem/srcs/go/shmem"
	"github.com/lsds/kungfu-shmem/srcs/go/utils/assert"
)

// typeTag names T in `name:type` selections: the data type of numbers, the
// size in bits of anything else.
func typeTag[T any]() string {
	if dt, ok := base.LookupType(reflect.TypeFor[T]()); ok {
		return dt.String()
	}
	return strconv.Itoa(8 * shmem.SizeOf[T]())
}

func unknown(op registry.Operation, algo string) error {
	return fmt.Errorf("%w: %s %q", registry.ErrUnknownAlgorithm, op, algo)
}

// dispatch runs the algorithm bound to (op, typ).
func dispatch(e *Engine, op registry.Operation, typ string, table registry.Table[Func], fallback string, w *Workspace) {
	e.prepare(op, w)
	a := registry.MustBind(e.opts.Registry, op, typ, table, fallback)
	e.run(op, a.Name, func() { a.Fn(e, w) })
}

// runWith runs the named algorithm, bypassing the registry.
func runWith(e *Engine, op registry.Operation, table registry.Table[Func], algo string, w *Workspace) error {
	a, ok := table.Lookup(algo)
	if !ok {
		return unknown(op, algo)
	}
	e.prepare(op, w)
	e.run(op, a.Name, func() { a.Fn(e, w) })
	return nil
}

// prepare checks the arguments of op.
func (e *Engine) prepare(op registry.Operation, w *Workspace) {
	e.validate(w)
	n, nb := w.Set.Size, w.Bytes()
	switch op {
	case registry.Broadcast:
		assert.Truef(0 <= w.Root && w.Root < n, "root %d is not an index of %s", w.Root, w.Set)
		if w.Dst != w.Src {
			disjoint(w.Dst, nb, w.Src, nb)
		}
	case registry.Collect:
		assert.Truef(n == 1 || nb == 0 || w.Dst != w.Src, "collect cannot run in place")
	case registry.FCollect:
		disjoint(w.Dst, n*nb, w.Src, nb)
	case registry.AllToAll:
		disjoint(w.Dst, n*nb, w.Src, n*nb)
	case registry.AllToAlls:
		assert.Truef(w.DstStride >= 1 && w.SrcStride >= 1, "invalid strides %d, %d", w.DstStride, w.SrcStride)
		disjoint(w.Dst, n*nb*w.DstStride, w.Src, n*nb*w.SrcStride)
	case registry.Reduce:
		assert.Truef(!w.PWrk.IsNil(), "pWrk is not set")
		if w.Dst != w.Src {
			disjoint(w.Dst, nb, w.Src, nb)
		}
		disjoint(w.PWrk, ReduceWrkSize(w.Count)*w.ElemSize, w.Dst, nb)
		disjoint(w.PWrk, ReduceWrkSize(w.Count)*w.ElemSize, w.Src, nb)
	}
}
