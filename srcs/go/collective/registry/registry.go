// Package registry binds, per collective operation and element type, the
// algorithm selected by the environment. A binding is made on first use and
// never changes afterwards.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/config"
	"github.com/lsds/kungfu-shmem/srcs/go/log"
	"golang.org/x/crypto/blake2b"
)

type Operation int

const (
	Barrier Operation = iota
	Sync
	Broadcast
	Collect
	FCollect
	AllToAll
	AllToAlls
	Reduce
)

var Operations = []Operation{Barrier, Sync, Broadcast, Collect, FCollect, AllToAll, AllToAlls, Reduce}

var opNames = map[Operation]string{
	Barrier:   `barrier`,
	Sync:      `sync`,
	Broadcast: `broadcast`,
	Collect:   `collect`,
	FCollect:  `fcollect`,
	AllToAll:  `alltoall`,
	AllToAlls: `alltoalls`,
	Reduce:    `reduce`,
}

var opEnvKeys = map[Operation]string{
	Barrier:   config.BarrierAlgoEnvKey,
	Sync:      config.SyncAlgoEnvKey,
	Broadcast: config.BroadcastAlgoEnvKey,
	Collect:   config.CollectAlgoEnvKey,
	FCollect:  config.FCollectAlgoEnvKey,
	AllToAll:  config.AllToAllAlgoEnvKey,
	AllToAlls: config.AllToAllsAlgoEnvKey,
	Reduce:    config.ReduceAlgoEnvKey,
}

func (o Operation) String() string {
	return opNames[o]
}

// EnvKey is the variable that selects the algorithm of o.
func (o Operation) EnvKey() string {
	return opEnvKeys[o]
}

func ParseOperation(s string) (Operation, error) {
	for k, v := range opNames {
		if s == v {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid operation %q", s)
}

var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrInvalidSelection = errors.New("invalid algorithm selection")
)

// Algorithm is one named implementation of an operation.
type Algorithm[F any] struct {
	Name string
	Fn   F
}

// Table lists the implementations of one operation.
type Table[F any] []Algorithm[F]

// Lookup scans t for name. A `_size` suffix is ignored, so the sized
// variants of an algorithm resolve to the same entry.
func (t Table[F]) Lookup(name string) (Algorithm[F], bool) {
	name = strings.TrimSuffix(name, `_size`)
	for _, a := range t {
		if a.Name == name {
			return a, true
		}
	}
	return Algorithm[F]{}, false
}

func (t Table[F]) Names() []string {
	names := make([]string, 0, len(t))
	for _, a := range t {
		names = append(names, a.Name)
	}
	return names
}

// Selection is the parsed value of an <OP>_ALGO variable:
// `name` or `name,name:type,...`.
type Selection struct {
	Default string
	PerType map[string]string
}

func ParseSelection(s string) (*Selection, error) {
	sel := &Selection{PerType: make(map[string]string)}
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return sel, nil
	}
	for _, part := range strings.Split(s, `,`) {
		part = strings.TrimSpace(part)
		name, typ, typed := strings.Cut(part, `:`)
		if len(name) == 0 || (typed && len(typ) == 0) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, s)
		}
		if !typed {
			if len(sel.Default) > 0 {
				return nil, fmt.Errorf("%w: %q: more than one default", ErrInvalidSelection, s)
			}
			sel.Default = name
			continue
		}
		if _, ok := sel.PerType[typ]; ok {
			return nil, fmt.Errorf("%w: %q: duplicated type %s", ErrInvalidSelection, s, typ)
		}
		sel.PerType[typ] = name
	}
	return sel, nil
}

// For returns the name selected for typ, or "" when nothing is selected.
func (s *Selection) For(typ string) string {
	if name, ok := s.PerType[typ]; ok {
		return name
	}
	return s.Default
}

type key struct {
	op  Operation
	typ string
}

// Binding records one resolved (operation, type) pair.
type Binding struct {
	Op   Operation
	Type string
	Name string
}

func (b Binding) String() string {
	if len(b.Type) == 0 {
		return fmt.Sprintf("%s=%s", b.Op, b.Name)
	}
	return fmt.Sprintf("%s:%s=%s", b.Op, b.Type, b.Name)
}

type Registry struct {
	getenv func(string) string

	mu         sync.Mutex
	selections map[Operation]*Selection
	bound      sync.Map // key -> bound
}

type bound struct {
	name string
	algo any
}

// Default is the registry of the process, reading the process environment.
var Default = New(os.Getenv)

func New(getenv func(string) string) *Registry {
	return &Registry{
		getenv:     getenv,
		selections: make(map[Operation]*Selection),
	}
}

func (r *Registry) selection(op Operation) (*Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sel, ok := r.selections[op]; ok {
		return sel, nil
	}
	sel, err := ParseSelection(r.getenv(op.EnvKey()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.EnvKey(), err)
	}
	r.selections[op] = sel
	return sel, nil
}

// Bind resolves the algorithm of (op, typ) from table. The first successful
// call fixes the binding for the lifetime of r.
func Bind[F any](r *Registry, op Operation, typ string, table Table[F], fallback string) (Algorithm[F], error) {
	k := key{op: op, typ: typ}
	if b, ok := r.bound.Load(k); ok {
		return b.(bound).algo.(Algorithm[F]), nil
	}
	sel, err := r.selection(op)
	if err != nil {
		return Algorithm[F]{}, err
	}
	name := sel.For(typ)
	if len(name) == 0 {
		name = fallback
	}
	a, ok := table.Lookup(name)
	if !ok {
		return Algorithm[F]{}, fmt.Errorf("%w: %s %q, expect one of %s", ErrUnknownAlgorithm, op, name, strings.Join(table.Names(), `, `))
	}
	b, loaded := r.bound.LoadOrStore(k, bound{name: a.Name, algo: a})
	if !loaded {
		log.Debugf("bound %s", Binding{Op: op, Type: typ, Name: a.Name})
	}
	return b.(bound).algo.(Algorithm[F]), nil
}

// MustBind is Bind for dispatch paths: a configuration error is fatal,
// no PE may run a collective under a selection the others reject.
func MustBind[F any](r *Registry, op Operation, typ string, table Table[F], fallback string) Algorithm[F] {
	a, err := Bind(r, op, typ, table, fallback)
	if err != nil {
		log.Exitf("%v", err)
	}
	return a
}

// Bindings returns every binding made so far, sorted.
func (r *Registry) Bindings() []Binding {
	var bs []Binding
	r.bound.Range(func(k, v any) bool {
		bs = append(bs, Binding{Op: k.(key).op, Type: k.(key).typ, Name: v.(bound).name})
		return true
	})
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Op != bs[j].Op {
			return bs[i].Op < bs[j].Op
		}
		return bs[i].Type < bs[j].Type
	})
	return bs
}

// Digest summarizes Bindings, PEs agree on their bindings iff their digests
// are equal.
func (r *Registry) Digest() [blake2b.Size256]byte {
	var sb strings.Builder
	for _, b := range r.Bindings() {
		sb.WriteString(b.String())
		sb.WriteByte('\n')
	}
	return blake2b.Sum256([]byte(sb.String()))
}
