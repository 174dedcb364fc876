package monitor

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type accumulator struct {
	name  string
	value int64
	c     prometheus.Counter
}

func newAccumulator(name string, c prometheus.Counter) *accumulator {
	return &accumulator{
		name: name,
		c:    c,
	}
}

func (a *accumulator) Add(n int64) int64 {
	a.c.Add(float64(n))
	return atomic.AddInt64(&a.value, n)
}

func (a *accumulator) Get() int64 {
	return atomic.LoadInt64(&a.value)
}

func (a *accumulator) WriteTo(w io.Writer) {
	val := atomic.LoadInt64(&a.value)
	fmt.Fprintf(w, "%s %d\n", a.name, val)
}

// accumulatorGroup keeps one accumulator per PE, each mirrored by a child of
// a prometheus counter vector labelled with the PE.
type accumulatorGroup struct {
	sync.Mutex

	prefix       string
	vec          *prometheus.CounterVec
	accumulators map[int]*accumulator
}

func newAccumulatorGroup(prefix string, vec *prometheus.CounterVec) *accumulatorGroup {
	return &accumulatorGroup{
		prefix:       prefix,
		vec:          vec,
		accumulators: make(map[int]*accumulator),
	}
}

func (g *accumulatorGroup) getOrCreate(pe int) *accumulator {
	g.Lock()
	defer g.Unlock()
	if a, ok := g.accumulators[pe]; ok {
		return a
	}
	label := strconv.Itoa(pe)
	a := newAccumulator(fmt.Sprintf(`%s{pe="%s"}`, g.prefix, label), g.vec.WithLabelValues(label))
	g.accumulators[pe] = a
	return a
}

func (g *accumulatorGroup) get(pe int) int64 {
	g.Lock()
	defer g.Unlock()
	if a, ok := g.accumulators[pe]; ok {
		return a.Get()
	}
	return 0
}

func (g *accumulatorGroup) total() int64 {
	g.Lock()
	defer g.Unlock()
	var n int64
	for _, a := range g.accumulators {
		n += a.Get()
	}
	return n
}

func (g *accumulatorGroup) WriteTo(w io.Writer) {
	g.Lock()
	defer g.Unlock()
	var pes []int
	for pe := range g.accumulators {
		pes = append(pes, pe)
	}
	sort.Ints(pes)
	for _, pe := range pes {
		g.accumulators[pe].WriteTo(w)
	}
}
