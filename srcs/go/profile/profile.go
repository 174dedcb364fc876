// Package profile aggregates the durations of named scopes, such as the
// collective calls of one PE, and prints them as a table.
package profile

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/unixpickle/essentials"
)

var now = time.Now

type stat struct {
	count int64
	min   time.Duration
	max   time.Duration
	total time.Duration
}

func (s *stat) add(d time.Duration) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.total += d
}

func (s stat) mean() time.Duration {
	if s.count == 0 {
		return 0
	}
	return s.total / time.Duration(s.count)
}

// Profiler is safe for concurrent use, so the PEs of a fabric can share one.
type Profiler struct {
	mu    sync.Mutex
	stats map[string]*stat
}

func New() *Profiler {
	return &Profiler{stats: make(map[string]*stat)}
}

type Scope struct {
	name  string
	begin time.Time
	p     *Profiler
}

// Profile starts a scope, typically `defer p.Profile(name).Done()`.
func (p *Profiler) Profile(name string) *Scope {
	return &Scope{name: name, begin: now(), p: p}
}

func (s *Scope) Done() {
	s.p.Add(s.name, now().Sub(s.begin))
}

func (p *Profiler) Add(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[name]
	if !ok {
		s = &stat{}
		p.stats[name] = s
	}
	s.add(d)
}

// Count returns how many scopes named name are done.
func (p *Profiler) Count(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.stats[name]; ok {
		return s.count
	}
	return 0
}

// WriteSummary prints one row per name, the largest total first.
func (p *Profiler) WriteSummary(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.stats))
	for name := range p.stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := p.stats[names[i]], p.stats[names[j]]
		if a.total != b.total {
			return a.total > b.total
		}
		return names[i] < names[j]
	})
	tw := tabwriter.NewWriter(w, 0, 4, 4, ' ', 0)
	fmt.Fprintf(tw, "count\tmean\tmin\tmax\ttotal\tscope\n")
	for _, name := range names {
		s := p.stats[name]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", s.count, s.mean(), s.min, s.max, s.total, name)
	}
	essentials.Must(tw.Flush())
}
