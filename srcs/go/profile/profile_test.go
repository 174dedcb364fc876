package profile

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Profiler(t *testing.T) {
	p := New()
	p.Add(`reduce/rec_dbl`, 3*time.Millisecond)
	p.Add(`reduce/rec_dbl`, 1*time.Millisecond)
	p.Add(`barrier/linear`, 10*time.Millisecond)
	assert.Equal(t, int64(2), p.Count(`reduce/rec_dbl`))
	assert.Equal(t, int64(0), p.Count(`sync/linear`))

	var buf bytes.Buffer
	p.WriteSummary(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[1], `barrier/linear`), lines[1])
	assert.Equal(t, []string{`2`, `2ms`, `1ms`, `3ms`, `4ms`, `reduce/rec_dbl`}, strings.Fields(lines[2]))
}

func Test_Scope(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.Profile(`broadcast`).Done()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8), p.Count(`broadcast`))
}
