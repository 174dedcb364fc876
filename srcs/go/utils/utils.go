package utils

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// WriteEnvs prints the variables among keys that getenv resolves, sorted.
func WriteEnvs(w io.Writer, getenv func(string) string, keys []string, tag string) {
	var kvs []string
	for _, k := range keys {
		if v := getenv(k); len(v) > 0 {
			kvs = append(kvs, k+"="+v)
		}
	}
	sort.Strings(kvs)
	for _, kv := range kvs {
		fmt.Fprintf(w, "[%s]: %s\n", tag, kv)
	}
}

func Measure(f func() error) (time.Duration, error) {
	t0 := time.Now()
	err := f()
	return time.Since(t0), err
}

// Rate is n per second.
func Rate(n int64, d time.Duration) float64 {
	return float64(n) / d.Seconds()
}

var rateUnits = []struct {
	size float64
	name string
}{
	{1 << 30, `GiB/s`},
	{1 << 20, `MiB/s`},
	{1 << 10, `KiB/s`},
}

func ShowRate(r float64) string {
	for _, u := range rateUnits {
		if r > u.size {
			return fmt.Sprintf("%.2f %s", r/u.size, u.name)
		}
	}
	return fmt.Sprintf("%.2f B/s", r)
}
