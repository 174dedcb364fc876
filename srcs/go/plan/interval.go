package plan

// Interval represents the interval of integers [Begin, End)
type Interval struct {
	Begin int
	End   int
}

func (i Interval) Len() int { return i.End - i.Begin }

// Scale maps an interval of elements to the interval of their bytes.
func (i Interval) Scale(size int) Interval {
	return Interval{Begin: i.Begin * size, End: i.End * size}
}

// Union is the smallest interval covering i and j.
func (i Interval) Union(j Interval) Interval {
	return Interval{Begin: min(i.Begin, j.Begin), End: max(i.End, j.End)}
}

// EvenPartition parts an Interval into k parts such that the length of each part differ at most 1
func EvenPartition(r Interval, k int) []Interval {
	quo, rem := divide(r.Len(), k)
	parts := make([]Interval, 0, k)
	offset := r.Begin
	for i := 0; i < k; i++ {
		blockCount := quo
		if i < rem {
			blockCount++
		}
		parts = append(parts, Interval{Begin: offset, End: offset + blockCount})
		offset += blockCount
	}
	return parts
}

// Prefix turns block lengths into k+1 offsets: block i is [offs[i], offs[i+1]).
func Prefix(lens []int) []int {
	offs := make([]int, len(lens)+1)
	for i, n := range lens {
		offs[i+1] = offs[i] + n
	}
	return offs
}

// Uniform is Prefix of k blocks of n.
func Uniform(k, n int) []int {
	offs := make([]int, k+1)
	for i := range offs {
		offs[i] = i * n
	}
	return offs
}

func divide(a, b int) (int, int) {
	q := a / b
	r := a - b*q
	return q, r
}
