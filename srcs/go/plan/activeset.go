package plan

import "fmt"

// ActiveSet is the legacy (PE_start, logPE_stride, PE_size) triple: the PEs
// Start, Start+2^LogStride, ..., Start+(Size-1)*2^LogStride.
type ActiveSet struct {
	Start     int
	LogStride int
	Size      int
}

// World is the active set of all n PEs.
func World(n int) ActiveSet {
	return ActiveSet{Start: 0, LogStride: 0, Size: n}
}

func (s ActiveSet) Stride() int {
	return 1 << uint(s.LogStride)
}

// PE translates an index in the set into a world rank.
func (s ActiveSet) PE(i int) int {
	return s.Start + i<<uint(s.LogStride)
}

// Index translates a world rank into its index in the set.
func (s ActiveSet) Index(pe int) (int, bool) {
	d := pe - s.Start
	if d < 0 || d&(s.Stride()-1) != 0 {
		return -1, false
	}
	i := d >> uint(s.LogStride)
	if i >= s.Size {
		return -1, false
	}
	return i, true
}

// Validate checks the set against a world of npes PEs.
func (s ActiveSet) Validate(npes int) error {
	if s.Size < 1 {
		return fmt.Errorf("invalid active set %s: size < 1", s)
	}
	if s.Start < 0 || s.LogStride < 0 || s.LogStride > 30 {
		return fmt.Errorf("invalid active set %s", s)
	}
	if last := s.PE(s.Size - 1); last >= npes {
		return fmt.Errorf("invalid active set %s: PE %d out of %d", s, last, npes)
	}
	return nil
}

func (s ActiveSet) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s.Start, s.LogStride, s.Size)
}
