package plan

import "math/bits"

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// FloorPowerOfTwo returns the largest power of two <= n, n >= 1.
func FloorPowerOfTwo(n int) int {
	return 1 << uint(bits.Len(uint(n))-1)
}

// CeilLog2 returns the number of doubling rounds to cover n, n >= 1.
func CeilLog2(n int) int {
	return bits.Len(uint(n - 1))
}

// Log2 returns log2(n) for a power of two n.
func Log2(n int) int {
	return bits.TrailingZeros(uint(n))
}

// BitReverse reverses the lowest k bits of i.
func BitReverse(i, k int) int {
	if k == 0 {
		return 0
	}
	return int(bits.Reverse(uint(i)) >> uint(bits.UintSize-k))
}
