package plan

// EdgeColor returns the peer of me in round r of a 1-factorization of the
// complete graph on n vertices, 0 <= r < Rounds(n). For odd n a dummy vertex
// n is added; EdgeColor returns -1 when me is paired with it (idle round).
//
// Vertex m-1 (m = n rounded up to even) pairs with r, vertex r pairs with
// m-1, and every other vertex i pairs with (2r - i) mod (m-1).
func EdgeColor(r, me, n int) int {
	m := n + n%2
	var peer int
	switch {
	case me == m-1:
		peer = r
	case me == r:
		peer = m - 1
	default:
		peer = ((2*r-me)%(m-1) + (m - 1)) % (m - 1)
	}
	if peer >= n {
		return -1
	}
	return peer
}

// EdgeColorRounds is the number of rounds of EdgeColor for n vertices.
func EdgeColorRounds(n int) int {
	if n <= 1 {
		return 0
	}
	return n + n%2 - 1
}
