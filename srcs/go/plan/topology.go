package plan

// TreeNode is the position of an index in a rooted tree over [0, size).
// Parent is -1 at the root.
type TreeNode struct {
	Parent   int
	Children []int
}

func (n TreeNode) IsRoot() bool {
	return n.Parent < 0
}

// CompleteTree places index i under (i-1)/degree, children are
// degree*i+1 ... degree*i+degree. Children are appended to buf.
func CompleteTree(size, degree, i int, buf []int) TreeNode {
	n := TreeNode{Parent: -1, Children: buf[:0]}
	if i > 0 {
		n.Parent = (i - 1) / degree
	}
	for j := degree*i + 1; j <= degree*i+degree && j < size; j++ {
		n.Children = append(n.Children, j)
	}
	return n
}

// BinomialTree is KnomialTree with radix 2: the parent of i clears the lowest
// set bit of i.
func BinomialTree(size, i int, buf []int) TreeNode {
	return KnomialTree(size, 2, i, buf)
}

// KnomialTree writes i in base radix. The parent clears the lowest non-zero
// digit; children add j*radix^l for every position l below that digit and
// 1 <= j < radix. Children are ordered from the largest subtree down.
func KnomialTree(size, radix, i int, buf []int) TreeNode {
	n := TreeNode{Parent: -1, Children: buf[:0]}
	// lowest non-zero digit of i
	mask := 1
	for mask < size && (i/mask)%radix == 0 {
		mask *= radix
	}
	if i > 0 {
		n.Parent = i - ((i/mask)%radix)*mask
	}
	for m := mask / radix; m >= 1; m /= radix {
		for j := radix - 1; j >= 1; j-- {
			if c := i + j*m; c < size {
				n.Children = append(n.Children, c)
			}
		}
	}
	return n
}

// TreeKind names a tree shape used by the tree based collectives.
type TreeKind int

const (
	Complete TreeKind = iota
	Binomial
	Knomial
)

var treeKindNames = map[TreeKind]string{
	Complete: `complete`,
	Binomial: `binomial`,
	Knomial:  `knomial`,
}

func (k TreeKind) String() string {
	return treeKindNames[k]
}

func ParseTreeKind(s string) (TreeKind, bool) {
	for k, v := range treeKindNames {
		if s == v {
			return k, true
		}
	}
	return 0, false
}

// Tree dispatches on kind; arity is the degree of a complete tree or the
// radix of a k-nomial tree and is ignored for binomial trees.
func Tree(kind TreeKind, size, arity, i int, buf []int) TreeNode {
	switch kind {
	case Complete:
		return CompleteTree(size, arity, i, buf)
	case Knomial:
		return KnomialTree(size, arity, i, buf)
	default:
		return BinomialTree(size, i, buf)
	}
}

// MaxChildren bounds the number of children of any node, for sizing buf.
func MaxChildren(kind TreeKind, size, arity int) int {
	switch kind {
	case Complete:
		return arity
	case Knomial:
		var levels int
		for m := 1; m < size; m *= arity {
			levels++
		}
		return levels * (arity - 1)
	default:
		return CeilLog2(size)
	}
}

// Relative maps index i into a tree rooted at root, and back with Absolute.
func Relative(i, root, size int) int {
	return (i - root + size) % size
}

func Absolute(r, root, size int) int {
	return (r + root) % size
}
