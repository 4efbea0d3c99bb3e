package doctree

import "iter"

// Walk yields n and every descendant in depth-first pre-order. The sequence
// can be ranged over any number of times.
func Walk(n *Node) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		walk(n, 0, func(_ int, d *Node) bool { return yield(d) })
	}
}

// WalkDepth is Walk with the nesting depth of each node, the root being 0.
func WalkDepth(n *Node) iter.Seq2[int, *Node] {
	return func(yield func(int, *Node) bool) {
		walk(n, 0, yield)
	}
}

func walk(n *Node, depth int, yield func(int, *Node) bool) bool {
	if n == nil {
		return true
	}
	if !yield(depth, n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, depth+1, yield) {
			return false
		}
	}
	return true
}
