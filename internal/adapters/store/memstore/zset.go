package memstore

import "math/rand/v2"

// sortedSet is a treap keyed by (score, member). In-order traversal yields
// ascending score with ties ordered by member, which is how Redis orders a
// sorted set. Reverse traversal yields the ZREVRANGE order.
type sortedSet struct {
	root   *node
	scores map[string]float64
}

type node struct {
	member string
	score  float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func newSortedSet() *sortedSet {
	return &sortedSet{scores: make(map[string]float64)}
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aMember) sorts before (bScore, bMember).
func less(aScore float64, aMember string, bScore float64, bMember string) bool {
	if aScore != bScore {
		return aScore < bScore
	}
	return aMember < bMember
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, member string, score float64) *node {
	if n == nil {
		return &node{member: member, score: score, prio: rand.Uint64(), size: 1}
	}
	if less(score, member, n.score, n.member) {
		n.left = insert(n.left, member, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, member, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, member string, score float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && member == n.member:
		// Rotate the higher priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, member, score)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, member, score)
		}
	case less(score, member, n.score, n.member):
		n.left = remove(n.left, member, score)
	default:
		n.right = remove(n.right, member, score)
	}
	fix(n)
	return n
}

// add upserts member at score. It returns 1 when the member is new.
func (z *sortedSet) add(member string, score float64) int64 {
	old, ok := z.scores[member]
	if ok {
		if old == score {
			return 0
		}
		z.root = remove(z.root, member, old)
	}
	z.scores[member] = score
	z.root = insert(z.root, member, score)
	if ok {
		return 0
	}
	return 1
}

// rem removes member. It returns 1 when the member existed.
func (z *sortedSet) rem(member string) int64 {
	old, ok := z.scores[member]
	if !ok {
		return 0
	}
	delete(z.scores, member)
	z.root = remove(z.root, member, old)
	return 1
}

func (z *sortedSet) len() int { return nsize(z.root) }

// rangeByScore collects members with min <= score <= max, skipping offset
// matches and stopping after count (count <= 0 means no limit).
func (z *sortedSet) rangeByScore(min, max float64, offset, count int64, descending bool) []string {
	w := &walker{min: min, max: max, skip: offset, limit: count}
	if descending {
		w.desc(z.root)
	} else {
		w.asc(z.root)
	}
	return w.out
}

type walker struct {
	min, max float64
	skip     int64
	limit    int64
	out      []string
}

func (w *walker) full() bool {
	return w.limit > 0 && int64(len(w.out)) >= w.limit
}

func (w *walker) visit(n *node) {
	if n.score < w.min || n.score > w.max || w.full() {
		return
	}
	if w.skip > 0 {
		w.skip--
		return
	}
	w.out = append(w.out, n.member)
}

func (w *walker) asc(n *node) {
	if n == nil || w.full() {
		return
	}
	if n.score >= w.min {
		w.asc(n.left)
	}
	w.visit(n)
	if n.score <= w.max {
		w.asc(n.right)
	}
}

func (w *walker) desc(n *node) {
	if n == nil || w.full() {
		return
	}
	if n.score <= w.max {
		w.desc(n.right)
	}
	w.visit(n)
	if n.score >= w.min {
		w.desc(n.left)
	}
}
