package repository

import (
	"math/rand/v2"

	"github.com/okian/findna/internal/domain/model"
)

// The ranking index is a treap ordered by discipline score DESC, then
// session id ASC, so an in-order walk yields the best profile first.

type node struct {
	id    string
	score float64
	prio  uint64
	left  *node
	right *node
	size  int
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

// less reports whether (aScore, aID) ranks before (bScore, bID).
func less(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
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

func insert(n *node, id string, score float64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: rand.Uint64(), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTop appends up to limit entries, best first.
func collectTop(n *node, limit int, byID map[string]model.FinancialProfile, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, byID, out)
	if len(*out) < limit {
		if p, ok := byID[n.id]; ok {
			*out = append(*out, entryOf(&p))
		}
	}
	collectTop(n.right, limit, byID, out)
}

// collectRange appends entries with lo <= score <= hi, best first. Left
// subtrees hold scores >= the node's, right subtrees scores <= it.
func collectRange(n *node, lo, hi float64, byID map[string]model.FinancialProfile, out *[]Entry) {
	if n == nil {
		return
	}
	if n.score <= hi {
		collectRange(n.left, lo, hi, byID, out)
	}
	if n.score >= lo && n.score <= hi {
		if p, ok := byID[n.id]; ok {
			*out = append(*out, entryOf(&p))
		}
	}
	if n.score >= lo {
		collectRange(n.right, lo, hi, byID, out)
	}
}

// collectBottom appends up to limit entries scoring below threshold, worst
// first.
func collectBottom(n *node, limit int, threshold float64, byID map[string]model.FinancialProfile, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectBottom(n.right, limit, threshold, byID, out)
	if len(*out) >= limit || n.score >= threshold {
		return
	}
	if p, ok := byID[n.id]; ok {
		*out = append(*out, entryOf(&p))
	}
	collectBottom(n.left, limit, threshold, byID, out)
}
