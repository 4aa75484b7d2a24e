// Package merkle implements the append/remove-capable binary Merkle index
// over active lock IDs that the commitment engine publishes as the state
// root.
//
// Grounded on certenIO-certen-validator/pkg/merkle/tree.go's level-array
// construction and proof-walking shape, adapted from an immutable
// sha256-keyed BuildTree to a mutable keccak256 index supporting
// insertion-order AddLeaf/RemoveLeaf, and from a sha256(left||right)
// combiner to a sort-then-concat combiner.
package merkle

import (
	"bytes"
	"sync"

	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
)

// Hash is a 32-byte digest, matching ccmtype.Hash without importing it —
// this package has no notion of locks, only of leaves.
type Hash = [32]byte

// Index is a mutable Merkle tree over an ordered set of 32-byte leaves.
type Index struct {
	mu     sync.RWMutex
	leaves []Hash
}

// NewIndex creates an empty Merkle index. Its root is 32 zero bytes.
func NewIndex() *Index {
	return &Index{}
}

// AddLeaf appends a leaf to the index.
func (idx *Index) AddLeaf(leaf Hash) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.leaves = append(idx.leaves, leaf)
}

// RemoveLeaf removes the first occurrence of leaf, shifting subsequent
// leaves down. Returns false if leaf is not present.
func (idx *Index) RemoveLeaf(leaf Hash) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, l := range idx.leaves {
		if l == leaf {
			idx.leaves = append(idx.leaves[:i], idx.leaves[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the current leaf count.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.leaves)
}

// Leaves returns a copy of the current leaf set in insertion order.
func (idx *Index) Leaves() []Hash {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Hash, len(idx.leaves))
	copy(out, idx.leaves)
	return out
}

// GetRoot returns the current Merkle root, rebuilt from scratch over the
// ordered leaf set. An empty index's root is 32 zero bytes.
func (idx *Index) GetRoot() Hash {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return rootOf(idx.leaves)
}

// GetProof returns the sibling path from the leaf at index to the root, in
// bottom-up order.
func (idx *Index) GetProof(index int) ([]Hash, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if index < 0 || index >= len(idx.leaves) {
		return nil, errOutOfRange
	}
	level := append([]Hash(nil), idx.leaves...)
	proof := make([]Hash, 0)
	i := index
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for j := 0; j < len(level); j += 2 {
			left := level[j]
			right := left
			if j+1 < len(level) {
				right = level[j+1]
			}
			if j == i || j+1 == i {
				if j == i {
					proof = append(proof, right)
				} else {
					proof = append(proof, left)
				}
			}
			next = append(next, combine(left, right))
		}
		i = i / 2
		level = next
	}
	return proof, nil
}

var errOutOfRange = indexError("merkle: leaf index out of range")

type indexError string

func (e indexError) Error() string { return string(e) }

// VerifyProof reports whether leaf, combined bottom-up with the siblings in
// proof, reproduces root. Static: does not require the full tree.
func VerifyProof(leaf Hash, proof []Hash, root Hash) bool {
	cur := leaf
	for _, sib := range proof {
		cur = combine(cur, sib)
	}
	return cur == root
}

// rootOf rebuilds a root from scratch over an ordered leaf slice. Odd rows
// duplicate the last leaf to its sibling.
func rootOf(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return Hash{}
	}
	level := append([]Hash(nil), leaves...)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, combine(left, right))
		}
		level = next
	}
	return level[0]
}

// combine implements the sort-then-concat node combiner:
// parent = keccak(min(a,b) || max(a,b)).
func combine(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return cryptoprim.Keccak256(a[:], b[:])
	}
	return cryptoprim.Keccak256(b[:], a[:])
}
