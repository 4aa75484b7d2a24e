package merkle

import (
	"testing"

	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
)

func leafOf(s string) Hash {
	return cryptoprim.Keccak256([]byte(s))
}

func TestEmptyRootIsZero(t *testing.T) {
	idx := NewIndex()
	if idx.GetRoot() != (Hash{}) {
		t.Fatal("empty index root must be 32 zero bytes")
	}
}

func TestRootMatchesFromScratchRebuild(t *testing.T) {
	idx := NewIndex()
	leaves := []Hash{leafOf("a"), leafOf("b"), leafOf("c")}
	for _, l := range leaves {
		idx.AddLeaf(l)
	}
	if got, want := idx.GetRoot(), rootOf(leaves); got != want {
		t.Fatalf("root mismatch: got %x want %x", got, want)
	}
}

func TestAddLeafThenRemoveLeafUpdatesRoot(t *testing.T) {
	idx := NewIndex()
	a, b, c := leafOf("a"), leafOf("b"), leafOf("c")
	idx.AddLeaf(a)
	idx.AddLeaf(b)
	idx.AddLeaf(c)

	if !idx.RemoveLeaf(b) {
		t.Fatal("expected RemoveLeaf to find b")
	}
	if idx.RemoveLeaf(b) {
		t.Fatal("second RemoveLeaf(b) should return false")
	}

	want := rootOf([]Hash{a, c})
	if got := idx.GetRoot(); got != want {
		t.Fatalf("root mismatch after removal: got %x want %x", got, want)
	}
}

func TestProofVerifiesForEveryLeaf(t *testing.T) {
	idx := NewIndex()
	leaves := []Hash{leafOf("a"), leafOf("b"), leafOf("c"), leafOf("d"), leafOf("e")}
	for _, l := range leaves {
		idx.AddLeaf(l)
	}
	root := idx.GetRoot()

	for i, l := range leaves {
		proof, err := idx.GetProof(i)
		if err != nil {
			t.Fatalf("GetProof(%d): %v", i, err)
		}
		if !VerifyProof(l, proof, root) {
			t.Fatalf("VerifyProof failed for leaf %d", i)
		}
	}
}

func TestProofOutOfRange(t *testing.T) {
	idx := NewIndex()
	idx.AddLeaf(leafOf("a"))
	if _, err := idx.GetProof(5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
