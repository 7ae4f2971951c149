package merkle

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BuildMerkleTree builds a keccak256 binary tree over linkIds.
// Input order does not matter; duplicates are rejected since a linkId is issued once.
// An odd node at any level is paired with itself.
func BuildMerkleTree(linkIds []common.Address) (*MerkleTree, error) {
	if len(linkIds) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty linkId list")
	}

	sorted := SortLinkIds(linkIds)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, fmt.Errorf("duplicate linkId %s", sorted[i].Hex())
		}
	}

	leaves := make([][32]byte, len(sorted))
	for i, id := range sorted {
		leaves[i] = HashLinkId(id)
	}

	levels := [][][32]byte{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			right := current[i]
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, hashPair(current[i], right))
		}
		levels = append(levels, next)
		current = next
	}

	return &MerkleTree{
		LinkIds: sorted,
		Leaves:  leaves,
		Root:    current[0],
		levels:  levels,
	}, nil
}

// IndexOf returns the leaf index of linkId, or -1
func (mt *MerkleTree) IndexOf(linkId common.Address) int {
	i := sort.Search(len(mt.LinkIds), func(i int) bool {
		return bytes.Compare(mt.LinkIds[i].Bytes(), linkId.Bytes()) >= 0
	})
	if i < len(mt.LinkIds) && mt.LinkIds[i] == linkId {
		return i
	}
	return -1
}

// ProofFor is GenerateProof addressed by linkId
func (mt *MerkleTree) ProofFor(linkId common.Address) (*MerkleProof, error) {
	idx := mt.IndexOf(linkId)
	if idx < 0 {
		return nil, fmt.Errorf("linkId %s is not in the tree", linkId.Hex())
	}
	return mt.GenerateProof(idx)
}

// GenerateProof collects sibling hashes from the leaf at leafIndex up to the root.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(mt.Leaves))
	}

	proof := make([]common.Hash, 0, len(mt.levels)-1)
	index := leafIndex
	for level := 0; level < len(mt.levels)-1; level++ {
		nodes := mt.levels[level]

		sibling := index ^ 1
		if sibling >= len(nodes) {
			sibling = index
		}
		proof = append(proof, nodes[sibling])
		index /= 2
	}

	return &MerkleProof{
		LinkId:    mt.LinkIds[leafIndex],
		LeafIndex: leafIndex,
		Leaf:      mt.Leaves[leafIndex],
		Proof:     proof,
	}, nil
}

// VerifyProof recomputes the root from proof and compares it with root.
// The leaf must also be the hash of the claimed linkId.
func VerifyProof(proof *MerkleProof, root [32]byte) bool {
	if proof == nil || proof.LeafIndex < 0 {
		return false
	}
	if HashLinkId(proof.LinkId) != [32]byte(proof.Leaf) {
		return false
	}

	current := [32]byte(proof.Leaf)
	index := proof.LeafIndex
	for _, sibling := range proof.Proof {
		if index%2 == 0 {
			current = hashPair(current, sibling)
		} else {
			current = hashPair(sibling, current)
		}
		index /= 2
	}
	return current == root
}

// HashLinkId is keccak256 of the 20 address bytes, matching keccak256(abi.encodePacked(linkId))
func HashLinkId(linkId common.Address) [32]byte {
	return crypto.Keccak256Hash(linkId.Bytes())
}

// SortLinkIds returns a copy of linkIds in ascending byte order
func SortLinkIds(linkIds []common.Address) []common.Address {
	sorted := make([]common.Address, len(linkIds))
	copy(sorted, linkIds)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Bytes(), sorted[j].Bytes()) < 0
	})
	return sorted
}

func hashPair(left, right [32]byte) [32]byte {
	data := make([]byte, 64)
	copy(data[:32], left[:])
	copy(data[32:], right[:])
	return crypto.Keccak256Hash(data)
}
