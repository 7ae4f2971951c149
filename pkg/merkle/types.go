package merkle

import "github.com/ethereum/go-ethereum/common"

// MerkleTree commits to a set of linkIds. Leaves are keccak256(linkId) in ascending linkId order.
type MerkleTree struct {
	// LinkIds in leaf order
	LinkIds []common.Address

	Leaves [][32]byte
	Root   [32]byte

	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// MerkleProof shows that LinkId is one of the committed leaves
type MerkleProof struct {
	LinkId    common.Address `json:"linkId"`
	LeafIndex int            `json:"leafIndex"`
	Leaf      common.Hash    `json:"leaf"`

	// Proof[0] is the leaf's sibling, the last entry is a child of the root
	Proof []common.Hash `json:"proof"`
}
