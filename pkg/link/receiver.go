package link

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/encoding"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer/inMemorySigner"
)

// ReceiverMessageHash is keccak256 of the 20 byte receiver address
func ReceiverMessageHash(receiver common.Address) common.Hash {
	// a single address field cannot fail to pack
	h, _ := encoding.NewPacker().Address(receiver).Hash()
	return h
}

// SignReceiverAddress binds a link to receiver using the link's own key.
// Verifiers check that the signature recovers to the linkId.
func SignReceiverAddress(ctx context.Context, linkKey string, receiver common.Address) ([]byte, error) {
	kp, err := KeyPairFromHex(linkKey)
	if err != nil {
		return nil, err
	}
	return signHash(ctx, inMemorySigner.NewInMemorySigner(kp.LinkKey, nil), ReceiverMessageHash(receiver))
}
