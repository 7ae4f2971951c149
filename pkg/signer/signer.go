package signer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

const SignatureLength = 65

// ISigner is the signing capability used by the link issuer. SignMessage signs the
// EIP-191 personal message of the given bytes ("\x19Ethereum Signed Message:\n" + len + message)
// and returns a 65 byte [R || S || V] signature with V in {27, 28}.
type ISigner interface {
	Address() common.Address
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// PersonalMessageHash is the digest an ISigner actually signs for message
func PersonalMessageHash(message []byte) []byte {
	return accounts.TextHash(message)
}

// ToEthereumV returns a copy of sig with the recovery id shifted into the 27/28 range
func ToEthereumV(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", types.ErrSigningFailure, SignatureLength, len(sig))
	}
	out := make([]byte, SignatureLength)
	copy(out, sig)
	if out[64] < 27 {
		out[64] += 27
	}
	if out[64] != 27 && out[64] != 28 {
		return nil, fmt.Errorf("%w: invalid recovery id %d", types.ErrSigningFailure, sig[64])
	}
	return out, nil
}

// RecoverMessageSigner returns the address that produced sig over the personal message of message.
// V may be given as 0/1 or 27/28.
func RecoverMessageSigner(message []byte, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pubKey, err := crypto.SigToPub(PersonalMessageHash(message), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifyMessageSignature reports whether sig over message was produced by expected
func VerifyMessageSignature(message []byte, sig []byte, expected common.Address) bool {
	recovered, err := RecoverMessageSigner(message, sig)
	if err != nil {
		return false
	}
	return recovered == expected
}
