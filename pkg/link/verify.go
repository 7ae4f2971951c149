package link

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
)

var ErrSignatureMismatch = errors.New("signature does not match expected signer")

// VerifyLinkdropSignerSignature checks an ETH/ERC20 authorization against the expected linkdrop signer
func VerifyLinkdropSignerSignature(params *ERC20TransferParams, linkId common.Address, sig []byte, linkdropSigner common.Address) error {
	hash, err := params.MessageHash(linkId)
	if err != nil {
		return err
	}
	return verifyHash(hash, sig, linkdropSigner)
}

func VerifyLinkdropSignerSignatureERC721(params *ERC721TransferParams, linkId common.Address, sig []byte, linkdropSigner common.Address) error {
	hash, err := params.MessageHash(linkId)
	if err != nil {
		return err
	}
	return verifyHash(hash, sig, linkdropSigner)
}

// VerifyReceiverSignature checks that sig binds receiver and was made with the key behind linkId
func VerifyReceiverSignature(linkId common.Address, receiver common.Address, sig []byte) error {
	return verifyHash(ReceiverMessageHash(receiver), sig, linkId)
}

func verifyHash(hash common.Hash, sig []byte, expected common.Address) error {
	recovered, err := signer.RecoverMessageSigner(hash.Bytes(), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if recovered != expected {
		return fmt.Errorf("%w: recovered %s, expected %s", ErrSignatureMismatch, recovered.Hex(), expected.Hex())
	}
	return nil
}
