package link

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer/inMemorySigner"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// CreateLink generates a fresh link key and has linkdropSigner authorize an ETH/ERC20 transfer bound to its linkId
func CreateLink(ctx context.Context, linkdropSigner signer.ISigner, params *ERC20TransferParams) (*Link, error) {
	if linkdropSigner == nil {
		return nil, fmt.Errorf("%w: signer cannot be nil", types.ErrInvalidSigner)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	sig, err := SignLink(ctx, linkdropSigner, params, kp.LinkId)
	if err != nil {
		return nil, err
	}

	return &Link{
		LinkKey:                 kp.LinkKeyHex(),
		LinkId:                  kp.LinkId,
		LinkdropSignerSignature: sig,
	}, nil
}

// CreateLinkERC721 is CreateLink for a single NFT
func CreateLinkERC721(ctx context.Context, linkdropSigner signer.ISigner, params *ERC721TransferParams) (*Link, error) {
	if linkdropSigner == nil {
		return nil, fmt.Errorf("%w: signer cannot be nil", types.ErrInvalidSigner)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	sig, err := SignLinkERC721(ctx, linkdropSigner, params, kp.LinkId)
	if err != nil {
		return nil, err
	}

	return &Link{
		LinkKey:                 kp.LinkKeyHex(),
		LinkId:                  kp.LinkId,
		LinkdropSignerSignature: sig,
	}, nil
}

// CreateLinkWithKey signs with a raw hex private key instead of a prebuilt signer
func CreateLinkWithKey(ctx context.Context, signingKey string, params *ERC20TransferParams) (*Link, error) {
	s, err := inMemorySigner.NewPrivateKeySigner(signingKey, nil)
	if err != nil {
		return nil, err
	}
	return CreateLink(ctx, s, params)
}

func CreateLinkERC721WithKey(ctx context.Context, signingKey string, params *ERC721TransferParams) (*Link, error) {
	s, err := inMemorySigner.NewPrivateKeySigner(signingKey, nil)
	if err != nil {
		return nil, err
	}
	return CreateLinkERC721(ctx, s, params)
}

// SignLink signs the ETH/ERC20 authorization for an existing linkId
func SignLink(ctx context.Context, linkdropSigner signer.ISigner, params *ERC20TransferParams, linkId common.Address) ([]byte, error) {
	hash, err := params.MessageHash(linkId)
	if err != nil {
		return nil, err
	}
	return signHash(ctx, linkdropSigner, hash)
}

func SignLinkERC721(ctx context.Context, linkdropSigner signer.ISigner, params *ERC721TransferParams, linkId common.Address) ([]byte, error) {
	hash, err := params.MessageHash(linkId)
	if err != nil {
		return nil, err
	}
	return signHash(ctx, linkdropSigner, hash)
}

func signHash(ctx context.Context, s signer.ISigner, hash common.Hash) ([]byte, error) {
	sig, err := s.SignMessage(ctx, hash.Bytes())
	if err != nil {
		if errors.Is(err, types.ErrSigningFailure) || errors.Is(err, types.ErrInvalidSigner) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", types.ErrSigningFailure, err)
	}
	return sig, nil
}

// Issuer binds a signer and a logger for repeated link creation
type Issuer struct {
	logger *zap.Logger
	signer signer.ISigner
}

func NewIssuer(linkdropSigner signer.ISigner, logger *zap.Logger) (*Issuer, error) {
	if linkdropSigner == nil {
		return nil, fmt.Errorf("%w: signer cannot be nil", types.ErrInvalidSigner)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		logger: logger,
		signer: linkdropSigner,
	}, nil
}

func (i *Issuer) SignerAddress() common.Address {
	return i.signer.Address()
}

func (i *Issuer) CreateLink(ctx context.Context, params *ERC20TransferParams) (*Link, error) {
	l, err := CreateLink(ctx, i.signer, params)
	if err != nil {
		i.logger.Error("Failed to create link", zap.Error(err))
		return nil, err
	}
	i.logger.Info("Created link",
		zap.String("linkId", l.LinkId.Hex()),
		zap.String("linkdropModule", params.LinkdropModuleAddress.Hex()),
		zap.String("weiAmount", params.WeiAmount.String()),
		zap.String("tokenAddress", params.TokenAddress.Hex()),
		zap.String("tokenAmount", params.TokenAmount.String()),
		zap.String("expirationTime", params.ExpirationTime.String()),
	)
	return l, nil
}

func (i *Issuer) CreateLinkERC721(ctx context.Context, params *ERC721TransferParams) (*Link, error) {
	l, err := CreateLinkERC721(ctx, i.signer, params)
	if err != nil {
		i.logger.Error("Failed to create ERC721 link", zap.Error(err))
		return nil, err
	}
	i.logger.Info("Created ERC721 link",
		zap.String("linkId", l.LinkId.Hex()),
		zap.String("linkdropModule", params.LinkdropModuleAddress.Hex()),
		zap.String("weiAmount", params.WeiAmount.String()),
		zap.String("nftAddress", params.NFTAddress.Hex()),
		zap.String("tokenId", params.TokenId.String()),
		zap.String("expirationTime", params.ExpirationTime.String()),
	)
	return l, nil
}
