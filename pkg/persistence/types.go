package persistence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/encoding"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/link"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

var (
	// ErrLinkIdExists is returned when a linkId has already been recorded
	ErrLinkIdExists = errors.New("linkId already issued")

	// ErrLedgerClosed is returned by every operation after Close
	ErrLedgerClosed = errors.New("link ledger is closed")
)

// IssuedLink is the audit record of an issued link. It deliberately has no link key field.
type IssuedLink struct {
	LinkId                  string         `json:"linkId"`
	Kind                    types.LinkKind `json:"kind"`
	LinkdropModuleAddress   string         `json:"linkdropModuleAddress"`
	WeiAmount               string         `json:"weiAmount"`
	TokenAddress            string         `json:"tokenAddress,omitempty"`
	TokenAmount             string         `json:"tokenAmount,omitempty"`
	NFTAddress              string         `json:"nftAddress,omitempty"`
	TokenId                 string         `json:"tokenId,omitempty"`
	ExpirationTime          string         `json:"expirationTime"`
	SignerAddress           string         `json:"signerAddress"`
	LinkdropSignerSignature string         `json:"linkdropSignerSignature"`
	BatchId                 string         `json:"batchId,omitempty"`
	CreatedAt               int64          `json:"createdAt"`
}

// NewIssuedLink builds the record for an ETH/ERC20 link
func NewIssuedLink(l *link.Link, params *link.ERC20TransferParams, signer common.Address, batchId string) (*IssuedLink, error) {
	if l == nil {
		return nil, fmt.Errorf("link cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &IssuedLink{
		LinkId:                  l.LinkId.Hex(),
		Kind:                    types.LinkKindERC20,
		LinkdropModuleAddress:   params.LinkdropModuleAddress.Hex(),
		WeiAmount:               params.WeiAmount.String(),
		TokenAddress:            params.TokenAddress.Hex(),
		TokenAmount:             params.TokenAmount.String(),
		ExpirationTime:          params.ExpirationTime.String(),
		SignerAddress:           signer.Hex(),
		LinkdropSignerSignature: hexutil.Encode(l.LinkdropSignerSignature),
		BatchId:                 batchId,
		CreatedAt:               time.Now().UnixNano(),
	}, nil
}

// NewIssuedLinkERC721 builds the record for an NFT link
func NewIssuedLinkERC721(l *link.Link, params *link.ERC721TransferParams, signer common.Address, batchId string) (*IssuedLink, error) {
	if l == nil {
		return nil, fmt.Errorf("link cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &IssuedLink{
		LinkId:                  l.LinkId.Hex(),
		Kind:                    types.LinkKindERC721,
		LinkdropModuleAddress:   params.LinkdropModuleAddress.Hex(),
		WeiAmount:               params.WeiAmount.String(),
		NFTAddress:              params.NFTAddress.Hex(),
		TokenId:                 params.TokenId.String(),
		ExpirationTime:          params.ExpirationTime.String(),
		SignerAddress:           signer.Hex(),
		LinkdropSignerSignature: hexutil.Encode(l.LinkdropSignerSignature),
		BatchId:                 batchId,
		CreatedAt:               time.Now().UnixNano(),
	}, nil
}

// Validate checks the fields every backend relies on
func (il *IssuedLink) Validate() error {
	if il == nil {
		return fmt.Errorf("issued link cannot be nil")
	}
	if _, err := NormalizeLinkId(il.LinkId); err != nil {
		return err
	}
	if !il.Kind.IsValid() {
		return fmt.Errorf("%w: unknown link kind %q", types.ErrInvalidEncoding, il.Kind)
	}
	return nil
}

// NormalizeLinkId returns the checksummed form used as the storage key
func NormalizeLinkId(linkId string) (string, error) {
	addr, err := encoding.ParseAddress(linkId)
	if err != nil {
		return "", fmt.Errorf("linkId: %w", err)
	}
	return addr.Hex(), nil
}

// SortByCreatedAt orders links oldest first, breaking ties on linkId
func SortByCreatedAt(links []*IssuedLink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt == links[j].CreatedAt {
			return links[i].LinkId < links[j].LinkId
		}
		return links[i].CreatedAt < links[j].CreatedAt
	})
}
