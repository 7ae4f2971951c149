package link

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/encoding"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer/inMemorySigner"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// KeyPair is the ephemeral key generated for a single link. LinkId is the address of LinkKey.
type KeyPair struct {
	LinkKey *ecdsa.PrivateKey
	LinkId  common.Address
}

// GenerateKeyPair creates a fresh link key from crypto/rand
func GenerateKeyPair() (*KeyPair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate link key: %w", err)
	}
	return newKeyPair(key), nil
}

// KeyPairFromHex rebuilds a key pair from a hex encoded link key
func KeyPairFromHex(linkKey string) (*KeyPair, error) {
	key, err := inMemorySigner.ParsePrivateKey(linkKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return newKeyPair(key), nil
}

func newKeyPair(key *ecdsa.PrivateKey) *KeyPair {
	return &KeyPair{
		LinkKey: key,
		LinkId:  crypto.PubkeyToAddress(key.PublicKey),
	}
}

// LinkKeyHex returns the 0x prefixed, 32 byte hex form of the link key
func (kp *KeyPair) LinkKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(kp.LinkKey))
}

// Link is what the issuer hands out. LinkKey is never persisted by the issuer.
type Link struct {
	LinkKey                 string         `json:"linkKey"`
	LinkId                  common.Address `json:"linkId"`
	LinkdropSignerSignature hexutil.Bytes  `json:"linkdropSignerSignature"`
}

// ERC20TransferParams authorizes an ETH and/or ERC20 transfer. A zero TokenAddress means ETH only.
type ERC20TransferParams struct {
	LinkdropModuleAddress common.Address `json:"linkdropModuleAddress"`
	WeiAmount             *big.Int       `json:"weiAmount"`
	TokenAddress          common.Address `json:"tokenAddress"`
	TokenAmount           *big.Int       `json:"tokenAmount"`
	ExpirationTime        *big.Int       `json:"expirationTime"`
}

func (p *ERC20TransferParams) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil transfer params", types.ErrInvalidEncoding)
	}
	return validateAmounts(map[string]*big.Int{
		"weiAmount":      p.WeiAmount,
		"tokenAmount":    p.TokenAmount,
		"expirationTime": p.ExpirationTime,
	})
}

func (p *ERC20TransferParams) IsExpired(now time.Time) bool {
	return isExpired(p.ExpirationTime, now)
}

// PackMessage returns the tight encoding module ‖ wei ‖ token ‖ tokenAmount ‖ expiration ‖ linkId
func (p *ERC20TransferParams) PackMessage(linkId common.Address) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return packLinkMessage(p.LinkdropModuleAddress, p.WeiAmount, p.TokenAddress, p.TokenAmount, p.ExpirationTime, linkId).Bytes()
}

// MessageHash is the keccak256 of PackMessage; the issuer signs its raw 32 bytes
func (p *ERC20TransferParams) MessageHash(linkId common.Address) (common.Hash, error) {
	if err := p.Validate(); err != nil {
		return common.Hash{}, err
	}
	return packLinkMessage(p.LinkdropModuleAddress, p.WeiAmount, p.TokenAddress, p.TokenAmount, p.ExpirationTime, linkId).Hash()
}

// ERC721TransferParams authorizes an optional ETH amount plus a single NFT
type ERC721TransferParams struct {
	LinkdropModuleAddress common.Address `json:"linkdropModuleAddress"`
	WeiAmount             *big.Int       `json:"weiAmount"`
	NFTAddress            common.Address `json:"nftAddress"`
	TokenId               *big.Int       `json:"tokenId"`
	ExpirationTime        *big.Int       `json:"expirationTime"`
}

func (p *ERC721TransferParams) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil transfer params", types.ErrInvalidEncoding)
	}
	return validateAmounts(map[string]*big.Int{
		"weiAmount":      p.WeiAmount,
		"tokenId":        p.TokenId,
		"expirationTime": p.ExpirationTime,
	})
}

func (p *ERC721TransferParams) IsExpired(now time.Time) bool {
	return isExpired(p.ExpirationTime, now)
}

func (p *ERC721TransferParams) PackMessage(linkId common.Address) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return packLinkMessage(p.LinkdropModuleAddress, p.WeiAmount, p.NFTAddress, p.TokenId, p.ExpirationTime, linkId).Bytes()
}

func (p *ERC721TransferParams) MessageHash(linkId common.Address) (common.Hash, error) {
	if err := p.Validate(); err != nil {
		return common.Hash{}, err
	}
	return packLinkMessage(p.LinkdropModuleAddress, p.WeiAmount, p.NFTAddress, p.TokenId, p.ExpirationTime, linkId).Hash()
}

// Both variants share the field layout address, uint, address, uint, uint, address
func packLinkMessage(module common.Address, weiAmount *big.Int, asset common.Address, assetAmount *big.Int, expiration *big.Int, linkId common.Address) *encoding.Packer {
	return encoding.NewPacker().
		Address(module).
		Uint256(weiAmount).
		Address(asset).
		Uint256(assetAmount).
		Uint256(expiration).
		Address(linkId)
}

func validateAmounts(fields map[string]*big.Int) error {
	for name, value := range fields {
		if err := encoding.ValidateUint256(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func isExpired(expiration *big.Int, now time.Time) bool {
	if expiration == nil {
		return true
	}
	return big.NewInt(now.Unix()).Cmp(expiration) > 0
}
