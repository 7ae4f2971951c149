package claimLink

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/link"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

const (
	testIssuerKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testClaimHost = "https://claim.linkdrop.io"
)

func erc20Params() *link.ERC20TransferParams {
	return &link.ERC20TransferParams{
		LinkdropModuleAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		WeiAmount:             big.NewInt(1000),
		TokenAddress:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		TokenAmount:           big.NewInt(42),
		ExpirationTime:        big.NewInt(9999999999),
	}
}

func erc721Params() *link.ERC721TransferParams {
	return &link.ERC721TransferParams{
		LinkdropModuleAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		WeiAmount:             big.NewInt(0),
		NFTAddress:            common.HexToAddress("0x3333333333333333333333333333333333333333"),
		TokenId:               big.NewInt(7),
		ExpirationTime:        big.NewInt(9999999999),
	}
}

func Test_ClaimUrl(t *testing.T) {
	t.Run("Should round trip an ERC20 link", func(t *testing.T) {
		params := erc20Params()
		l, err := link.CreateLinkWithKey(context.Background(), testIssuerKey, params)
		require.NoError(t, err)

		claimUrl, err := BuildClaimUrl(testClaimHost+"/", l, params)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(claimUrl, testClaimHost+"/#/receive?weiAmount=1000&tokenAddress="))
		assert.Contains(t, claimUrl, "linkKey="+l.LinkKey)

		parsed, err := ParseClaimUrl(claimUrl)
		require.NoError(t, err)
		assert.Equal(t, types.LinkKindERC20, parsed.Kind)
		assert.Nil(t, parsed.ERC721)
		require.NotNil(t, parsed.ERC20)
		assert.Equal(t, params.LinkdropModuleAddress, parsed.ERC20.LinkdropModuleAddress)
		assert.Equal(t, params.TokenAddress, parsed.ERC20.TokenAddress)
		assert.Equal(t, 0, params.WeiAmount.Cmp(parsed.ERC20.WeiAmount))
		assert.Equal(t, 0, params.TokenAmount.Cmp(parsed.ERC20.TokenAmount))
		assert.Equal(t, 0, params.ExpirationTime.Cmp(parsed.ERC20.ExpirationTime))
		assert.Equal(t, l.LinkKey, parsed.LinkKey)
		assert.Equal(t, []byte(l.LinkdropSignerSignature), parsed.LinkdropSignerSignature)

		linkId, err := parsed.LinkId()
		require.NoError(t, err)
		assert.Equal(t, l.LinkId.Hex(), linkId)

		issuer, err := link.KeyPairFromHex(testIssuerKey)
		require.NoError(t, err)
		assert.NoError(t, link.VerifyLinkdropSignerSignature(parsed.ERC20, l.LinkId, parsed.LinkdropSignerSignature, issuer.LinkId))
	})

	t.Run("Should round trip an ERC721 link", func(t *testing.T) {
		params := erc721Params()
		l, err := link.CreateLinkERC721WithKey(context.Background(), testIssuerKey, params)
		require.NoError(t, err)

		claimUrl, err := BuildClaimUrlERC721(testClaimHost, l, params)
		require.NoError(t, err)
		assert.Contains(t, claimUrl, "nftAddress=")
		assert.Contains(t, claimUrl, "tokenId=7")
		assert.NotContains(t, claimUrl, "tokenAmount=")

		parsed, err := ParseClaimUrl(claimUrl)
		require.NoError(t, err)
		assert.Equal(t, types.LinkKindERC721, parsed.Kind)
		require.NotNil(t, parsed.ERC721)
		assert.Equal(t, params.NFTAddress, parsed.ERC721.NFTAddress)
		assert.Equal(t, 0, params.TokenId.Cmp(parsed.ERC721.TokenId))
	})

	t.Run("Should reject a nil link", func(t *testing.T) {
		_, err := BuildClaimUrl(testClaimHost, nil, erc20Params())
		assert.True(t, errors.Is(err, types.ErrInvalidEncoding))
	})

	t.Run("Should reject invalid params", func(t *testing.T) {
		params := erc20Params()
		params.TokenAmount = big.NewInt(-1)
		_, err := BuildClaimUrl(testClaimHost, &link.Link{}, params)
		assert.True(t, errors.Is(err, types.ErrInvalidEncoding))
	})
}

func Test_ParseClaimUrl_Errors(t *testing.T) {
	params := erc20Params()
	l, err := link.CreateLinkWithKey(context.Background(), testIssuerKey, params)
	require.NoError(t, err)
	valid, err := BuildClaimUrl(testClaimHost, l, params)
	require.NoError(t, err)

	t.Run("Should fail on a missing field", func(t *testing.T) {
		broken := strings.Replace(valid, "weiAmount=", "wei=", 1)
		_, err := ParseClaimUrl(broken)
		assert.True(t, errors.Is(err, types.ErrInvalidEncoding))
	})

	t.Run("Should fail on a malformed address", func(t *testing.T) {
		broken := strings.Replace(valid, "linkdropModuleAddress=0x", "linkdropModuleAddress=0xzz", 1)
		_, err := ParseClaimUrl(broken)
		assert.True(t, errors.Is(err, types.ErrInvalidEncoding))
	})

	t.Run("Should fail on a truncated signature", func(t *testing.T) {
		broken := strings.Replace(valid, "linkdropSignerSignature="+l.LinkdropSignerSignature.String(), "linkdropSignerSignature=0x1234", 1)
		_, err := ParseClaimUrl(broken)
		assert.True(t, errors.Is(err, types.ErrInvalidEncoding))
	})

	t.Run("Should fail on an invalid link key", func(t *testing.T) {
		broken := strings.Replace(valid, "linkKey="+l.LinkKey, "linkKey=0x00", 1)
		_, err := ParseClaimUrl(broken)
		assert.True(t, errors.Is(err, types.ErrInvalidKey))
	})

	t.Run("Should decode fragment values exactly once", func(t *testing.T) {
		encoded := strings.Replace(valid, "weiAmount="+params.WeiAmount.String(), "weiAmount=%2531", 1)
		_, err := ParseClaimUrl(encoded)
		assert.True(t, errors.Is(err, types.ErrInvalidEncoding))

		digits := strings.Replace(valid, "expirationTime="+params.ExpirationTime.String(), "expirationTime=%31%30", 1)
		parsed, err := ParseClaimUrl(digits)
		require.NoError(t, err)
		assert.Equal(t, "10", parsed.ERC20.ExpirationTime.String())
	})

	t.Run("Should accept a plain query string", func(t *testing.T) {
		plain := strings.Replace(valid, "/#/receive?", "/receive?", 1)
		parsed, err := ParseClaimUrl(plain)
		require.NoError(t, err)
		assert.Equal(t, l.LinkKey, parsed.LinkKey)
	})
}
