package link

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/logger"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer/inMemorySigner"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// well known development keys, never funded on a live network
const (
	issuerKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	issuerAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	fixedLinkKey  = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	fixedLinkId   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	fixedReceiver = "0x4444444444444444444444444444444444444444"

	// pinned outputs for regressionParams signed by issuerKey for fixedLinkId
	regressionMessageHash  = "0xc6a3e2854472b6f7f3cc60ec0f31a19957d3ccca1034098e872d8e49912f6950"
	regressionPersonalHash = "0x742981681da66facf8e29da477262f75e3608c8680f08e3bbb9890eea8b13f19"
	regressionSignature    = "0xebbb7e8542f2ead9f0b5b57698fa474a74322ae3e9e6975a3f304f75c1d0f4423b34254740b14753029159eb56afadc225b6741ce678965a58645fc0d06564841c"

	// pinned outputs for fixedReceiver signed by fixedLinkKey
	regressionReceiverHash      = "0x4cfa6af4bfa0111fd5e7625d43e84cd2d40629cf6008219d2c0e30ed48abf8b6"
	regressionReceiverSignature = "0xafd14109feaa24e4a8ff79d7b25fd2908e781f3eadb776cec9863cafb421bca11090989b07202f49235ecd5d2124c328b49487d2fdcb83cfb9981bf4326a12431c"
)

func regressionParams() *ERC20TransferParams {
	return &ERC20TransferParams{
		LinkdropModuleAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		WeiAmount:             big.NewInt(1000),
		TokenAddress:          common.Address{},
		TokenAmount:           big.NewInt(0),
		ExpirationTime:        big.NewInt(9999999999),
	}
}

func erc721Params() *ERC721TransferParams {
	return &ERC721TransferParams{
		LinkdropModuleAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		WeiAmount:             big.NewInt(5),
		NFTAddress:            common.HexToAddress("0x3333333333333333333333333333333333333333"),
		TokenId:               big.NewInt(42),
		ExpirationTime:        big.NewInt(9999999999),
	}
}

func word(hexValue string) string {
	return strings.Repeat("0", 64-len(hexValue)) + hexValue
}

func newIssuerSigner(t *testing.T) *inMemorySigner.InMemorySigner {
	t.Helper()
	s, err := inMemorySigner.NewPrivateKeySigner(issuerKey, nil)
	require.NoError(t, err)
	return s
}

func Test_RegressionVector(t *testing.T) {
	params := regressionParams()
	linkId := common.HexToAddress(fixedLinkId)

	t.Run("Should derive the fixed linkId from the fixed link key", func(t *testing.T) {
		kp, err := KeyPairFromHex(fixedLinkKey)
		require.NoError(t, err)
		assert.Equal(t, linkId, kp.LinkId)
		assert.Equal(t, fixedLinkKey, kp.LinkKeyHex())

		upper, err := KeyPairFromHex("0X" + fixedLinkKey[2:])
		require.NoError(t, err)
		assert.Equal(t, linkId, upper.LinkId)
	})

	t.Run("Should pack the message byte for byte", func(t *testing.T) {
		packed, err := params.PackMessage(linkId)
		require.NoError(t, err)

		expected := "0x" +
			strings.Repeat("11", 20) +
			word("3e8") +
			strings.Repeat("00", 20) +
			word("0") +
			word("2540be3ff") +
			"70997970c51812dc3a010c7d01b50e0d17dc79c8"
		assert.Equal(t, expected, hexutil.Encode(packed))
		assert.Len(t, packed, 20+32+20+32+32+20)

		hash, err := params.MessageHash(linkId)
		require.NoError(t, err)
		assert.Equal(t, crypto.Keccak256Hash(packed), hash)
		assert.Equal(t, regressionMessageHash, hash.Hex())
		assert.Equal(t, regressionPersonalHash, hexutil.Encode(signer.PersonalMessageHash(hash.Bytes())))
	})

	t.Run("Should produce a stable signature that verifies against the issuer", func(t *testing.T) {
		s := newIssuerSigner(t)
		assert.Equal(t, common.HexToAddress(issuerAddress), s.Address())

		sig1, err := SignLink(context.Background(), s, params, linkId)
		require.NoError(t, err)
		sig2, err := SignLink(context.Background(), s, params, linkId)
		require.NoError(t, err)

		assert.Equal(t, sig1, sig2)
		assert.Equal(t, regressionSignature, hexutil.Encode(sig1))
		require.NoError(t, VerifyLinkdropSignerSignature(params, linkId, sig1, s.Address()))
	})

	t.Run("Should recover the issuer from the pinned signature", func(t *testing.T) {
		hash := common.HexToHash(regressionPersonalHash)
		sig := common.FromHex(regressionSignature)
		require.Len(t, sig, 65)

		raw := append([]byte{}, sig...)
		raw[64] -= 27
		pub, err := crypto.SigToPub(hash.Bytes(), raw)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(issuerAddress), crypto.PubkeyToAddress(*pub))
	})

	t.Run("Should produce the pinned receiver signature", func(t *testing.T) {
		receiver := common.HexToAddress(fixedReceiver)
		assert.Equal(t, regressionReceiverHash, ReceiverMessageHash(receiver).Hex())

		sig, err := SignReceiverAddress(context.Background(), fixedLinkKey, receiver)
		require.NoError(t, err)
		assert.Equal(t, regressionReceiverSignature, hexutil.Encode(sig))
		require.NoError(t, VerifyReceiverSignature(linkId, receiver, sig))
	})
}

func Test_CreateLink(t *testing.T) {
	ctx := context.Background()
	s := newIssuerSigner(t)

	t.Run("Should return a linkId derived from the returned linkKey", func(t *testing.T) {
		l, err := CreateLink(ctx, s, regressionParams())
		require.NoError(t, err)

		kp, err := KeyPairFromHex(l.LinkKey)
		require.NoError(t, err)
		assert.Equal(t, kp.LinkId, l.LinkId)
		assert.Len(t, l.LinkdropSignerSignature, 65)
	})

	t.Run("Should verify and reject any flipped field", func(t *testing.T) {
		params := regressionParams()
		l, err := CreateLink(ctx, s, params)
		require.NoError(t, err)
		require.NoError(t, VerifyLinkdropSignerSignature(params, l.LinkId, l.LinkdropSignerSignature, s.Address()))

		mutations := map[string]func(p *ERC20TransferParams){
			"module": func(p *ERC20TransferParams) {
				p.LinkdropModuleAddress = common.HexToAddress("0x1111111111111111111111111111111111111112")
			},
			"weiAmount":   func(p *ERC20TransferParams) { p.WeiAmount = big.NewInt(1001) },
			"token":       func(p *ERC20TransferParams) { p.TokenAddress = common.HexToAddress("0x01") },
			"tokenAmount": func(p *ERC20TransferParams) { p.TokenAmount = big.NewInt(1) },
			"expiration":  func(p *ERC20TransferParams) { p.ExpirationTime = big.NewInt(9999999998) },
		}
		for name, mutate := range mutations {
			mutated := regressionParams()
			mutate(mutated)
			err := VerifyLinkdropSignerSignature(mutated, l.LinkId, l.LinkdropSignerSignature, s.Address())
			assert.ErrorIs(t, err, ErrSignatureMismatch, name)
		}

		otherLinkId := common.HexToAddress(fixedLinkId)
		err = VerifyLinkdropSignerSignature(params, otherLinkId, l.LinkdropSignerSignature, s.Address())
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("Should never reuse a linkId", func(t *testing.T) {
		seen := make(map[common.Address]bool)
		for i := 0; i < 200; i++ {
			l, err := CreateLink(ctx, s, regressionParams())
			require.NoError(t, err)
			require.False(t, seen[l.LinkId], "duplicate linkId %s", l.LinkId.Hex())
			seen[l.LinkId] = true
		}
	})

	t.Run("Should be safe for concurrent callers", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		ids := make(map[common.Address]struct{})
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l, err := CreateLink(ctx, s, regressionParams())
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				ids[l.LinkId] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, ids, 16)
	})

	t.Run("Should accept a raw key and reject a malformed one", func(t *testing.T) {
		l, err := CreateLinkWithKey(ctx, issuerKey, regressionParams())
		require.NoError(t, err)
		require.NoError(t, VerifyLinkdropSignerSignature(regressionParams(), l.LinkId, l.LinkdropSignerSignature, common.HexToAddress(issuerAddress)))

		_, err = CreateLinkWithKey(ctx, "0xnot-a-key", regressionParams())
		assert.ErrorIs(t, err, types.ErrInvalidSigner)
	})

	t.Run("Should reject invalid parameters before generating a key", func(t *testing.T) {
		params := regressionParams()
		params.TokenAmount = big.NewInt(-1)
		_, err := CreateLink(ctx, s, params)
		assert.ErrorIs(t, err, types.ErrInvalidEncoding)

		_, err = CreateLink(ctx, s, nil)
		assert.ErrorIs(t, err, types.ErrInvalidEncoding)

		_, err = CreateLink(ctx, nil, regressionParams())
		assert.ErrorIs(t, err, types.ErrInvalidSigner)
	})
}

type failingSigner struct {
	err error
}

func (f *failingSigner) Address() common.Address { return common.Address{} }

func (f *failingSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return nil, f.err
}

func Test_CreateLink_SigningFailure(t *testing.T) {
	_, err := CreateLink(context.Background(), &failingSigner{err: errors.New("hsm offline")}, regressionParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSigningFailure)
	assert.Contains(t, err.Error(), "hsm offline")

	_, err = CreateLinkERC721(context.Background(), &failingSigner{err: types.ErrSigningFailure}, erc721Params())
	assert.ErrorIs(t, err, types.ErrSigningFailure)
}

func Test_CreateLinkERC721(t *testing.T) {
	ctx := context.Background()
	s := newIssuerSigner(t)

	t.Run("Should sign the NFT variant with the same field layout", func(t *testing.T) {
		params := erc721Params()
		l, err := CreateLinkERC721(ctx, s, params)
		require.NoError(t, err)

		kp, err := KeyPairFromHex(l.LinkKey)
		require.NoError(t, err)
		assert.Equal(t, kp.LinkId, l.LinkId)
		require.NoError(t, VerifyLinkdropSignerSignatureERC721(params, l.LinkId, l.LinkdropSignerSignature, s.Address()))

		asERC20 := &ERC20TransferParams{
			LinkdropModuleAddress: params.LinkdropModuleAddress,
			WeiAmount:             params.WeiAmount,
			TokenAddress:          params.NFTAddress,
			TokenAmount:           params.TokenId,
			ExpirationTime:        params.ExpirationTime,
		}
		packed721, err := params.PackMessage(l.LinkId)
		require.NoError(t, err)
		packed20, err := asERC20.PackMessage(l.LinkId)
		require.NoError(t, err)
		assert.Equal(t, packed20, packed721)
	})

	t.Run("Should reject a flipped token id", func(t *testing.T) {
		params := erc721Params()
		l, err := CreateLinkERC721(ctx, s, params)
		require.NoError(t, err)

		params.TokenId = big.NewInt(43)
		err = VerifyLinkdropSignerSignatureERC721(params, l.LinkId, l.LinkdropSignerSignature, s.Address())
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("Should accept a raw key", func(t *testing.T) {
		l, err := CreateLinkERC721WithKey(ctx, issuerKey, erc721Params())
		require.NoError(t, err)
		require.NoError(t, VerifyLinkdropSignerSignatureERC721(erc721Params(), l.LinkId, l.LinkdropSignerSignature, common.HexToAddress(issuerAddress)))
	})
}

func Test_SignReceiverAddress(t *testing.T) {
	ctx := context.Background()
	receiver := common.HexToAddress("0x4444444444444444444444444444444444444444")

	t.Run("Should verify against the linkId and only for that receiver", func(t *testing.T) {
		l, err := CreateLink(ctx, newIssuerSigner(t), regressionParams())
		require.NoError(t, err)

		sig, err := SignReceiverAddress(ctx, l.LinkKey, receiver)
		require.NoError(t, err)
		require.NoError(t, VerifyReceiverSignature(l.LinkId, receiver, sig))

		other := common.HexToAddress("0x5555555555555555555555555555555555555555")
		assert.ErrorIs(t, VerifyReceiverSignature(l.LinkId, other, sig), ErrSignatureMismatch)
		assert.ErrorIs(t, VerifyReceiverSignature(common.HexToAddress(issuerAddress), receiver, sig), ErrSignatureMismatch)
	})

	t.Run("Should hash only the 20 byte receiver address", func(t *testing.T) {
		assert.Equal(t, crypto.Keccak256Hash(receiver.Bytes()), ReceiverMessageHash(receiver))
	})

	t.Run("Should reject malformed link keys", func(t *testing.T) {
		for _, bad := range []string{"", "0x12", "0x" + strings.Repeat("0", 64)} {
			_, err := SignReceiverAddress(ctx, bad, receiver)
			assert.ErrorIs(t, err, types.ErrInvalidKey, bad)
		}
	})
}

func Test_Issuer(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	require.NoError(t, err)

	issuer, err := NewIssuer(newIssuerSigner(t), l)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(issuerAddress), issuer.SignerAddress())

	link20, err := issuer.CreateLink(context.Background(), regressionParams())
	require.NoError(t, err)
	require.NoError(t, VerifyLinkdropSignerSignature(regressionParams(), link20.LinkId, link20.LinkdropSignerSignature, issuer.SignerAddress()))

	link721, err := issuer.CreateLinkERC721(context.Background(), erc721Params())
	require.NoError(t, err)
	assert.NotEqual(t, link20.LinkId, link721.LinkId)

	_, err = NewIssuer(nil, l)
	assert.ErrorIs(t, err, types.ErrInvalidSigner)
}

func TestTransferParams_IsExpired(t *testing.T) {
	params := regressionParams()
	params.ExpirationTime = big.NewInt(1_700_000_000)

	assert.False(t, params.IsExpired(time.Unix(1_700_000_000, 0)))
	assert.True(t, params.IsExpired(time.Unix(1_700_000_001, 0)))

	nft := erc721Params()
	assert.False(t, nft.IsExpired(time.Now()))
}
