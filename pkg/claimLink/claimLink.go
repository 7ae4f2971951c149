package claimLink

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/encoding"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/link"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

const receiveRoute = "/#/receive"

// ClaimLink is everything a receiver needs to redeem a link, as carried in the claim URL
type ClaimLink struct {
	Kind                    types.LinkKind
	ERC20                   *link.ERC20TransferParams
	ERC721                  *link.ERC721TransferParams
	LinkKey                 string
	LinkdropSignerSignature []byte
}

type param struct {
	key   string
	value string
}

// BuildClaimUrl renders an ETH/ERC20 link as {claimHost}/#/receive?...
func BuildClaimUrl(claimHost string, l *link.Link, params *link.ERC20TransferParams) (string, error) {
	if l == nil {
		return "", fmt.Errorf("%w: nil link", types.ErrInvalidEncoding)
	}
	if err := params.Validate(); err != nil {
		return "", err
	}
	return render(claimHost, []param{
		{"weiAmount", params.WeiAmount.String()},
		{"tokenAddress", params.TokenAddress.Hex()},
		{"tokenAmount", params.TokenAmount.String()},
		{"expirationTime", params.ExpirationTime.String()},
		{"linkKey", l.LinkKey},
		{"linkdropSignerSignature", hexutil.Encode(l.LinkdropSignerSignature)},
		{"linkdropModuleAddress", params.LinkdropModuleAddress.Hex()},
	}), nil
}

// BuildClaimUrlERC721 renders an NFT link; nftAddress and tokenId replace the token fields
func BuildClaimUrlERC721(claimHost string, l *link.Link, params *link.ERC721TransferParams) (string, error) {
	if l == nil {
		return "", fmt.Errorf("%w: nil link", types.ErrInvalidEncoding)
	}
	if err := params.Validate(); err != nil {
		return "", err
	}
	return render(claimHost, []param{
		{"weiAmount", params.WeiAmount.String()},
		{"nftAddress", params.NFTAddress.Hex()},
		{"tokenId", params.TokenId.String()},
		{"expirationTime", params.ExpirationTime.String()},
		{"linkKey", l.LinkKey},
		{"linkdropSignerSignature", hexutil.Encode(l.LinkdropSignerSignature)},
		{"linkdropModuleAddress", params.LinkdropModuleAddress.Hex()},
	}), nil
}

func render(claimHost string, params []param) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(claimHost, "/"))
	sb.WriteString(receiveRoute)
	for i, p := range params {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(p.key)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
	}
	return sb.String()
}

// ParseClaimUrl is the inverse of BuildClaimUrl and BuildClaimUrlERC721
func ParseClaimUrl(claimUrl string) (*ClaimLink, error) {
	u, err := url.Parse(strings.TrimSpace(claimUrl))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidEncoding, err)
	}

	// the query lives inside the hash route for the single page claim app
	_, rawQuery, found := strings.Cut(u.EscapedFragment(), "?")
	if !found {
		rawQuery = u.RawQuery
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidEncoding, err)
	}

	get := func(key string) (string, error) {
		v := values.Get(key)
		if v == "" {
			return "", fmt.Errorf("%w: missing %s", types.ErrInvalidEncoding, key)
		}
		return v, nil
	}

	cl := &ClaimLink{}
	raw := map[string]string{}
	required := []string{"weiAmount", "expirationTime", "linkKey", "linkdropSignerSignature", "linkdropModuleAddress"}
	if values.Has("nftAddress") {
		cl.Kind = types.LinkKindERC721
		required = append(required, "nftAddress", "tokenId")
	} else {
		cl.Kind = types.LinkKindERC20
		required = append(required, "tokenAddress", "tokenAmount")
	}
	for _, key := range required {
		v, err := get(key)
		if err != nil {
			return nil, err
		}
		raw[key] = v
	}

	module, err := encoding.ParseAddress(raw["linkdropModuleAddress"])
	if err != nil {
		return nil, fmt.Errorf("linkdropModuleAddress: %w", err)
	}
	weiAmount, err := encoding.ParseUint256(raw["weiAmount"])
	if err != nil {
		return nil, fmt.Errorf("weiAmount: %w", err)
	}
	expiration, err := encoding.ParseUint256(raw["expirationTime"])
	if err != nil {
		return nil, fmt.Errorf("expirationTime: %w", err)
	}
	sig, err := encoding.ParseHexBytes(raw["linkdropSignerSignature"])
	if err != nil {
		return nil, fmt.Errorf("linkdropSignerSignature: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("%w: linkdropSignerSignature must be 65 bytes, got %d", types.ErrInvalidEncoding, len(sig))
	}
	if _, err := link.KeyPairFromHex(raw["linkKey"]); err != nil {
		return nil, err
	}
	cl.LinkKey = raw["linkKey"]
	cl.LinkdropSignerSignature = sig

	if cl.Kind == types.LinkKindERC721 {
		nft, err := encoding.ParseAddress(raw["nftAddress"])
		if err != nil {
			return nil, fmt.Errorf("nftAddress: %w", err)
		}
		tokenId, err := encoding.ParseUint256(raw["tokenId"])
		if err != nil {
			return nil, fmt.Errorf("tokenId: %w", err)
		}
		cl.ERC721 = &link.ERC721TransferParams{
			LinkdropModuleAddress: module,
			WeiAmount:             weiAmount,
			NFTAddress:            nft,
			TokenId:               tokenId,
			ExpirationTime:        expiration,
		}
		return cl, nil
	}

	token, err := encoding.ParseAddress(raw["tokenAddress"])
	if err != nil {
		return nil, fmt.Errorf("tokenAddress: %w", err)
	}
	tokenAmount, err := encoding.ParseUint256(raw["tokenAmount"])
	if err != nil {
		return nil, fmt.Errorf("tokenAmount: %w", err)
	}
	cl.ERC20 = &link.ERC20TransferParams{
		LinkdropModuleAddress: module,
		WeiAmount:             weiAmount,
		TokenAddress:          token,
		TokenAmount:           tokenAmount,
		ExpirationTime:        expiration,
	}
	return cl, nil
}

// LinkId derives the link's id from its key
func (cl *ClaimLink) LinkId() (string, error) {
	kp, err := link.KeyPairFromHex(cl.LinkKey)
	if err != nil {
		return "", err
	}
	return kp.LinkId.Hex(), nil
}
