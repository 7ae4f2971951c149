package sdk

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/claimLink"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/clients/claimService"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/config"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/create2"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/encoding"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/link"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence/memory"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// SDK ties link issuance and claiming to one chain's endpoints and Safe contracts
type SDK struct {
	config       *config.SDKConfig
	claimService claimService.IClaimService
	ledger       persistence.ILinkLedger
	logger       *zap.Logger
}

type Option func(*SDK)

// WithClaimService replaces the HTTP claim client built from ApiHost
func WithClaimService(cs claimService.IClaimService) Option {
	return func(s *SDK) { s.claimService = cs }
}

// WithLedger records generated links somewhere other than process memory
func WithLedger(ledger persistence.ILinkLedger) Option {
	return func(s *SDK) { s.ledger = ledger }
}

// NewSDK validates cfg after filling defaults. Chains other than rinkeby and mainnet
// fail with types.ErrUnsupportedConfiguration.
func NewSDK(cfg *config.SDKConfig, logger *zap.Logger, opts ...Option) (*SDK, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", types.ErrUnsupportedConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := *cfg
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s := &SDK{
		config: &c,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.claimService == nil {
		cs, err := claimService.NewClient(&claimService.ClientConfig{ApiHost: c.ApiHost, Logger: logger})
		if err != nil {
			return nil, err
		}
		s.claimService = cs
	}
	if s.ledger == nil {
		s.ledger = memory.NewMemoryLedger(logger)
	}

	logger.Sugar().Debugw("Linkdrop SDK initialized",
		"chain", c.Chain,
		"apiHost", c.ApiHost,
		"claimHost", c.ClaimHost,
	)
	return s, nil
}

func (s *SDK) Config() config.SDKConfig {
	return *s.config
}

func (s *SDK) Ledger() persistence.ILinkLedger {
	return s.ledger
}

// GeneratedLink is a freshly issued link plus its shareable claim URL
type GeneratedLink struct {
	Url                     string         `json:"url"`
	LinkId                  common.Address `json:"linkId"`
	LinkKey                 string         `json:"linkKey"`
	LinkdropSignerSignature hexutil.Bytes  `json:"linkdropSignerSignature"`
}

func newGeneratedLink(url string, l *link.Link) *GeneratedLink {
	return &GeneratedLink{
		Url:                     url,
		LinkId:                  l.LinkId,
		LinkKey:                 l.LinkKey,
		LinkdropSignerSignature: l.LinkdropSignerSignature,
	}
}

// GenerateLink issues an ETH/ERC20 link signed by linkdropSigner and records it in the ledger
func (s *SDK) GenerateLink(ctx context.Context, linkdropSigner signer.ISigner, params *link.ERC20TransferParams) (*GeneratedLink, error) {
	issuer, err := link.NewIssuer(linkdropSigner, s.logger)
	if err != nil {
		return nil, err
	}
	l, err := issuer.CreateLink(ctx, params)
	if err != nil {
		return nil, err
	}
	url, err := claimLink.BuildClaimUrl(s.config.ClaimHost, l, params)
	if err != nil {
		return nil, err
	}
	record, err := persistence.NewIssuedLink(l, params, issuer.SignerAddress(), "")
	if err != nil {
		return nil, err
	}
	if err := s.ledger.SaveIssuedLink(record); err != nil {
		return nil, fmt.Errorf("failed to record issued link: %w", err)
	}
	return newGeneratedLink(url, l), nil
}

func (s *SDK) GenerateLinkERC721(ctx context.Context, linkdropSigner signer.ISigner, params *link.ERC721TransferParams) (*GeneratedLink, error) {
	issuer, err := link.NewIssuer(linkdropSigner, s.logger)
	if err != nil {
		return nil, err
	}
	l, err := issuer.CreateLinkERC721(ctx, params)
	if err != nil {
		return nil, err
	}
	url, err := claimLink.BuildClaimUrlERC721(s.config.ClaimHost, l, params)
	if err != nil {
		return nil, err
	}
	record, err := persistence.NewIssuedLinkERC721(l, params, issuer.SignerAddress(), "")
	if err != nil {
		return nil, err
	}
	if err := s.ledger.SaveIssuedLink(record); err != nil {
		return nil, fmt.Errorf("failed to record issued link: %w", err)
	}
	return newGeneratedLink(url, l), nil
}

// ClaimParams is what a receiver holds after opening an ETH/ERC20 claim URL
type ClaimParams struct {
	Params                  *link.ERC20TransferParams
	LinkKey                 string
	LinkdropSignerSignature []byte
	ReceiverAddress         common.Address
}

type ClaimERC721Params struct {
	Params                  *link.ERC721TransferParams
	LinkKey                 string
	LinkdropSignerSignature []byte
	ReceiverAddress         common.Address
}

// Claim binds the link to the receiver with the link key and submits it to the claim service
func (s *SDK) Claim(ctx context.Context, p *ClaimParams) (*claimService.ClaimResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("claim params cannot be nil")
	}
	if err := p.Params.Validate(); err != nil {
		return nil, err
	}
	linkId, receiverSig, err := bindReceiver(ctx, p.LinkKey, p.ReceiverAddress)
	if err != nil {
		return nil, err
	}
	return s.claimService.Claim(ctx, &claimService.ClaimRequest{
		WeiAmount:               p.Params.WeiAmount.String(),
		TokenAddress:            p.Params.TokenAddress.Hex(),
		TokenAmount:             p.Params.TokenAmount.String(),
		ExpirationTime:          p.Params.ExpirationTime.String(),
		LinkId:                  linkId.Hex(),
		LinkdropModuleAddress:   p.Params.LinkdropModuleAddress.Hex(),
		LinkdropSignerSignature: hexutil.Encode(p.LinkdropSignerSignature),
		ReceiverAddress:         p.ReceiverAddress.Hex(),
		ReceiverSignature:       hexutil.Encode(receiverSig),
	})
}

func (s *SDK) ClaimERC721(ctx context.Context, p *ClaimERC721Params) (*claimService.ClaimResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("claim params cannot be nil")
	}
	if err := p.Params.Validate(); err != nil {
		return nil, err
	}
	linkId, receiverSig, err := bindReceiver(ctx, p.LinkKey, p.ReceiverAddress)
	if err != nil {
		return nil, err
	}
	return s.claimService.ClaimERC721(ctx, &claimService.ClaimERC721Request{
		WeiAmount:               p.Params.WeiAmount.String(),
		NFTAddress:              p.Params.NFTAddress.Hex(),
		TokenId:                 p.Params.TokenId.String(),
		ExpirationTime:          p.Params.ExpirationTime.String(),
		LinkId:                  linkId.Hex(),
		LinkdropModuleAddress:   p.Params.LinkdropModuleAddress.Hex(),
		LinkdropSignerSignature: hexutil.Encode(p.LinkdropSignerSignature),
		ReceiverAddress:         p.ReceiverAddress.Hex(),
		ReceiverSignature:       hexutil.Encode(receiverSig),
	})
}

// ClaimUrl parses a claim URL and claims it for receiver, whichever kind it is
func (s *SDK) ClaimUrl(ctx context.Context, claimUrl string, receiver common.Address) (*claimService.ClaimResponse, error) {
	cl, err := claimLink.ParseClaimUrl(claimUrl)
	if err != nil {
		return nil, err
	}
	if cl.Kind == types.LinkKindERC721 {
		return s.ClaimERC721(ctx, &ClaimERC721Params{
			Params:                  cl.ERC721,
			LinkKey:                 cl.LinkKey,
			LinkdropSignerSignature: cl.LinkdropSignerSignature,
			ReceiverAddress:         receiver,
		})
	}
	return s.Claim(ctx, &ClaimParams{
		Params:                  cl.ERC20,
		LinkKey:                 cl.LinkKey,
		LinkdropSignerSignature: cl.LinkdropSignerSignature,
		ReceiverAddress:         receiver,
	})
}

func bindReceiver(ctx context.Context, linkKey string, receiver common.Address) (common.Address, []byte, error) {
	if receiver == (common.Address{}) {
		return common.Address{}, nil, fmt.Errorf("%w: receiver address cannot be zero", types.ErrInvalidEncoding)
	}
	kp, err := link.KeyPairFromHex(linkKey)
	if err != nil {
		return common.Address{}, nil, err
	}
	sig, err := link.SignReceiverAddress(ctx, linkKey, receiver)
	if err != nil {
		return common.Address{}, nil, err
	}
	return kp.LinkId, sig, nil
}

// PredictLinkdropModuleAddress returns where the proxy factory will deploy a linkdrop module
// for initializer and saltNonce. proxyCreationCode is the factory's proxyCreationCode() as hex.
func (s *SDK) PredictLinkdropModuleAddress(initializer []byte, saltNonce *big.Int, proxyCreationCode string) (common.Address, error) {
	factory, err := encoding.ParseAddress(s.config.ProxyFactory)
	if err != nil {
		return common.Address{}, err
	}
	masterCopy, err := encoding.ParseAddress(s.config.LinkdropModuleMasterCopy)
	if err != nil {
		return common.Address{}, err
	}
	code, err := encoding.ParseHexBytes(proxyCreationCode)
	if err != nil {
		return common.Address{}, fmt.Errorf("proxyCreationCode: %w", err)
	}
	return create2.PredictProxyAddress(factory, masterCopy, code, initializer, saltNonce)
}

func (s *SDK) Close() error {
	return s.ledger.Close()
}
