package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/batch"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/claimLink"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/create2"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/encoding"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/link"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/merkle"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/sdk"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// issuing bundles what the link creating commands need
type issuing struct {
	sdk     *sdk.SDK
	signer  signer.ISigner
	logger  *zap.Logger
	cleanup func()
}

func newIssuing(c *cli.Context) (*issuing, error) {
	l, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	s, closeSigner, err := buildSigner(c, l)
	if err != nil {
		return nil, err
	}
	ledger, err := buildLedger(c, l)
	if err != nil {
		closeSigner()
		return nil, err
	}
	linkdrop, err := sdk.NewSDK(sdkConfigFromFlags(c), l, sdk.WithLedger(ledger))
	if err != nil {
		_ = ledger.Close()
		closeSigner()
		return nil, err
	}
	return &issuing{
		sdk:    linkdrop,
		signer: s,
		logger: l,
		cleanup: func() {
			_ = linkdrop.Close()
			closeSigner()
			_ = l.Sync()
		},
	}, nil
}

func createLinkCommand(c *cli.Context) error {
	params, err := erc20ParamsFromFlags(c)
	if err != nil {
		return err
	}
	is, err := newIssuing(c)
	if err != nil {
		return err
	}
	defer is.cleanup()

	generated, err := is.sdk.GenerateLink(c.Context, is.signer, params)
	if err != nil {
		return err
	}
	return writeJSON(c, generated)
}

func createLinkERC721Command(c *cli.Context) error {
	params, err := erc721ParamsFromFlags(c)
	if err != nil {
		return err
	}
	is, err := newIssuing(c)
	if err != nil {
		return err
	}
	defer is.cleanup()

	generated, err := is.sdk.GenerateLinkERC721(c.Context, is.signer, params)
	if err != nil {
		return err
	}
	return writeJSON(c, generated)
}

type batchLinkOutput struct {
	Url   string              `json:"url"`
	Proof *merkle.MerkleProof `json:"proof"`
}

type batchOutput struct {
	BatchId    string             `json:"batchId"`
	MerkleRoot common.Hash        `json:"merkleRoot"`
	Links      []*batchLinkOutput `json:"links"`
}

func batchCreateCommand(c *cli.Context) error {
	params, err := erc20ParamsFromFlags(c)
	if err != nil {
		return err
	}
	is, err := newIssuing(c)
	if err != nil {
		return err
	}
	defer is.cleanup()

	issuer, err := link.NewIssuer(is.signer, is.logger)
	if err != nil {
		return err
	}
	batchIssuer, err := batch.NewBatchIssuer(issuer, is.sdk.Ledger(), &batch.BatchIssuerConfig{
		Concurrency:       c.Int("concurrency"),
		RequestsPerSecond: c.Float64("rps"),
	}, is.logger)
	if err != nil {
		return err
	}

	result, err := batchIssuer.CreateLinks(c.Context, c.Int("count"), params)
	if err != nil {
		return err
	}

	out := &batchOutput{
		BatchId:    result.BatchId,
		MerkleRoot: result.MerkleRoot,
		Links:      make([]*batchLinkOutput, len(result.Links)),
	}
	claimHost := is.sdk.Config().ClaimHost
	for i, bl := range result.Links {
		url, err := claimLink.BuildClaimUrl(claimHost, bl.Link, params)
		if err != nil {
			return err
		}
		out.Links[i] = &batchLinkOutput{Url: url, Proof: bl.Proof}
	}
	return writeJSON(c, out)
}

func signReceiverCommand(c *cli.Context) error {
	receiver, err := encoding.ParseAddress(c.String("receiver"))
	if err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	kp, err := link.KeyPairFromHex(c.String("link-key"))
	if err != nil {
		return err
	}
	sig, err := link.SignReceiverAddress(c.Context, c.String("link-key"), receiver)
	if err != nil {
		return err
	}
	return writeJSON(c, map[string]string{
		"linkId":            kp.LinkId.Hex(),
		"receiverAddress":   receiver.Hex(),
		"receiverSignature": hexutil.Encode(sig),
	})
}

func claimCommand(c *cli.Context) error {
	receiver, err := encoding.ParseAddress(c.String("receiver"))
	if err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	linkdrop, err := sdk.NewSDK(sdkConfigFromFlags(c), l)
	if err != nil {
		return err
	}
	defer func() { _ = linkdrop.Close() }()

	resp, err := linkdrop.ClaimUrl(c.Context, c.String("url"), receiver)
	if err != nil {
		return err
	}
	return writeJSON(c, resp)
}

type verifyOutput struct {
	Valid   bool           `json:"valid"`
	LinkId  string         `json:"linkId"`
	Kind    types.LinkKind `json:"kind"`
	Expired bool           `json:"expired"`
	Error   string         `json:"error,omitempty"`
}

func verifyLinkCommand(c *cli.Context) error {
	expected, err := encoding.ParseAddress(c.String("signer-address"))
	if err != nil {
		return fmt.Errorf("signer-address: %w", err)
	}
	cl, err := claimLink.ParseClaimUrl(c.String("url"))
	if err != nil {
		return err
	}
	kp, err := link.KeyPairFromHex(cl.LinkKey)
	if err != nil {
		return err
	}

	now := time.Now()
	out := &verifyOutput{LinkId: kp.LinkId.Hex(), Kind: cl.Kind}
	var verifyErr error
	if cl.Kind == types.LinkKindERC721 {
		verifyErr = link.VerifyLinkdropSignerSignatureERC721(cl.ERC721, kp.LinkId, cl.LinkdropSignerSignature, expected)
		out.Expired = cl.ERC721.IsExpired(now)
	} else {
		verifyErr = link.VerifyLinkdropSignerSignature(cl.ERC20, kp.LinkId, cl.LinkdropSignerSignature, expected)
		out.Expired = cl.ERC20.IsExpired(now)
	}
	out.Valid = verifyErr == nil
	if verifyErr != nil {
		out.Error = verifyErr.Error()
	}
	return writeJSON(c, out)
}

func deriveAddressCommand(c *cli.Context) error {
	address, err := create2.BuildCreate2AddressHex(c.String("creator"), c.String("salt"), c.String("init-code"))
	if err != nil {
		return err
	}
	return writeJSON(c, map[string]string{"address": address})
}

func predictModuleCommand(c *cli.Context) error {
	initializer, err := encoding.ParseHexBytes(c.String("initializer"))
	if err != nil {
		return fmt.Errorf("initializer: %w", err)
	}
	saltNonce, err := encoding.ParseUint256(c.String("salt-nonce"))
	if err != nil {
		return fmt.Errorf("salt-nonce: %w", err)
	}
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	linkdrop, err := sdk.NewSDK(sdkConfigFromFlags(c), l)
	if err != nil {
		return err
	}
	defer func() { _ = linkdrop.Close() }()

	address, err := linkdrop.PredictLinkdropModuleAddress(initializer, saltNonce, c.String("proxy-creation-code"))
	if err != nil {
		return err
	}
	return writeJSON(c, map[string]string{"address": address.Hex()})
}
