package rpcSigner

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// RPCSigner delegates signing to a remote JSON-RPC signer such as Web3Signer or a geth node.
// eth_sign applies the personal message prefix on the remote side.
type RPCSigner struct {
	logger  *zap.Logger
	client  *rpc.Client
	address common.Address
}

var _ signer.ISigner = (*RPCSigner)(nil)

func NewRPCSigner(ctx context.Context, url string, address common.Address, logger *zap.Logger) (*RPCSigner, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: remote signer url cannot be empty", types.ErrInvalidSigner)
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial remote signer %s: %v", types.ErrSigningFailure, url, err)
	}
	return NewRPCSignerWithClient(client, address, logger), nil
}

func NewRPCSignerWithClient(client *rpc.Client, address common.Address, logger *zap.Logger) *RPCSigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCSigner{
		logger:  logger,
		client:  client,
		address: address,
	}
}

func (r *RPCSigner) Address() common.Address {
	return r.address
}

// Accounts lists the addresses the remote signer can sign for
func (r *RPCSigner) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := r.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("%w: eth_accounts: %v", types.ErrSigningFailure, err)
	}
	return accounts, nil
}

func (r *RPCSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	var result hexutil.Bytes
	if err := r.client.CallContext(ctx, &result, "eth_sign", r.address, hexutil.Bytes(message)); err != nil {
		return nil, fmt.Errorf("%w: eth_sign: %v", types.ErrSigningFailure, err)
	}

	sig, err := signer.ToEthereumV(result)
	if err != nil {
		return nil, err
	}

	// a remote signer answering for a different key would otherwise go unnoticed until on-chain verification
	if !signer.VerifyMessageSignature(message, sig, r.address) {
		return nil, fmt.Errorf("%w: remote signature does not recover to %s", types.ErrSigningFailure, r.address.Hex())
	}

	r.logger.Debug("Remote signer produced signature",
		zap.String("signer", r.address.Hex()),
		zap.Int("messageLen", len(message)),
	)
	return sig, nil
}

func (r *RPCSigner) Close() {
	r.client.Close()
}
