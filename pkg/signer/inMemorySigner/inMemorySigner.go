package inMemorySigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// InMemorySigner signs with a secp256k1 private key held in process memory
type InMemorySigner struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ signer.ISigner = (*InMemorySigner)(nil)

// NewPrivateKeySigner parses a hex encoded private scalar (0x prefix optional)
func NewPrivateKeySigner(privateKeyHex string, logger *zap.Logger) (*InMemorySigner, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSigner, err)
	}
	return NewInMemorySigner(key, logger), nil
}

func NewInMemorySigner(key *ecdsa.PrivateKey, logger *zap.Logger) *InMemorySigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemorySigner{
		logger:     logger,
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

// ParsePrivateKey decodes a hex private key, rejecting anything that is not a valid 32 byte scalar
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimSpace(privateKeyHex)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if trimmed == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func (s *InMemorySigner) Address() common.Address {
	return s.address
}

func (s *InMemorySigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSigningFailure, err)
	}

	sig, err := crypto.Sign(signer.PersonalMessageHash(message), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSigningFailure, err)
	}
	sig[64] += 27

	s.logger.Debug("Signed personal message",
		zap.String("signer", s.address.Hex()),
		zap.Int("messageLen", len(message)),
	)
	return sig, nil
}
