package awsKmsSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// KMSAPI is the subset of the AWS KMS client used for signing
type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// AWSKMSSigner signs link authorizations with an ECC_SECG_P256K1 key that never leaves AWS KMS
type AWSKMSSigner struct {
	logger    *zap.Logger
	kmsClient KMSAPI
	keyId     string
	publicKey *cryptoEcdsa.PublicKey
	address   common.Address
}

var _ signer.ISigner = (*AWSKMSSigner)(nil)

func NewAWSKMSSignerFromConfig(ctx context.Context, awsCfg aws.Config, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	return NewAWSKMSSigner(ctx, kms.NewFromConfig(awsCfg), keyId, logger)
}

// NewAWSKMSSigner resolves the KMS public key once so every signature can be checked against it
func NewAWSKMSSigner(ctx context.Context, client KMSAPI, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	if keyId == "" {
		return nil, fmt.Errorf("%w: kms key id cannot be empty", types.ErrInvalidSigner)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &AWSKMSSigner{
		logger:    logger,
		kmsClient: client,
		keyId:     keyId,
	}

	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get public key for kms key %s: %w", types.ErrSigningFailure, keyId, err)
	}
	pubKey, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidSigner, "failed to parse public key for kms key %s: %v", keyId, err)
	}
	s.publicKey = pubKey
	s.address = crypto.PubkeyToAddress(*pubKey)

	logger.Info("Loaded AWS KMS signer",
		zap.String("keyId", keyId),
		zap.String("address", s.address.Hex()),
	)
	return s, nil
}

func (a *AWSKMSSigner) Address() common.Address {
	return a.address
}

func (a *AWSKMSSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	sig, err := a.signDigest(ctx, signer.PersonalMessageHash(message))
	if err != nil {
		return nil, fmt.Errorf("%w: kms key %s: %w", types.ErrSigningFailure, a.keyId, err)
	}
	return sig, nil
}

// parseECDSAPublicKey parses the DER-encoded SubjectPublicKeyInfo returned by KMS
func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	_, err := asn1.Unmarshal(derBytes, &asn1pubk)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}

	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

func (a *AWSKMSSigner) signDigest(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("hash must be exactly 32 bytes, got %d", len(digest))
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          digest,
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, err
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signOutput.Signature, &sigAsn1); err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)

	// KMS does not canonicalize S; Ethereum verifiers require the low half
	curveOrder := crypto.S256().Params().N
	halfOrder := new(big.Int).Rsh(curveOrder, 1)
	if s.Cmp(halfOrder) > 0 {
		s = new(big.Int).Sub(curveOrder, s)
	}

	rBytes := r.FillBytes(make([]byte, 32))
	sBytes := s.FillBytes(make([]byte, 32))

	for recoveryId := 0; recoveryId < 2; recoveryId++ {
		signature := make([]byte, 65)
		copy(signature[0:32], rBytes)
		copy(signature[32:64], sBytes)
		signature[64] = byte(recoveryId)

		recoveredPubKeyBytes, err := crypto.Ecrecover(digest, signature)
		if err != nil {
			a.logger.Debug("Ecrecover failed",
				zap.Int("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}

		recoveredPubKey, err := crypto.UnmarshalPubkey(recoveredPubKeyBytes)
		if err != nil {
			a.logger.Warn("Failed to unmarshal recovered public key",
				zap.Int("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}

		if recoveredPubKey.X.Cmp(a.publicKey.X) == 0 && recoveredPubKey.Y.Cmp(a.publicKey.Y) == 0 {
			signature[64] = byte(27 + recoveryId)
			return signature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID - signature recovery failed")
}
