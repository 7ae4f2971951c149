package types

import (
	"errors"
)

// Error taxonomy shared by every signing and encoding path. Callers match with errors.Is.
var (
	// ErrInvalidSigner is returned when issuer key material cannot be parsed into a signer
	ErrInvalidSigner = errors.New("invalid signer")

	// ErrInvalidKey is returned when a link key does not parse to a valid secp256k1 scalar
	ErrInvalidKey = errors.New("invalid link key")

	// ErrSigningFailure is returned when the signing capability errors or is unreachable
	ErrSigningFailure = errors.New("signing failure")

	// ErrInvalidEncoding is returned for malformed addresses, integers, salts or bytecode
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrUnsupportedConfiguration is returned for unknown chains or incomplete SDK configuration
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
)

// LinkKind distinguishes the two transfer shapes a link can authorize
type LinkKind string

const (
	LinkKindERC20  LinkKind = "erc20"
	LinkKindERC721 LinkKind = "erc721"
)

func (k LinkKind) String() string {
	return string(k)
}

// IsValid reports whether k is one of the known link kinds
func (k LinkKind) IsValid() bool {
	return k == LinkKindERC20 || k == LinkKindERC721
}
