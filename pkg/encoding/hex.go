package encoding

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// ParseAddress parses a 20 byte hex address. The 0x prefix is optional, mixed case is accepted.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", types.ErrInvalidEncoding, s)
	}
	return common.HexToAddress(s), nil
}

// ParseBytes32 parses exactly 32 bytes of hex
func ParseBytes32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := ParseHexBytes(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("%w: expected 32 bytes, got %d", types.ErrInvalidEncoding, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseHexBytes decodes arbitrary-length hex with an optional 0x prefix. "0x" decodes to an empty slice.
func ParseHexBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidEncoding, err)
	}
	return b, nil
}

// ParseUint256 parses a decimal or 0x-prefixed hex unsigned integer bounded to 256 bits
func ParseUint256(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty integer", types.ErrInvalidEncoding)
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("%w: invalid integer %q", types.ErrInvalidEncoding, s)
	}
	if err := ValidateUint256(n); err != nil {
		return nil, err
	}
	return n, nil
}
