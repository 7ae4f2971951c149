package encoding

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// Packer builds the tight (non-padded) encoding used by solidity's abi.encodePacked.
// Addresses take 20 bytes, uint256 values take 32 big-endian bytes and raw bytes are
// appended as-is. The first invalid field poisons the packer; the error is returned
// from Bytes or Hash.
type Packer struct {
	buf []byte
	err error
}

func NewPacker() *Packer {
	return &Packer{buf: make([]byte, 0, 160)}
}

func (p *Packer) Address(addr common.Address) *Packer {
	if p.err != nil {
		return p
	}
	p.buf = append(p.buf, addr.Bytes()...)
	return p
}

func (p *Packer) Uint256(value *big.Int) *Packer {
	if p.err != nil {
		return p
	}
	if err := ValidateUint256(value); err != nil {
		p.err = err
		return p
	}
	p.buf = append(p.buf, math.U256Bytes(new(big.Int).Set(value))...)
	return p
}

func (p *Packer) Bytes32(value [32]byte) *Packer {
	if p.err != nil {
		return p
	}
	p.buf = append(p.buf, value[:]...)
	return p
}

func (p *Packer) RawBytes(value []byte) *Packer {
	if p.err != nil {
		return p
	}
	p.buf = append(p.buf, value...)
	return p
}

// Bytes returns a copy of the packed encoding
func (p *Packer) Bytes() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out, nil
}

// Hash returns keccak256 of the packed encoding
func (p *Packer) Hash() (common.Hash, error) {
	if p.err != nil {
		return common.Hash{}, p.err
	}
	return crypto.Keccak256Hash(p.buf), nil
}

// ValidateUint256 checks that value is non-nil and fits an unsigned 256 bit word
func ValidateUint256(value *big.Int) error {
	if value == nil {
		return fmt.Errorf("%w: nil integer", types.ErrInvalidEncoding)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("%w: negative integer %s", types.ErrInvalidEncoding, value.String())
	}
	if value.BitLen() > 256 {
		return fmt.Errorf("%w: integer exceeds 256 bits", types.ErrInvalidEncoding)
	}
	return nil
}

// SolidityKeccak256 hashes values packed according to their solidity type names.
// Supported types are address, uint, uint256, bytes32 and bytes.
func SolidityKeccak256(typeNames []string, values []interface{}) (common.Hash, error) {
	if len(typeNames) != len(values) {
		return common.Hash{}, fmt.Errorf("%w: %d types for %d values", types.ErrInvalidEncoding, len(typeNames), len(values))
	}

	p := NewPacker()
	for i, typeName := range typeNames {
		switch strings.TrimSpace(typeName) {
		case "address":
			addr, ok := values[i].(common.Address)
			if !ok {
				return common.Hash{}, fmt.Errorf("%w: value %d is %T, expected common.Address", types.ErrInvalidEncoding, i, values[i])
			}
			p.Address(addr)
		case "uint", "uint256":
			n, ok := values[i].(*big.Int)
			if !ok {
				return common.Hash{}, fmt.Errorf("%w: value %d is %T, expected *big.Int", types.ErrInvalidEncoding, i, values[i])
			}
			p.Uint256(n)
		case "bytes32":
			b, ok := values[i].([32]byte)
			if !ok {
				if h, isHash := values[i].(common.Hash); isHash {
					b, ok = h, true
				}
			}
			if !ok {
				return common.Hash{}, fmt.Errorf("%w: value %d is %T, expected [32]byte", types.ErrInvalidEncoding, i, values[i])
			}
			p.Bytes32(b)
		case "bytes":
			b, ok := values[i].([]byte)
			if !ok {
				return common.Hash{}, fmt.Errorf("%w: value %d is %T, expected []byte", types.ErrInvalidEncoding, i, values[i])
			}
			p.RawBytes(b)
		default:
			return common.Hash{}, fmt.Errorf("%w: unsupported type %q", types.ErrInvalidEncoding, typeName)
		}
	}
	return p.Hash()
}
