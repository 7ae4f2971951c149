package create2

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/encoding"
)

// BuildCreate2Address returns the low 20 bytes of keccak256(0xff ‖ creator ‖ salt ‖ keccak256(initCode))
func BuildCreate2Address(creator common.Address, salt [32]byte, initCode []byte) common.Address {
	codeHash := crypto.Keccak256(initCode)
	// packing fixed-width fields cannot fail
	packed, _ := encoding.NewPacker().
		RawBytes([]byte{0xff}).
		Address(creator).
		Bytes32(salt).
		RawBytes(codeHash).
		Bytes()
	return common.BytesToAddress(crypto.Keccak256(packed)[12:])
}

// BuildCreate2AddressHex is BuildCreate2Address over hex inputs. The result is lowercase and 0x prefixed.
func BuildCreate2AddressHex(creatorHex, saltHex, initCodeHex string) (string, error) {
	creator, err := encoding.ParseAddress(creatorHex)
	if err != nil {
		return "", fmt.Errorf("creator: %w", err)
	}
	salt, err := encoding.ParseBytes32(saltHex)
	if err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	initCode, err := encoding.ParseHexBytes(initCodeHex)
	if err != nil {
		return "", fmt.Errorf("init code: %w", err)
	}
	return strings.ToLower(BuildCreate2Address(creator, salt, initCode).Hex()), nil
}

// ProxySalt is the salt a Gnosis Safe proxy factory uses in createProxyWithNonce
func ProxySalt(initializer []byte, saltNonce *big.Int) ([32]byte, error) {
	h, err := encoding.NewPacker().
		RawBytes(crypto.Keccak256(initializer)).
		Uint256(saltNonce).
		Hash()
	if err != nil {
		return [32]byte{}, err
	}
	return h, nil
}

// PredictProxyAddress predicts the address of a proxy deployed through createProxyWithNonce.
// proxyCreationCode is the factory's proxyCreationCode(); the constructor argument is the master copy.
func PredictProxyAddress(factory common.Address, masterCopy common.Address, proxyCreationCode []byte, initializer []byte, saltNonce *big.Int) (common.Address, error) {
	salt, err := ProxySalt(initializer, saltNonce)
	if err != nil {
		return common.Address{}, err
	}
	initCode, err := encoding.NewPacker().
		RawBytes(proxyCreationCode).
		Uint256(new(big.Int).SetBytes(masterCopy.Bytes())).
		Bytes()
	if err != nil {
		return common.Address{}, err
	}
	return BuildCreate2Address(factory, salt, initCode), nil
}
