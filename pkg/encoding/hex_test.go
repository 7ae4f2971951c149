package encoding

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", addr.Hex())

	for _, bad := range []string{"", "0x1234", "not-an-address", "0xzz9Fd6e51aad88F6F4ce6aB8827279cffFb92266"} {
		_, err := ParseAddress(bad)
		assert.ErrorIs(t, err, types.ErrInvalidEncoding, bad)
	}
}

func TestParseBytes32(t *testing.T) {
	b, err := ParseBytes32("0x00000000000000000000000000000000000000000000000000000000cafebabe")
	require.NoError(t, err)
	assert.Equal(t, byte(0xbe), b[31])

	_, err = ParseBytes32("0xcafebabe")
	assert.ErrorIs(t, err, types.ErrInvalidEncoding)
}

func TestParseHexBytes(t *testing.T) {
	b, err := ParseHexBytes("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

	b, err = ParseHexBytes("0x")
	require.NoError(t, err)
	assert.Empty(t, b)

	_, err = ParseHexBytes("0xabc")
	assert.ErrorIs(t, err, types.ErrInvalidEncoding)
}

func TestParseUint256(t *testing.T) {
	n, err := ParseUint256("9999999999")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(9999999999), n)

	n, err = ParseUint256("0x3e8")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), n)

	for _, bad := range []string{"", "-1", "1.5", "0x", "115792089237316195423570985008687907853269984665640564039457584007913129639936"} {
		_, err := ParseUint256(bad)
		assert.ErrorIs(t, err, types.ErrInvalidEncoding, bad)
	}
}

func FuzzParseUint256RoundTrip(f *testing.F) {
	f.Add(uint64(0))
	f.Add(uint64(1000))
	f.Add(uint64(1<<63 + 7))

	f.Fuzz(func(t *testing.T, v uint64) {
		want := new(big.Int).SetUint64(v)
		got, err := ParseUint256(want.String())
		require.NoError(t, err)
		require.Equal(t, 0, want.Cmp(got))

		packed, err := NewPacker().Uint256(got).Bytes()
		require.NoError(t, err)
		require.Len(t, packed, 32)
		require.Equal(t, 0, want.Cmp(new(big.Int).SetBytes(packed)))
	})
}
