package gift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	original := Payload{
		AssetID: "nep141:usdc.near",
		Amount:  "25000000",
		Message: "happy birthday",
	}

	encoded, err := Encode(original, key)
	require.NoError(t, err)

	decoded, err := Decode(encoded, key)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestWrongKeySizeRejected(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		key := make([]byte, size)

		_, err := Encode(Payload{AssetID: "a"}, key)
		assert.ErrorIs(t, err, ErrKeySize)

		_, err = Decode("anything", key)
		assert.ErrorIs(t, err, ErrKeySize)
	}
}

func TestDecodeWithDifferentKeyFails(t *testing.T) {
	key1, err := NewKey()
	require.NoError(t, err)
	key2, err := NewKey()
	require.NoError(t, err)

	encoded, err := Encode(Payload{AssetID: "nep141:usdc.near", Amount: "1"}, key1)
	require.NoError(t, err)

	_, err = Decode(encoded, key2)
	assert.Error(t, err)
}

func TestDecodeMalformedInput(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	_, err = Decode("%%%not-base64%%%", key)
	assert.Error(t, err)

	_, err = Decode("dG9vc2hvcnQ", key)
	assert.Error(t, err)
}
