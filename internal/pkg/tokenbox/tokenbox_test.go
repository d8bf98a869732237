package tokenbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")
	box := New(key)

	sealed, err := box.Seal("1//refresh-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "refresh-token")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "1//refresh-token", plain)
}

func TestOpenWithWrongKey(t *testing.T) {
	var k1, k2 [32]byte
	k2[0] = 1

	sealed, err := New(k1).Seal("secret")
	require.NoError(t, err)

	_, err = New(k2).Open(sealed)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestEmptyValues(t *testing.T) {
	box := New([32]byte{})

	sealed, err := box.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := box.Open("")
	require.NoError(t, err)
	assert.Empty(t, plain)

	_, err = box.Open("not-base64!")
	assert.ErrorIs(t, err, ErrCorrupt)
}
