package envelope

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
)

func testMasterKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestNewAESProtector(t *testing.T) {
	t.Run("accepts 32 byte key", func(t *testing.T) {
		_, err := NewAESProtector(testMasterKey())
		require.NoError(t, err)
	})

	t.Run("rejects short key", func(t *testing.T) {
		_, err := NewAESProtector([]byte("too-short"))
		require.Error(t, err)
		assert.True(t, domainerrors.HasCode(err, domainerrors.CodeConfiguration))
	})
}

func TestProtectRoundTrip(t *testing.T) {
	protector, err := NewAESProtector(testMasterKey())
	require.NoError(t, err)

	plaintext := []byte(`{"firstName":"Ada","documentNumber":"X123"}`)

	sealed, err := protector.Protect(PurposePersonalData, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := protector.Unprotect(PurposePersonalData, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestProtectPurposeSeparation(t *testing.T) {
	protector, err := NewAESProtector(testMasterKey())
	require.NoError(t, err)

	sealed, err := protector.Protect(PurposeDocuments, []byte("passport scan bytes"))
	require.NoError(t, err)

	_, err = protector.Unprotect(PurposePersonalData, sealed)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeSecurity))
}

func TestUnprotectRejectsTampering(t *testing.T) {
	protector, err := NewAESProtector(testMasterKey())
	require.NoError(t, err)

	sealed, err := protector.Protect(PurposeDocuments, []byte("payload"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF
	_, err = protector.Unprotect(PurposeDocuments, sealed)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeSecurity))
}

func TestUnprotectRejectsTruncated(t *testing.T) {
	protector, err := NewAESProtector(testMasterKey())
	require.NoError(t, err)

	_, err = protector.Unprotect(PurposeDocuments, []byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeSecurity))
}

func TestProtectNonceUniqueness(t *testing.T) {
	protector, err := NewAESProtector(testMasterKey())
	require.NoError(t, err)

	a, err := protector.Protect(PurposeDocuments, []byte("same input"))
	require.NoError(t, err)
	b, err := protector.Protect(PurposeDocuments, []byte("same input"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
