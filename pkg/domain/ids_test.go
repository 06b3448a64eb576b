package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
)

func TestParseUserID(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		original := NewUserID()
		parsed, err := ParseUserID(original.String())
		require.NoError(t, err)
		assert.Equal(t, original, parsed)
	})

	t.Run("empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("nil uuid rejected", func(t *testing.T) {
		_, err := ParseUserID("00000000-0000-0000-0000-000000000000")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestIDTypesAreDistinct(t *testing.T) {
	userID := NewUserID()
	documentID := NewDocumentID()
	captureID := NewCaptureID()

	assert.False(t, userID.IsNil())
	assert.False(t, documentID.IsNil())
	assert.False(t, captureID.IsNil())
	assert.NotEqual(t, userID.String(), documentID.String())
}

func TestJSONEncoding(t *testing.T) {
	t.Run("marshals as uuid string", func(t *testing.T) {
		userID := NewUserID()
		data, err := json.Marshal(userID)
		require.NoError(t, err)
		assert.Equal(t, `"`+userID.String()+`"`, string(data))
	})

	t.Run("unmarshal round trip", func(t *testing.T) {
		original := NewDocumentID()
		data, err := json.Marshal(original)
		require.NoError(t, err)

		var parsed DocumentID
		require.NoError(t, json.Unmarshal(data, &parsed))
		assert.Equal(t, original, parsed)
	})

	t.Run("unmarshal rejects garbage", func(t *testing.T) {
		var parsed CaptureID
		assert.Error(t, json.Unmarshal([]byte(`"garbage"`), &parsed))
	})
}
