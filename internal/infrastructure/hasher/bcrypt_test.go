package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := New(4) // cheap cost for test speed, still within bcrypt's valid range

	hash, err := h.Hash("s3cr3t")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cr3t", hash)

	assert.True(t, h.Verify("s3cr3t", hash))
	assert.False(t, h.Verify("wrong", hash))
}

func TestBcryptHasher_Hash_EmptyPlaintext(t *testing.T) {
	h := New(4)

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPlaintext)
}

func TestBcryptHasher_Verify_MalformedHash(t *testing.T) {
	h := New(4)

	assert.False(t, h.Verify("anything", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("anything", ""))
}

func TestNew_ClampsInvalidCost(t *testing.T) {
	h := New(0)
	assert.GreaterOrEqual(t, h.cost, 4)

	h2 := New(999)
	assert.LessOrEqual(t, h2.cost, 31)
}
