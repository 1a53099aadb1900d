package crypto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known test vector key (hardhat account #0). Never holds real funds.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const testKeyAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestNewSigner_DerivesAddress(t *testing.T) {
	s, err := NewSigner(testKeyHex, 8009)
	require.NoError(t, err)
	assert.Equal(t, testKeyAddr, s.Account())

	// 0x prefix is accepted too.
	s2, err := NewSigner("0x"+testKeyHex, 8009)
	require.NoError(t, err)
	assert.Equal(t, s.Account(), s2.Account())
}

func TestNewSigner_RejectsGarbage(t *testing.T) {
	_, err := NewSigner("not-a-key", 8009)
	assert.Error(t, err)
}

func TestIssuePermit(t *testing.T) {
	s, err := NewSigner(testKeyHex, 8009)
	require.NoError(t, err)

	permit, err := s.IssuePermit(context.Background(), "0x1111111111111111111111111111111111111111", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, s.Account(), permit.Account)
	assert.NotEmpty(t, permit.Signature)
	assert.True(t, permit.ExpiresAt.After(permit.IssuedAt))
	// 65-byte signature, hex encoded with 0x prefix.
	assert.Len(t, permit.Signature, 2+65*2)
	assert.True(t, permit.Valid(time.Now().Add(time.Minute)))
	assert.False(t, permit.Valid(time.Now().Add(2*time.Hour)))
}

func TestEncryptDecryptKey_RoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestLoadKey_RawTakesPrecedence(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKey_NoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}
