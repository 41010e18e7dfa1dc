package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Network-free verdicts only; MX and WHOIS paths require DNS.

func TestVerifyEmailAddressRejectsBadFormat(t *testing.T) {
	result, err := VerifyEmailAddress("not-an-address")
	require.NoError(t, err)
	assert.Equal(t, "invalid", result.Status)
	assert.True(t, result.IsBounceRisk)
}

func TestVerifyEmailAddressDetectsTypo(t *testing.T) {
	result, err := VerifyEmailAddress("someone@gmai.com")
	require.NoError(t, err)
	assert.Equal(t, "invalid", result.Status)
	assert.Contains(t, result.Details, "gmail.com")
}

func TestVerifyEmailAddressFlagsDisposable(t *testing.T) {
	result, err := VerifyEmailAddress("someone@mailinator.com")
	require.NoError(t, err)
	assert.Equal(t, "disposable", result.Status)
}

func TestVerifyEmailAddressNormalizes(t *testing.T) {
	result, err := VerifyEmailAddress("  Someone@MAILINATOR.COM ")
	require.NoError(t, err)
	assert.Equal(t, "someone@mailinator.com", result.Email)
	assert.Equal(t, "disposable", result.Status)
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("user@example.com"))
	assert.Equal(t, "", ExtractDomain("no-at-sign"))
	assert.Equal(t, "", ExtractDomain("a@b@c"))
}
