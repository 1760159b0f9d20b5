// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package signing_test

import (
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-accounts/internal/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHashKey  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	otherHashKey = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newSigner(t *testing.T, hexKey string, opts ...signing.Option) *signing.Signer {
	t.Helper()
	key, err := signing.ParseKey(hexKey, "test key")
	require.NoError(t, err)
	s, err := signing.New(key, nil, opts...)
	require.NoError(t, err)
	return s
}

func TestSignVerify_RoundTrip(t *testing.T) {
	s := newSigner(t, testHashKey)

	values := []string{"", "a@b.com", "zażółć gęślą jaźń", "line1\nline2", strings.Repeat("x", 512)}
	for _, v := range values {
		token, err := s.Sign(v, "registration")
		require.NoError(t, err)

		got, err := s.Verify(token, "registration", time.Hour)

		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestSign_TokenIsURLSafe(t *testing.T) {
	s := newSigner(t, testHashKey)

	token, err := s.Sign("a@b.com", "registration")

	require.NoError(t, err)
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "a@b.com")
}

func TestVerify_WrongSalt(t *testing.T) {
	s := newSigner(t, testHashKey)

	token, err := s.Sign("a@b.com", "registration")
	require.NoError(t, err)

	_, err = s.Verify(token, "recovery", time.Hour)

	assert.ErrorIs(t, err, signing.ErrBadSignature)
}

func TestVerify_WrongKey(t *testing.T) {
	s1 := newSigner(t, testHashKey)
	s2 := newSigner(t, otherHashKey)

	token, err := s1.Sign("a@b.com", "registration")
	require.NoError(t, err)

	_, err = s2.Verify(token, "registration", time.Hour)

	assert.ErrorIs(t, err, signing.ErrBadSignature)
}

func TestVerify_Tampered(t *testing.T) {
	s := newSigner(t, testHashKey)

	token, err := s.Sign("a@b.com", "registration")
	require.NoError(t, err)

	i := len(token) / 2
	replacement := byte('A')
	if token[i] == 'A' {
		replacement = 'B'
	}
	tampered := token[:i] + string(replacement) + token[i+1:]

	_, err = s.Verify(tampered, "registration", time.Hour)

	assert.ErrorIs(t, err, signing.ErrBadSignature)
}

func TestVerify_Garbage(t *testing.T) {
	s := newSigner(t, testHashKey)

	for _, token := range []string{"", "not-a-token", "a|b|c", "%%%", strings.Repeat("z", 5000)} {
		_, err := s.Verify(token, "registration", time.Hour)
		assert.ErrorIs(t, err, signing.ErrBadSignature, "token %q", token)
	}
}

func TestVerify_Expired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := newSigner(t, testHashKey, signing.WithClock(clock.Now))

	token, err := s.Sign("a@b.com", "registration")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	got, err := s.Verify(token, "registration", time.Hour)
	require.NoError(t, err, "age equal to max age is still valid")
	assert.Equal(t, "a@b.com", got)

	clock.Advance(time.Nanosecond)
	_, err = s.Verify(token, "registration", time.Hour)

	assert.ErrorIs(t, err, signing.ErrExpired)
	assert.NotErrorIs(t, err, signing.ErrBadSignature)
}

func TestVerify_ExpiredWithRealClock(t *testing.T) {
	s := newSigner(t, testHashKey)

	token, err := s.Sign("a@b.com", "registration")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = s.Verify(token, "registration", time.Millisecond)

	assert.ErrorIs(t, err, signing.ErrExpired)
}

func TestVerify_NoMaxAge(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := newSigner(t, testHashKey, signing.WithClock(clock.Now))

	token, err := s.Sign("a@b.com", "registration")
	require.NoError(t, err)

	clock.Advance(365 * 24 * time.Hour)
	got, err := s.Verify(token, "registration", 0)

	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got)
}

func TestSignVerify_LongValue(t *testing.T) {
	s := newSigner(t, testHashKey)
	value := strings.Repeat("x", 10*1024)

	token, err := s.Sign(value, "registration")
	require.NoError(t, err)
	got, err := s.Verify(token, "registration", time.Hour)

	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestNew_WithBlockKey(t *testing.T) {
	hashKey, err := signing.ParseKey(testHashKey, "hash key")
	require.NoError(t, err)
	blockKey, err := signing.ParseKey(otherHashKey, "block key")
	require.NoError(t, err)

	s, err := signing.New(hashKey, blockKey)
	require.NoError(t, err)

	token, err := s.Sign("a@b.com", "registration")
	require.NoError(t, err)
	got, err := s.Verify(token, "registration", time.Hour)

	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got)
}

func TestNew_ShortHashKey(t *testing.T) {
	_, err := signing.New([]byte("short"), nil)

	assert.ErrorIs(t, err, signing.ErrInvalidKey)
}

func TestNew_BadBlockKey(t *testing.T) {
	_, err := signing.New(signing.GenerateKey(), []byte("0123456789"))

	assert.ErrorIs(t, err, signing.ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	key, err := signing.ParseKey(testHashKey, "signing key")

	require.NoError(t, err)
	assert.Len(t, key, signing.KeyLength)
}

func TestParseKey_NotHex(t *testing.T) {
	_, err := signing.ParseKey("not-hex-encoded", "signing key")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signing key")
}

func TestParseKey_WrongLength(t *testing.T) {
	_, err := signing.ParseKey("0123456789abcdef", "signing key")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 32 bytes")
}

func TestGenerateKey(t *testing.T) {
	k1 := signing.GenerateKey()
	k2 := signing.GenerateKey()

	assert.Len(t, k1, signing.KeyLength)
	assert.NotEqual(t, k1, k2)
}
