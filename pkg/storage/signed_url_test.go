package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSignerIssueAndVerify(t *testing.T) {
	signer := NewURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Issue("exp-1", "substitutions/2025-01.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	grant, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", grant.ExportID)
	assert.Equal(t, "substitutions/2025-01.csv", grant.Key)
	assert.WithinDuration(t, expiresAt, grant.ExpiresAt, time.Second)
}

func TestURLSignerRejectsExpiredToken(t *testing.T) {
	signer := NewURLSigner("secret", time.Minute)
	issued := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Issue("exp-1", "a.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	grant, err := signer.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, "a.csv", grant.Key)
}

func TestURLSignerRejectsTamperedToken(t *testing.T) {
	signer := NewURLSigner("secret", time.Hour)
	token, _, err := signer.Issue("exp-1", "a.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "exp-2"
	_, err = signer.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewURLSigner("other", time.Hour).Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestURLSignerRequiresSecret(t *testing.T) {
	_, _, err := NewURLSigner("", time.Hour).Issue("exp-1", "a.csv")
	require.Error(t, err)
}
