package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, secret string) *Issuer {
	t.Helper()
	i, err := NewIssuer(Config{Secret: secret, SessionTTL: 24 * time.Hour, ResetTTL: time.Hour})
	require.NoError(t, err)
	return i
}

func TestNewIssuer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer(Config{SessionTTL: time.Hour, ResetTTL: time.Hour})
	assert.Error(t, err)
	_, err = NewIssuer(Config{Secret: "k", ResetTTL: time.Hour})
	assert.Error(t, err)
	_, err = NewIssuer(Config{Secret: "k", SessionTTL: time.Hour})
	assert.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "super-secret")
	in := Claims{Subject: "acc-1", Role: "admin", Kind: KindSession}

	tok, err := i.Issue(in, time.Minute)
	require.NoError(t, err)

	got, err := i.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, in.Subject, got.Subject)
	assert.Equal(t, in.Role, got.Role)
	assert.Equal(t, in.Kind, got.Kind)
	assert.WithinDuration(t, time.Now().Add(time.Minute), got.ExpiresAt, 2*time.Second)
}

func TestVerify_AfterTTL(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "super-secret")
	fakeNow := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	i.nowFunc = func() time.Time { return fakeNow }

	tok, err := i.Issue(Claims{Subject: "acc-1", Kind: KindSession}, time.Hour)
	require.NoError(t, err)

	i.nowFunc = func() time.Time { return fakeNow.Add(59 * time.Minute) }
	_, err = i.Verify(tok)
	require.NoError(t, err)

	i.nowFunc = func() time.Time { return fakeNow.Add(61 * time.Minute) }
	_, err = i.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_SubSecondIssueKeepsFullTTL(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "super-secret")
	issuedAt := time.Date(2026, 2, 16, 12, 0, 0, 900_000_000, time.UTC)
	i.nowFunc = func() time.Time { return issuedAt }

	tok, err := i.Issue(Claims{Subject: "acc-1", Kind: KindReset}, 2*time.Second)
	require.NoError(t, err)

	for _, elapsed := range []time.Duration{1500 * time.Millisecond, 1990 * time.Millisecond} {
		i.nowFunc = func() time.Time { return issuedAt.Add(elapsed) }
		got, err := i.Verify(tok)
		require.NoError(t, err, "elapsed %s", elapsed)
		assert.Equal(t, time.Date(2026, 2, 16, 12, 0, 3, 0, time.UTC), got.ExpiresAt.UTC())
	}

	i.nowFunc = func() time.Time { return issuedAt.Add(3 * time.Second) }
	_, err = i.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestExpiryAt(t *testing.T) {
	t.Parallel()

	whole := time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, whole.Add(time.Hour), expiryAt(whole, time.Hour))
	assert.Equal(t, whole.Add(2*time.Second), expiryAt(whole.Add(time.Nanosecond), time.Second))
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := newTestIssuer(t, "right-secret").IssueSession("acc-2", "user")
	require.NoError(t, err)

	_, err = newTestIssuer(t, "wrong-secret").Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k")
	for _, raw := range []string{"", "not.a.jwt", "abc"} {
		_, err := i.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", raw)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k")
	tok, err := i.IssueSession("acc-3", "user")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	other, err := i.IssueSession("acc-4", "admin")
	require.NoError(t, err)
	forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

	_, err = i.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsOtherSigningMethod(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k")
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{
		Kind: KindSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-5",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = i.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueResetAndSession_Kinds(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k")

	reset, err := i.IssueReset("acc-6")
	require.NoError(t, err)
	rc, err := i.Verify(reset)
	require.NoError(t, err)
	assert.Equal(t, KindReset, rc.Kind)
	assert.Empty(t, rc.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), rc.ExpiresAt, 2*time.Second)

	session, err := i.IssueSession("acc-6", "user")
	require.NoError(t, err)
	sc, err := i.Verify(session)
	require.NoError(t, err)
	assert.Equal(t, KindSession, sc.Kind)
	assert.Equal(t, "user", sc.Role)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), sc.ExpiresAt, 2*time.Second)
}

func TestIssue_RequiresSubject(t *testing.T) {
	t.Parallel()

	_, err := newTestIssuer(t, "k").Issue(Claims{}, time.Minute)
	assert.Error(t, err)
}
