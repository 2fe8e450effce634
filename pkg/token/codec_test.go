package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiskov/appgate/pkg/apperr"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c, err := NewCodec("test-secret", WithClock(clock.Now))
	require.NoError(t, err)
	return c, clock
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c, clock := newTestCodec(t)
	for _, subject := range []string{"1", "user-42", "ünïcode"} {
		for _, ttl := range []time.Duration{time.Second, time.Minute, time.Hour, 48 * time.Hour} {
			tok, err := c.Issue(subject, ttl)
			require.NoError(t, err)

			claim, err := c.Verify(tok)
			require.NoError(t, err, "%s/%s", subject, ttl)
			assert.Equal(t, subject, claim.Subject)
			assert.True(t, claim.IssuedAt.Equal(clock.t))
			assert.True(t, claim.ExpiresAt.Equal(clock.t.Add(ttl)))
			assert.NotEmpty(t, claim.ID)
		}
	}
}

func TestVerifyJustBeforeExpiry(t *testing.T) {
	c, clock := newTestCodec(t)
	tok, err := c.Issue("7", time.Hour)
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Hour - time.Millisecond)
	_, err = c.Verify(tok)
	assert.NoError(t, err)
}

func TestIssueVerifyOffSecondBoundary(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	offsets := []time.Duration{time.Millisecond, 500 * time.Millisecond, 999 * time.Millisecond}
	ttls := []time.Duration{time.Millisecond, 500 * time.Millisecond, time.Second, 1500 * time.Millisecond, time.Hour}

	for _, off := range offsets {
		for _, ttl := range ttls {
			clock := &fakeClock{t: base.Add(off)}
			c, err := NewCodec("test-secret", WithClock(clock.Now))
			require.NoError(t, err)
			issued := clock.t

			tok, err := c.Issue("u", ttl)
			require.NoError(t, err, "at %s ttl %s", off, ttl)

			// still valid right up to issue + ttl
			clock.t = issued.Add(ttl - time.Nanosecond)
			claim, err := c.Verify(tok)
			require.NoError(t, err, "at %s ttl %s", off, ttl)

			assert.False(t, claim.IssuedAt.After(issued))
			assert.False(t, claim.ExpiresAt.Before(issued.Add(ttl)))
			assert.True(t, claim.ExpiresAt.Before(issued.Add(ttl+time.Second)))
			assert.True(t, claim.ExpiresAt.After(claim.IssuedAt))

			clock.t = claim.ExpiresAt
			_, err = c.Verify(tok)
			assert.True(t, apperr.Is(err, apperr.Expired), "at %s ttl %s: %v", off, ttl, err)
		}
	}
}

func TestIssueAtLastMillisecondOfSecond(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 999_000_000, time.UTC)}
	c, err := NewCodec("test-secret", WithClock(clock.Now))
	require.NoError(t, err)
	issued := clock.t

	for _, tc := range []struct {
		ttl   time.Duration
		check time.Duration
	}{
		{ttl: 500 * time.Millisecond, check: 499 * time.Millisecond},
		{ttl: time.Second, check: 2 * time.Millisecond},
		{ttl: time.Hour, check: 59*time.Minute + 59*time.Second + 500*time.Millisecond},
	} {
		clock.t = issued
		tok, err := c.Issue("u", tc.ttl)
		require.NoError(t, err, tc.ttl)

		clock.t = issued.Add(tc.check)
		_, err = c.Verify(tok)
		assert.NoError(t, err, tc.ttl)
	}
}

func TestVerifyExpiredAtAndAfterDeadline(t *testing.T) {
	c, clock := newTestCodec(t)
	tok, err := c.Issue("7", time.Hour)
	require.NoError(t, err)
	issued := clock.t

	for _, at := range []time.Time{issued.Add(time.Hour), issued.Add(2 * time.Hour)} {
		clock.t = at
		_, err = c.Verify(tok)
		assert.True(t, apperr.Is(err, apperr.Expired), "at %s: %v", at, err)
	}
}

func TestVerifyAlteredSignature(t *testing.T) {
	c, _ := newTestCodec(t)
	tok, err := c.Issue("7", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	// the first character carries six full signature bits, any change is visible
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	forged := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = c.Verify(forged)
	assert.True(t, apperr.Is(err, apperr.InvalidSignature), "%v", err)
}

func TestVerifyAlteredSignatureOnExpiredToken(t *testing.T) {
	c, clock := newTestCodec(t)
	tok, err := c.Issue("7", time.Minute)
	require.NoError(t, err)
	clock.t = clock.t.Add(time.Hour)

	forged := tok[:len(tok)-10] + strings.Repeat("A", 10)
	_, err = c.Verify(forged)
	assert.True(t, apperr.Is(err, apperr.InvalidSignature), "%v", err)
}

func TestVerifyWrongSecret(t *testing.T) {
	c, clock := newTestCodec(t)
	other, err := NewCodec("other-secret", WithClock(clock.Now))
	require.NoError(t, err)

	tok, err := other.Issue("7", time.Hour)
	require.NoError(t, err)
	_, err = c.Verify(tok)
	assert.True(t, apperr.Is(err, apperr.InvalidSignature), "%v", err)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	c, clock := newTestCodec(t)
	claims := jwt.RegisteredClaims{
		Subject:   "7",
		IssuedAt:  jwt.NewNumericDate(clock.t),
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(tok)
	assert.True(t, apperr.Is(err, apperr.InvalidSignature), "%v", err)
}

func TestVerifyMalformed(t *testing.T) {
	c, _ := newTestCodec(t)
	for _, tok := range []string{"", "abc", "a.b", "a.b.c.d", "!!!.???.***"} {
		_, err := c.Verify(tok)
		assert.True(t, apperr.Is(err, apperr.Malformed), "%q: %v", tok, err)
	}
}

func TestVerifyMissingExpiry(t *testing.T) {
	c, clock := newTestCodec(t)
	claims := jwt.RegisteredClaims{Subject: "7", IssuedAt: jwt.NewNumericDate(clock.t)}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = c.Verify(tok)
	assert.True(t, apperr.Is(err, apperr.Malformed), "%v", err)
}

func TestIssueRejectsBadInput(t *testing.T) {
	c, _ := newTestCodec(t)
	_, err := c.Issue("", time.Hour)
	assert.Error(t, err)
	_, err = c.Issue("7", 0)
	assert.Error(t, err)
	_, err = c.Issue("7", -time.Minute)
	assert.Error(t, err)
	_, err = c.Issue("7", time.Millisecond)
	assert.NoError(t, err)

	_, err = NewCodec("")
	assert.ErrorIs(t, err, errEmptySecret)
}

func TestHash(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", Hash("hello"))
	assert.Equal(t, Hash("a"), Hash("a"))
	assert.NotEqual(t, Hash("a"), Hash("b"))
}
