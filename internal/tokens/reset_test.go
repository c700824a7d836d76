package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxAge = 3600 * time.Second

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestResetCodec_ValidWithinWindow(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := issued
	codec := NewResetCodec([]byte("secret-key")).WithClock(fixedClock(&now))

	tok, err := codec.Generate(17)
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, time.Second, 30 * time.Minute, 3599 * time.Second} {
		now = issued.Add(offset)
		id, err := codec.Verify(tok, maxAge)
		require.NoError(t, err, "offset %s", offset)
		assert.Equal(t, uint(17), id)
	}
}

func TestResetCodec_ExpiredAtBoundary(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := issued
	codec := NewResetCodec([]byte("secret-key")).WithClock(fixedClock(&now))

	tok, err := codec.Generate(17)
	require.NoError(t, err)

	for _, offset := range []time.Duration{3600 * time.Second, 3601 * time.Second, 48 * time.Hour} {
		now = issued.Add(offset)
		_, err := codec.Verify(tok, maxAge)
		require.ErrorIs(t, err, ErrResetExpired, "offset %s", offset)
	}
}

// The window is measured from the exact issue instant, not from the
// second it falls in.
func TestResetCodec_FractionalSecondIssue(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 5, 1, 10, 0, 0, 900_000_000, time.UTC)
	now := issued
	codec := NewResetCodec([]byte("secret-key")).WithClock(fixedClock(&now))

	tok, err := codec.Generate(17)
	require.NoError(t, err)

	for _, offset := range []time.Duration{
		3599*time.Second + 600*time.Millisecond,
		maxAge - time.Nanosecond,
	} {
		now = issued.Add(offset)
		id, err := codec.Verify(tok, maxAge)
		require.NoError(t, err, "offset %s", offset)
		assert.Equal(t, uint(17), id)
	}

	now = issued.Add(maxAge)
	_, err = codec.Verify(tok, maxAge)
	require.ErrorIs(t, err, ErrResetExpired)
}

func TestResetCodec_WrongSecretIsMalformed(t *testing.T) {
	t.Parallel()

	tok, err := NewResetCodec([]byte("secret-a")).Generate(5)
	require.NoError(t, err)

	_, err = NewResetCodec([]byte("secret-b")).Verify(tok, maxAge)
	require.ErrorIs(t, err, ErrResetMalformed)
}

// A signature failure must win over age: an old forged token is malformed.
func TestResetCodec_TamperedExpiredIsMalformed(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := issued
	codec := NewResetCodec([]byte("secret-key")).WithClock(fixedClock(&now))
	tok, err := codec.Generate(5)
	require.NoError(t, err)

	now = issued.Add(5 * time.Hour)
	_, err = NewResetCodec([]byte("other")).WithClock(fixedClock(&now)).Verify(tok, maxAge)
	require.ErrorIs(t, err, ErrResetMalformed)
}

func TestResetCodec_AnySingleByteAltered(t *testing.T) {
	t.Parallel()

	codec := NewResetCodec([]byte("secret-key"))
	tok, err := codec.Generate(99)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		b := []byte(tok)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		_, err := codec.Verify(string(b), maxAge)
		require.ErrorIs(t, err, ErrResetMalformed, "position %d", i)
	}
}

func TestResetCodec_Garbage(t *testing.T) {
	t.Parallel()

	codec := NewResetCodec([]byte("secret-key"))
	for _, tok := range []string{"", "abc", "a.b.c", strings.Repeat("x", 200)} {
		_, err := codec.Verify(tok, maxAge)
		require.ErrorIs(t, err, ErrResetMalformed, tok)
	}
}

func TestResetCodec_AccessTokenIsNotAResetToken(t *testing.T) {
	t.Parallel()

	iss := &Issuer{AccessSecret: []byte("secret-key"), RefreshSecret: []byte("r"), AccessTTL: time.Hour}
	tok, err := iss.IssueAccess(1, "u", "user")
	require.NoError(t, err)

	_, err = NewResetCodec([]byte("secret-key")).Verify(tok.Raw, maxAge)
	require.ErrorIs(t, err, ErrResetMalformed)
}

func TestResetCodec_URLSafe(t *testing.T) {
	t.Parallel()

	tok, err := NewResetCodec([]byte("secret-key")).Generate(1)
	require.NoError(t, err)
	assert.NotContains(t, tok, "/")
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "=")
}
