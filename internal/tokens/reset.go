package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ResetPurpose = "reset-password"
	resetSalt    = "reset-password-salt"
)

var (
	ErrResetExpired   = errors.New("reset token expired")
	ErrResetMalformed = errors.New("reset token malformed")
)

type resetClaims struct {
	Purpose string `json:"purpose"`
	// IssuedNano is the issue time in Unix nanoseconds. Expiry is computed
	// from it since iat only carries whole seconds.
	IssuedNano int64 `json:"iat_ns"`
	jwt.RegisteredClaims
}

// ResetCodec signs and verifies password reset tokens. Tokens are
// stateless: expiry is computed from the embedded issue time at
// verification, so a token stays usable until it ages out.
type ResetCodec struct {
	key []byte
	now func() time.Time
}

func NewResetCodec(secret []byte) *ResetCodec {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(resetSalt))
	return &ResetCodec{key: mac.Sum(nil), now: time.Now}
}

// WithClock returns a copy of the codec reading time from now.
func (c *ResetCodec) WithClock(now func() time.Time) *ResetCodec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *ResetCodec) Generate(userID uint) (string, error) {
	now := c.now()
	claims := resetClaims{
		Purpose:    ResetPurpose,
		IssuedNano: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatUint(uint64(userID), 10),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("tokens: sign reset token: %w", err)
	}
	return raw, nil
}

// Verify returns the user id carried by token. Integrity is checked before
// age, so a tampered token is always ErrResetMalformed. The token expires
// once now >= issued + maxAge.
func (c *ResetCodec) Verify(token string, maxAge time.Duration) (uint, error) {
	var claims resetClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResetMalformed, err)
	}
	if claims.Purpose != ResetPurpose || claims.IssuedNano <= 0 {
		return 0, ErrResetMalformed
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrResetMalformed
	}

	if !c.now().Before(time.Unix(0, claims.IssuedNano).Add(maxAge)) {
		return 0, ErrResetExpired
	}
	return uint(id), nil
}
