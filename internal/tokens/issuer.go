package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) IssueAccess(userID uint, username, role string) (*Token, error) {
	return i.issue(TypeAccess, i.AccessSecret, i.AccessTTL, userID, username, role)
}

func (i *Issuer) IssueRefresh(userID uint, username, role string) (*Token, error) {
	return i.issue(TypeRefresh, i.RefreshSecret, i.RefreshTTL, userID, username, role)
}

func (i *Issuer) issue(typ string, secret []byte, ttl time.Duration, userID uint, username, role string) (*Token, error) {
	if len(secret) == 0 {
		return nil, errors.New("tokens: empty signing secret")
	}
	now := i.now()
	jti := uuid.NewString()
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		Username: username,
		Role:     role,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("tokens: sign %s token: %w", typ, err)
	}
	return &Token{Raw: raw, ID: jti, ExpiresAt: *exp}, nil
}

// Parse checks signature, expiry and type. It does not consult the
// revocation ledger; use Verifier for that.
func (i *Issuer) Parse(raw, typ string) (*Claims, error) {
	secret := i.AccessSecret
	if typ == TypeRefresh {
		secret = i.RefreshSecret
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	},
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !tkn.Valid || claims.ID == "" {
		return nil, ErrTokenMalformed
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return &claims, nil
}
