package tokens

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")

	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenRevoked   = fmt.Errorf("%w: revoked", ErrInvalidToken)
	ErrWrongTokenType = fmt.Errorf("%w: wrong type", ErrInvalidToken)
)

// Reason labels a verification failure for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrWrongTokenType):
		return "wrong_type"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	default:
		return "error"
	}
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrTokenMalformed, c.Subject)
	}
	return uint(id), nil
}

// Token is a signed token together with the metadata the caller needs to
// hand it out or revoke it later.
type Token struct {
	Raw       string
	ID        string
	ExpiresAt jwt.NumericDate
}
