package tokens

import (
	"context"
	"fmt"
	"time"
)

// Ledger is the persisted set of revoked token ids.
type Ledger interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeToken must treat an already revoked jti as success.
	RevokeToken(ctx context.Context, jti string, userID uint, expiresAt time.Time) error
}

type Verifier struct {
	Issuer *Issuer
	Ledger Ledger
}

// Verify returns the claims of a valid, unrevoked token of the given type.
// Every call consults the ledger.
func (v *Verifier) Verify(ctx context.Context, raw, typ string) (*Claims, error) {
	claims, err := v.Issuer.Parse(raw, typ)
	if err != nil {
		return nil, err
	}
	revoked, err := v.Ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("tokens: ledger lookup: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (v *Verifier) Revoke(ctx context.Context, claims *Claims) error {
	userID, err := claims.UserID()
	if err != nil {
		return err
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := v.Ledger.RevokeToken(ctx, claims.ID, userID, exp); err != nil {
		return fmt.Errorf("tokens: revoke: %w", err)
	}
	return nil
}
