package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/tokens"
	"github.com/Skotchmaster/storefront/internal/validate"
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=80"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=6"`
	Address  string `json:"address" validate:"required"`
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         *models.User
}

func loggerFor(ctx context.Context, svc string) *slog.Logger {
	return logging.FromContext(ctx).With("svc", svc)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := loggerFor(ctx, "auth.register")

	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Address = strings.TrimSpace(in.Address)
	if fields := validate.Struct(in); fields != nil {
		l.Warn("register_failed", "status", 422, "fields", fields)
		return nil, &ValidationError{Fields: fields}
	}

	if verr, err := s.uniqueness(ctx, in.Username, in.Email, 0); err != nil {
		l.Error("register_failed", "status", 500, "reason", "uniqueness check", "error", err)
		return nil, err
	} else if verr != nil {
		l.Warn("register_failed", "status", 422, "fields", verr.Fields)
		return nil, verr
	}

	pwHash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := models.RoleUser
	if s.Opts.AdminEmail != "" && in.Email == s.Opts.AdminEmail {
		role = models.RoleAdmin
	}
	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         role,
		Address:      in.Address,
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// lost a race against a concurrent registration
			verr, cerr := s.uniqueness(ctx, in.Username, in.Email, 0)
			if cerr != nil || verr == nil {
				verr = &ValidationError{Fields: map[string]string{"username": "Username or email already exists."}, Conflict: true}
			}
			l.Warn("register_failed", "status", 422, "reason", "duplicate on insert")
			return nil, verr
		}
		l.Error("register_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("register_successful", "user_id", user.ID, "role", user.Role)
	s.publishUserEvent(ctx, "user_registered", user)
	return user, nil
}

// uniqueness returns a conflict ValidationError when username or email
// belong to a user other than exceptID.
func (s *Service) uniqueness(ctx context.Context, username, email string, exceptID uint) (*ValidationError, error) {
	fields := map[string]string{}
	if username != "" {
		taken, err := s.Users.UsernameTaken(ctx, username, exceptID)
		if err != nil {
			return nil, err
		}
		if taken {
			fields["username"] = "Username already exists."
		}
	}
	if email != "" {
		taken, err := s.Users.EmailTaken(ctx, email, exceptID)
		if err != nil {
			return nil, err
		}
		if taken {
			fields["email"] = "Email already exists."
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &ValidationError{Fields: fields, Conflict: true}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	l := loggerFor(ctx, "auth.login").With("email", email)

	if email == "" || password == "" {
		l.Warn("login_failed", "status", 400, "reason", "missing credentials")
		return nil, &ValidationError{Fields: map[string]string{"_schema": "Email and password are required"}}
	}

	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Metrics.ObserveLogin("invalid_credentials")
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, ErrUnauthorized
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if !s.Hasher.Check(user.PasswordHash, password) {
		s.Metrics.ObserveLogin("invalid_credentials")
		l.Warn("login_failed", "status", 401, "reason", "wrong password", "user_id", user.ID)
		return nil, ErrUnauthorized
	}

	access, err := s.Tokens.Issuer.IssueAccess(user.ID, user.Username, user.Role)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	refresh, err := s.Tokens.Issuer.IssueRefresh(user.ID, user.Username, user.Role)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	s.Metrics.ObserveLogin("success")
	l.Info("login_successful", "user_id", user.ID)
	s.publishUserEvent(ctx, "user_logged_in", user)

	return &LoginResult{
		AccessToken:  access.Raw,
		RefreshToken: refresh.Raw,
		AccessExp:    access.ExpiresAt.Time,
		RefreshExp:   refresh.ExpiresAt.Time,
		User:         user,
	}, nil
}

// Authenticate verifies a bearer access token. Every rejection is reported
// as ErrUnauthorized; the precise reason only reaches logs and metrics.
func (s *Service) Authenticate(ctx context.Context, raw string) (*tokens.Claims, error) {
	return s.authenticate(ctx, raw, tokens.TypeAccess)
}

func (s *Service) AuthenticateRefresh(ctx context.Context, raw string) (*tokens.Claims, error) {
	return s.authenticate(ctx, raw, tokens.TypeRefresh)
}

func (s *Service) authenticate(ctx context.Context, raw, typ string) (*tokens.Claims, error) {
	claims, err := s.Tokens.Verify(ctx, raw, typ)
	if err == nil {
		return claims, nil
	}
	l := loggerFor(ctx, "auth.verify")
	if errors.Is(err, tokens.ErrInvalidToken) {
		reason := tokens.Reason(err)
		s.Metrics.ObserveTokenRejected(reason)
		l.Warn("token_rejected", "status", 401, "type", typ, "reason", reason, "error", err)
		return nil, ErrUnauthorized
	}
	l.Error("token_verify_error", "status", 500, "type", typ, "error", err)
	return nil, err
}

// Refresh mints a new access token for the user behind a verified refresh
// token. Role and username are re-read so demotions take effect.
func (s *Service) Refresh(ctx context.Context, refresh *tokens.Claims) (*tokens.Token, error) {
	l := loggerFor(ctx, "auth.refresh")

	userID, err := refresh.UserID()
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "user no longer exists", "user_id", userID)
			return nil, ErrUnauthorized
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	access, err := s.Tokens.Issuer.IssueAccess(user.ID, user.Username, user.Role)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}
	l.Info("refresh_successful", "user_id", user.ID)
	return access, nil
}

// Logout revokes the presented access token and, when given, a refresh
// token belonging to the same user. An unusable refresh token is ignored.
func (s *Service) Logout(ctx context.Context, access *tokens.Claims, refreshRaw string) error {
	l := loggerFor(ctx, "auth.logout").With("jti", access.ID)

	if err := s.Tokens.Revoke(ctx, access); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return err
	}
	s.Metrics.ObserveRevoked()

	if refreshRaw != "" {
		refresh, err := s.Tokens.Verify(ctx, refreshRaw, tokens.TypeRefresh)
		switch {
		case err != nil:
			l.Warn("logout_refresh_ignored", "reason", tokens.Reason(err), "error", err)
		case refresh.Subject != access.Subject:
			l.Warn("logout_refresh_ignored", "reason", "subject mismatch")
		default:
			if err := s.Tokens.Revoke(ctx, refresh); err != nil {
				l.Error("logout_failed", "status", 500, "error", err)
				return err
			}
			s.Metrics.ObserveRevoked()
		}
	}

	l.Info("logout_successful")
	if id, err := access.UserID(); err == nil {
		s.publishUserEvent(ctx, "user_logged_out", &models.User{ID: id, Username: access.Username})
	}
	return nil
}
