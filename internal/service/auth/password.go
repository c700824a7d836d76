package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

const minPasswordLen = 6

func checkNewPassword(field, password string) *ValidationError {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fieldError(field, fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	return nil
}

// ChangePassword replaces the caller's password after checking the current
// one. On any failure the stored hash is left untouched.
func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	l := loggerFor(ctx, "auth.change_password").With("user_id", userID)

	if current == "" || next == "" {
		l.Warn("change_password_failed", "status", 400, "reason", "missing fields")
		return &ValidationError{Fields: map[string]string{"_schema": "Current password and new password are required"}}
	}

	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("change_password_failed", "status", 404, "reason", "user not found")
			return ErrNotFound
		}
		l.Error("change_password_failed", "status", 500, "error", err)
		return err
	}
	if !s.Hasher.Check(user.PasswordHash, current) {
		l.Warn("change_password_failed", "status", 400, "reason", "wrong current password")
		return ErrWrongCurrentPassword
	}
	if verr := checkNewPassword("new_password", next); verr != nil {
		l.Warn("change_password_failed", "status", 400, "reason", "weak password")
		return verr
	}

	pwHash, err := s.Hasher.Hash(next)
	if err != nil {
		l.Error("change_password_failed", "status", 500, "error", err)
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Users.UpdatePassword(ctx, userID, pwHash, models.ActionPasswordChanged); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		l.Error("change_password_failed", "status", 500, "error", err)
		return err
	}

	l.Info("change_password_successful")
	s.publishUserEvent(ctx, "password_changed", user)
	return nil
}

// ForgotPassword mails a reset link to the account behind email. The audit
// entry is written only after the mail server accepted the message.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	l := loggerFor(ctx, "auth.forgot_password").With("email", email)

	if email == "" {
		l.Warn("forgot_password_failed", "status", 400, "reason", "missing email")
		return fieldError("email", "Email is required")
	}

	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("forgot_password_failed", "status", 404, "reason", "unknown email")
			return ErrNotFound
		}
		l.Error("forgot_password_failed", "status", 500, "error", err)
		return err
	}

	token, err := s.Reset.Generate(user.ID)
	if err != nil {
		l.Error("forgot_password_failed", "status", 500, "error", err)
		return err
	}
	link := s.Opts.ResetURLBase + "/" + token

	mailCtx, cancel := context.WithTimeout(ctx, s.mailTimeout())
	err = s.Mailer.Send(mailCtx, notify.PasswordResetMessage(user.Email, link))
	cancel()
	if err != nil {
		s.Metrics.ObservePasswordReset("delivery_failed")
		l.Error("forgot_password_failed", "status", 502, "reason", "mail delivery", "user_id", user.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	if err := s.Users.AddLog(ctx, &models.Log{UserID: user.ID, Action: models.ActionResetEmailSent}); err != nil {
		l.Warn("audit_log_failed", "action", models.ActionResetEmailSent, "user_id", user.ID, "error", err)
	}

	s.Metrics.ObservePasswordReset("requested")
	l.Info("forgot_password_sent", "user_id", user.ID)
	s.publishUserEvent(ctx, "password_reset_requested", user)
	return nil
}

func (s *Service) mailTimeout() time.Duration {
	if s.Opts.MailTimeout > 0 {
		return s.Opts.MailTimeout
	}
	return 10 * time.Second
}

// ResetPassword sets a new password for the user named by a reset token.
// Tokens are not consumed and remain usable until they expire.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	l := loggerFor(ctx, "auth.reset_password")

	if verr := checkNewPassword("new_password", newPassword); verr != nil {
		l.Warn("reset_password_failed", "status", 400, "reason", "weak password")
		return verr
	}

	userID, err := s.Reset.Verify(token, s.Opts.ResetMaxAge)
	if err != nil {
		kind := "malformed"
		if errors.Is(err, tokens.ErrResetExpired) {
			kind = "expired"
		}
		s.Metrics.ObservePasswordReset("rejected_" + kind)
		l.Warn("reset_password_failed", "status", 400, "reason", kind, "error", err)
		return ErrInvalidResetToken
	}
	l = l.With("user_id", userID)

	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("reset_password_failed", "status", 400, "reason", "user no longer exists")
			return ErrInvalidResetToken
		}
		l.Error("reset_password_failed", "status", 500, "error", err)
		return err
	}

	pwHash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		l.Error("reset_password_failed", "status", 500, "error", err)
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Users.UpdatePassword(ctx, user.ID, pwHash, models.ActionPasswordReset); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		l.Error("reset_password_failed", "status", 500, "error", err)
		return err
	}

	s.Metrics.ObservePasswordReset("completed")
	l.Info("reset_password_successful")
	s.publishUserEvent(ctx, "password_reset", user)
	return nil
}
