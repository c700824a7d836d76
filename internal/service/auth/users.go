package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/internal/validate"
)

type UpdateUserInput struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=80"`
	Email    *string `json:"email" validate:"omitempty,email,max=120"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	Address  *string `json:"address" validate:"omitempty,min=1"`
}

type UserPage struct {
	Total int64
	Page  int
	Size  int
	Users []models.User
}

func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.Users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		loggerFor(ctx, "users.get").Error("get_user_failed", "status", 500, "user_id", id, "error", err)
		return nil, err
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, page, size int) (*UserPage, error) {
	offset, limit := util.Calculate(page, size)
	total, users, err := s.Users.ListUsers(ctx, offset, limit)
	if err != nil {
		loggerFor(ctx, "users.list").Error("list_users_failed", "status", 500, "error", err)
		return nil, err
	}
	return &UserPage{Total: total, Page: offset/limit + 1, Size: limit, Users: users}, nil
}

// UpdateUser applies a partial update to the caller's own account.
func (s *Service) UpdateUser(ctx context.Context, actor Actor, id uint, in UpdateUserInput) (*models.User, error) {
	l := loggerFor(ctx, "users.update").With("user_id", id, "actor_id", actor.ID)

	if actor.ID != id {
		l.Warn("update_user_failed", "status", 403)
		return nil, ErrForbidden
	}

	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		in.Username = &v
	}
	if in.Email != nil {
		v := normalizeEmail(*in.Email)
		in.Email = &v
	}
	if in.Address != nil {
		v := strings.TrimSpace(*in.Address)
		in.Address = &v
	}
	if fields := validate.Struct(in); fields != nil {
		l.Warn("update_user_failed", "status", 422, "fields", fields)
		return nil, &ValidationError{Fields: fields}
	}

	var username, email string
	if in.Username != nil {
		username = *in.Username
	}
	if in.Email != nil {
		email = *in.Email
	}
	if verr, err := s.uniqueness(ctx, username, email, id); err != nil {
		l.Error("update_user_failed", "status", 500, "error", err)
		return nil, err
	} else if verr != nil {
		l.Warn("update_user_failed", "status", 422, "fields", verr.Fields)
		return nil, verr
	}

	updates := map[string]any{}
	if in.Username != nil {
		updates["username"] = *in.Username
	}
	if in.Email != nil {
		updates["email"] = *in.Email
	}
	if in.Address != nil {
		updates["address"] = *in.Address
	}
	if in.Password != nil {
		pwHash, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			l.Error("update_user_failed", "status", 500, "error", err)
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = pwHash
	}

	user, err := s.Users.UpdateUser(ctx, id, updates)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return nil, &ValidationError{Fields: map[string]string{"username": "Username or email already exists."}, Conflict: true}
		}
		l.Error("update_user_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("update_user_successful")
	s.publishUserEvent(ctx, "user_updated", user)
	return user, nil
}

// DeleteUser removes an account. Users may delete themselves; admins may
// delete anyone.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, id uint) error {
	l := loggerFor(ctx, "users.delete").With("user_id", id, "actor_id", actor.ID)

	if actor.ID != id && !actor.IsAdmin() {
		l.Warn("delete_user_failed", "status", 403)
		return ErrForbidden
	}
	if err := s.Users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		l.Error("delete_user_failed", "status", 500, "error", err)
		return err
	}

	l.Info("delete_user_successful")
	s.publishUserEvent(ctx, "user_deleted", &models.User{ID: id})
	return nil
}

// UserLogs returns the audit trail of a user, newest first.
func (s *Service) UserLogs(ctx context.Context, actor Actor, id uint) ([]models.Log, error) {
	if actor.ID != id && !actor.IsAdmin() {
		loggerFor(ctx, "users.logs").Warn("user_logs_failed", "status", 403, "user_id", id, "actor_id", actor.ID)
		return nil, ErrForbidden
	}
	logs, err := s.Users.ListLogs(ctx, id)
	if err != nil {
		loggerFor(ctx, "users.logs").Error("user_logs_failed", "status", 500, "error", err)
		return nil, err
	}
	return logs, nil
}
