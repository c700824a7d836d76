package auth

import (
	"context"
	"time"

	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

// UserStore is the credential store plus its audit log. Mutations write
// their audit entry in the same transaction.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
	UpdatePassword(ctx context.Context, userID uint, passwordHash, action string) error
	UpdateUser(ctx context.Context, id uint, updates map[string]any) (*models.User, error)
	DeleteUser(ctx context.Context, id uint) error
	ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error)
	AddLog(ctx context.Context, entry *models.Log) error
	ListLogs(ctx context.Context, userID uint) ([]models.Log, error)
}

type Options struct {
	ResetMaxAge  time.Duration
	ResetURLBase string
	MailTimeout  time.Duration
	// AdminEmail registers with the admin role when set.
	AdminEmail string
}

type Service struct {
	Users   UserStore
	Tokens  *tokens.Verifier
	Reset   *tokens.ResetCodec
	Hasher  hash.Hasher
	Mailer  notify.Mailer
	Events  mykafka.Publisher
	Metrics *metrics.Metrics
	Opts    Options
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

func ActorFromClaims(c *tokens.Claims) (Actor, error) {
	id, err := c.UserID()
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: id, Role: c.Role}, nil
}

func (s *Service) publishUserEvent(ctx context.Context, typ string, u *models.User) {
	ev := mykafka.UserEvent{Type: typ, UserID: u.ID, Username: u.Username, At: time.Now().UTC()}
	mykafka.PublishBestEffort(ctx, s.Events, loggerFor(ctx, "auth.events"), mykafka.TopicUserEvents, mykafka.Key(u.ID), ev)
}
