package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, msg notify.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type testEnv struct {
	svc    *Service
	repo   *repo.GormRepo
	mailer *mockMailer
	clock  *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.Open(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb)
	now := time.Now()
	clock := &now
	mailer := &mockMailer{}

	svc := &Service{
		Users: r,
		Tokens: &tokens.Verifier{
			Issuer: &tokens.Issuer{
				AccessSecret:  []byte("test-jwt-secret"),
				RefreshSecret: []byte("test-refresh-secret"),
				AccessTTL:     time.Hour,
				RefreshTTL:    24 * time.Hour,
			},
			Ledger: r,
		},
		Reset:   tokens.NewResetCodec([]byte("test-reset-secret")).WithClock(func() time.Time { return *clock }),
		Hasher:  hash.Bcrypt{Cost: bcrypt.MinCost},
		Mailer:  mailer,
		Events:  mykafka.Nop{},
		Metrics: metrics.New(prometheus.NewRegistry()),
		Opts: Options{
			ResetMaxAge:  time.Hour,
			ResetURLBase: "http://shop.test/api/reset-password",
			MailTimeout:  time.Second,
			AdminEmail:   "boss@shop.test",
		},
	}
	return &testEnv{svc: svc, repo: r, mailer: mailer, clock: clock}
}

func validInput(username, email string) RegisterInput {
	return RegisterInput{Username: username, Email: email, Password: "secret1", Address: "Main st. 1"}
}

func (e *testEnv) register(t *testing.T, username, email string) *models.User {
	t.Helper()
	u, err := e.svc.Register(context.Background(), validInput(username, email))
	require.NoError(t, err)
	return u
}

func (e *testEnv) actions(t *testing.T, userID uint) []string {
	t.Helper()
	logs, err := e.repo.ListLogs(context.Background(), userID)
	require.NoError(t, err)
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}

func TestRegister_CreatesUserWithAudit(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "alice", " Alice@Example.com ")

	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.Equal(t, []string{models.ActionUserCreated}, env.actions(t, u.ID))
}

func TestRegister_BootstrapAdmin(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "boss", "boss@shop.test")
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{name: "short username", in: RegisterInput{Username: "ab", Email: "a@b.io", Password: "secret1", Address: "x"}, field: "username"},
		{name: "long username", in: RegisterInput{Username: strings.Repeat("a", 81), Email: "a@b.io", Password: "secret1", Address: "x"}, field: "username"},
		{name: "bad email", in: RegisterInput{Username: "abc", Email: "nope", Password: "secret1", Address: "x"}, field: "email"},
		{name: "short password", in: RegisterInput{Username: "abc", Email: "a@b.io", Password: "12345", Address: "x"}, field: "password"},
		{name: "missing address", in: RegisterInput{Username: "abc", Email: "a@b.io", Password: "secret1"}, field: "address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, ErrValidation)
			assert.NotErrorIs(t, err, ErrConflict)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestRegister_TwiceSameUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "alice@example.com")

	_, err := env.svc.Register(ctx, validInput("alice", "other@example.com"))
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrConflict)

	_, err = env.svc.Register(ctx, validInput("other", "ALICE@example.com"))
	require.ErrorIs(t, err, ErrConflict)

	total, _, err := env.repo.ListUsers(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice", "alice@example.com")

	res, err := env.svc.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)

	claims, err := env.svc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	refresh, err := env.svc.AuthenticateRefresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.TypeRefresh, refresh.Type)

	_, err = env.svc.Authenticate(ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "alice@example.com")

	_, err := env.svc.Login(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.svc.Login(ctx, "ghost@example.com", "secret1")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.svc.Login(ctx, "", "secret1")
	require.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 2.0, testutil.ToFloat64(env.svc.Metrics.LoginsTotal.WithLabelValues("invalid_credentials")))
}

func TestLogout_RevokesAccessAndRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "alice@example.com")

	res, err := env.svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	claims, err := env.svc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, claims, res.RefreshToken))

	_, err = env.svc.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.svc.AuthenticateRefresh(ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, 2.0, testutil.ToFloat64(env.svc.Metrics.TokenRejectionsTotal.WithLabelValues("revoked")))

	// a second logout with the same claims is harmless
	require.NoError(t, env.svc.Logout(ctx, claims, ""))
}

func TestLogout_IgnoresForeignRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "alice@example.com")
	env.register(t, "bob", "bob@example.com")

	alice, err := env.svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	bob, err := env.svc.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	claims, err := env.svc.Authenticate(ctx, alice.AccessToken)
	require.NoError(t, err)
	require.NoError(t, env.svc.Logout(ctx, claims, bob.RefreshToken))

	_, err = env.svc.AuthenticateRefresh(ctx, bob.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice", "alice@example.com")

	res, err := env.svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	refresh, err := env.svc.AuthenticateRefresh(ctx, res.RefreshToken)
	require.NoError(t, err)

	access, err := env.svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	claims, err := env.svc.Authenticate(ctx, access.Raw)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	require.NoError(t, env.repo.DeleteUser(ctx, u.ID))
	_, err = env.svc.Refresh(ctx, refresh)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice", "alice@example.com")

	before, err := env.repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)

	err = env.svc.ChangePassword(ctx, u.ID, "not-my-password", "newsecret")
	require.ErrorIs(t, err, ErrWrongCurrentPassword)

	err = env.svc.ChangePassword(ctx, u.ID, "secret1", "123")
	require.ErrorIs(t, err, ErrValidation)

	after, err := env.repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	require.NoError(t, env.svc.ChangePassword(ctx, u.ID, "secret1", "newsecret"))
	_, err = env.svc.Login(ctx, "alice@example.com", "secret1")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.svc.Login(ctx, "alice@example.com", "newsecret")
	require.NoError(t, err)
	assert.Contains(t, env.actions(t, u.ID), models.ActionPasswordChanged)

	require.ErrorIs(t, env.svc.ChangePassword(ctx, 9999, "a", "bbbbbb"), ErrNotFound)
}

func TestForgotPassword_DeliveryFailureWritesNoLog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice", "alice@example.com")

	env.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp: connection refused")).Once()

	err := env.svc.ForgotPassword(ctx, "alice@example.com")
	require.ErrorIs(t, err, ErrDelivery)
	assert.NotContains(t, env.actions(t, u.ID), models.ActionResetEmailSent)
	env.mailer.AssertExpectations(t)
}

func TestForgotPassword_MailerBoundedByTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Opts.MailTimeout = 50 * time.Millisecond
	env.register(t, "alice", "alice@example.com")

	env.mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	}).Return(context.DeadlineExceeded).Once()

	start := time.Now()
	err := env.svc.ForgotPassword(context.Background(), "alice@example.com")
	require.ErrorIs(t, err, ErrDelivery)
	assert.Less(t, time.Since(start), time.Second)
}

func TestForgotPassword_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.ErrorIs(t, env.svc.ForgotPassword(ctx, "  "), ErrValidation)
	require.ErrorIs(t, env.svc.ForgotPassword(ctx, "ghost@example.com"), ErrNotFound)
	env.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func resetTokenFrom(t *testing.T, msg notify.Message, base string) string {
	t.Helper()
	for _, line := range strings.Split(msg.Body, "\n") {
		if strings.HasPrefix(line, base+"/") {
			return strings.TrimPrefix(line, base+"/")
		}
	}
	t.Fatalf("no reset link in %q", msg.Body)
	return ""
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice", "alice@example.com")

	var sent notify.Message
	env.mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(notify.Message)
	}).Return(nil).Once()

	require.NoError(t, env.svc.ForgotPassword(ctx, "alice@example.com"))
	assert.Equal(t, "alice@example.com", sent.To)
	assert.Contains(t, env.actions(t, u.ID), models.ActionResetEmailSent)

	token := resetTokenFrom(t, sent, env.svc.Opts.ResetURLBase)

	require.ErrorIs(t, env.svc.ResetPassword(ctx, token, "123"), ErrValidation)
	require.ErrorIs(t, env.svc.ResetPassword(ctx, token+"x", "brandnew"), ErrInvalidResetToken)

	require.NoError(t, env.svc.ResetPassword(ctx, token, "brandnew"))
	_, err := env.svc.Login(ctx, "alice@example.com", "brandnew")
	require.NoError(t, err)
	assert.Contains(t, env.actions(t, u.ID), models.ActionPasswordReset)
}

func TestResetPassword_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice", "alice@example.com")

	token, err := env.svc.Reset.Generate(u.ID)
	require.NoError(t, err)

	*env.clock = env.clock.Add(time.Hour)
	require.ErrorIs(t, env.svc.ResetPassword(ctx, token, "brandnew"), ErrInvalidResetToken)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.svc.Metrics.PasswordResetsTotal.WithLabelValues("rejected_expired")))
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	me := Actor{ID: alice.ID, Role: models.RoleUser}

	addr := "Elm st. 2"
	got, err := env.svc.UpdateUser(ctx, me, alice.ID, UpdateUserInput{Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, addr, got.Address)

	_, err = env.svc.UpdateUser(ctx, me, bob.ID, UpdateUserInput{Address: &addr})
	require.ErrorIs(t, err, ErrForbidden)

	taken := "BOB@example.com"
	_, err = env.svc.UpdateUser(ctx, me, alice.ID, UpdateUserInput{Email: &taken})
	require.ErrorIs(t, err, ErrConflict)

	short := "ab"
	_, err = env.svc.UpdateUser(ctx, me, alice.ID, UpdateUserInput{Username: &short})
	require.ErrorIs(t, err, ErrValidation)

	pw := "changed1"
	_, err = env.svc.UpdateUser(ctx, me, alice.ID, UpdateUserInput{Password: &pw})
	require.NoError(t, err)
	_, err = env.svc.Login(ctx, "alice@example.com", "changed1")
	require.NoError(t, err)
}

func TestDeleteUserAndLogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	admin := Actor{ID: 999, Role: models.RoleAdmin}

	_, err := env.svc.UserLogs(ctx, Actor{ID: alice.ID}, bob.ID)
	require.ErrorIs(t, err, ErrForbidden)
	require.ErrorIs(t, env.svc.DeleteUser(ctx, Actor{ID: alice.ID}, bob.ID), ErrForbidden)

	require.NoError(t, env.svc.DeleteUser(ctx, admin, bob.ID))
	_, err = env.svc.GetUser(ctx, bob.ID)
	require.ErrorIs(t, err, ErrNotFound)

	logs, err := env.svc.UserLogs(ctx, admin, bob.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, models.ActionUserDeleted, logs[0].Action)

	require.ErrorIs(t, env.svc.DeleteUser(ctx, admin, bob.ID), ErrNotFound)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com")
	env.register(t, "bob", "bob@example.com")
	env.register(t, "carol", "carol@example.com")

	page, err := env.svc.ListUsers(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "carol", page.Users[0].Username)
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "two", "a": "one"}, Conflict: true}
	assert.Equal(t, "validation failed: a: one; b: two", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, fieldError("x", "y"), ErrConflict)
}
