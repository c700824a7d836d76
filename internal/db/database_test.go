package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

func TestIsPostgres(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{"postgres://u:p@localhost:5432/shop?sslmode=disable", true},
		{"postgresql://localhost/shop", true},
		{"host=localhost user=u dbname=shop", true},
		{"ecommerce.db", false},
		{"sqlite://ecommerce.db", false},
		{"file::memory:", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPostgres(tt.dsn), tt.dsn)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestOpenAndMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	gdb, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	require.NoError(t, Migrate(ctx, gdb))
	require.NoError(t, Ping(ctx, gdb))

	for _, m := range []any{&models.User{}, &models.RevokedToken{}, &models.Log{}, &models.CartItem{}, &models.Order{}} {
		assert.True(t, gdb.Migrator().HasTable(m))
	}
}
