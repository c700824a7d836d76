package repo

import (
	"context"

	"github.com/Skotchmaster/storefront/internal/models"
)

// AddLog appends a standalone audit entry, for events that are not tied to
// a row mutation.
func (r *GormRepo) AddLog(ctx context.Context, entry *models.Log) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

func (r *GormRepo) ListLogs(ctx context.Context, userID uint) ([]models.Log, error) {
	var logs []models.Log
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
