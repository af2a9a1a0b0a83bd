package gormrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taoyao-code/amr-console/internal/storage"
	"github.com/taoyao-code/amr-console/internal/storage/models"
)

// Repository 基于 GORM 的 storage.Repo 实现
type Repository struct {
	db *gorm.DB
}

var _ storage.Repo = (*Repository)(nil)

// New 返回使用给定 *gorm.DB 的仓库
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate 建表
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.Setting{}, &models.CommandLog{})
}

// GetSetting 读取设置，不存在返回 storage.ErrNotFound
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var s models.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

// PutSetting 插入或覆盖设置
func (r *Repository) PutSetting(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&models.Setting{Key: key, Value: value}).Error
}

// AppendCommandLog 追加审计日志
func (r *Repository) AppendCommandLog(ctx context.Context, log *models.CommandLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListRecentCommandLogs 最新的在前
func (r *Repository) ListRecentCommandLogs(ctx context.Context, limit int) ([]models.CommandLog, error) {
	var logs []models.CommandLog
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
