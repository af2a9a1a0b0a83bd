package storage

import (
	"context"
	"errors"

	"github.com/taoyao-code/amr-console/internal/storage/models"
)

// KeyAMRHost 当前 AMR 地址的设置项
const KeyAMRHost = "amr_host"

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("storage: not found")

// SettingsRepo 键值设置
type SettingsRepo interface {
	// GetSetting 不存在时返回 ErrNotFound
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// AuditRepo 命令审计日志
type AuditRepo interface {
	AppendCommandLog(ctx context.Context, log *models.CommandLog) error
	// ListRecentCommandLogs 按时间倒序
	ListRecentCommandLogs(ctx context.Context, limit int) ([]models.CommandLog, error)
}

// Repo 控制台持久化
type Repo interface {
	SettingsRepo
	AuditRepo
}
