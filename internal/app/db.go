package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
	"github.com/taoyao-code/amr-console/internal/storage"
	"github.com/taoyao-code/amr-console/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/amr-console/internal/storage/pg"
)

// OpenStore 数据库启用时连接 PostgreSQL 并按需迁移，否则返回内存存储。
// 返回的 pool 在内存模式下为 nil。
func OpenStore(ctx context.Context, cfg cfgpkg.DatabaseConfig, auditSize int, log *zap.Logger) (storage.Repo, *pgxpool.Pool, error) {
	if !cfg.Enable {
		log.Info("database is disabled, using in-memory store", zap.Int("audit_size", auditSize))
		return storage.NewMemoryRepo(auditSize), nil, nil
	}

	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, nil, err
	}
	gdb, err := gormrepo.Open(dbpool, log)
	if err != nil {
		dbpool.Close()
		return nil, nil, err
	}
	repo := gormrepo.New(gdb)
	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			log.Error("db migrate error", zap.Error(err))
			dbpool.Close()
			return nil, nil, err
		}
		log.Info("db migrations applied")
	}
	return repo, dbpool, nil
}
