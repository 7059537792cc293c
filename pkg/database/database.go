package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/config"
	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
)

func open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	return gorm.Open(dialector, &gorm.Config{})
}

// InitDB 按配置打开数据库（postgres 生产 / sqlite 本地）
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	return open(cfg.Database.Driver, cfg.Database.DSN)
}

// NewFeedRepository 按配置选时间线仓储：配置了分片 DSN 走分库分表，
// 否则与主库同库
func NewFeedRepository(cfg *config.Config, db *gorm.DB) (repository.FeedRepository, error) {
	if len(cfg.Database.FeedShardDSNs) == 0 {
		return repository.NewSingleFeedRepository(db), nil
	}
	dbs := make([]*gorm.DB, 0, len(cfg.Database.FeedShardDSNs))
	for _, dsn := range cfg.Database.FeedShardDSNs {
		shard, err := open(cfg.Database.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open feed shard %q: %w", dsn, err)
		}
		dbs = append(dbs, shard)
	}
	sharded, err := repository.NewShardedFeedRepository(dbs)
	if err != nil {
		return nil, err
	}
	if err := sharded.InitSchema(); err != nil {
		return nil, err
	}
	return sharded, nil
}

// Migrate 建表（bench/本地用；线上由迁移工具管理）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Account{},
		&model.Status{},
		&model.StatusTag{},
		&model.Mention{},
		&model.Follow{},
		&model.Fan{},
		&model.List{},
		&model.ListMember{},
		&model.Tag{},
		&model.TagFollow{},
		&model.Antenna{},
		&model.FeedEntry{},
		&model.DeliveryJob{},
		&model.Notification{},
		&model.ConversationMember{},
	)
}
