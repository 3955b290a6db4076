package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/repository"
	"riskhub_v1_202610/pkg/pseudonym"
)

const testSalt = "0123456789abcdef0123456789abcdef-salt-A"

// ==================== 测试辅助 ====================

type testEnv struct {
	db     *gorm.DB
	uow    *repository.IngestUnitOfWork
	hasher *pseudonym.Hasher
	locker *CustomerLocker
	stats  *StatsService
	ingest *IngestService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// :memory: 每个连接是独立的库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	log := zaptest.NewLogger(t)

	uow := repository.NewIngestUnitOfWork(db)
	locker := NewCustomerLocker()
	stats := NewStatsService(uow, locker, DefaultRiskPolicy(), DefaultLateDeliveryThreshold, log)

	return &testEnv{
		db:     db,
		uow:    uow,
		hasher: pseudonym.MustNew(testSalt),
		locker: locker,
		stats:  stats,
		ingest: NewIngestService(uow, pseudonym.MustNew(testSalt), stats, locker, 5*time.Second, log),
	}
}

func createTestShop(t *testing.T, db *gorm.DB, slug string) *model.Shop {
	t.Helper()
	shop := &model.Shop{
		Name:   slug,
		Slug:   slug,
		APIKey: "key-" + slug,
		Secret: "secret-" + slug,
		Active: true,
	}
	if err := repository.NewShopRepository(db).Create(context.Background(), shop); err != nil {
		t.Fatalf("create shop: %v", err)
	}
	return shop
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
