// Package testutil provides sqlite databases and fake outbound clients for tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"meal-order-backend/internal/client"
	"meal-order-backend/internal/config"
	"meal-order-backend/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OpenDB returns a migrated sqlite database in a temp dir with a single connection.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.InitDatabase(config.Database{
		Driver:       "sqlite",
		URL:          filepath.Join(t.TempDir(), "orders.db") + "?_busy_timeout=5000&_txlock=immediate",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// LockedReads records the tables read with a row-locking clause. sqlite drops the clause from
// the generated SQL, so the statement clauses are inspected instead.
type LockedReads struct {
	mu     sync.Mutex
	tables []string
}

func (l *LockedReads) Tables() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tables...)
}

func (l *LockedReads) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tables = nil
}

// RecordLockedReads registers a query callback on db that feeds a LockedReads.
func RecordLockedReads(t *testing.T, db *gorm.DB) *LockedReads {
	t.Helper()
	reads := &LockedReads{}
	err := db.Callback().Query().Before("gorm:query").Register("testutil:locked_reads", func(tx *gorm.DB) {
		c, ok := tx.Statement.Clauses[clause.Locking{}.Name()]
		if !ok {
			return
		}
		if locking, ok := c.Expression.(clause.Locking); ok && locking.Strength == clause.LockingStrengthUpdate {
			reads.mu.Lock()
			reads.tables = append(reads.tables, tx.Statement.Table)
			reads.mu.Unlock()
		}
	})
	require.NoError(t, err)
	return reads
}

// Package options every test database is seeded with. Prices are minor units.
var (
	FourWeeks  = model.PackageOption{ID: "opt-4w", Code: "4W", Name: "Four weeks", DurationDays: 28, Portion: "REGULAR", Price: 90000, Active: true}
	EightWeeks = model.PackageOption{ID: "opt-8w", Code: "8W", Name: "Eight weeks", DurationDays: 56, Portion: "REGULAR", Price: 176800, Active: true}
)

func SeedPackages(t *testing.T, db *gorm.DB) {
	t.Helper()
	options := []model.PackageOption{FourWeeks, EightWeeks}
	require.NoError(t, db.WithContext(context.Background()).Create(&options).Error)
}

// Config mirrors the production defaults that matter to the order pipeline.
func Config() *config.Config {
	return &config.Config{
		BaseURL: "http://localhost:8080",
		Gateway: config.Gateway{WebhookSecret: WebhookSecret},
		Email:   config.Email{Async: false},
		Export:  config.Export{BatchSize: 20},
		Pricing: config.Pricing{
			Currency:          "AUD",
			GSTRate:           10,
			DefaultDeposit:    10000,
			PartialPriceFloor: 100000,
		},
		Admin: config.Admin{ApiToken: AdminToken},
	}
}

const (
	WebhookSecret = "whsec_test"
	AdminToken    = "admin-secret"
)
