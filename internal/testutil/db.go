// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-freshflow/internal/model"
)

// NewDB opens a private in-memory SQLite database with every model migrated.
// One connection is used so concurrent transactions are serialised.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateParty inserts a party of the given tier.
func CreateParty(t testing.TB, db *gorm.DB, name string, tier model.Tier) *model.Party {
	t.Helper()
	p := &model.Party{Name: name, Tier: tier}
	if err := db.WithContext(context.Background()).Create(p).Error; err != nil {
		t.Fatalf("create party %s: %v", name, err)
	}
	return p
}

// BatchOpt adjusts a batch before CreateBatch inserts it.
type BatchOpt func(*model.StockBatch)

func WithExpiry(at time.Time) BatchOpt {
	return func(b *model.StockBatch) {
		b.ExpiryDate = at.UTC()
		if b.ManufacturingDate.After(b.ExpiryDate) {
			b.ManufacturingDate = b.ExpiryDate.AddDate(0, 0, -1)
		}
	}
}

func WithState(s model.BatchState) BatchOpt {
	return func(b *model.StockBatch) { b.State = s }
}

func WithCategory(c string) BatchOpt {
	return func(b *model.StockBatch) { b.Category = c }
}

func WithPrice(p string) BatchOpt {
	return func(b *model.StockBatch) { b.UnitPrice = decimal.RequireFromString(p) }
}

func NonPerishable() BatchOpt {
	return func(b *model.StockBatch) { b.Perishable = false }
}

// CreateBatch inserts an accepted, perishable batch expiring in 30 days.
func CreateBatch(t testing.TB, db *gorm.DB, partyID uuid.UUID, product string, qty int, opts ...BatchOpt) *model.StockBatch {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	b := &model.StockBatch{
		PartyID:           partyID,
		ProductName:       product,
		Category:          "produce",
		Quantity:          qty,
		UnitPrice:         decimal.RequireFromString("10.00"),
		ManufacturingDate: now.AddDate(0, 0, -2),
		ExpiryDate:        now.AddDate(0, 0, 30),
		LotID:             "LOT-" + product,
		Perishable:        true,
		State:             model.BatchAccepted,
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("create batch %s: %v", product, err)
	}
	return b
}

// ReloadBatch reads a batch back, including soft-deleted rows.
func ReloadBatch(t testing.TB, db *gorm.DB, id uuid.UUID) *model.StockBatch {
	t.Helper()
	var b model.StockBatch
	if err := db.Unscoped().First(&b, "id = ?", id).Error; err != nil {
		t.Fatalf("reload batch %s: %v", id, err)
	}
	return &b
}
