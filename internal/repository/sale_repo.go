package repository

import (
	"context"
	"time"

	"go-freshflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaleQuery selects historical sales. Zero fields match everything.
type SaleQuery struct {
	PartyID *uuid.UUID
	Product string
	Since   time.Time
}

type SaleRepository interface {
	Create(tx *gorm.DB, sale *model.SaleRecord) error
	CreateMany(ctx context.Context, sales []model.SaleRecord, batchSize int) error
	Find(ctx context.Context, q SaleQuery) ([]model.SaleRecord, error)
}

type saleRepo struct {
	db *gorm.DB
}

func NewSaleRepo(db *gorm.DB) SaleRepository {
	return &saleRepo{db}
}

func (r *saleRepo) Create(tx *gorm.DB, sale *model.SaleRecord) error {
	return tx.Create(sale).Error
}

func (r *saleRepo) CreateMany(ctx context.Context, sales []model.SaleRecord, batchSize int) error {
	if len(sales) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return r.db.WithContext(ctx).CreateInBatches(sales, batchSize).Error
}

func (r *saleRepo) Find(ctx context.Context, q SaleQuery) ([]model.SaleRecord, error) {
	var sales []model.SaleRecord
	db := r.db.WithContext(ctx)
	if q.PartyID != nil {
		db = db.Where("party_id = ?", *q.PartyID)
	}
	if q.Product != "" {
		db = db.Where("product_name = ?", q.Product)
	}
	if !q.Since.IsZero() {
		db = db.Where("sold_at >= ?", q.Since.UTC())
	}
	err := db.Order("sold_at").Find(&sales).Error
	return sales, err
}
