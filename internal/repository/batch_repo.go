package repository

import (
	"context"
	"time"

	"go-freshflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryTotal is one row of the per-category ledger summary.
type CategoryTotal struct {
	Category  string          `json:"category"`
	Batches   int64           `json:"batches"`
	Quantity  int64           `json:"quantity"`
	Valuation decimal.Decimal `json:"valuation"`
}

type StateCount struct {
	State model.BatchState `json:"state"`
	Count int64            `json:"count"`
}

type BatchRepository interface {
	Create(tx *gorm.DB, batch *model.StockBatch) error
	Save(tx *gorm.DB, batch *model.StockBatch) error
	Delete(tx *gorm.DB, batch *model.StockBatch, deletedBy string) error
	// LockByID reads a batch with a row lock held until tx ends.
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.StockBatch, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.StockBatch, error)
	FindByParty(ctx context.Context, partyID uuid.UUID, states ...model.BatchState) ([]model.StockBatch, error)
	// FindExpiring returns accepted, non-empty batches whose expiry lies in
	// [from, to]. A nil partyID searches every ledger.
	FindExpiring(ctx context.Context, partyID *uuid.UUID, from, to time.Time) ([]model.StockBatch, error)
	FindOverstocked(ctx context.Context, threshold int) ([]model.StockBatch, error)
	SumByCategory(ctx context.Context, partyID uuid.UUID) ([]CategoryTotal, error)
	CountByState(ctx context.Context, partyID uuid.UUID) ([]StateCount, error)
}

type batchRepo struct {
	db *gorm.DB
}

func NewBatchRepo(db *gorm.DB) BatchRepository {
	return &batchRepo{db}
}

func (r *batchRepo) Create(tx *gorm.DB, batch *model.StockBatch) error {
	return tx.Create(batch).Error
}

func (r *batchRepo) Save(tx *gorm.DB, batch *model.StockBatch) error {
	return tx.Omit(clause.Associations).Save(batch).Error
}

func (r *batchRepo) Delete(tx *gorm.DB, batch *model.StockBatch, deletedBy string) error {
	if err := tx.Model(batch).Update("deleted_by", deletedBy).Error; err != nil {
		return err
	}
	return tx.Delete(batch).Error
}

func (r *batchRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.StockBatch, error) {
	var batch model.StockBatch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&batch, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.StockBatch, error) {
	var batch model.StockBatch
	if err := r.db.WithContext(ctx).Preload("Party").First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindByParty lists a ledger ordered by expiry; no states means every state.
func (r *batchRepo) FindByParty(ctx context.Context, partyID uuid.UUID, states ...model.BatchState) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	q := r.db.WithContext(ctx).Where("party_id = ?", partyID)
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}
	err := q.Order("expiry_date, product_name").Find(&batches).Error
	return batches, err
}

func (r *batchRepo) FindExpiring(ctx context.Context, partyID *uuid.UUID, from, to time.Time) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	q := r.db.WithContext(ctx).
		Where("state = ? AND quantity > 0", model.BatchAccepted).
		Where("expiry_date >= ? AND expiry_date <= ?", from.UTC(), to.UTC())
	if partyID != nil {
		q = q.Where("party_id = ?", *partyID)
	}
	err := q.Order("expiry_date").Find(&batches).Error
	return batches, err
}

func (r *batchRepo) FindOverstocked(ctx context.Context, threshold int) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	err := r.db.WithContext(ctx).
		Where("state = ? AND quantity > ?", model.BatchAccepted, threshold).
		Order("quantity DESC").
		Find(&batches).Error
	return batches, err
}

// SumByCategory aggregates the accepted inventory of a ledger.
func (r *batchRepo) SumByCategory(ctx context.Context, partyID uuid.UUID) ([]CategoryTotal, error) {
	var totals []CategoryTotal
	err := r.db.WithContext(ctx).Model(&model.StockBatch{}).
		Select("category, COUNT(*) AS batches, SUM(quantity) AS quantity, SUM(quantity * unit_price) AS valuation").
		Where("party_id = ? AND state = ?", partyID, model.BatchAccepted).
		Group("category").
		Order("category").
		Scan(&totals).Error
	return totals, err
}

func (r *batchRepo) CountByState(ctx context.Context, partyID uuid.UUID) ([]StateCount, error) {
	var counts []StateCount
	err := r.db.WithContext(ctx).Model(&model.StockBatch{}).
		Select("state, COUNT(*) AS count").
		Where("party_id = ?", partyID).
		Group("state").
		Order("state").
		Scan(&counts).Error
	return counts, err
}
