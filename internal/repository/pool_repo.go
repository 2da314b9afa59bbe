package repository

import (
	"context"
	"time"

	"go-freshflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PoolFilter narrows the open pool listing. Zero fields match everything.
type PoolFilter struct {
	Reason   model.PoolReason
	Category string
	Product  string
	// ExcludeParty hides entries offered by this party.
	ExcludeParty *uuid.UUID
}

type PoolRepository interface {
	Create(tx *gorm.DB, entry *model.PoolEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PoolEntry, error)
	// Claim flips an open entry to claimed. Only one caller can ever get true
	// for a given entry.
	Claim(tx *gorm.DB, id, partyID uuid.UUID, at time.Time, by string) (bool, error)
	// Withdraw flips an open entry to withdrawn under the same rule as Claim.
	Withdraw(tx *gorm.DB, id uuid.UUID, by string) (bool, error)
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.PoolEntry, error)
	AttachTransfer(tx *gorm.DB, id, transferID uuid.UUID) error
	FindOpen(ctx context.Context, filter PoolFilter) ([]model.PoolEntry, error)
	CountOpenForBatch(tx *gorm.DB, batchID uuid.UUID) (int64, error)
	OpenBatchIDs(ctx context.Context, reason model.PoolReason) (map[uuid.UUID]bool, error)
	WithdrawnBatchOwners(ctx context.Context, reason model.PoolReason) (map[uuid.UUID]uuid.UUID, error)
}

type poolRepo struct {
	db *gorm.DB
}

func NewPoolRepo(db *gorm.DB) PoolRepository {
	return &poolRepo{db}
}

func (r *poolRepo) Create(tx *gorm.DB, entry *model.PoolEntry) error {
	return tx.Omit(clause.Associations).Create(entry).Error
}

func (r *poolRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PoolEntry, error) {
	var entry model.PoolEntry
	if err := r.db.WithContext(ctx).Preload("OfferedByParty").First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *poolRepo) Claim(tx *gorm.DB, id, partyID uuid.UUID, at time.Time, by string) (bool, error) {
	res := tx.Model(&model.PoolEntry{}).
		Where("id = ? AND status = ?", id, model.PoolOpen).
		Updates(map[string]interface{}{
			"status":              model.PoolClaimed,
			"claimed_by_party_id": partyID,
			"claimed_at":          at.UTC(),
			"updated_by":          by,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *poolRepo) Withdraw(tx *gorm.DB, id uuid.UUID, by string) (bool, error) {
	res := tx.Model(&model.PoolEntry{}).
		Where("id = ? AND status = ?", id, model.PoolOpen).
		Updates(map[string]interface{}{
			"status":     model.PoolWithdrawn,
			"updated_by": by,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *poolRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.PoolEntry, error) {
	var entry model.PoolEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *poolRepo) AttachTransfer(tx *gorm.DB, id, transferID uuid.UUID) error {
	return tx.Model(&model.PoolEntry{}).Where("id = ?", id).Update("transfer_id", transferID).Error
}

func (r *poolRepo) FindOpen(ctx context.Context, filter PoolFilter) ([]model.PoolEntry, error) {
	var entries []model.PoolEntry
	q := r.db.WithContext(ctx).Preload("OfferedByParty").Where("status = ?", model.PoolOpen)
	if filter.Reason != "" {
		q = q.Where("reason = ?", filter.Reason)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Product != "" {
		q = q.Where("product_name = ?", filter.Product)
	}
	if filter.ExcludeParty != nil {
		q = q.Where("offered_by_party_id <> ?", *filter.ExcludeParty)
	}
	err := q.Order("expiry_date, created_at").Find(&entries).Error
	return entries, err
}

func (r *poolRepo) CountOpenForBatch(tx *gorm.DB, batchID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.PoolEntry{}).
		Where("batch_id = ? AND status = ?", batchID, model.PoolOpen).
		Count(&n).Error
	return n, err
}

// OpenBatchIDs returns the batches that already have an open entry for reason.
func (r *poolRepo) OpenBatchIDs(ctx context.Context, reason model.PoolReason) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.PoolEntry{}).
		Where("status = ? AND reason = ?", model.PoolOpen, reason).
		Pluck("batch_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// WithdrawnBatchOwners maps every batch with a withdrawn entry for reason to
// the party that withdrew it.
func (r *poolRepo) WithdrawnBatchOwners(ctx context.Context, reason model.PoolReason) (map[uuid.UUID]uuid.UUID, error) {
	var rows []struct {
		BatchID          uuid.UUID
		OfferedByPartyID uuid.UUID
	}
	err := r.db.WithContext(ctx).Model(&model.PoolEntry{}).
		Select("batch_id, offered_by_party_id").
		Where("status = ? AND reason = ?", model.PoolWithdrawn, reason).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]uuid.UUID, len(rows))
	for _, row := range rows {
		out[row.BatchID] = row.OfferedByPartyID
	}
	return out, nil
}
