package repository

import (
	"context"
	"time"

	"go-freshflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransferRepository interface {
	Create(tx *gorm.DB, transfer *model.Transfer) error
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.Transfer, error)
	// MarkAccepted stamps accepted_at only while it is still unset and
	// reports whether this call did it.
	MarkAccepted(tx *gorm.DB, id uuid.UUID, at time.Time, by string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transfer, error)
	FindIncoming(ctx context.Context, partyID uuid.UUID, pendingOnly bool) ([]model.Transfer, error)
	FindOutgoing(ctx context.Context, partyID uuid.UUID) ([]model.Transfer, error)
}

type transferRepo struct {
	db *gorm.DB
}

func NewTransferRepo(db *gorm.DB) TransferRepository {
	return &transferRepo{db}
}

func (r *transferRepo) Create(tx *gorm.DB, transfer *model.Transfer) error {
	return tx.Omit(clause.Associations).Create(transfer).Error
}

func (r *transferRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.Transfer, error) {
	var transfer model.Transfer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&transfer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepo) MarkAccepted(tx *gorm.DB, id uuid.UUID, at time.Time, by string) (bool, error) {
	res := tx.Model(&model.Transfer{}).
		Where("id = ? AND accepted_at IS NULL", id).
		Updates(map[string]interface{}{
			"accepted_at": at.UTC(),
			"updated_by":  by,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *transferRepo) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("DestinationBatch").
		Preload("SourceParty").
		Preload("DestinationParty")
}

func (r *transferRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Transfer, error) {
	var transfer model.Transfer
	if err := r.preloaded(ctx).First(&transfer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepo) FindIncoming(ctx context.Context, partyID uuid.UUID, pendingOnly bool) ([]model.Transfer, error) {
	var transfers []model.Transfer
	q := r.preloaded(ctx).Where("destination_party_id = ?", partyID)
	if pendingOnly {
		q = q.Where("accepted_at IS NULL")
	}
	err := q.Order("transferred_at DESC").Find(&transfers).Error
	return transfers, err
}

func (r *transferRepo) FindOutgoing(ctx context.Context, partyID uuid.UUID) ([]model.Transfer, error) {
	var transfers []model.Transfer
	err := r.preloaded(ctx).
		Where("source_party_id = ?", partyID).
		Order("transferred_at DESC").
		Find(&transfers).Error
	return transfers, err
}
