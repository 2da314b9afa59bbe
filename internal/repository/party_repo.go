package repository

import (
	"context"

	"go-freshflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PartyRepository interface {
	Create(ctx context.Context, party *model.Party) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Party, error)
	FindByName(ctx context.Context, name string) (*model.Party, error)
	FindAll(ctx context.Context, tier model.Tier) ([]model.Party, error)
}

type partyRepo struct {
	db *gorm.DB
}

func NewPartyRepo(db *gorm.DB) PartyRepository {
	return &partyRepo{db}
}

func (r *partyRepo) Create(ctx context.Context, party *model.Party) error {
	return r.db.WithContext(ctx).Create(party).Error
}

func (r *partyRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Party, error) {
	var party model.Party
	if err := r.db.WithContext(ctx).First(&party, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *partyRepo) FindByName(ctx context.Context, name string) (*model.Party, error) {
	var party model.Party
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

// FindAll lists parties ordered by name; an empty tier lists every tier.
func (r *partyRepo) FindAll(ctx context.Context, tier model.Tier) ([]model.Party, error) {
	var parties []model.Party
	q := r.db.WithContext(ctx).Order("name")
	if tier != "" {
		q = q.Where("tier = ?", tier)
	}
	err := q.Find(&parties).Error
	return parties, err
}
