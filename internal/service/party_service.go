package service

import (
	"context"

	"github.com/google/uuid"

	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
	"go-freshflow/pkg/validator"
)

type PartyRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Tier string `json:"tier" validate:"required,tier"`
}

type PartyService interface {
	Create(ctx context.Context, actor Actor, req *PartyRequest) (*model.Party, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Party, error)
	List(ctx context.Context, tier string) ([]model.Party, error)
}

type partyService struct {
	partyRepo repository.PartyRepository
}

func NewPartyService(partyRepo repository.PartyRepository) PartyService {
	return &partyService{partyRepo: partyRepo}
}

func (s *partyService) Create(ctx context.Context, actor Actor, req *PartyRequest) (*model.Party, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if existing, _ := s.partyRepo.FindByName(ctx, req.Name); existing != nil {
		return nil, ErrPartyExists
	}

	party := &model.Party{Name: req.Name, Tier: model.Tier(req.Tier)}
	party.Stamp(actor.String())
	if err := s.partyRepo.Create(ctx, party); err != nil {
		return nil, err
	}
	return party, nil
}

func (s *partyService) Get(ctx context.Context, id uuid.UUID) (*model.Party, error) {
	party, err := s.partyRepo.FindByID(ctx, id)
	if repository.IsNotFound(err) {
		return nil, ErrPartyNotFound
	}
	return party, err
}

// List returns every party, or those of one tier.
func (s *partyService) List(ctx context.Context, tier string) ([]model.Party, error) {
	if tier == "" {
		return s.partyRepo.FindAll(ctx, "")
	}
	t, err := model.ParseTier(tier)
	if err != nil {
		return nil, err
	}
	return s.partyRepo.FindAll(ctx, t)
}
