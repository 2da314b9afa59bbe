package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-freshflow/internal/events"
	"go-freshflow/internal/metrics"
	"go-freshflow/internal/model"
	"go-freshflow/internal/report"
	"go-freshflow/internal/repository"
	"go-freshflow/pkg/validator"
)

// Ledger views.
const (
	ViewInventory = "inventory"
	ViewIncoming  = "incoming"
	ViewAll       = "all"
)

type BatchRequest struct {
	ProductName        string          `json:"product_name" validate:"required,max=255"`
	Category           string          `json:"category" validate:"max=100"`
	Quantity           int             `json:"quantity" validate:"gte=0"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ManufacturingDate  time.Time       `json:"manufacturing_date" validate:"required"`
	ExpiryDate         time.Time       `json:"expiry_date" validate:"required,gtefield=ManufacturingDate"`
	LotID              string          `json:"lot_id" validate:"max=100"`
	Perishable         bool            `json:"perishable"`
	StorageRequirement string          `json:"storage_requirement" validate:"max=100"`
}

type SellRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type LedgerSummary struct {
	PartyID        uuid.UUID                  `json:"party_id"`
	Categories     []repository.CategoryTotal `json:"categories"`
	States         []repository.StateCount    `json:"states"`
	TotalQuantity  int64                      `json:"total_quantity"`
	TotalValuation decimal.Decimal            `json:"total_valuation"`
}

type LedgerService interface {
	CreateBatch(ctx context.Context, actor Actor, req *BatchRequest) (*model.StockBatch, error)
	UpdateBatch(ctx context.Context, actor Actor, id uuid.UUID, req *BatchRequest) (*model.StockBatch, error)
	DeleteBatch(ctx context.Context, actor Actor, id uuid.UUID) error
	GetBatch(ctx context.Context, actor Actor, id uuid.UUID) (*model.StockBatch, error)
	ListLedger(ctx context.Context, actor Actor, partyID uuid.UUID, view string) ([]model.StockBatch, error)
	ExpiringSoon(ctx context.Context, actor Actor, partyID uuid.UUID, horizonDays int, now time.Time) ([]model.StockBatch, error)
	Sell(ctx context.Context, actor Actor, batchID uuid.UUID, req *SellRequest) (*model.SaleRecord, error)
	Summary(ctx context.Context, actor Actor, partyID uuid.UUID) (*LedgerSummary, error)
	Export(ctx context.Context, actor Actor, partyID uuid.UUID) ([]byte, error)
}

type ledgerService struct {
	db        *gorm.DB
	batchRepo repository.BatchRepository
	partyRepo repository.PartyRepository
	poolRepo  repository.PoolRepository
	saleRepo  repository.SaleRepository
	events    publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewLedgerService(
	db *gorm.DB,
	batchRepo repository.BatchRepository,
	partyRepo repository.PartyRepository,
	poolRepo repository.PoolRepository,
	saleRepo repository.SaleRepository,
	pub events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ledgerService{
		db:        db,
		batchRepo: batchRepo,
		partyRepo: partyRepo,
		poolRepo:  poolRepo,
		saleRepo:  saleRepo,
		events:    publisher{pub: pub, log: log},
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
	s.events.now = func() time.Time { return s.now() }
	return s
}

func (r *BatchRequest) check() error {
	if err := validator.Check(r); err != nil {
		return err
	}
	if r.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

func (s *ledgerService) CreateBatch(ctx context.Context, actor Actor, req *BatchRequest) (*model.StockBatch, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}
	if err := req.check(); err != nil {
		return nil, err
	}

	batch := &model.StockBatch{
		PartyID:            partyID,
		ProductName:        req.ProductName,
		Category:           req.Category,
		Quantity:           req.Quantity,
		UnitPrice:          req.UnitPrice,
		ManufacturingDate:  req.ManufacturingDate.UTC(),
		ExpiryDate:         req.ExpiryDate.UTC(),
		LotID:              req.LotID,
		Perishable:         req.Perishable,
		StorageRequirement: req.StorageRequirement,
		State:              model.BatchAccepted,
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	batch.Stamp(actor.String())

	if err := s.batchRepo.Create(s.db.WithContext(ctx), batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	s.events.emit(ctx, actor, events.TypeStockUpdate, events.ActionBatchCreated,
		fmt.Sprintf("%s added %d units of '%s'", actor.Name, batch.Quantity, batch.ProductName),
		batchPayload(batch), partyID)
	return batch, nil
}

func (s *ledgerService) UpdateBatch(ctx context.Context, actor Actor, id uuid.UUID, req *BatchRequest) (*model.StockBatch, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}
	if err := req.check(); err != nil {
		return nil, err
	}

	var updated *model.StockBatch
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.lockOwned(tx, id, partyID)
		if err != nil {
			return err
		}
		if batch.State != model.BatchAccepted {
			return ErrBatchNotAccepted
		}

		batch.ProductName = req.ProductName
		batch.Category = req.Category
		batch.Quantity = req.Quantity
		batch.UnitPrice = req.UnitPrice
		batch.ManufacturingDate = req.ManufacturingDate.UTC()
		batch.ExpiryDate = req.ExpiryDate.UTC()
		batch.LotID = req.LotID
		batch.Perishable = req.Perishable
		batch.StorageRequirement = req.StorageRequirement
		batch.UpdatedBy = actor.String()
		if err := batch.Validate(); err != nil {
			return err
		}

		if err := s.batchRepo.Save(tx, batch); err != nil {
			return err
		}
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, actor, events.TypeStockUpdate, events.ActionBatchUpdated,
		fmt.Sprintf("%s updated '%s'", actor.Name, updated.ProductName),
		batchPayload(updated), partyID)
	return updated, nil
}

// DeleteBatch soft deletes an owned batch. Pending batches belong to an
// unaccepted transfer and cannot be deleted.
func (s *ledgerService) DeleteBatch(ctx context.Context, actor Actor, id uuid.UUID) error {
	partyID, err := actor.Party()
	if err != nil {
		return err
	}

	var deleted *model.StockBatch
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.lockOwned(tx, id, partyID)
		if err != nil {
			return err
		}
		if batch.State == model.BatchPending {
			return ErrBatchNotAccepted
		}
		open, err := s.poolRepo.CountOpenForBatch(tx, batch.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrBatchInPool
		}
		deleted = batch
		return s.batchRepo.Delete(tx, batch, actor.String())
	})
	if err != nil {
		return err
	}

	s.events.emit(ctx, actor, events.TypeStockUpdate, events.ActionBatchDeleted,
		fmt.Sprintf("%s removed '%s'", actor.Name, deleted.ProductName),
		batchPayload(deleted), partyID)
	return nil
}

func (s *ledgerService) GetBatch(ctx context.Context, actor Actor, id uuid.UUID) (*model.StockBatch, error) {
	batch, err := s.batchRepo.FindByID(ctx, id)
	if repository.IsNotFound(err) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	if !actor.CanRead(batch.PartyID) {
		return nil, ErrForbiddenLedger
	}
	return batch, nil
}

func (s *ledgerService) ListLedger(ctx context.Context, actor Actor, partyID uuid.UUID, view string) ([]model.StockBatch, error) {
	if err := s.checkRead(ctx, actor, partyID); err != nil {
		return nil, err
	}

	switch view {
	case "", ViewInventory:
		batches, err := s.batchRepo.FindByParty(ctx, partyID, model.BatchAccepted)
		if err != nil {
			return nil, err
		}
		inventory := batches[:0]
		for _, b := range batches {
			if b.Quantity > 0 {
				inventory = append(inventory, b)
			}
		}
		return inventory, nil
	case ViewIncoming:
		return s.batchRepo.FindByParty(ctx, partyID, model.BatchPending)
	case ViewAll:
		return s.batchRepo.FindByParty(ctx, partyID)
	default:
		return nil, ErrInvalidView
	}
}

// ExpiringSoon lists accepted batches with 0 <= expiry - now <= horizonDays.
func (s *ledgerService) ExpiringSoon(ctx context.Context, actor Actor, partyID uuid.UUID, horizonDays int, now time.Time) ([]model.StockBatch, error) {
	if horizonDays < 0 {
		return nil, ErrHorizonRequired
	}
	if err := s.checkRead(ctx, actor, partyID); err != nil {
		return nil, err
	}
	return expiringBatches(ctx, s.batchRepo, &partyID, horizonDays, now)
}

func expiringBatches(ctx context.Context, repo repository.BatchRepository, partyID *uuid.UUID, horizonDays int, now time.Time) ([]model.StockBatch, error) {
	to := now.Add(time.Duration(horizonDays) * 24 * time.Hour)
	candidates, err := repo.FindExpiring(ctx, partyID, now, to)
	if err != nil {
		return nil, err
	}
	out := make([]model.StockBatch, 0, len(candidates))
	for i := range candidates {
		if candidates[i].ExpiresWithin(now, horizonDays) {
			out = append(out, candidates[i])
		}
	}
	return out, nil
}

// Sell removes sold units from a batch and records the sale in one transaction.
func (s *ledgerService) Sell(ctx context.Context, actor Actor, batchID uuid.UUID, req *SellRequest) (*model.SaleRecord, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var (
		sale  *model.SaleRecord
		batch *model.StockBatch
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.lockOwned(tx, batchID, partyID)
		if err != nil {
			return err
		}
		if b.State != model.BatchAccepted {
			return ErrBatchNotAccepted
		}
		if b.Quantity < req.Quantity {
			return ErrInsufficientQuantity
		}

		b.Quantity -= req.Quantity
		if b.Quantity == 0 {
			b.State = model.BatchSold
		}
		b.UpdatedBy = actor.String()
		if err := s.batchRepo.Save(tx, b); err != nil {
			return err
		}

		id := b.ID
		sale = &model.SaleRecord{
			BatchID:      &id,
			PartyID:      partyID,
			ProductName:  b.ProductName,
			QuantitySold: req.Quantity,
			UnitPrice:    b.UnitPrice,
			SoldAt:       s.now().UTC(),
		}
		sale.Stamp(actor.String())
		if err := s.saleRepo.Create(tx, sale); err != nil {
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Sold(sale.QuantitySold)
	s.events.emit(ctx, actor, events.TypeStockUpdate, events.ActionBatchSold,
		fmt.Sprintf("%s sold %d units of '%s'", actor.Name, sale.QuantitySold, batch.ProductName),
		batchPayload(batch), partyID)
	return sale, nil
}

func (s *ledgerService) Summary(ctx context.Context, actor Actor, partyID uuid.UUID) (*LedgerSummary, error) {
	if err := s.checkRead(ctx, actor, partyID); err != nil {
		return nil, err
	}

	categories, err := s.batchRepo.SumByCategory(ctx, partyID)
	if err != nil {
		return nil, err
	}
	states, err := s.batchRepo.CountByState(ctx, partyID)
	if err != nil {
		return nil, err
	}

	summary := &LedgerSummary{
		PartyID:        partyID,
		Categories:     categories,
		States:         states,
		TotalValuation: decimal.Zero,
	}
	for _, c := range categories {
		summary.TotalQuantity += c.Quantity
		summary.TotalValuation = summary.TotalValuation.Add(c.Valuation)
	}
	return summary, nil
}

// Export renders the whole ledger as an XLSX workbook.
func (s *ledgerService) Export(ctx context.Context, actor Actor, partyID uuid.UUID) ([]byte, error) {
	if err := s.checkRead(ctx, actor, partyID); err != nil {
		return nil, err
	}
	party, err := s.partyRepo.FindByID(ctx, partyID)
	if err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.FindByParty(ctx, partyID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.WriteLedger(&buf, party, batches, s.now()); err != nil {
		return nil, fmt.Errorf("export ledger: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ledgerService) checkRead(ctx context.Context, actor Actor, partyID uuid.UUID) error {
	if !actor.CanRead(partyID) {
		return ErrForbiddenLedger
	}
	if _, err := s.partyRepo.FindByID(ctx, partyID); err != nil {
		if repository.IsNotFound(err) {
			return ErrPartyNotFound
		}
		return err
	}
	return nil
}

func (s *ledgerService) lockOwned(tx *gorm.DB, id, partyID uuid.UUID) (*model.StockBatch, error) {
	batch, err := s.batchRepo.LockByID(tx, id)
	if repository.IsNotFound(err) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	if batch.PartyID != partyID {
		return nil, ErrNotOwner
	}
	return batch, nil
}
