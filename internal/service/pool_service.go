package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-freshflow/internal/events"
	"go-freshflow/internal/metrics"
	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
	"go-freshflow/pkg/validator"
)

type OfferRequest struct {
	BatchID  uuid.UUID `json:"batch_id" validate:"uuid_required"`
	Quantity int       `json:"quantity" validate:"gt=0"`
	Reason   string    `json:"reason" validate:"required,pool_reason"`
}

// NominationResult counts the entries one sweep opened.
type NominationResult struct {
	NearExpiry int `json:"near_expiry"`
	Overstock  int `json:"overstock"`
}

type PoolService interface {
	Offer(ctx context.Context, actor Actor, req *OfferRequest) (*model.PoolEntry, error)
	Claim(ctx context.Context, actor Actor, entryID uuid.UUID) (*model.Transfer, error)
	Withdraw(ctx context.Context, actor Actor, entryID uuid.UUID) (*model.PoolEntry, error)
	ListOpen(ctx context.Context, actor Actor, filter repository.PoolFilter) ([]model.PoolEntry, error)
	// Nominate offers near-expiry and overstocked batches from every ledger.
	// A threshold of zero skips that half of the sweep.
	Nominate(ctx context.Context, now time.Time, horizonDays, overstockQty int) (NominationResult, error)
}

type poolService struct {
	db           *gorm.DB
	batchRepo    repository.BatchRepository
	poolRepo     repository.PoolRepository
	transferRepo repository.TransferRepository
	events       publisher
	metrics      *metrics.Metrics
	log          *zap.Logger
	now          func() time.Time
}

func NewPoolService(
	db *gorm.DB,
	batchRepo repository.BatchRepository,
	poolRepo repository.PoolRepository,
	transferRepo repository.TransferRepository,
	pub events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) PoolService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &poolService{
		db:           db,
		batchRepo:    batchRepo,
		poolRepo:     poolRepo,
		transferRepo: transferRepo,
		events:       publisher{pub: pub, log: log},
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
	s.events.now = func() time.Time { return s.now() }
	return s
}

func (s *poolService) Offer(ctx context.Context, actor Actor, req *OfferRequest) (*model.PoolEntry, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	reason, _ := model.ParsePoolReason(req.Reason)

	return s.offer(ctx, actor, partyID, req.BatchID, reason, func(b *model.StockBatch) (int, error) {
		if b.Quantity < req.Quantity {
			return 0, ErrInsufficientQuantity
		}
		return req.Quantity, nil
	})
}

// offer takes qty(batch) units out of a locked batch and opens a pool entry.
func (s *poolService) offer(
	ctx context.Context,
	actor Actor,
	partyID, batchID uuid.UUID,
	reason model.PoolReason,
	qty func(*model.StockBatch) (int, error),
) (*model.PoolEntry, error) {
	var entry *model.PoolEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.batchRepo.LockByID(tx, batchID)
		if repository.IsNotFound(err) {
			return ErrBatchNotFound
		}
		if err != nil {
			return err
		}
		if b.PartyID != partyID {
			return ErrNotOwner
		}
		if b.State != model.BatchAccepted {
			return ErrBatchNotAccepted
		}
		n, err := qty(b)
		if err != nil {
			return err
		}
		if n <= 0 {
			return ErrInvalidQuantity
		}

		b.Quantity -= n
		if b.Quantity == 0 {
			b.State = model.BatchShipped
		}
		b.UpdatedBy = actor.String()
		if err := s.batchRepo.Save(tx, b); err != nil {
			return err
		}

		entry = &model.PoolEntry{
			BatchID:          b.ID,
			OfferedByPartyID: partyID,
			ProductName:      b.ProductName,
			Category:         b.Category,
			ExpiryDate:       b.ExpiryDate,
			Quantity:         n,
			UnitPrice:        b.UnitPrice,
			Reason:           reason,
			Status:           model.PoolOpen,
		}
		entry.Stamp(actor.String())
		return s.poolRepo.Create(tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PoolOffer(string(reason))
	s.events.emit(ctx, actor, events.TypePool, events.ActionPoolOffered,
		fmt.Sprintf("%d units of '%s' offered to the pool (%s)", entry.Quantity, entry.ProductName, reason),
		entry)
	return entry, nil
}

// Claim hands an open entry to the caller. Of any number of concurrent
// claims on one entry exactly one succeeds; the rest get ErrPoolEntryNotOpen.
func (s *poolService) Claim(ctx context.Context, actor Actor, entryID uuid.UUID) (*model.Transfer, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}

	entry, err := s.poolRepo.FindByID(ctx, entryID)
	if repository.IsNotFound(err) {
		return nil, ErrPoolEntryMissing
	}
	if err != nil {
		return nil, err
	}
	if entry.OfferedByPartyID == partyID {
		return nil, ErrOwnPoolEntry
	}

	var transfer *model.Transfer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		won, err := s.poolRepo.Claim(tx, entry.ID, partyID, now, actor.String())
		if err != nil {
			return err
		}
		if !won {
			return ErrPoolEntryNotOpen
		}

		var source model.StockBatch
		if err := tx.Unscoped().First(&source, "id = ?", entry.BatchID).Error; err != nil {
			return fmt.Errorf("load pooled batch: %w", err)
		}
		source.UnitPrice = entry.UnitPrice

		transfer, err = createIncoming(tx, s.batchRepo, s.transferRepo, incoming{
			source:          &source,
			destPartyID:     partyID,
			quantity:        entry.Quantity,
			discountPercent: decimal.Zero,
			poolEntryID:     &entry.ID,
			at:              now,
			actor:           actor,
		})
		if err != nil {
			return err
		}
		return s.poolRepo.AttachTransfer(tx, entry.ID, transfer.ID)
	})
	if errors.Is(err, ErrPoolEntryNotOpen) {
		s.metrics.PoolClaim(false)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.metrics.PoolClaim(true)
	s.events.emit(ctx, actor, events.TypePool, events.ActionPoolClaimed,
		fmt.Sprintf("%s claimed %d units of '%s' from the pool", actor.Name, entry.Quantity, entry.ProductName),
		transfer)
	return transfer, nil
}

// Withdraw returns an open entry's quantity to the offering ledger. If the
// source batch has since left the accepted state the stock comes back as a
// new accepted batch.
func (s *poolService) Withdraw(ctx context.Context, actor Actor, entryID uuid.UUID) (*model.PoolEntry, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}

	var entry *model.PoolEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.poolRepo.LockByID(tx, entryID)
		if repository.IsNotFound(err) {
			return ErrPoolEntryMissing
		}
		if err != nil {
			return err
		}
		if e.OfferedByPartyID != partyID {
			return ErrNotOfferingParty
		}
		ok, err := s.poolRepo.Withdraw(tx, e.ID, actor.String())
		if err != nil {
			return err
		}
		if !ok {
			return ErrPoolEntryNotOpen
		}

		b, err := s.batchRepo.LockByID(tx.Unscoped(), e.BatchID)
		if err != nil {
			return fmt.Errorf("load pooled batch: %w", err)
		}
		if b.State == model.BatchAccepted && !b.DeletedAt.Valid {
			b.Quantity += e.Quantity
			b.UpdatedBy = actor.String()
			if err := s.batchRepo.Save(tx, b); err != nil {
				return err
			}
		} else {
			back := b.CopyTo(partyID, e.Quantity, e.UnitPrice)
			back.State = model.BatchAccepted
			back.Stamp(actor.String())
			if err := s.batchRepo.Create(tx, back); err != nil {
				return err
			}
		}

		e.Status = model.PoolWithdrawn
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, actor, events.TypePool, events.ActionPoolWithdrawn,
		fmt.Sprintf("%s withdrew '%s' from the pool", actor.Name, entry.ProductName),
		entry)
	return entry, nil
}

// ListOpen lists claimable entries. Entries the caller's own party offered
// are included so they can be withdrawn.
func (s *poolService) ListOpen(ctx context.Context, actor Actor, filter repository.PoolFilter) ([]model.PoolEntry, error) {
	return s.poolRepo.FindOpen(ctx, filter)
}

func (s *poolService) Nominate(ctx context.Context, now time.Time, horizonDays, overstockQty int) (NominationResult, error) {
	var res NominationResult
	log := s.log.With(zap.Int("horizon_days", horizonDays), zap.Int("overstock_qty", overstockQty))

	if horizonDays > 0 {
		open, err := s.poolRepo.OpenBatchIDs(ctx, model.PoolNearExpiry)
		if err != nil {
			return res, err
		}
		batches, err := expiringBatches(ctx, s.batchRepo, nil, horizonDays, now)
		if err != nil {
			return res, err
		}
		withdrawn, err := s.poolRepo.WithdrawnBatchOwners(ctx, model.PoolNearExpiry)
		if err != nil {
			return res, err
		}
		for _, b := range batches {
			if !b.Perishable || open[b.ID] || withdrawnBy(withdrawn, &b) {
				continue
			}
			_, err := s.offer(ctx, SystemActor, b.PartyID, b.ID, model.PoolNearExpiry, func(locked *model.StockBatch) (int, error) {
				if !locked.ExpiresWithin(now, horizonDays) {
					return 0, ErrInvalidQuantity
				}
				return locked.Quantity, nil
			})
			if err != nil {
				log.Warn("near-expiry nomination skipped", zap.String("batch_id", b.ID.String()), zap.Error(err))
				continue
			}
			res.NearExpiry++
		}
	}

	if overstockQty > 0 {
		batches, err := s.batchRepo.FindOverstocked(ctx, overstockQty)
		if err != nil {
			return res, err
		}
		withdrawn, err := s.poolRepo.WithdrawnBatchOwners(ctx, model.PoolOverstock)
		if err != nil {
			return res, err
		}
		for _, b := range batches {
			if withdrawnBy(withdrawn, &b) {
				continue
			}
			_, err := s.offer(ctx, SystemActor, b.PartyID, b.ID, model.PoolOverstock, func(locked *model.StockBatch) (int, error) {
				return locked.Quantity - overstockQty, nil
			})
			if err != nil {
				log.Warn("overstock nomination skipped", zap.String("batch_id", b.ID.String()), zap.Error(err))
				continue
			}
			res.Overstock++
		}
	}

	s.metrics.SweepOffered(string(model.PoolNearExpiry), res.NearExpiry)
	s.metrics.SweepOffered(string(model.PoolOverstock), res.Overstock)
	log.Info("pool sweep finished", zap.Int("near_expiry", res.NearExpiry), zap.Int("overstock", res.Overstock))
	return res, nil
}

// withdrawnBy reports whether the owner already took b, or the batch it was
// restored from, back out of the pool. Sweeps leave such stock alone.
func withdrawnBy(withdrawn map[uuid.UUID]uuid.UUID, b *model.StockBatch) bool {
	if owner, ok := withdrawn[b.ID]; ok && owner == b.PartyID {
		return true
	}
	if b.OriginBatchID == nil {
		return false
	}
	owner, ok := withdrawn[*b.OriginBatchID]
	return ok && owner == b.PartyID
}
