package service

import (
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
	"go-freshflow/internal/repository"
	"go-freshflow/pkg/validator"
)

var hundred = decimal.NewFromInt(100)

// Transfer list directions.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

type TransferRequest struct {
	SourceBatchID      uuid.UUID       `json:"source_batch_id" validate:"uuid_required"`
	DestinationPartyID uuid.UUID       `json:"destination_party_id" validate:"uuid_required"`
	Quantity           int             `json:"quantity" validate:"gt=0"`
	DiscountPercent    decimal.Decimal `json:"discount_percent"`
}

type TransferService interface {
	Transfer(ctx context.Context, actor Actor, req *TransferRequest) (*model.Transfer, error)
	Accept(ctx context.Context, actor Actor, transferID uuid.UUID) (*model.Transfer, error)
	Get(ctx context.Context, actor Actor, transferID uuid.UUID) (*model.Transfer, error)
	List(ctx context.Context, actor Actor, direction string, pendingOnly bool) ([]model.Transfer, error)
}

type transferService struct {
	db           *gorm.DB
	batchRepo    repository.BatchRepository
	transferRepo repository.TransferRepository
	partyRepo    repository.PartyRepository
	events       publisher
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewTransferService(
	db *gorm.DB,
	batchRepo repository.BatchRepository,
	transferRepo repository.TransferRepository,
	partyRepo repository.PartyRepository,
	pub events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) TransferService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &transferService{
		db:           db,
		batchRepo:    batchRepo,
		transferRepo: transferRepo,
		partyRepo:    partyRepo,
		events:       publisher{pub: pub, log: log},
		metrics:      m,
		now:          time.Now,
	}
	s.events.now = func() time.Time { return s.now() }
	return s
}

// DiscountedPrice applies a percentage discount, rounded to cents.
func DiscountedPrice(unit, discountPercent decimal.Decimal) decimal.Decimal {
	factor := hundred.Sub(discountPercent).Div(hundred)
	return unit.Mul(factor).Round(2)
}

// Transfer moves quantity from an owned batch to a pending batch in a
// downstream party's ledger. The source decrement, the destination insert and
// the transfer record commit together or not at all.
func (s *transferService) Transfer(ctx context.Context, actor Actor, req *TransferRequest) (*model.Transfer, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(hundred) {
		return nil, ErrInvalidDiscount
	}
	if req.DestinationPartyID == partyID {
		return nil, ErrSameParty
	}

	source, err := s.partyRepo.FindByID(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("load source party: %w", err)
	}
	dest, err := s.partyRepo.FindByID(ctx, req.DestinationPartyID)
	if repository.IsNotFound(err) {
		return nil, ErrPartyNotFound
	}
	if err != nil {
		return nil, err
	}
	if !source.Tier.CanShipTo(dest.Tier) {
		return nil, ErrTierOrder
	}

	var (
		transfer *model.Transfer
		batch    *model.StockBatch
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.batchRepo.LockByID(tx, req.SourceBatchID)
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
		if b.Quantity < req.Quantity {
			return ErrInsufficientQuantity
		}

		b.Quantity -= req.Quantity
		if b.Quantity == 0 {
			b.State = model.BatchShipped
		}
		b.UpdatedBy = actor.String()
		if err := s.batchRepo.Save(tx, b); err != nil {
			return err
		}

		transfer, err = createIncoming(tx, s.batchRepo, s.transferRepo, incoming{
			source:          b,
			destPartyID:     dest.ID,
			quantity:        req.Quantity,
			discountPercent: req.DiscountPercent,
			at:              s.now(),
			actor:           actor,
		})
		batch = b
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transfer(string(source.Tier), string(dest.Tier))
	s.events.emit(ctx, actor, events.TypeTransfer, events.ActionTransferCreated,
		fmt.Sprintf("%s sent %d units of '%s' to %s", actor.Name, transfer.Quantity, batch.ProductName, dest.Name),
		transfer, partyID, dest.ID)
	return transfer, nil
}

type incoming struct {
	source          *model.StockBatch
	destPartyID     uuid.UUID
	quantity        int
	discountPercent decimal.Decimal
	poolEntryID     *uuid.UUID
	at              time.Time
	actor           Actor
}

// createIncoming writes the pending destination batch and its transfer record.
// The caller has already taken the quantity out of the source.
func createIncoming(tx *gorm.DB, batchRepo repository.BatchRepository, transferRepo repository.TransferRepository, in incoming) (*model.Transfer, error) {
	price := DiscountedPrice(in.source.UnitPrice, in.discountPercent)

	dest := in.source.CopyTo(in.destPartyID, in.quantity, price)
	dest.Stamp(in.actor.String())
	if err := batchRepo.Create(tx, dest); err != nil {
		return nil, fmt.Errorf("create incoming batch: %w", err)
	}

	transfer := &model.Transfer{
		SourceBatchID:      in.source.ID,
		DestinationBatchID: dest.ID,
		SourcePartyID:      in.source.PartyID,
		DestinationPartyID: in.destPartyID,
		ProductName:        in.source.ProductName,
		Quantity:           in.quantity,
		UnitPrice:          price,
		DiscountPercent:    in.discountPercent,
		TransferredAt:      in.at.UTC(),
		PoolEntryID:        in.poolEntryID,
	}
	transfer.Stamp(in.actor.String())
	if err := transferRepo.Create(tx, transfer); err != nil {
		return nil, fmt.Errorf("create transfer record: %w", err)
	}
	return transfer, nil
}

// Accept moves the incoming batch into the receiver's inventory. Accepting an
// already accepted transfer returns it unchanged.
func (s *transferService) Accept(ctx context.Context, actor Actor, transferID uuid.UUID) (*model.Transfer, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}

	var accepted bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.transferRepo.LockByID(tx, transferID)
		if repository.IsNotFound(err) {
			return ErrTransferNotFound
		}
		if err != nil {
			return err
		}
		if t.DestinationPartyID != partyID {
			return ErrNotDestination
		}
		if t.IsAccepted() {
			return nil
		}

		ok, err := s.transferRepo.MarkAccepted(tx, t.ID, s.now(), actor.String())
		if err != nil || !ok {
			return err
		}

		b, err := s.batchRepo.LockByID(tx, t.DestinationBatchID)
		if err != nil {
			return fmt.Errorf("load incoming batch: %w", err)
		}
		if !b.State.CanTransition(model.BatchAccepted) {
			return fmt.Errorf("incoming batch %s is %s: %w", b.ID, b.State, ErrBatchNotAccepted)
		}
		b.State = model.BatchAccepted
		b.UpdatedBy = actor.String()
		if err := s.batchRepo.Save(tx, b); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if accepted {
		s.metrics.Accept()
		s.events.emit(ctx, actor, events.TypeTransfer, events.ActionTransferAccepted,
			fmt.Sprintf("%s accepted %d units of '%s'", actor.Name, transfer.Quantity, transfer.ProductName),
			transfer, transfer.SourcePartyID, transfer.DestinationPartyID)
	}
	return transfer, nil
}

func (s *transferService) Get(ctx context.Context, actor Actor, transferID uuid.UUID) (*model.Transfer, error) {
	t, err := s.transferRepo.FindByID(ctx, transferID)
	if repository.IsNotFound(err) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	if !actor.CanRead(t.SourcePartyID) && !actor.CanRead(t.DestinationPartyID) {
		return nil, ErrForbiddenLedger
	}
	return t, nil
}

func (s *transferService) List(ctx context.Context, actor Actor, direction string, pendingOnly bool) ([]model.Transfer, error) {
	partyID, err := actor.Party()
	if err != nil {
		return nil, err
	}
	switch direction {
	case "", DirectionIncoming:
		return s.transferRepo.FindIncoming(ctx, partyID, pendingOnly)
	case DirectionOutgoing:
		return s.transferRepo.FindOutgoing(ctx, partyID)
	default:
		return nil, ErrInvalidView
	}
}
