package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchState is persisted as-is; nothing about a batch's lifecycle is inferred
// from nullable columns.
type BatchState string

const (
	// BatchPending is incoming stock waiting for the owner's acceptance.
	BatchPending  BatchState = "pending"
	BatchAccepted BatchState = "accepted"
	// BatchShipped means every unit has left the ledger by transfer or pool offer.
	BatchShipped BatchState = "shipped"
	// BatchSold means every unit has been sold.
	BatchSold BatchState = "sold"
)

var batchTransitions = map[BatchState][]BatchState{
	BatchPending:  {BatchAccepted},
	BatchAccepted: {BatchShipped, BatchSold},
}

// CanTransition reports whether a batch may move from s to next.
func (s BatchState) CanTransition(next BatchState) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var (
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
	ErrExpiryBeforeMfg  = errors.New("expiry date cannot be before manufacturing date")
)

// StockBatch is one row of a party's ledger.
type StockBatch struct {
	BaseModel
	PartyID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"party_id"`
	Party              *Party          `gorm:"foreignKey:PartyID" json:"party,omitempty"`
	ProductName        string          `gorm:"type:varchar(255);not null;index" json:"product_name"`
	Category           string          `gorm:"type:varchar(100);index" json:"category"`
	Quantity           int             `gorm:"not null" json:"quantity"`
	UnitPrice          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	ManufacturingDate  time.Time       `gorm:"not null" json:"manufacturing_date"`
	ExpiryDate         time.Time       `gorm:"not null;index" json:"expiry_date"`
	LotID              string          `gorm:"type:varchar(100);index" json:"lot_id"`
	Perishable         bool            `json:"perishable"`
	StorageRequirement string          `gorm:"type:varchar(100)" json:"storage_requirement"`
	State              BatchState      `gorm:"type:varchar(20);not null;index" json:"state"`
	OriginBatchID      *uuid.UUID      `gorm:"type:uuid;index" json:"origin_batch_id,omitempty"`
}

func (StockBatch) TableName() string {
	return "stock_batches"
}

// Validate checks quantity and date ordering.
func (b *StockBatch) Validate() error {
	if b.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if b.ExpiryDate.Before(b.ManufacturingDate) {
		return ErrExpiryBeforeMfg
	}
	return nil
}

// Valuation is quantity * unit price.
func (b *StockBatch) Valuation() decimal.Decimal {
	return b.UnitPrice.Mul(decimal.NewFromInt(int64(b.Quantity)))
}

// ExpiresWithin reports 0 <= expiry - now <= horizonDays.
func (b *StockBatch) ExpiresWithin(now time.Time, horizonDays int) bool {
	left := b.ExpiryDate.Sub(now)
	return left >= 0 && left <= time.Duration(horizonDays)*24*time.Hour
}

// CopyTo builds the pending ledger row a transfer creates on the receiving side.
func (b *StockBatch) CopyTo(partyID uuid.UUID, qty int, unitPrice decimal.Decimal) *StockBatch {
	origin := b.ID
	return &StockBatch{
		PartyID:            partyID,
		ProductName:        b.ProductName,
		Category:           b.Category,
		Quantity:           qty,
		UnitPrice:          unitPrice,
		ManufacturingDate:  b.ManufacturingDate,
		ExpiryDate:         b.ExpiryDate,
		LotID:              b.LotID,
		Perishable:         b.Perishable,
		StorageRequirement: b.StorageRequirement,
		State:              BatchPending,
		OriginBatchID:      &origin,
	}
}
