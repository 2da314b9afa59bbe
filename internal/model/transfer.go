package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer records a quantity moved from one ledger to another.
type Transfer struct {
	BaseModel
	SourceBatchID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"source_batch_id"`
	DestinationBatchID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"destination_batch_id"`
	DestinationBatch   *StockBatch     `gorm:"foreignKey:DestinationBatchID" json:"destination_batch,omitempty"`
	SourcePartyID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"source_party_id"`
	SourceParty        *Party          `gorm:"foreignKey:SourcePartyID" json:"source_party,omitempty"`
	DestinationPartyID uuid.UUID       `gorm:"type:uuid;not null;index" json:"destination_party_id"`
	DestinationParty   *Party          `gorm:"foreignKey:DestinationPartyID" json:"destination_party,omitempty"`
	ProductName        string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity           int             `gorm:"not null" json:"quantity"`
	UnitPrice          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	DiscountPercent    decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"discount_percent"`
	TransferredAt      time.Time       `gorm:"not null" json:"transferred_at"`
	AcceptedAt         *time.Time      `json:"accepted_at,omitempty"`
	PoolEntryID        *uuid.UUID      `gorm:"type:uuid;index" json:"pool_entry_id,omitempty"`
}

func (Transfer) TableName() string {
	return "transfers"
}

func (t *Transfer) IsAccepted() bool {
	return t.AcceptedAt != nil
}
