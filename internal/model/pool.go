package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PoolReason string

const (
	PoolNearExpiry PoolReason = "near_expiry"
	PoolOverstock  PoolReason = "overstock"
	PoolManual     PoolReason = "manual"
)

type PoolStatus string

const (
	PoolOpen      PoolStatus = "open"
	PoolClaimed   PoolStatus = "claimed"
	PoolWithdrawn PoolStatus = "withdrawn"
)

// PoolEntry is stock set aside from a ledger for any other party to claim.
// The quantity leaves the source batch when the entry is opened.
type PoolEntry struct {
	BaseModel
	BatchID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"batch_id"`
	Batch            *StockBatch     `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
	OfferedByPartyID uuid.UUID       `gorm:"type:uuid;not null;index" json:"offered_by_party_id"`
	OfferedByParty   *Party          `gorm:"foreignKey:OfferedByPartyID" json:"offered_by_party,omitempty"`
	ProductName      string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Category         string          `gorm:"type:varchar(100);index" json:"category"`
	ExpiryDate       time.Time       `gorm:"not null" json:"expiry_date"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Reason           PoolReason      `gorm:"type:varchar(20);not null" json:"reason"`
	Status           PoolStatus      `gorm:"type:varchar(20);not null;index" json:"status"`
	ClaimedByPartyID *uuid.UUID      `gorm:"type:uuid;index" json:"claimed_by_party_id,omitempty"`
	ClaimedAt        *time.Time      `json:"claimed_at,omitempty"`
	TransferID       *uuid.UUID      `gorm:"type:uuid" json:"transfer_id,omitempty"`
}

func (PoolEntry) TableName() string {
	return "pool_entries"
}

func ParsePoolReason(s string) (PoolReason, bool) {
	switch r := PoolReason(s); r {
	case PoolNearExpiry, PoolOverstock, PoolManual:
		return r, true
	}
	return "", false
}
