package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleRecord is one row of historical_sales, written when stock is sold or
// imported from a spreadsheet.
type SaleRecord struct {
	BaseModel
	BatchID      *uuid.UUID      `gorm:"type:uuid;index" json:"batch_id,omitempty"`
	PartyID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"party_id"`
	ProductName  string          `gorm:"type:varchar(255);not null;index" json:"product_name"`
	QuantitySold int             `gorm:"not null" json:"quantity_sold"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	SoldAt       time.Time       `gorm:"not null;index" json:"sold_at"`
}

func (SaleRecord) TableName() string {
	return "historical_sales"
}
