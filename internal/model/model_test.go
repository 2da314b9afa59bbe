package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestTier_CanShipTo(t *testing.T) {
	tests := []struct {
		src, dst Tier
		want     bool
	}{
		{TierProducer, TierSupermarket, true},
		{TierProducer, TierLocalMarket, true},
		{TierSupermarket, TierLocalMarket, true},
		{TierSupermarket, TierProducer, false},
		{TierLocalMarket, TierSupermarket, false},
		{TierSupermarket, TierSupermarket, false},
		{Tier("warehouse"), TierLocalMarket, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.src)+"->"+string(tt.dst), func(t *testing.T) {
			if got := tt.src.CanShipTo(tt.dst); got != tt.want {
				t.Errorf("CanShipTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	if tier, err := ParseTier("localmarket"); err != nil || tier != TierLocalMarket {
		t.Errorf("ParseTier(localmarket) = %q, %v", tier, err)
	}
	if _, err := ParseTier("Supermarket"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("Expected ErrUnknownTier, got %v", err)
	}
}

func TestBatchState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to BatchState
		want     bool
	}{
		{BatchPending, BatchAccepted, true},
		{BatchAccepted, BatchShipped, true},
		{BatchAccepted, BatchSold, true},
		{BatchPending, BatchShipped, false},
		{BatchShipped, BatchAccepted, false},
		{BatchSold, BatchAccepted, false},
		{BatchAccepted, BatchPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStockBatch_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		expiry  time.Time
		horizon int
		want    bool
	}{
		{"3 days out, horizon 7", now.AddDate(0, 0, 3), 7, true},
		{"3 days out, horizon 2", now.AddDate(0, 0, 3), 2, false},
		{"exactly on horizon", now.AddDate(0, 0, 2), 2, true},
		{"expires now", now, 0, true},
		{"already expired", now.Add(-time.Minute), 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &StockBatch{ExpiryDate: tt.expiry}
			if got := b.ExpiresWithin(now, tt.horizon); got != tt.want {
				t.Errorf("ExpiresWithin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStockBatch_ValidateAndCopy(t *testing.T) {
	now := time.Now().UTC()
	b := &StockBatch{
		BaseModel:         BaseModel{ID: uuid.New()},
		PartyID:           uuid.New(),
		ProductName:       "Yogurt",
		Quantity:          12,
		UnitPrice:         decimal.RequireFromString("0.80"),
		ManufacturingDate: now,
		ExpiryDate:        now.AddDate(0, 0, 10),
		Perishable:        true,
		State:             BatchAccepted,
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if !b.Valuation().Equal(decimal.RequireFromString("9.6")) {
		t.Errorf("Valuation() = %s", b.Valuation())
	}

	dst := uuid.New()
	copied := b.CopyTo(dst, 5, decimal.RequireFromString("0.72"))
	if copied.PartyID != dst || copied.Quantity != 5 || copied.State != BatchPending {
		t.Errorf("Unexpected copy: %+v", copied)
	}
	if copied.OriginBatchID == nil || *copied.OriginBatchID != b.ID {
		t.Error("Expected origin batch id to point at the source")
	}
	if copied.ID != uuid.Nil {
		t.Error("Expected copy to get its own id on insert")
	}

	b.Quantity = -1
	if err := b.Validate(); !errors.Is(err, ErrNegativeQuantity) {
		t.Errorf("Expected ErrNegativeQuantity, got %v", err)
	}
	b.Quantity = 1
	b.ExpiryDate = now.AddDate(0, 0, -1)
	if err := b.Validate(); !errors.Is(err, ErrExpiryBeforeMfg) {
		t.Errorf("Expected ErrExpiryBeforeMfg, got %v", err)
	}
}
