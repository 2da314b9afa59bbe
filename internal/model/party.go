package model

import (
	"errors"
	"fmt"
)

// Tier is the position of a party in the supply chain.
type Tier string

const (
	TierProducer    Tier = "producer"
	TierSupermarket Tier = "supermarket"
	TierLocalMarket Tier = "localmarket"
)

var tierRank = map[Tier]int{
	TierProducer:    0,
	TierSupermarket: 1,
	TierLocalMarket: 2,
}

// Tiers returns all tiers from upstream to downstream.
func Tiers() []Tier {
	return []Tier{TierProducer, TierSupermarket, TierLocalMarket}
}

var ErrUnknownTier = errors.New("unknown tier")

func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownTier, s)
	}
	return t, nil
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Rank orders tiers; producers are 0.
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

// CanShipTo reports whether stock may be transferred from t to dst.
// Transfers only flow downstream.
func (t Tier) CanShipTo(dst Tier) bool {
	return t.Valid() && dst.Valid() && dst.Rank() > t.Rank()
}

// Party owns exactly one ledger of stock batches.
type Party struct {
	BaseModel
	Name string `gorm:"type:varchar(255);uniqueIndex;not null" json:"name" validate:"required,max=255"`
	Tier Tier   `gorm:"type:varchar(20);not null;index" json:"tier" validate:"required,tier"`
}

func (Party) TableName() string {
	return "parties"
}
