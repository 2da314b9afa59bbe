// Package events carries ledger state changes to live subscribers and the
// audit archive.
package events

import (
	"context"
	"errors"
	"time"
)

const (
	TypeStockUpdate = "stock_update"
	TypeTransfer    = "transfer_update"
	TypePool        = "pool_update"
	TypeUserStatus  = "user_status_update"
)

const (
	ActionBatchCreated     = "batch_created"
	ActionBatchUpdated     = "batch_updated"
	ActionBatchDeleted     = "batch_deleted"
	ActionBatchSold        = "batch_sold"
	ActionTransferCreated  = "transfer_created"
	ActionTransferAccepted = "transfer_accepted"
	ActionPoolOffered      = "pool_offered"
	ActionPoolClaimed      = "pool_claimed"
	ActionPoolWithdrawn    = "pool_withdrawn"
	ActionUserOnline       = "online"
)

// Event is one ledger change. PartyIDs scopes live delivery; an empty list
// goes to every connected party.
type Event struct {
	Type       string    `json:"type" bson:"type"`
	Action     string    `json:"action" bson:"action"`
	PartyIDs   []string  `json:"-" bson:"party_ids"`
	ActorID    string    `json:"actor_id,omitempty" bson:"actor_id"`
	ActorName  string    `json:"actor_name,omitempty" bson:"actor_name"`
	Message    string    `json:"message" bson:"message"`
	Data       any       `json:"data,omitempty" bson:"data"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
}

// Publisher delivers events after the originating transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
