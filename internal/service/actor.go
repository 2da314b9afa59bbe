package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-freshflow/internal/events"
	"go-freshflow/internal/model"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID  uuid.UUID
	Name    string
	PartyID *uuid.UUID
	// SeesAll lets the caller read every ledger.
	SeesAll bool
}

// SystemActor is used for changes made by scheduled jobs.
var SystemActor = Actor{Name: "system", SeesAll: true}

// String is the value written to the audit columns.
func (a Actor) String() string {
	if a.UserID == uuid.Nil {
		return "system"
	}
	return a.UserID.String()
}

// Party returns the caller's party or ErrNoParty.
func (a Actor) Party() (uuid.UUID, error) {
	if a.PartyID == nil || *a.PartyID == uuid.Nil {
		return uuid.Nil, ErrNoParty
	}
	return *a.PartyID, nil
}

// CanRead reports whether the caller may read partyID's ledger.
func (a Actor) CanRead(partyID uuid.UUID) bool {
	return a.SeesAll || (a.PartyID != nil && *a.PartyID == partyID)
}

// publisher wraps an events.Publisher with logging; publish errors never fail
// the operation that produced the event.
type publisher struct {
	pub events.Publisher
	log *zap.Logger
	// now stamps OccurredAt; it follows the owning service's clock.
	now func() time.Time
}

func (p publisher) emit(ctx context.Context, actor Actor, typ, action, message string, data any, parties ...uuid.UUID) {
	if p.pub == nil {
		return
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	ids := make([]string, 0, len(parties))
	for _, id := range parties {
		ids = append(ids, id.String())
	}
	e := events.Event{
		Type:       typ,
		Action:     action,
		PartyIDs:   ids,
		ActorID:    actor.UserID.String(),
		ActorName:  actor.Name,
		Message:    message,
		Data:       data,
		OccurredAt: now().UTC(),
	}
	if err := p.pub.Publish(ctx, e); err != nil {
		p.log.Warn("event publish failed", zap.String("action", action), zap.Error(err))
	}
}

func batchPayload(b *model.StockBatch) map[string]interface{} {
	return map[string]interface{}{
		"id":           b.ID,
		"party_id":     b.PartyID,
		"product_name": b.ProductName,
		"quantity":     b.Quantity,
		"state":        b.State,
		"expiry_date":  b.ExpiryDate,
	}
}
