package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"go-freshflow/internal/events"
	"go-freshflow/internal/model"
	"go-freshflow/internal/testutil"
)

func batchRequest(now time.Time) *BatchRequest {
	return &BatchRequest{
		ProductName:       "Milk",
		Category:          "dairy",
		Quantity:          24,
		UnitPrice:         decimal.RequireFromString("1.25"),
		ManufacturingDate: now.AddDate(0, 0, -1),
		ExpiryDate:        now.AddDate(0, 0, 6),
		LotID:             "L-1",
		Perishable:        true,
	}
}

func TestCreateBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	b, err := f.ledger.CreateBatch(ctx, actorFor(f.farm), batchRequest(now))
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	if b.State != model.BatchAccepted || b.PartyID != f.farm.ID {
		t.Errorf("Expected accepted batch in farm ledger, got state=%s party=%s", b.State, b.PartyID)
	}
	if f.sink.Count(events.ActionBatchCreated) != 1 {
		t.Error("Expected batch_created event")
	}

	tests := []struct {
		name   string
		mutate func(r *BatchRequest)
	}{
		{"expiry before manufacturing", func(r *BatchRequest) { r.ExpiryDate = r.ManufacturingDate.AddDate(0, 0, -1) }},
		{"negative quantity", func(r *BatchRequest) { r.Quantity = -1 }},
		{"negative price", func(r *BatchRequest) { r.UnitPrice = decimal.NewFromInt(-1) }},
		{"missing product", func(r *BatchRequest) { r.ProductName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := batchRequest(now)
			tt.mutate(req)
			if _, err := f.ledger.CreateBatch(ctx, actorFor(f.farm), req); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestUpdateAndDeleteBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	b := testutil.CreateBatch(t, f.db, f.market.ID, "Cheese", 10)

	req := batchRequest(now)
	req.ProductName = "Aged Cheese"
	req.Quantity = 7
	if _, err := f.ledger.UpdateBatch(ctx, actorFor(f.shop), b.ID, req); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}
	updated, err := f.ledger.UpdateBatch(ctx, actorFor(f.market), b.ID, req)
	if err != nil {
		t.Fatalf("UpdateBatch failed: %v", err)
	}
	if updated.ProductName != "Aged Cheese" || updated.Quantity != 7 {
		t.Errorf("Unexpected update result: %+v", updated)
	}

	if _, err := f.pool.Offer(ctx, actorFor(f.market), &OfferRequest{BatchID: b.ID, Quantity: 2, Reason: "manual"}); err != nil {
		t.Fatalf("Offer failed: %v", err)
	}
	if err := f.ledger.DeleteBatch(ctx, actorFor(f.market), b.ID); !errors.Is(err, ErrBatchInPool) {
		t.Errorf("Expected ErrBatchInPool, got %v", err)
	}

	other := testutil.CreateBatch(t, f.db, f.market.ID, "Butter", 3)
	if err := f.ledger.DeleteBatch(ctx, actorFor(f.market), other.ID); err != nil {
		t.Fatalf("DeleteBatch failed: %v", err)
	}
	gone := f.reload(t, other.ID)
	if !gone.DeletedAt.Valid || gone.DeletedBy == "" {
		t.Errorf("Expected soft delete with deleted_by, got %+v", gone.BaseModel)
	}
	if _, err := f.ledger.GetBatch(ctx, actorFor(f.market), other.ID); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("Expected deleted batch to be hidden, got %v", err)
	}
}

func TestExpiringSoon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	threeDays := testutil.CreateBatch(t, f.db, f.market.ID, "Milk", 5, testutil.WithExpiry(now.Add(72*time.Hour)))
	testutil.CreateBatch(t, f.db, f.market.ID, "Old Milk", 5, testutil.WithExpiry(now.Add(-24*time.Hour)))
	testutil.CreateBatch(t, f.db, f.market.ID, "Incoming Milk", 5, testutil.WithExpiry(now.Add(24*time.Hour)), testutil.WithState(model.BatchPending))

	tests := []struct {
		name    string
		horizon int
		want    []uuid.UUID
	}{
		{"horizon 7 includes 3 days out", 7, []uuid.UUID{threeDays.ID}},
		{"horizon 2 excludes 3 days out", 2, nil},
		{"horizon 0", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ledger.ExpiringSoon(ctx, actorFor(f.market), f.market.ID, tt.horizon, now)
			if err != nil {
				t.Fatalf("ExpiringSoon failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d batches, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("Expected %s, got %s", tt.want[i], got[i].ID)
				}
			}
		})
	}

	if _, err := f.ledger.ExpiringSoon(ctx, actorFor(f.market), f.market.ID, -1, now); !errors.Is(err, ErrHorizonRequired) {
		t.Errorf("Expected ErrHorizonRequired, got %v", err)
	}
	if _, err := f.ledger.ExpiringSoon(ctx, actorFor(f.shop), f.market.ID, 7, now); !errors.Is(err, ErrForbiddenLedger) {
		t.Errorf("Expected ErrForbiddenLedger, got %v", err)
	}
}

func TestListLedger_Views(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.CreateBatch(t, f.db, f.shop.ID, "Bread", 4)
	testutil.CreateBatch(t, f.db, f.shop.ID, "Rolls", 0)
	testutil.CreateBatch(t, f.db, f.shop.ID, "Cake", 2, testutil.WithState(model.BatchPending))

	tests := []struct {
		view    string
		want    int
		wantErr error
	}{
		{"", 1, nil},
		{ViewInventory, 1, nil},
		{ViewIncoming, 1, nil},
		{ViewAll, 3, nil},
		{"archived", 0, ErrInvalidView},
	}
	for _, tt := range tests {
		t.Run("view="+tt.view, func(t *testing.T) {
			got, err := f.ledger.ListLedger(ctx, actorFor(f.shop), f.shop.ID, tt.view)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d batches, got %d", tt.want, len(got))
			}
		})
	}

	admin := Actor{UserID: uuid.New(), SeesAll: true}
	if _, err := f.ledger.ListLedger(ctx, admin, uuid.New(), ViewAll); !errors.Is(err, ErrPartyNotFound) {
		t.Errorf("Expected ErrPartyNotFound, got %v", err)
	}
}

func TestSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := testutil.CreateBatch(t, f.db, f.shop.ID, "Bread", 10, testutil.WithPrice("2.00"))
	seller := actorFor(f.shop)

	sale, err := f.ledger.Sell(ctx, seller, b.ID, &SellRequest{Quantity: 4})
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if sale.QuantitySold != 4 || !sale.UnitPrice.Equal(decimal.NewFromInt(2)) || sale.PartyID != f.shop.ID {
		t.Errorf("Unexpected sale record: %+v", sale)
	}
	if q := f.reload(t, b.ID).Quantity; q != 6 {
		t.Errorf("Expected 6 units left, got %d", q)
	}

	if _, err := f.ledger.Sell(ctx, seller, b.ID, &SellRequest{Quantity: 7}); !errors.Is(err, ErrInsufficientQuantity) {
		t.Errorf("Expected ErrInsufficientQuantity, got %v", err)
	}
	if _, err := f.ledger.Sell(ctx, seller, b.ID, &SellRequest{Quantity: 6}); err != nil {
		t.Fatalf("Sell of remainder failed: %v", err)
	}
	if s := f.reload(t, b.ID).State; s != model.BatchSold {
		t.Errorf("Expected sold state, got %s", s)
	}
	if _, err := f.ledger.Sell(ctx, seller, b.ID, &SellRequest{Quantity: 1}); !errors.Is(err, ErrBatchNotAccepted) {
		t.Errorf("Expected ErrBatchNotAccepted after selling out, got %v", err)
	}

	var sales int64
	f.db.Model(&model.SaleRecord{}).Where("batch_id = ?", b.ID).Count(&sales)
	if sales != 2 {
		t.Errorf("Expected 2 sale records, got %d", sales)
	}
}

func TestSummaryAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.CreateBatch(t, f.db, f.market.ID, "Milk", 10, testutil.WithCategory("dairy"), testutil.WithPrice("1.50"))
	testutil.CreateBatch(t, f.db, f.market.ID, "Cheese", 2, testutil.WithCategory("dairy"), testutil.WithPrice("5.00"))
	testutil.CreateBatch(t, f.db, f.market.ID, "Apples", 30, testutil.WithCategory("fruit"), testutil.WithPrice("0.50"))
	testutil.CreateBatch(t, f.db, f.market.ID, "Pears", 9, testutil.WithCategory("fruit"), testutil.WithState(model.BatchPending))

	sum, err := f.ledger.Summary(ctx, actorFor(f.market), f.market.ID)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(sum.Categories) != 2 {
		t.Fatalf("Expected 2 categories, got %+v", sum.Categories)
	}
	dairy := sum.Categories[0]
	if dairy.Category != "dairy" || dairy.Quantity != 12 || !dairy.Valuation.Equal(decimal.RequireFromString("25")) {
		t.Errorf("Unexpected dairy totals: %+v", dairy)
	}
	if sum.TotalQuantity != 42 || !sum.TotalValuation.Equal(decimal.RequireFromString("40")) {
		t.Errorf("Unexpected totals: qty=%d value=%s", sum.TotalQuantity, sum.TotalValuation)
	}

	data, err := f.ledger.Export(ctx, actorFor(f.market), f.market.ID)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Export is not a workbook: %v", err)
	}
	defer wb.Close()
	rows, _ := wb.GetRows("Ledger")
	if len(rows) != 7 {
		t.Errorf("Expected title, header, 4 batches and totals, got %d rows", len(rows))
	}
}
