package service

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-freshflow/internal/events"
	"go-freshflow/internal/metrics"
	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
	"go-freshflow/internal/testutil"
)

type fixture struct {
	db        *gorm.DB
	sink      *events.MemorySink
	metrics   *metrics.Metrics
	ledger    LedgerService
	transfers TransferService
	pool      PoolService

	farm   *model.Party
	market *model.Party
	shop   *model.Party
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	sink := events.NewMemorySink()
	m := metrics.New(nil)

	batchRepo := repository.NewBatchRepo(db)
	partyRepo := repository.NewPartyRepo(db)
	poolRepo := repository.NewPoolRepo(db)
	transferRepo := repository.NewTransferRepo(db)
	saleRepo := repository.NewSaleRepo(db)

	return &fixture{
		db:        db,
		sink:      sink,
		metrics:   m,
		ledger:    NewLedgerService(db, batchRepo, partyRepo, poolRepo, saleRepo, sink, m, nil),
		transfers: NewTransferService(db, batchRepo, transferRepo, partyRepo, sink, m, nil),
		pool:      NewPoolService(db, batchRepo, poolRepo, transferRepo, sink, m, nil),
		farm:      testutil.CreateParty(t, db, "Green Farm", model.TierProducer),
		market:    testutil.CreateParty(t, db, "Supermarket A", model.TierSupermarket),
		shop:      testutil.CreateParty(t, db, "Corner Shop", model.TierLocalMarket),
	}
}

func actorFor(p *model.Party) Actor {
	id := p.ID
	return Actor{UserID: uuid.New(), Name: p.Name + " operator", PartyID: &id}
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.StockBatch {
	t.Helper()
	return testutil.ReloadBatch(t, f.db, id)
}
