package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-freshflow/internal/forecast"
	"go-freshflow/internal/model"
	"go-freshflow/internal/report"
	"go-freshflow/internal/repository"
)

const dayLayout = "2006-01-02"

// DailyPoint is the quantity sold on one calendar day (UTC).
type DailyPoint struct {
	Date     string `json:"date"`
	Quantity int    `json:"quantity"`
}

type DemandSeries struct {
	PartyID uuid.UUID    `json:"party_id"`
	Product string       `json:"product"`
	Days    int          `json:"days"`
	Total   int          `json:"total"`
	Points  []DailyPoint `json:"points"`
}

// SaleRow is one imported historical sale.
type SaleRow = report.SaleRow

type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

type DemandService interface {
	DailyDemand(ctx context.Context, actor Actor, partyID uuid.UUID, product string, days int, now time.Time) (*DemandSeries, error)
	Forecast(ctx context.Context, actor Actor, partyID uuid.UUID, product string, days int) (*forecast.Result, error)
	ImportSales(ctx context.Context, actor Actor, rows []SaleRow) (*ImportResult, error)
}

type demandService struct {
	saleRepo  repository.SaleRepository
	partyRepo repository.PartyRepository
	forecast  forecast.Client
	log       *zap.Logger
}

func NewDemandService(saleRepo repository.SaleRepository, partyRepo repository.PartyRepository, fc forecast.Client, log *zap.Logger) DemandService {
	if log == nil {
		log = zap.NewNop()
	}
	return &demandService{
		saleRepo:  saleRepo,
		partyRepo: partyRepo,
		forecast:  fc,
		log:       log,
	}
}

// DailyDemand sums sales per day over the last `days` days up to now,
// reporting zero for days without sales.
func (s *demandService) DailyDemand(ctx context.Context, actor Actor, partyID uuid.UUID, product string, days int, now time.Time) (*DemandSeries, error) {
	if days <= 0 {
		return nil, ErrHorizonRequired
	}
	if !actor.CanRead(partyID) {
		return nil, ErrForbiddenLedger
	}

	end := startOfDay(now)
	start := end.AddDate(0, 0, -(days - 1))
	sales, err := s.saleRepo.Find(ctx, repository.SaleQuery{PartyID: &partyID, Product: product, Since: start})
	if err != nil {
		return nil, err
	}

	perDay := make(map[string]int, days)
	for _, sale := range sales {
		perDay[sale.SoldAt.UTC().Format(dayLayout)] += sale.QuantitySold
	}

	series := &DemandSeries{PartyID: partyID, Product: product, Days: days, Points: make([]DailyPoint, 0, days)}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		series.Points = append(series.Points, DailyPoint{Date: key, Quantity: perDay[key]})
		series.Total += perDay[key]
	}
	return series, nil
}

func (s *demandService) Forecast(ctx context.Context, actor Actor, partyID uuid.UUID, product string, days int) (*forecast.Result, error) {
	if !actor.CanRead(partyID) {
		return nil, ErrForbiddenLedger
	}
	party, err := s.partyRepo.FindByID(ctx, partyID)
	if repository.IsNotFound(err) {
		return nil, ErrPartyNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.forecast == nil {
		return nil, forecast.ErrDisabled
	}
	return s.forecast.Forecast(ctx, party.Name, product, days)
}

// ImportSales bulk loads historical sales. Rows naming an unknown party or
// carrying a non-positive quantity are skipped and reported.
func (s *demandService) ImportSales(ctx context.Context, actor Actor, rows []SaleRow) (*ImportResult, error) {
	res := &ImportResult{}
	parties := make(map[string]uuid.UUID)
	records := make([]model.SaleRecord, 0, len(rows))

	for i, row := range rows {
		name := strings.TrimSpace(row.Party)
		partyID, ok := parties[name]
		if !ok {
			p, err := s.partyRepo.FindByName(ctx, name)
			if repository.IsNotFound(err) {
				res.Skipped++
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: unknown party %q", i+1, name))
				continue
			}
			if err != nil {
				return nil, err
			}
			partyID = p.ID
			parties[name] = partyID
		}
		if row.Quantity <= 0 || strings.TrimSpace(row.Product) == "" {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: product and positive quantity required", i+1))
			continue
		}

		rec := model.SaleRecord{
			PartyID:      partyID,
			ProductName:  strings.TrimSpace(row.Product),
			QuantitySold: row.Quantity,
			UnitPrice:    row.UnitPrice,
			SoldAt:       row.SoldAt.UTC(),
		}
		rec.Stamp(actor.String())
		records = append(records, rec)
	}

	if err := s.saleRepo.CreateMany(ctx, records, 500); err != nil {
		return nil, fmt.Errorf("import sales: %w", err)
	}
	res.Imported = len(records)
	s.log.Info("historical sales imported", zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped))
	return res, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
