// Package report renders ledgers to spreadsheets, parses sales imports and
// stores generated files.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"go-freshflow/internal/model"
)

const (
	ledgerSheet = "Ledger"
	dateLayout  = "2006-01-02"
)

var ledgerHeader = []interface{}{
	"batch_id",
	"product_name",
	"category",
	"lot_id",
	"state",
	"quantity",
	"unit_price",
	"valuation",
	"manufacturing_date",
	"expiry_date",
	"perishable",
	"storage_requirement",
}

// WriteLedger writes one party's batches as an XLSX workbook. The last row
// totals quantity and valuation of accepted stock.
func WriteLedger(w io.Writer, party *model.Party, batches []model.StockBatch, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), ledgerSheet); err != nil {
		return err
	}

	title := []interface{}{
		fmt.Sprintf("%s (%s)", party.Name, party.Tier),
		"generated " + generatedAt.UTC().Format(time.RFC3339),
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &title); err != nil {
		return err
	}
	if err := f.SetSheetRow(ledgerSheet, "A2", &ledgerHeader); err != nil {
		return err
	}

	row := 3
	totalQty := 0
	totalValue := decimal.Zero
	for i := range batches {
		b := &batches[i]
		values := []interface{}{
			b.ID.String(),
			b.ProductName,
			b.Category,
			b.LotID,
			string(b.State),
			b.Quantity,
			b.UnitPrice.InexactFloat64(),
			b.Valuation().InexactFloat64(),
			b.ManufacturingDate.UTC().Format(dateLayout),
			b.ExpiryDate.UTC().Format(dateLayout),
			b.Perishable,
			b.StorageRequirement,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &values); err != nil {
			return err
		}
		if b.State == model.BatchAccepted {
			totalQty += b.Quantity
			totalValue = totalValue.Add(b.Valuation())
		}
		row++
	}

	totals := []interface{}{"TOTAL (accepted)", "", "", "", "", totalQty, "", totalValue.InexactFloat64()}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(ledgerSheet, cell, &totals); err != nil {
		return err
	}

	return f.Write(w)
}
