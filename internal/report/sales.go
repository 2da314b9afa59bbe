package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SaleRow is one historical sale read from an import file. Party holds the
// party name.
type SaleRow struct {
	Party     string
	Product   string
	Quantity  int
	UnitPrice decimal.Decimal
	SoldAt    time.Time
}

var ErrMissingColumn = errors.New("sales file is missing a required column")

// Column names accepted in the header row. supermarket_branch and date are
// the names used by the legacy historical_sales export.
var salesColumns = map[string][]string{
	"party":    {"party", "supermarket_branch", "branch"},
	"product":  {"product_name", "product"},
	"quantity": {"quantity_sold", "quantity"},
	"price":    {"unit_price", "price"},
	"date":     {"sold_at", "date"},
}

// ReadSales parses a CSV or XLSX sales file, chosen by the file name's
// extension.
func ReadSales(name string, r io.Reader) ([]SaleRow, error) {
	var (
		rows [][]string
		err  error
	)
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".xlsx"):
		rows, err = xlsxRows(r)
	case strings.HasSuffix(strings.ToLower(name), ".csv"):
		rows, err = csv.NewReader(r).ReadAll()
	default:
		return nil, fmt.Errorf("unsupported sales file %q: want .csv or .xlsx", name)
	}
	if err != nil {
		return nil, err
	}
	return parseSales(rows)
}

func xlsxRows(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()
	return f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
}

func parseSales(rows [][]string) ([]SaleRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		for key, names := range salesColumns {
			for _, n := range names {
				if h == n {
					if _, seen := index[key]; !seen {
						index[key] = i
					}
				}
			}
		}
	}
	for _, key := range []string{"party", "product", "quantity", "date"} {
		if _, ok := index[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, key)
		}
	}

	cell := func(row []string, key string) string {
		i, ok := index[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]SaleRow, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		qty, err := strconv.Atoi(cell(row, "quantity"))
		if err != nil {
			return nil, fmt.Errorf("line %d: quantity: %w", n+2, err)
		}
		soldAt, err := parseDate(cell(row, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: date: %w", n+2, err)
		}
		price := decimal.Zero
		if p := cell(row, "price"); p != "" {
			if price, err = decimal.NewFromString(p); err != nil {
				return nil, fmt.Errorf("line %d: unit price: %w", n+2, err)
			}
		}
		out = append(out, SaleRow{
			Party:     cell(row, "party"),
			Product:   cell(row, "product"),
			Quantity:  qty,
			UnitPrice: price,
			SoldAt:    soldAt,
		})
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", dateLayout, "01-02-06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
