package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
	"go-freshflow/internal/testutil"
)

func TestWriteLedger(t *testing.T) {
	party := &model.Party{Name: "Green Farm", Tier: model.TierProducer}
	exp := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	batches := []model.StockBatch{
		{ProductName: "Milk", Quantity: 10, UnitPrice: decimal.RequireFromString("2.50"), State: model.BatchAccepted, ExpiryDate: exp},
		{ProductName: "Eggs", Quantity: 4, UnitPrice: decimal.RequireFromString("1.00"), State: model.BatchPending, ExpiryDate: exp},
	}

	var buf bytes.Buffer
	if err := WriteLedger(&buf, party, batches, exp); err != nil {
		t.Fatalf("WriteLedger failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("Expected title, header, 2 batches and totals, got %d rows", len(rows))
	}
	if rows[2][1] != "Milk" || rows[2][9] != "2025-03-10" {
		t.Errorf("Unexpected first batch row: %v", rows[2])
	}
	if rows[4][5] != "10" {
		t.Errorf("Expected accepted total quantity 10, got %q", rows[4][5])
	}
}

func TestReadSales_CSV(t *testing.T) {
	csvData := "date,supermarket_branch,product_name,quantity_sold\n" +
		"2024-01-01,Supermarket A,Milk,12\n" +
		"2024-01-02,Supermarket A,Milk,7\n"

	rows, err := ReadSales("sales.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ReadSales failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	want := SaleRow{Party: "Supermarket A", Product: "Milk", Quantity: 7, UnitPrice: decimal.Zero, SoldAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	got := rows[1]
	if got.Party != want.Party || got.Product != want.Product || got.Quantity != want.Quantity || !got.SoldAt.Equal(want.SoldAt) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestReadSales_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := []interface{}{"sold_at", "party", "product", "quantity", "unit_price"}
	row := []interface{}{"2024-02-01", "Corner Shop", "Bread", "3", "1.20"}
	f.SetSheetRow(sheet, "A1", &header)
	f.SetSheetRow(sheet, "A2", &row)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	f.Close()

	rows, err := ReadSales("upload.XLSX", &buf)
	if err != nil {
		t.Fatalf("ReadSales failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Party != "Corner Shop" || !rows[0].UnitPrice.Equal(decimal.RequireFromString("1.2")) {
		t.Errorf("Unexpected rows: %+v", rows)
	}
}

func TestReadSales_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    string
		wantErr error
	}{
		{"unknown extension", "sales.txt", "", nil},
		{"missing column", "sales.csv", "date,product_name,quantity_sold\n2024-01-01,Milk,1\n", ErrMissingColumn},
		{"bad quantity", "sales.csv", "date,party,product,quantity\n2024-01-01,A,Milk,many\n", nil},
		{"bad date", "sales.csv", "date,party,product,quantity\nyesterday,A,Milk,1\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSales(tt.file, strings.NewReader(tt.data))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDirStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewDirStore(root)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}

	loc, err := store.Put(context.Background(), "ledgers/2024-01-01/a.xlsx", xlsxContentType, []byte("data"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if loc != filepath.Join(root, "ledgers", "2024-01-01", "a.xlsx") {
		t.Errorf("Unexpected location %s", loc)
	}
	got, _ := os.ReadFile(loc)
	if string(got) != "data" {
		t.Errorf("Expected file content 'data', got %q", got)
	}
}

type recordingTransport struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if req.Method == http.MethodPut {
		body, _ := io.ReadAll(req.Body)
		rt.puts[req.URL.Path] = body
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func TestS3Store_Put(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	rt := &recordingTransport{puts: make(map[string][]byte)}
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:    "reports",
		Endpoint:  "https://s3.test.local",
		PathStyle: true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
	})
	if err != nil {
		t.Fatalf("NewS3Store failed: %v", err)
	}

	loc, err := store.Put(context.Background(), "/ledgers/x.xlsx", xlsxContentType, []byte("xlsx-bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if loc != "s3://reports/ledgers/x.xlsx" {
		t.Errorf("Unexpected location %s", loc)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.puts["/reports/ledgers/x.xlsx"]; !ok {
		t.Errorf("Expected PUT to /reports/ledgers/x.xlsx, saw %v", rt.puts)
	}
}

func TestSnapshotter_Run(t *testing.T) {
	db := testutil.NewDB(t)
	farm := testutil.CreateParty(t, db, "Green Farm", model.TierProducer)
	shop := testutil.CreateParty(t, db, "Corner Shop", model.TierLocalMarket)
	testutil.CreateBatch(t, db, farm.ID, "Milk", 5)
	testutil.CreateBatch(t, db, shop.ID, "Bread", 2)

	store, _ := NewDirStore(t.TempDir())
	snap := NewSnapshotter(repository.NewPartyRepo(db), repository.NewBatchRepo(db), store, nil)

	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	written, err := snap.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("Expected 2 snapshots, got %v", written)
	}
	for _, loc := range written {
		if !strings.Contains(loc, "2024-05-01") {
			t.Errorf("Expected dated path, got %s", loc)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Green Farm":       "green-farm",
		"  Corner Shop #2": "corner-shop--2",
		"ÄBC":              "bc",
	}
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
