// Command import-sales loads historical sales from a CSV or XLSX export into
// the historical_sales table.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"go-freshflow/internal/config"
	"go-freshflow/internal/report"
	"go-freshflow/internal/repository"
	"go-freshflow/internal/service"
	"go-freshflow/pkg/database"
	"go-freshflow/pkg/logger"
)

func main() {
	file := flag.String("file", "", "CSV or XLSX file with historical sales")
	envFile := flag.String("env", "", "optional .env file")
	dryRun := flag.Bool("dry-run", false, "parse the file without writing")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg := logger.Must(logger.New(cfg.App.LogLevel))
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(*file)
	if err != nil {
		lg.Fatal("open sales file", zap.Error(err))
	}
	defer f.Close()

	rows, err := report.ReadSales(*file, f)
	if err != nil {
		lg.Fatal("read sales file", zap.String("file", *file), zap.Error(err))
	}
	lg.Info("sales file parsed", zap.String("file", *file), zap.Int("rows", len(rows)))
	if *dryRun {
		return
	}

	db, err := database.ConnectDB(cfg.Database, logger.Named(lg, "db"))
	if err != nil {
		lg.Fatal("database connection failed", zap.Error(err))
	}

	svc := service.NewDemandService(repository.NewSaleRepo(db), repository.NewPartyRepo(db), nil, logger.Named(lg, "svc.demand"))
	res, err := svc.ImportSales(ctx, service.SystemActor, rows)
	if err != nil {
		lg.Fatal("import failed", zap.Error(err))
	}
	for _, msg := range res.Errors {
		lg.Warn("row skipped", zap.String("reason", msg))
	}
	lg.Info("import finished", zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped))
}
