// Command reset-password sets a new password for a user and ends every open
// session of that user.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-freshflow/internal/config"
	"go-freshflow/internal/repository"
	"go-freshflow/pkg/database"
	"go-freshflow/pkg/logger"
)

func main() {
	email := flag.String("email", "", "email of the user to reset")
	password := flag.String("password", "", "new password (min 6 characters)")
	envFile := flag.String("env", "", "optional .env file")
	flag.Parse()

	if *email == "" || len(*password) < 6 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg := logger.Must(logger.New(cfg.App.LogLevel))
	defer func() { _ = lg.Sync() }()

	db, err := database.ConnectDB(cfg.Database, logger.Named(lg, "db"))
	if err != nil {
		lg.Fatal("database connection failed", zap.Error(err))
	}

	ctx := context.Background()
	users := repository.NewUserRepo(db)
	user, err := users.FindByEmail(ctx, *email)
	if err != nil {
		lg.Fatal("user not found", zap.String("email", *email), zap.Error(err))
	}

	if err := user.SetPassword(*password); err != nil {
		lg.Fatal("failed to hash password", zap.Error(err))
	}
	user.TokenVersion = uuid.NewString()
	user.UpdatedBy = "reset-password"
	if err := users.Update(ctx, user); err != nil {
		lg.Fatal("failed to update password", zap.Error(err))
	}

	lg.Info("password reset", zap.String("email", *email))
}
