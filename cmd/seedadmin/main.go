// Command seedadmin creates or refreshes the coach account.
//
//	ADMIN_EMAIL=coach@example.com ADMIN_PASSWORD='s3cret!pw' seedadmin -migrate
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartplate/smartplate-api/internal/config"
	"github.com/smartplate/smartplate-api/internal/database"
	"github.com/smartplate/smartplate-api/internal/model"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/internal/utils"
	"github.com/smartplate/smartplate-api/pkg/logger"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply the schema before seeding")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.Env)

	email := model.NormalizeEmail(os.Getenv("ADMIN_EMAIL"))
	password := os.Getenv("ADMIN_PASSWORD")
	name := strings.TrimSpace(os.Getenv("ADMIN_NAME"))
	if name == "" {
		name = "Admin"
	}
	if email == "" || password == "" {
		log.Error("ADMIN_EMAIL and ADMIN_PASSWORD are required")
		os.Exit(2)
	}
	if msg := utils.PasswordPolicyViolation(password); msg != "" {
		log.Error("weak admin password", "reason", msg)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Error("database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if *migrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Error("migrate", "err", err)
			os.Exit(1)
		}
		log.Info("schema applied")
	}

	hash, err := utils.NewHasher(cfg.BcryptCost).Hash(password)
	if err != nil {
		log.Error("hash password", "err", err)
		os.Exit(1)
	}

	got, err := repository.NewAccountRepo(db).UpsertAdmin(ctx, &model.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Error("upsert admin", "err", err)
		os.Exit(1)
	}
	if got.Role != model.RoleAdmin {
		// the e-mail belongs to a client account; its role is left alone
		log.Error("email is already used by a non-admin account", "email", email, "role", got.Role)
		os.Exit(1)
	}
	log.Info("admin ready", "id", got.ID, "email", got.Email)
}
