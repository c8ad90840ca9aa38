package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/oksasatya/account-lifecycle/config"
	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
	pginfra "github.com/oksasatya/account-lifecycle/internal/infrastructure/postgres"
	"github.com/oksasatya/account-lifecycle/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	email := "demo@example.com"
	password := "password123"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		logger.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = pginfra.NewUnitOfWork(pool).Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if acc, err := repos.Accounts().GetByEmail(ctx, email); err == nil {
			id = acc.ID
			return nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		acc := entity.NewPendingAccount(uuid.NewString(), email, now)
		acc.MarkVerified(now)
		if err := repos.Accounts().Create(ctx, acc); err != nil {
			return err
		}
		id = acc.ID
		return repos.Credentials().Create(ctx, &entity.Credential{
			AccountID:    acc.ID,
			PasswordHash: hash,
			DeviceInfo:   "seed",
			UpdatedAt:    now,
		})
	})
	if err != nil {
		logger.Fatalf("failed to seed account: %v", err)
	}
	fmt.Printf("seeded account: id=%s email=%s password=%s status=%s\n", id, email, password, entity.AccountActive)
}
