package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/db"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
)

// create_admin provisions an admin account, or promotes an existing one,
// on the configured postgres or redis store.
func main() {
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "password for a new account (existing accounts keep theirs unless set)")
	name := flag.String("name", "Admin", "display name for a new account")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), false)

	if *email == "" {
		logger.Fatal("-email is required")
	}

	ctx := context.Background()
	st := openStore(ctx)
	defer st.Close()
	users := repository.NewUserRepository(st)

	u, err := users.GetByEmail(ctx, *email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		if len(*password) < service.MinPasswordLength {
			logger.Fatal("a password of at least 6 characters is required for a new account")
		}
		hash, err := service.HashPassword(*password)
		if err != nil {
			logger.Fatal("hash password", "error", err)
		}
		u = &domain.User{
			Email:                   *email,
			Name:                    *name,
			PasswordHash:            hash,
			Role:                    domain.RoleAdmin,
			HasReceivedWelcomeBonus: true,
			AccountCreatedAt:        clock.Real{}.Now(),
		}
		if err := users.Create(ctx, u); err != nil {
			logger.Fatal("create user failed", "error", err)
		}
		fmt.Printf("admin created id=%s email=%s\n", u.ID, u.Email)
	case err != nil:
		logger.Fatal("lookup failed", "error", err)
	default:
		u.Role = domain.RoleAdmin
		if *password != "" {
			hash, err := service.HashPassword(*password)
			if err != nil {
				logger.Fatal("hash password", "error", err)
			}
			u.PasswordHash = hash
		}
		if err := users.Save(ctx, u); err != nil {
			logger.Fatal("save user failed", "error", err)
		}
		fmt.Printf("user promoted id=%s email=%s\n", u.ID, u.Email)
	}
}

func openStore(ctx context.Context) store.Store {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && os.Getenv("STORE_BACKEND") != "redis" {
		pool, err := db.Connect(ctx, dsn)
		if err != nil {
			logger.Fatal("connect failed", "error", err)
		}
		return store.NewPostgres(pool)
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Fatal("set DATABASE_URL or REDIS_ADDR")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis ping failed", "error", err)
	}
	return store.NewRedis(rdb, "gd:")
}
