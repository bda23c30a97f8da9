// Command createsuperuser creates an ADMIN account with staff and
// superuser rights, or promotes an existing account with that email.
//
//	createsuperuser -email admin@example.com -password s3cret-pass
//
// Flags fall back to SUPERUSER_EMAIL, SUPERUSER_PASSWORD,
// SUPERUSER_FIRST_NAME and SUPERUSER_LAST_NAME. Database settings come
// from the same environment as the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/rental-marketplace/internal/config"
	"github.com/iliyamo/rental-marketplace/internal/database"
	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/repository"
	"github.com/iliyamo/rental-marketplace/internal/service"
	"github.com/iliyamo/rental-marketplace/internal/utils"
)

type superuserStore interface {
	Create(ctx context.Context, in repository.NewUser, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	Promote(ctx context.Context, id uint64, password string, cost int) error
}

func main() {
	email := flag.String("email", os.Getenv("SUPERUSER_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("SUPERUSER_PASSWORD"), "account password")
	first := flag.String("first-name", os.Getenv("SUPERUSER_FIRST_NAME"), "first name")
	last := flag.String("last-name", os.Getenv("SUPERUSER_LAST_NAME"), "last name")
	flag.Parse()

	in := repository.NewUser{Email: *email, Password: *password, FirstName: *first, LastName: *last}
	if err := validate(in); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	id, created, err := ensureSuperuser(ctx, repository.NewUserRepo(db), in, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("createsuperuser: %v", err)
	}
	if created {
		log.Printf("superuser %s created (id=%d)", strings.ToLower(in.Email), id)
	} else {
		log.Printf("user %s promoted to superuser (id=%d)", strings.ToLower(in.Email), id)
	}
}

func validate(in repository.NewUser) error {
	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		return errors.New("a valid -email is required")
	}
	if n := len(in.Password); n < utils.MinPasswordLen || n > 72 {
		return fmt.Errorf("-password must be %d to 72 bytes", utils.MinPasswordLen)
	}
	return nil
}

// ensureSuperuser creates the account, or promotes it when the email is
// already registered. created reports which one happened.
func ensureSuperuser(ctx context.Context, users superuserStore, in repository.NewUser, cost int) (id uint64, created bool, err error) {
	in.Role = model.RoleAdmin
	in.IsStaff = true
	in.IsSuperuser = true

	id, err = users.Create(ctx, in, cost)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, repository.ErrEmailExists) {
		return 0, false, err
	}

	u, err := users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, service.ErrNoRecord) {
			return 0, false, fmt.Errorf("email %s vanished during promotion", in.Email)
		}
		return 0, false, err
	}
	if err := users.Promote(ctx, u.ID, in.Password, cost); err != nil {
		return 0, false, err
	}
	return u.ID, false, nil
}
