package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/utils"
)

// UserRepo reads and writes the `users` table.
// DB is either the pool or a transaction.
type UserRepo struct{ DB querier }

func NewUserRepo(db querier) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries the fields accepted at registration.
type NewUser struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	Role        model.Role
	IsStaff     bool
	IsSuperuser bool
}

const userColumns = "id,email,password_hash,first_name,last_name,phone,role,is_active,is_staff,is_superuser,created_at,updated_at"

// Create hashes the password, inserts the user and returns its ID. The
// email is normalised to lower case; a taken address yields
// ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, in NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, first_name, last_name, phone, role, is_staff, is_superuser) VALUES (?,?,?,?,?,?,?,?)",
		email, hash, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), strings.TrimSpace(in.Phone),
		string(in.Role), in.IsStaff, in.IsSuperuser)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Promote turns an existing account into an active ADMIN superuser and
// resets its password.
func (r *UserRepo) Promote(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, is_staff=1, is_superuser=1, is_active=1, password_hash=? WHERE id=?",
		string(model.RoleAdmin), hash, id)
	if err != nil {
		return fmt.Errorf("promote user: %w", err)
	}
	return nil
}

// GetByEmail fetches a user by normalised email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, notFound(err, "user by email")
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, notFound(err, "user by id")
	}
	return u, nil
}

// GetUser implements service.UserRepository.
func (r *UserRepo) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &role,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	u.Role = model.Role(role)
	return u, err
}
