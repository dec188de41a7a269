// Package sandbox is a local implementation of the platform backend plus a
// simulated payment processor, so the full registration-to-activation flow
// can run without external services.
package sandbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refera-net/refera/internal/api"
)

// User is a finalized, paid-for account.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash []byte
	ReferralCode string
	ReferredBy   string
	Role         string
	Status       string
	Balance      string
	CreatedAt    time.Time
}

// Identity renders the user as the client-facing identity document.
func (u User) Identity() api.Identity {
	return api.Identity{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		ReferralCode:     u.ReferralCode,
		Balance:          u.Balance,
		Role:             u.Role,
		Status:           u.Status,
		WithdrawalStatus: "active",
	}
}

// ErrUserNotFound is returned when no user matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when the email or username is already taken.
var ErrUserExists = errors.New("user already registered")

// UserRepository persists finalized accounts.
type UserRepository interface {
	Create(ctx context.Context, user User) error
	FindByIdentifier(ctx context.Context, identifier string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	CountReferredBy(ctx context.Context, code string) (int, error)
}

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryUserRepository builds an in-memory user store, the default when
// no database is configured.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]User)}
}

func (r *memoryUserRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) || strings.EqualFold(existing.Username, user.Username) {
			return ErrUserExists
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepository) FindByIdentifier(_ context.Context, identifier string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, identifier) || strings.EqualFold(user.Username, identifier) {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryUserRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *memoryUserRepository) CountReferredBy(_ context.Context, code string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, user := range r.users {
		if user.ReferredBy == code {
			count++
		}
	}
	return count, nil
}

// PostgresUserRepository implements UserRepository on PostgreSQL.
type PostgresUserRepository struct {
	db *pgxpool.Pool
}

// NewPostgresUserRepository builds a Postgres-backed user repository.
func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, email, username, password_hash, referral_code, referred_by, role, status, balance, created_at`

func (r *PostgresUserRepository) Create(ctx context.Context, user User) error {
	_, err := r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.Username, user.PasswordHash, user.ReferralCode,
		user.ReferredBy, user.Role, user.Status, user.Balance, user.CreatedAt.UTC())
	return err
}

func (r *PostgresUserRepository) FindByIdentifier(ctx context.Context, identifier string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users
        WHERE lower(email) = lower($1) OR lower(username) = lower($1)`, identifier)
	return scanUser(row)
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PostgresUserRepository) CountReferredBy(ctx context.Context, code string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE referred_by = $1`, code).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		createdAt time.Time
	)
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.ReferralCode, &user.ReferredBy, &user.Role, &user.Status, &user.Balance, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
