package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/ecomserver/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// OrderFilter narrows order queries. Zero values match everything.
type OrderFilter struct {
	Status string
	Email  string
	UserID string
	// Year keeps only orders dated within that calendar year (UTC).
	Year int
}

// yearRange returns the [start, end) interval for f.Year.
func (f OrderFilter) yearRange() (time.Time, time.Time) {
	start := time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

// OrderPatch is a partial order update; nil fields are left unchanged.
type OrderPatch struct {
	Name        *string
	PhoneNumber *string
	Address     *string
	Pincode     *string
	Amount      *models.Amount
	PaymentID   *string
	Email       *string
	UserID      *string
	Products    json.RawMessage
	Status      *string
}

// UserPatch is a partial user update; nil fields are left unchanged.
type UserPatch struct {
	Name         *string
	Phone        *string
	Email        *string
	PasswordHash *string
	Images       *[]string
}

// OrderRepository persists orders.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// Find returns every matching order, oldest first.
	Find(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// Page returns one page of matching orders, newest first, and the total match count.
	Page(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, int64, error)
	Update(ctx context.Context, id uuid.UUID, patch OrderPatch) (*models.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

// UserRepository persists accounts and their OTP state.
type UserRepository interface {
	// Create inserts a user, returning ErrDuplicate when email or phone is taken.
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// SetOTP replaces the user's OTP and its expiry.
	SetOTP(ctx context.Context, id uuid.UUID, otp string, expires time.Time) error
	// ConsumeOTP marks the user verified and clears the OTP, but only while the
	// stored OTP still equals otp and has not expired at now. It reports whether
	// the swap happened.
	ConsumeOTP(ctx context.Context, id uuid.UUID, otp string, now time.Time) (bool, error)
	SetPassword(ctx context.Context, id uuid.UUID, hash string) error
}

// ImageRepository records upload batches.
type ImageRepository interface {
	Create(ctx context.Context, upload *models.ImageUpload) error
}

// Repositories bundles the stores used by the HTTP layer.
type Repositories struct {
	Orders OrderRepository
	Users  UserRepository
	Images ImageRepository
}
