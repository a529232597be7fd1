package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/example/ecomserver/internal/models"
)

// NewGorm builds repositories over a gorm connection. The connection must be
// opened with TranslateError so unique violations surface as ErrDuplicate.
func NewGorm(db *gorm.DB) Repositories {
	return Repositories{
		Orders: &GormOrderRepository{db: db},
		Users:  &GormUserRepository{db: db},
		Images: &GormImageRepository{db: db},
	}
}

func translateGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// GormOrderRepository stores orders in postgres.
type GormOrderRepository struct {
	db *gorm.DB
}

func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	return translateGormError(r.db.WithContext(ctx).Create(order).Error)
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &order, nil
}

func (r *GormOrderRepository) scope(ctx context.Context, filter OrderFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Email != "" {
		query = query.Where("email = ?", filter.Email)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Year > 0 {
		start, end := filter.yearRange()
		query = query.Where("date >= ? AND date < ?", start, end)
	}
	return query
}

func (r *GormOrderRepository) Find(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	var orders []models.Order
	if err := r.scope(ctx, filter).Order("created_at asc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormOrderRepository) Page(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, int64, error) {
	var total int64
	if err := r.scope(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := r.scope(ctx, filter).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *GormOrderRepository) Update(ctx context.Context, id uuid.UUID, patch OrderPatch) (*models.Order, error) {
	updates := map[string]interface{}{"updated_at": time.Now()}
	setString(updates, "name", patch.Name)
	setString(updates, "phone_number", patch.PhoneNumber)
	setString(updates, "address", patch.Address)
	setString(updates, "pincode", patch.Pincode)
	setString(updates, "payment_id", patch.PaymentID)
	setString(updates, "email", patch.Email)
	setString(updates, "user_id", patch.UserID)
	setString(updates, "status", patch.Status)
	if patch.Amount != nil {
		updates["amount"] = string(*patch.Amount)
	}
	if patch.Products != nil {
		updates["products"] = []byte(patch.Products)
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&total).Error
	return total, err
}

// GormUserRepository stores users in postgres.
type GormUserRepository struct {
	db *gorm.DB
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return translateGormError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *GormUserRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &user, nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *GormUserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, "phone = ?", phone)
}

func (r *GormUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormUserRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error
	return total, err
}

func (r *GormUserRepository) Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error) {
	updates := map[string]interface{}{"updated_at": time.Now()}
	setString(updates, "name", patch.Name)
	setString(updates, "phone", patch.Phone)
	setString(updates, "email", patch.Email)
	setString(updates, "password_hash", patch.PasswordHash)
	if patch.Images != nil {
		updates["images"] = pq.StringArray(*patch.Images)
	}

	if err := r.updateColumns(ctx, id, updates); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *GormUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormUserRepository) SetOTP(ctx context.Context, id uuid.UUID, otp string, expires time.Time) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"otp":         otp,
		"otp_expires": expires,
		"updated_at":  time.Now(),
	})
}

func (r *GormUserRepository) ConsumeOTP(ctx context.Context, id uuid.UUID, otp string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND otp = ? AND otp_expires > ?", id, otp, now).
		Updates(map[string]interface{}{
			"is_verified": true,
			"otp":         nil,
			"otp_expires": nil,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormUserRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"password_hash": hash,
		"updated_at":    time.Now(),
	})
}

func (r *GormUserRepository) updateColumns(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GormImageRepository stores upload batches in postgres.
type GormImageRepository struct {
	db *gorm.DB
}

func (r *GormImageRepository) Create(ctx context.Context, upload *models.ImageUpload) error {
	return r.db.WithContext(ctx).Create(upload).Error
}

func setString(updates map[string]interface{}, column string, value *string) {
	if value != nil {
		updates[column] = *value
	}
}
