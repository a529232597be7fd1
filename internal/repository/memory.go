package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/example/ecomserver/internal/models"
)

// NewMemory builds process-local repositories, used for local development
// and tests.
func NewMemory() Repositories {
	return Repositories{
		Orders: NewMemoryOrderRepository(),
		Users:  NewMemoryUserRepository(),
		Images: NewMemoryImageRepository(),
	}
}

type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]models.Order
	ids    []uuid.UUID // insertion order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[uuid.UUID]models.Order)}
}

func (r *MemoryOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.Stamp(time.Now())
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if _, exists := r.orders[order.ID]; !exists {
		r.ids = append(r.ids, order.ID)
	}
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r *MemoryOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

func (r *MemoryOrderRepository) matching(filter OrderFilter) []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var start, end time.Time
	if filter.Year > 0 {
		start, end = filter.yearRange()
	}

	out := make([]models.Order, 0, len(r.orders))
	for _, id := range r.ids {
		o := r.orders[id]
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Email != "" && o.Email != filter.Email {
			continue
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Year > 0 && (o.Date == nil || o.Date.Before(start) || !o.Date.Before(end)) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out
}

func (r *MemoryOrderRepository) Find(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	return r.matching(filter), nil
}

func (r *MemoryOrderRepository) Page(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, int64, error) {
	all := r.matching(filter)
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	total := int64(len(all))
	if offset < 0 || limit <= 0 || offset >= len(all) {
		return []models.Order{}, total, nil
	}
	end := offset + limit
	if end > len(all) || end < offset {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *MemoryOrderRepository) Update(ctx context.Context, id uuid.UUID, patch OrderPatch) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyString(&o.Name, patch.Name)
	applyString(&o.PhoneNumber, patch.PhoneNumber)
	applyString(&o.Address, patch.Address)
	applyString(&o.Pincode, patch.Pincode)
	applyString(&o.PaymentID, patch.PaymentID)
	applyString(&o.Email, patch.Email)
	applyString(&o.UserID, patch.UserID)
	applyString(&o.Status, patch.Status)
	if patch.Amount != nil {
		o.Amount = *patch.Amount
	}
	if patch.Products != nil {
		o.Products = append([]byte(nil), patch.Products...)
	}
	o.UpdatedAt = time.Now()

	r.orders[id] = o
	out := cloneOrder(o)
	return &out, nil
}

func (r *MemoryOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return ErrNotFound
	}
	delete(r.orders, id)
	for i, existing := range r.ids {
		if existing == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryOrderRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.orders)), nil
}

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[uuid.UUID]models.User)}
}

// conflicts reports whether another user already owns email or a non-empty phone.
// Callers must hold the lock.
func (r *MemoryUserRepository) conflicts(id uuid.UUID, email, phone string) bool {
	for _, u := range r.users {
		if u.ID == id {
			continue
		}
		if u.Email == email || (phone != "" && u.Phone == phone) {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflicts(user.ID, user.Email, user.Phone) {
		return ErrDuplicate
	}
	user.Stamp(time.Now())
	r.users[user.ID] = cloneUser(*user)
	return nil
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (r *MemoryUserRepository) findBy(match func(models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			out := cloneUser(u)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(func(u models.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findBy(func(u models.User) bool { return u.Phone == phone })
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryUserRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyString(&u.Name, patch.Name)
	applyString(&u.Phone, patch.Phone)
	applyString(&u.Email, patch.Email)
	applyString(&u.PasswordHash, patch.PasswordHash)
	if patch.Images != nil {
		u.Images = append(pq.StringArray(nil), (*patch.Images)...)
	}
	if r.conflicts(id, u.Email, u.Phone) {
		return nil, ErrDuplicate
	}
	u.UpdatedAt = time.Now()

	r.users[id] = u
	out := cloneUser(u)
	return &out, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) SetOTP(ctx context.Context, id uuid.UUID, otp string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.OTP = &otp
	u.OTPExpires = &expires
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepository) ConsumeOTP(ctx context.Context, id uuid.UUID, otp string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.OTP == nil || *u.OTP != otp || !u.HasPendingOTP(now) {
		return false, nil
	}
	u.IsVerified = true
	u.OTP = nil
	u.OTPExpires = nil
	u.UpdatedAt = now
	r.users[id] = u
	return true, nil
}

func (r *MemoryUserRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

type MemoryImageRepository struct {
	mu      sync.Mutex
	uploads []models.ImageUpload
}

func NewMemoryImageRepository() *MemoryImageRepository {
	return &MemoryImageRepository{}
}

func (r *MemoryImageRepository) Create(ctx context.Context, upload *models.ImageUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	upload.Stamp(time.Now())
	r.uploads = append(r.uploads, models.ImageUpload{
		BaseModel: upload.BaseModel,
		Images:    append(pq.StringArray(nil), upload.Images...),
	})
	return nil
}

// All returns every recorded upload batch.
func (r *MemoryImageRepository) All() []models.ImageUpload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ImageUpload(nil), r.uploads...)
}

func cloneOrder(o models.Order) models.Order {
	if o.Products != nil {
		o.Products = append([]byte(nil), o.Products...)
	}
	if o.Date != nil {
		d := *o.Date
		o.Date = &d
	}
	return o
}

func cloneUser(u models.User) models.User {
	if u.Images != nil {
		u.Images = append(pq.StringArray(nil), u.Images...)
	}
	if u.OTP != nil {
		otp := *u.OTP
		u.OTP = &otp
	}
	if u.OTPExpires != nil {
		exp := *u.OTPExpires
		u.OTPExpires = &exp
	}
	return u
}

func applyString(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}
