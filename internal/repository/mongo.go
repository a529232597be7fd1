package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/ecomserver/internal/models"
)

const (
	ordersCollection  = "orders"
	usersCollection   = "users"
	uploadsCollection = "imageuploads"
)

// NewMongo builds repositories over a mongo database.
func NewMongo(db *mongo.Database) Repositories {
	return Repositories{
		Orders: &MongoOrderRepository{coll: db.Collection(ordersCollection)},
		Users:  &MongoUserRepository{coll: db.Collection(usersCollection)},
		Images: &MongoImageRepository{coll: db.Collection(uploadsCollection)},
	}
}

// EnsureMongoIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"phone": bson.M{"$gt": ""}}),
		},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = db.Collection(ordersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("orders indexes: %w", err)
	}
	return nil
}

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

type orderDocument struct {
	ID          string     `bson:"_id"`
	Name        string     `bson:"name"`
	PhoneNumber string     `bson:"phone_number"`
	Address     string     `bson:"address"`
	Pincode     string     `bson:"pincode"`
	Amount      string     `bson:"amount"`
	PaymentID   string     `bson:"payment_id"`
	Email       string     `bson:"email"`
	UserID      string     `bson:"user_id"`
	Products    string     `bson:"products,omitempty"`
	Status      string     `bson:"status"`
	Date        *time.Time `bson:"date,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func newOrderDocument(o *models.Order) orderDocument {
	return orderDocument{
		ID:          o.ID.String(),
		Name:        o.Name,
		PhoneNumber: o.PhoneNumber,
		Address:     o.Address,
		Pincode:     o.Pincode,
		Amount:      string(o.Amount),
		PaymentID:   o.PaymentID,
		Email:       o.Email,
		UserID:      o.UserID,
		Products:    string(o.Products),
		Status:      o.Status,
		Date:        o.Date,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (d orderDocument) model() (models.Order, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Order{}, fmt.Errorf("order %q: %w", d.ID, err)
	}
	order := models.Order{
		BaseModel:   models.BaseModel{ID: id, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:        d.Name,
		PhoneNumber: d.PhoneNumber,
		Address:     d.Address,
		Pincode:     d.Pincode,
		Amount:      models.Amount(d.Amount),
		PaymentID:   d.PaymentID,
		Email:       d.Email,
		UserID:      d.UserID,
		Status:      d.Status,
		Date:        d.Date,
	}
	if d.Products != "" {
		order.Products = json.RawMessage(d.Products)
	}
	return order, nil
}

// MongoOrderRepository stores orders in a mongo collection.
type MongoOrderRepository struct {
	coll *mongo.Collection
}

func (r *MongoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.Stamp(time.Now().UTC())
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	_, err := r.coll.InsertOne(ctx, newOrderDocument(order))
	return translateMongoError(err)
}

func (r *MongoOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var doc orderDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	order, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func orderMongoFilter(filter OrderFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Email != "" {
		query["email"] = filter.Email
	}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Year > 0 {
		start, end := filter.yearRange()
		query["date"] = bson.M{"$gte": start, "$lt": end}
	}
	return query
}

func (r *MongoOrderRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Order, error) {
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := doc.model()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *MongoOrderRepository) Find(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.find(ctx, orderMongoFilter(filter), opts)
}

func (r *MongoOrderRepository) Page(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, int64, error) {
	query := orderMongoFilter(filter)
	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	orders, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *MongoOrderRepository) Update(ctx context.Context, id uuid.UUID, patch OrderPatch) (*models.Order, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	setBSONString(set, "name", patch.Name)
	setBSONString(set, "phone_number", patch.PhoneNumber)
	setBSONString(set, "address", patch.Address)
	setBSONString(set, "pincode", patch.Pincode)
	setBSONString(set, "payment_id", patch.PaymentID)
	setBSONString(set, "email", patch.Email)
	setBSONString(set, "user_id", patch.UserID)
	setBSONString(set, "status", patch.Status)
	if patch.Amount != nil {
		set["amount"] = string(*patch.Amount)
	}
	if patch.Products != nil {
		set["products"] = string(patch.Products)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc orderDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return nil, translateMongoError(err)
	}
	order, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *MongoOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoOrderRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

type userDocument struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	Email        string     `bson:"email"`
	Phone        string     `bson:"phone"`
	PasswordHash string     `bson:"password_hash"`
	Images       []string   `bson:"images"`
	IsAdmin      bool       `bson:"is_admin"`
	IsVerified   bool       `bson:"is_verified"`
	OTP          *string    `bson:"otp"`
	OTPExpires   *time.Time `bson:"otp_expires"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func newUserDocument(u *models.User) userDocument {
	return userDocument{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Images:       u.Images,
		IsAdmin:      u.IsAdmin,
		IsVerified:   u.IsVerified,
		OTP:          u.OTP,
		OTPExpires:   u.OTPExpires,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) model() (models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("user %q: %w", d.ID, err)
	}
	return models.User{
		BaseModel:    models.BaseModel{ID: id, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Images:       d.Images,
		IsAdmin:      d.IsAdmin,
		IsVerified:   d.IsVerified,
		OTP:          d.OTP,
		OTPExpires:   d.OTPExpires,
	}, nil
}

// MongoUserRepository stores users in a mongo collection.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	user.Stamp(time.Now().UTC())
	_, err := r.coll.InsertOne(ctx, newUserDocument(user))
	return translateMongoError(err)
}

func (r *MongoUserRepository) findOne(ctx context.Context, query bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	user, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *MongoUserRepository) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		user, err := doc.model()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *MongoUserRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

func (r *MongoUserRepository) Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	setBSONString(set, "name", patch.Name)
	setBSONString(set, "phone", patch.Phone)
	setBSONString(set, "email", patch.Email)
	setBSONString(set, "password_hash", patch.PasswordHash)
	if patch.Images != nil {
		set["images"] = *patch.Images
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return nil, translateMongoError(err)
	}
	user, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) SetOTP(ctx context.Context, id uuid.UUID, otp string, expires time.Time) error {
	return r.set(ctx, bson.M{"_id": id.String()}, bson.M{
		"otp":         otp,
		"otp_expires": expires.UTC(),
		"updated_at":  time.Now().UTC(),
	})
}

func (r *MongoUserRepository) ConsumeOTP(ctx context.Context, id uuid.UUID, otp string, now time.Time) (bool, error) {
	filter := bson.M{
		"_id":         id.String(),
		"otp":         otp,
		"otp_expires": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{"$set": bson.M{
		"is_verified": true,
		"otp":         nil,
		"otp_expires": nil,
		"updated_at":  now.UTC(),
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoUserRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.set(ctx, bson.M{"_id": id.String()}, bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	})
}

func (r *MongoUserRepository) set(ctx context.Context, filter, fields bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoImageRepository stores upload batches in a mongo collection.
type MongoImageRepository struct {
	coll *mongo.Collection
}

func (r *MongoImageRepository) Create(ctx context.Context, upload *models.ImageUpload) error {
	upload.Stamp(time.Now().UTC())
	_, err := r.coll.InsertOne(ctx, bson.M{
		"_id":        upload.ID.String(),
		"images":     []string(upload.Images),
		"created_at": upload.CreatedAt,
		"updated_at": upload.UpdatedAt,
	})
	return err
}

func setBSONString(set bson.M, field string, value *string) {
	if value != nil {
		set[field] = *value
	}
}
