package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/repositories"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Ensure adminUserRepository implements repositories.AdminUserRepository
var _ repositories.AdminUserRepository = (*adminUserRepository)(nil)

type adminUserRepository struct {
	collection *mongo.Collection
}

// NewAdminUserRepository creates a new repository for admin users
func NewAdminUserRepository(db *mongo.Database) repositories.AdminUserRepository {
	return &adminUserRepository{
		collection: db.Collection("admin_users"),
	}
}

// Create inserts a new admin user into the database
func (r *adminUserRepository) Create(ctx context.Context, adminUser *models.AdminUser) error {
	if adminUser.ID == "" {
		adminUser.ID = uuid.NewString()
	}
	now := time.Now()
	adminUser.CreatedAt = now
	adminUser.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, adminUser)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("admin %s: %w", adminUser.Username, repositories.ErrDuplicateKey)
	}
	return err
}

// FindByUsername finds an admin user by username
func (r *adminUserRepository) FindByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByID finds an admin user by their ID
func (r *adminUserRepository) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// UpdatePassword replaces the stored bcrypt hash
func (r *adminUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	update := bson.M{"$set": bson.M{"password": passwordHash, "updatedAt": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *adminUserRepository) findOne(ctx context.Context, filter bson.M) (*models.AdminUser, error) {
	var adminUser models.AdminUser
	err := r.collection.FindOne(ctx, filter).Decode(&adminUser)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &adminUser, nil
}
