package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure PurchaseRepository implements the interface
var _ repositories.PurchaseRepository = (*PurchaseRepository)(nil)

// PurchaseRepository handles MongoDB operations for Purchase
type PurchaseRepository struct {
	collection *mongo.Collection
}

// NewPurchaseRepository creates a new PurchaseRepository
func NewPurchaseRepository(db *mongo.Database) *PurchaseRepository {
	return &PurchaseRepository{
		collection: db.Collection("purchases"),
	}
}

// Create inserts a new purchase
func (r *PurchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	if purchase.TicketNumbers == nil {
		purchase.TicketNumbers = []int{}
	}
	_, err := r.collection.InsertOne(ctx, purchase)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("purchase %s: %w", purchase.ID, repositories.ErrDuplicateKey)
	}
	return err
}

// FindByID finds a purchase by ID
func (r *PurchaseRepository) FindByID(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&purchase)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

// FindAll retrieves purchases matching the filter, newest first
func (r *PurchaseRepository) FindAll(ctx context.Context, filter models.PurchaseFilter) ([]*models.Purchase, error) {
	query := bson.M{}
	if filter.RaffleID != "" {
		query["raffleId"] = filter.RaffleID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var purchases []*models.Purchase
	if err = cursor.All(ctx, &purchases); err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []*models.Purchase{}
	}
	return purchases, nil
}

// Transition moves a purchase between statuses atomically
func (r *PurchaseRepository) Transition(ctx context.Context, id string, from, to models.PurchaseStatus, userID string) error {
	now := time.Now()
	set := bson.M{"status": to}
	unset := bson.M{}
	switch to {
	case models.PurchaseStatusConfirmed:
		set["confirmedAt"] = now
		set["userId"] = userID
	case models.PurchaseStatusRejected:
		set["rejectedAt"] = now
	case models.PurchaseStatusPending:
		unset["confirmedAt"] = ""
		unset["userId"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return repositories.ErrNotFound
	}
	return repositories.ErrStatusConflict
}

// Delete deletes a purchase by ID
func (r *PurchaseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
