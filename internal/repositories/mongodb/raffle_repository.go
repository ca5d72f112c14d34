package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/repositories"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure RaffleRepository implements the interface
var _ repositories.RaffleRepository = (*RaffleRepository)(nil)

// legacyUserNamespace seeds ids for embedded users written before ids existed
var legacyUserNamespace = uuid.MustParse("6f1c64a8-3f5e-4b8e-9a51-2c7d0e4b9f10")

// RaffleRepository handles MongoDB operations for Raffle
type RaffleRepository struct {
	collection *mongo.Collection
}

// NewRaffleRepository creates a new RaffleRepository
func NewRaffleRepository(db *mongo.Database) *RaffleRepository {
	return &RaffleRepository{
		collection: db.Collection("raffles"),
	}
}

// Create inserts a new raffle
func (r *RaffleRepository) Create(ctx context.Context, raffle *models.Raffle) error {
	if raffle.Users == nil {
		raffle.Users = []models.User{}
	}
	if raffle.PremiumNumbers == nil {
		raffle.PremiumNumbers = []models.PremiumNumber{}
	}
	_, err := r.collection.InsertOne(ctx, raffle)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("raffle %s: %w", raffle.ID, repositories.ErrDuplicateKey)
	}
	return err
}

// FindByID finds a raffle by ID
func (r *RaffleRepository) FindByID(ctx context.Context, id string) (*models.Raffle, error) {
	return decodeRaffleResult(r.collection.FindOne(ctx, bson.M{"_id": id}), id)
}

// decodeRaffleResult separates lookup failures from documents that cannot be
// decoded. Only the latter are reported as malformed.
func decodeRaffleResult(res *mongo.SingleResult, id string) (*models.Raffle, error) {
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("find raffle %s: %w", id, err)
	}
	var raffle models.Raffle
	if err := res.Decode(&raffle); err != nil {
		return nil, fmt.Errorf("%w: raffle %s: %v", repositories.ErrMalformedDocument, id, err)
	}
	if err := normalizeRaffle(&raffle); err != nil {
		return nil, err
	}
	return &raffle, nil
}

// FindAll retrieves every raffle. Documents that fail validation are skipped.
func (r *RaffleRepository) FindAll(ctx context.Context) ([]*models.Raffle, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	raffles := []*models.Raffle{}
	for cursor.Next(ctx) {
		var raffle models.Raffle
		if err := cursor.Decode(&raffle); err != nil {
			slog.Warn("Skipping undecodable raffle document", "id", cursor.Current.Lookup("_id").String(), "error", err)
			continue
		}
		if err := normalizeRaffle(&raffle); err != nil {
			slog.Warn("Skipping invalid raffle document", "id", raffle.ID, "error", err)
			continue
		}
		raffles = append(raffles, &raffle)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return raffles, nil
}

// Update merges a partial update into the raffle if it is still at expectedVersion
func (r *RaffleRepository) Update(ctx context.Context, id string, expectedVersion int64, update *models.RaffleUpdate) error {
	set := bson.M{"updatedAt": time.Now()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Image != nil {
		set["image"] = *update.Image
	}
	if update.PricePerTicket != nil {
		set["pricePerTicket"] = *update.PricePerTicket
	}
	if update.TotalTickets != nil {
		set["totalTickets"] = *update.TotalTickets
	}
	if update.DrawDate != nil {
		set["drawDate"] = *update.DrawDate
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.PremiumNumbers != nil {
		pns := *update.PremiumNumbers
		if pns == nil {
			pns = []models.PremiumNumber{}
		}
		set["premiumNumbers"] = pns
	}
	return r.guardedUpdate(ctx, id, expectedVersion, set)
}

// SetUsers replaces the embedded users if the raffle is still at expectedVersion
func (r *RaffleRepository) SetUsers(ctx context.Context, id string, expectedVersion int64, users []models.User) error {
	if users == nil {
		users = []models.User{}
	}
	return r.guardedUpdate(ctx, id, expectedVersion, bson.M{"users": users, "updatedAt": time.Now()})
}

func (r *RaffleRepository) guardedUpdate(ctx context.Context, id string, expectedVersion int64, set bson.M) error {
	filter := bson.M{"_id": id, "version": expectedVersion}
	if expectedVersion == 0 {
		// documents written before versioning have no version field
		filter = bson.M{"_id": id, "$or": bson.A{
			bson.M{"version": 0},
			bson.M{"version": bson.M{"$exists": false}},
		}}
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
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
	return repositories.ErrVersionConflict
}

// Delete deletes a raffle by ID
func (r *RaffleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// normalizeRaffle validates a decoded raffle and fills defaults for
// fields older documents may lack
func normalizeRaffle(raffle *models.Raffle) error {
	if raffle.ID == "" {
		return fmt.Errorf("%w: missing id", repositories.ErrMalformedDocument)
	}
	if raffle.TotalTickets <= 0 || raffle.TotalTickets > models.MaxTotalTickets {
		return fmt.Errorf("%w: raffle %s has totalTickets %d", repositories.ErrMalformedDocument, raffle.ID, raffle.TotalTickets)
	}
	if raffle.PricePerTicket <= 0 {
		return fmt.Errorf("%w: raffle %s has pricePerTicket %d", repositories.ErrMalformedDocument, raffle.ID, raffle.PricePerTicket)
	}
	if !raffle.Status.Valid() {
		raffle.Status = models.RaffleStatusActive
	}
	if raffle.PremiumNumbers == nil {
		raffle.PremiumNumbers = []models.PremiumNumber{}
	}
	if raffle.Users == nil {
		raffle.Users = []models.User{}
	}
	for i := range raffle.Users {
		u := &raffle.Users[i]
		if u.ID == "" {
			u.ID = uuid.NewSHA1(legacyUserNamespace, []byte(raffle.ID+"/"+strconv.Itoa(i))).String()
		}
		tickets := make([]int, 0, len(u.Tickets))
		for _, t := range u.Tickets {
			if t > 0 {
				tickets = append(tickets, t)
			}
		}
		u.Tickets = tickets
	}
	return nil
}
