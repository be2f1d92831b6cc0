// Package bookings persists confirmed booking references so returning
// customers see their history in the conversation context.
package bookings

import (
	"context"
	"fmt"
	"time"

	"chatwidget/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository defines the booking-history data access contract.
type Repository interface {
	ListByEmail(ctx context.Context, email string) ([]models.BookingReference, error)
	Record(ctx context.Context, email string, ref models.BookingReference) error
}

type record struct {
	BookingID     string    `bson:"bookingId"`
	CustomerEmail string    `bson:"customerEmail"`
	Date          time.Time `bson:"date"`
	ServiceType   string    `bson:"serviceType"`
	Status        string    `bson:"status"`
	CreatedAt     time.Time `bson:"createdAt"`
}

// MongoRepo implements Repository on MongoDB.
type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(client *mongo.Client, dbName string) *MongoRepo {
	return &MongoRepo{
		coll: client.Database(dbName).Collection("booking_history"),
	}
}

func (r *MongoRepo) ListByEmail(ctx context.Context, email string) ([]models.BookingReference, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}}).SetLimit(20)
	cursor, err := r.coll.Find(ctx, bson.M{"customerEmail": email}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query booking history: %w", err)
	}
	defer cursor.Close(ctx)

	var refs []models.BookingReference
	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode booking record: %w", err)
		}
		refs = append(refs, models.BookingReference{
			BookingID:   rec.BookingID,
			Date:        rec.Date,
			ServiceType: rec.ServiceType,
			Status:      rec.Status,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("booking history cursor failed: %w", err)
	}
	return refs, nil
}

func (r *MongoRepo) Record(ctx context.Context, email string, ref models.BookingReference) error {
	rec := record{
		BookingID:     ref.BookingID,
		CustomerEmail: email,
		Date:          ref.Date,
		ServiceType:   ref.ServiceType,
		Status:        ref.Status,
		CreatedAt:     time.Now(),
	}
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to record booking: %w", err)
	}
	return nil
}
