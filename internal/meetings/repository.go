package meetings

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxListLimit bounds one page of the admin listing.
const MaxListLimit = 200

type Repository interface {
	// List returns bookings matching every non-empty filter field,
	// ordered by date and time, paged by Limit and Offset.
	List(ctx context.Context, filter ListFilter) ([]Booking, error)
	// Count ignores Limit and Offset.
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Get(ctx context.Context, id string) (Booking, error)
	// Create stores b. It fails with ErrSlotTaken when b is scheduled and
	// the store already holds a scheduled booking at the same start.
	Create(ctx context.Context, b Booking) error
	// Replace overwrites the booking with b.ID under the same rule.
	Replace(ctx context.Context, b Booking) error
	HasScheduledForClient(ctx context.Context, clientID string) (bool, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func listQuery(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Date != "" {
		query["date"] = filter.Date
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.ClientID != "" {
		query["clientId"] = filter.ClientID
	}
	return query
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}

	cursor, err := r.col.Find(ctx, listQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Booking, 0)
	for cursor.Next(ctx) {
		var b Booking
		if err := cursor.Decode(&b); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, listQuery(filter))
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Booking, error) {
	var b Booking
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	return b, nil
}

// Create relies on the partial unique index over (date, time) for
// scheduled bookings to reject a second writer.
func (r *MongoRepository) Create(ctx context.Context, b Booking) error {
	if _, err := r.col.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotTaken
		}
		return err
	}
	return nil
}

func (r *MongoRepository) Replace(ctx context.Context, b Booking) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": b.ID}, b)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotTaken
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) HasScheduledForClient(ctx context.Context, clientID string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"clientId": clientID, "status": StatusScheduled}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
