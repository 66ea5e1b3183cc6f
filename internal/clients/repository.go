package clients

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	// Upsert inserts c or refreshes the record sharing its email. created
	// reports whether a new record was written.
	Upsert(ctx context.Context, c Client) (Client, bool, error)
	GetByEmail(ctx context.Context, email string) (Client, error)
	GetByID(ctx context.Context, id string) (Client, error)
	List(ctx context.Context, limit, offset int64) ([]Client, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, email string, patch Patch, now time.Time) (Client, error)
	Delete(ctx context.Context, email string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Upsert(ctx context.Context, c Client) (Client, bool, error) {
	set := bson.M{
		"name":      c.Name,
		"updatedAt": c.UpdatedAt,
	}
	if c.Phone != "" {
		set["phone"] = c.Phone
	}
	if c.Company != "" {
		set["company"] = c.Company
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":       c.ID,
			"email":     c.Email,
			"createdAt": c.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved Client
	err := r.col.FindOneAndUpdate(ctx, bson.M{"email": c.Email}, update, opts).Decode(&saved)
	if err != nil {
		// Two concurrent upserts of a new email: the loser retries as an update.
		if mongo.IsDuplicateKeyError(err) {
			err = r.col.FindOneAndUpdate(ctx, bson.M{"email": c.Email}, bson.M{"$set": set}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&saved)
			if err != nil {
				return Client{}, false, err
			}
			return saved, false, nil
		}
		return Client{}, false, err
	}
	return saved, saved.ID == c.ID, nil
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (Client, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Client, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (Client, error) {
	var c Client
	if err := r.col.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}

func (r *MongoRepository) List(ctx context.Context, limit, offset int64) ([]Client, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Client, 0)
	for cursor.Next(ctx) {
		var c Client
		if err := cursor.Decode(&c); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) Update(ctx context.Context, email string, patch Patch, now time.Time) (Client, error) {
	set := bson.M{"updatedAt": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	if patch.Company != nil {
		set["company"] = *patch.Company
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Client
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"email": email}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, email string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"email": email})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
