package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps sessions as documents of one collection.
type MongoStore struct {
	collection *mongo.Collection
	codec      Codec
	corrupt    CorruptPolicy
	logger     *slog.Logger
}

type MongoOptions struct {
	Collection    string
	Codec         Codec
	CorruptPolicy CorruptPolicy
	Logger        *slog.Logger
}

type mongoRecord struct {
	ID      string  `bson:"_id"`
	Data    *string `bson:"session_data"`
	Expires *int64  `bson:"expires,omitempty"`
}

func NewMongoStore(db *mongo.Database, opts MongoOptions) *MongoStore {
	if opts.Collection == "" {
		opts.Collection = DefaultTable
	}
	if opts.Codec == nil {
		opts.Codec = GobCodec{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &MongoStore{
		collection: db.Collection(opts.Collection),
		codec:      opts.Codec,
		corrupt:    opts.CorruptPolicy,
		logger:     opts.Logger,
	}
}

func (r *MongoStore) Load(id string) (Data, bool, error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}
	ctx := context.TODO()

	var rec mongoRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Op: "load", ID: id, Err: err}
	}

	// a null or absent payload loads as an empty session, as in SQLStore
	if rec.Data == nil {
		return Data{}, true, nil
	}

	data, err := r.codec.Decode(*rec.Data)
	if err != nil {
		return corrupted(r.logger, r.corrupt, id, err)
	}
	return data, true, nil
}

// Save replaces the document for id, inserting it when missing.
func (r *MongoStore) Save(id string, data Data) error {
	if err := validateID(id); err != nil {
		return err
	}
	exp, ok, err := expiresOf(data)
	if err != nil {
		return err
	}
	payload, err := r.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("session: encode %q: %w", id, err)
	}

	rec := mongoRecord{ID: id, Data: &payload}
	if ok {
		rec.Expires = &exp
	}

	ctx := context.TODO()
	_, err = r.collection.ReplaceOne(ctx, bson.M{"_id": id}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return &StoreError{Op: "save", ID: id, Err: err}
	}
	return nil
}

func (r *MongoStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	ctx := context.TODO()
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return &StoreError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func (r *MongoStore) DeleteExpired(now int64) error {
	ctx := context.TODO()
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires": bson.M{"$lt": now}})
	if err != nil {
		return &StoreError{Op: "delete expired", Err: err}
	}
	if res.DeletedCount > 0 {
		r.logger.Debug("expired sessions removed", "collection", r.collection.Name(), "count", res.DeletedCount)
	}
	return nil
}
