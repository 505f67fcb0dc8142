// Copyright 2021 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package data

import (
	"context"

	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRating is the document of a rating. Seq keeps the insertion order.
type MongoRating struct {
	Seq            int64  `bson:"seq"`
	UserId         string `bson:"user_id"`
	RestaurantName string `bson:"restaurant_name"`
	TotalRating    int    `bson:"total_rating"`
}

// MongoDB is the data storage based on MongoDB.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

// Init collections and indices in MongoDB.
func (db *MongoDB) Init() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	// list collections
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	// create collections
	if !lo.Contains(collections, db.RatingsTable()) {
		if err = d.CreateCollection(ctx, db.RatingsTable()); err != nil {
			return errors.Trace(err)
		}
	}
	// create index
	_, err = d.Collection(db.RatingsTable()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.M{"seq": 1},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.M{"user_id": 1},
		},
	})
	return errors.Trace(err)
}

func (db *MongoDB) Ping() error {
	return db.client.Ping(context.Background(), nil)
}

// Close connection to MongoDB.
func (db *MongoDB) Close() error {
	return db.client.Disconnect(context.Background())
}

func (db *MongoDB) Purge() error {
	_, err := db.client.Database(db.dbName).Collection(db.RatingsTable()).DeleteMany(context.Background(), bson.M{})
	return errors.Trace(err)
}

// BatchInsertRatings appends ratings after the last sequence number. Concurrent writers are
// rejected by the unique index on seq.
func (db *MongoDB) BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.RatingsTable())
	// find the last sequence number
	var last MongoRating
	next := int64(0)
	err := c.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.M{"seq": -1})).Decode(&last)
	if err == nil {
		next = last.Seq + 1
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Trace(err)
	}
	var models []mongo.WriteModel
	for i, rating := range ratings {
		models = append(models, mongo.NewInsertOneModel().SetDocument(MongoRating{
			Seq:            next + int64(i),
			UserId:         rating.UserId,
			RestaurantName: rating.RestaurantName,
			TotalRating:    rating.TotalRating,
		}))
	}
	_, err = c.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return errors.Trace(err)
}

func (db *MongoDB) CountRatings(ctx context.Context) (int, error) {
	c := db.client.Database(db.dbName).Collection(db.RatingsTable())
	count, err := c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Trace(err)
	}
	return int(count), nil
}

// GetRatingStream reads ratings in insertion order and sends them in batches.
func (db *MongoDB) GetRatingStream(ctx context.Context, batchSize int) (chan []dataset.Rating, chan error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ratingChan := make(chan []dataset.Rating, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(ratingChan)
		defer close(errChan)
		c := db.client.Database(db.dbName).Collection(db.RatingsTable())
		r, err := c.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"seq": 1}).SetBatchSize(int32(batchSize)))
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer r.Close(ctx)
		ratings := make([]dataset.Rating, 0, batchSize)
		for r.Next(ctx) {
			var doc MongoRating
			if err = r.Decode(&doc); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			ratings = append(ratings, dataset.Rating{
				UserId:         doc.UserId,
				RestaurantName: doc.RestaurantName,
				TotalRating:    doc.TotalRating,
			})
			if len(ratings) == batchSize {
				ratingChan <- ratings
				ratings = make([]dataset.Rating, 0, batchSize)
			}
		}
		if err = r.Err(); err != nil {
			errChan <- errors.Trace(err)
			return
		}
		if len(ratings) > 0 {
			ratingChan <- ratings
		}
		errChan <- nil
	}()
	return ratingChan, errChan
}
