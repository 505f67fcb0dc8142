// Copyright 2020 gorse Project Authors
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
	"database/sql"
	"strings"

	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/base/progress"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/storage"
	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const DefaultBatchSize = 1024

// Database stores the rating corpus. Ratings are returned in insertion order, so a corpus read
// back from a database encodes users and restaurants in the same order as the imported file.
type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error
	CountRatings(ctx context.Context) (int, error)
	GetRatingStream(ctx context.Context, batchSize int) (chan []dataset.Rating, chan error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("mysql", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("postgres", path); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.MongoPrefix) || strings.HasPrefix(path, storage.MongoSrvPrefix) {
		// connect to database
		database := new(MongoDB)
		opts := options.Client()
		opts.ApplyURI(path)
		if database.client, err = mongo.Connect(context.Background(), opts); err != nil {
			return nil, errors.Trace(err)
		}
		// parse DSN and extract database name
		if cs, err := connstring.ParseAndValidate(path); err != nil {
			return nil, errors.Trace(err)
		} else {
			database.dbName = cs.Database
			database.TablePrefix = storage.TablePrefix(tablePrefix)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		name, err := storage.SQLiteDataSourceName(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("sqlite", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.NotValidf("data store %s", log.RedactDBURL(path))
}

// LoadDataset reads all ratings from a database and builds a dataset.
func LoadDataset(ctx context.Context, database Database, batchSize int) (*dataset.Dataset, error) {
	count, err := database.CountRatings(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ratings := make([]dataset.Rating, 0, count)
	_, span := progress.Start(ctx, "LoadDataset", count)
	ratingChan, errChan := database.GetRatingStream(ctx, batchSize)
	for batch := range ratingChan {
		ratings = append(ratings, batch...)
		span.Add(len(batch))
	}
	if err = <-errChan; err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	span.End()
	log.Logger().Info("load dataset from database", zap.Int("n_ratings", len(ratings)))
	return dataset.NewDataset(ratings), nil
}

// Import inserts ratings in batches.
func Import(ctx context.Context, database Database, ratings []dataset.Rating, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	newCtx, span := progress.Start(ctx, "Import", len(ratings))
	for begin := 0; begin < len(ratings); begin += batchSize {
		end := min(begin+batchSize, len(ratings))
		if err := database.BatchInsertRatings(newCtx, ratings[begin:end]); err != nil {
			span.Fail(err)
			return errors.Annotatef(err, "insert ratings [%d, %d)", begin, end)
		}
		span.Add(end - begin)
	}
	span.End()
	return nil
}
