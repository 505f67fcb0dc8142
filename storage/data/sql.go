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

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/storage"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

const bufSize = 1

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLRating is the row of a rating. Rows are ordered by the auto increment id.
type SQLRating struct {
	Id             int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UserId         string `gorm:"column:user_id;type:varchar(256);not null;index"`
	RestaurantName string `gorm:"column:restaurant_name;type:varchar(256);not null"`
	TotalRating    int    `gorm:"column:total_rating;not null"`
}

func NewSQLRating(rating dataset.Rating) SQLRating {
	return SQLRating{
		UserId:         rating.UserId,
		RestaurantName: rating.RestaurantName,
		TotalRating:    rating.TotalRating,
	}
}

func (r SQLRating) ToRating() dataset.Rating {
	return dataset.Rating{
		UserId:         r.UserId,
		RestaurantName: r.RestaurantName,
		TotalRating:    r.TotalRating,
	}
}

// SQLDatabase stores ratings in MySQL, Postgres or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	switch d.driver {
	case MySQL:
		if err := d.gormDB.Set("gorm:table_options", "ENGINE=InnoDB").AutoMigrate(&SQLRating{}); err != nil {
			return errors.Trace(err)
		}
	case Postgres, SQLite:
		if err := d.gormDB.AutoMigrate(&SQLRating{}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// Purge deletes all ratings.
func (d *SQLDatabase) Purge() error {
	if d.gormDB.Migrator().HasTable(d.RatingsTable()) {
		err := d.gormDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SQLRating{}).Error
		return errors.Trace(err)
	}
	return nil
}

// BatchInsertRatings appends ratings in the given order.
func (d *SQLDatabase) BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	rows := lo.Map(ratings, func(rating dataset.Rating, _ int) SQLRating {
		return NewSQLRating(rating)
	})
	return errors.Trace(d.gormDB.WithContext(ctx).Create(&rows).Error)
}

func (d *SQLDatabase) CountRatings(ctx context.Context) (int, error) {
	var count int64
	if err := d.gormDB.WithContext(ctx).Model(&SQLRating{}).Count(&count).Error; err != nil {
		return 0, errors.Trace(err)
	}
	return int(count), nil
}

// GetRatingStream reads ratings in insertion order and sends them in batches.
func (d *SQLDatabase) GetRatingStream(ctx context.Context, batchSize int) (chan []dataset.Rating, chan error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ratingChan := make(chan []dataset.Rating, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(ratingChan)
		defer close(errChan)
		// send query
		result, err := d.gormDB.WithContext(ctx).Model(&SQLRating{}).
			Select("user_id, restaurant_name, total_rating").
			Order("id").Rows()
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer result.Close()
		// fetch result
		ratings := make([]dataset.Rating, 0, batchSize)
		for result.Next() {
			var rating dataset.Rating
			if err = result.Scan(&rating.UserId, &rating.RestaurantName, &rating.TotalRating); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			ratings = append(ratings, rating)
			if len(ratings) == batchSize {
				ratingChan <- ratings
				ratings = make([]dataset.Rating, 0, batchSize)
			}
		}
		if err = result.Err(); err != nil {
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
