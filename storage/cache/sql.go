// Copyright 2022 gorse Project Authors
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


package cache

import (
	"context"
	"database/sql"
	"math"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorse-io/restaurant-recommender/storage"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLRecommend is the row of a recommended restaurant. ExpireAt is a unix timestamp in
// nanoseconds and zero means the row never expires.
type SQLRecommend struct {
	UserId       string  `gorm:"column:user_id;type:varchar(256);primaryKey"`
	RestaurantId string  `gorm:"column:restaurant_id;type:varchar(256);primaryKey"`
	Score        float64 `gorm:"column:score;not null;index"`
	ExpireAt     int64   `gorm:"column:expire_at;not null"`
}

type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

func (db *SQLDatabase) Init() error {
	switch db.driver {
	case MySQL:
		if err := db.gormDB.Set("gorm:table_options", "ENGINE=InnoDB").AutoMigrate(&SQLRecommend{}); err != nil {
			return errors.Trace(err)
		}
	case Postgres, SQLite:
		if err := db.gormDB.AutoMigrate(&SQLRecommend{}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (db *SQLDatabase) Ping() error {
	return db.client.Ping()
}

func (db *SQLDatabase) Close() error {
	return db.client.Close()
}

func (db *SQLDatabase) Purge() error {
	if db.gormDB.Migrator().HasTable(db.RecommendTable()) {
		err := db.gormDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SQLRecommend{}).Error
		return errors.Trace(err)
	}
	return nil
}

// SetRecommend replaces recommendations of a user in a transaction.
func (db *SQLDatabase) SetRecommend(ctx context.Context, userId string, scores []Score, ttl time.Duration) error {
	var expireAt int64
	if ttl > 0 {
		expireAt = time.Now().Add(ttl).UnixNano()
	}
	return errors.Trace(db.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userId).Delete(&SQLRecommend{}).Error; err != nil {
			return errors.Trace(err)
		}
		if len(scores) == 0 {
			return nil
		}
		rows := lo.Map(lo.UniqBy(scores, func(score Score) string { return score.Id }), func(score Score, _ int) SQLRecommend {
			return SQLRecommend{
				UserId:       userId,
				RestaurantId: score.Id,
				Score:        score.Score,
				ExpireAt:     expireAt,
			}
		})
		return errors.Trace(tx.Create(&rows).Error)
	}))
}

// GetRecommend returns recommendations that have not expired.
func (db *SQLDatabase) GetRecommend(ctx context.Context, userId string, begin, end int) ([]Score, error) {
	tx := db.gormDB.WithContext(ctx).Model(&SQLRecommend{}).
		Select("restaurant_id, score").
		Where("user_id = ? AND (expire_at = 0 OR expire_at > ?)", userId, time.Now().UnixNano()).
		Order("score DESC").Order("restaurant_id")
	if end >= begin {
		tx = tx.Limit(end - begin + 1)
	} else if begin > 0 {
		tx = tx.Limit(math.MaxInt32)
	}
	if begin > 0 {
		tx = tx.Offset(begin)
	}
	rows, err := tx.Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var scores []Score
	for rows.Next() {
		var score Score
		if err = rows.Scan(&score.Id, &score.Score); err != nil {
			return nil, errors.Trace(err)
		}
		scores = append(scores, score)
	}
	return scores, errors.Trace(rows.Err())
}

func (db *SQLDatabase) DeleteRecommend(ctx context.Context, userId string) error {
	return errors.Trace(db.gormDB.WithContext(ctx).Where("user_id = ?", userId).Delete(&SQLRecommend{}).Error)
}
