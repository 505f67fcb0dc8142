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


package cache

import (
	"context"
	"time"

	"github.com/gorse-io/restaurant-recommender/storage"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// Redis caches recommendations in sorted sets.
type Redis struct {
	storage.TablePrefix
	client *redis.Client
}

func (r *Redis) recommendKey(userId string) string {
	return r.Key(Recommend + "/" + userId)
}

// Init nothing.
func (r *Redis) Init() error {
	return nil
}

func (r *Redis) Ping() error {
	return r.client.Ping(context.Background()).Err()
}

// Close redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Purge deletes all cached recommendations.
func (r *Redis) Purge() error {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, r.Key(Recommend+"/*"), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Trace(err)
	}
	if len(keys) > 0 {
		return errors.Trace(r.client.Del(ctx, keys...).Err())
	}
	return nil
}

// SetRecommend replaces the sorted set of a user in a transaction.
func (r *Redis) SetRecommend(ctx context.Context, userId string, scores []Score, ttl time.Duration) error {
	key := r.recommendKey(userId)
	pipeline := r.client.TxPipeline()
	pipeline.Del(ctx, key)
	if len(scores) > 0 {
		pipeline.ZAdd(ctx, key, lo.Map(scores, func(score Score, _ int) redis.Z {
			return redis.Z{Member: score.Id, Score: score.Score}
		})...)
		if ttl > 0 {
			pipeline.Expire(ctx, key, ttl)
		}
	}
	_, err := pipeline.Exec(ctx)
	return errors.Trace(err)
}

// GetRecommend gets recommendations from the sorted set.
func (r *Redis) GetRecommend(ctx context.Context, userId string, begin, end int) ([]Score, error) {
	members, err := r.client.ZRevRangeWithScores(ctx, r.recommendKey(userId), int64(begin), int64(end)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	results := make([]Score, 0, len(members))
	for _, member := range members {
		results = append(results, Score{Id: member.Member.(string), Score: member.Score})
	}
	// sorted sets break ties by member in reverse order
	SortScores(results)
	return results, nil
}

func (r *Redis) DeleteRecommend(ctx context.Context, userId string) error {
	return errors.Trace(r.client.Del(ctx, r.recommendKey(userId)).Err())
}
