// Copyright 2025 gorse Project Authors
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

package logics

import (
	"context"

	"github.com/gorse-io/restaurant-recommender/base/heap"
	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/base/parallel"
	"github.com/gorse-io/restaurant-recommender/base/progress"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/model/mf"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultTopK is the number of recommendations if k is not positive.
const DefaultTopK = 10

// Scored is a recommended restaurant with its predicted rating.
type Scored struct {
	Id    string
	Score float64
}

// Recommender ranks restaurants a user has not rated by predicted rating.
type Recommender struct {
	model  mf.MatrixFactorization
	corpus *dataset.Dataset
}

func NewRecommender(model mf.MatrixFactorization, corpus *dataset.Dataset) *Recommender {
	return &Recommender{
		model:  model,
		corpus: corpus,
	}
}

// Recommend returns at most k restaurants not rated by the user in the corpus, sorted by
// predicted rating in descending order. Restaurants with equal predictions keep their order of
// first appearance in the corpus.
func (r *Recommender) Recommend(userId string, k int) ([]Scored, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	userIndex, err := r.model.GetUserIndex().Encode(userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	rated := r.corpus.RatedBy(userId)
	filter := heap.NewTopKFilter[string, float64](k)
	for _, restaurant := range r.corpus.Restaurants() {
		if rated.Contains(restaurant) {
			continue
		}
		itemIndex, err := r.model.GetItemIndex().Encode(restaurant)
		if err != nil {
			return nil, errors.Trace(err)
		}
		filter.Push(restaurant, float64(r.model.InternalPredict(userIndex, itemIndex)))
	}
	return lo.Map(filter.PopAll(), func(elem heap.Elem[string, float64], _ int) Scored {
		return Scored{Id: elem.Value, Score: elem.Weight}
	}), nil
}

// RecommendAll generates recommendations for every user in the corpus and passes them to fn.
// Users are processed by jobs workers, so fn must be safe for concurrent use.
func (r *Recommender) RecommendAll(ctx context.Context, k, jobs int, fn func(userId string, items []Scored) error) error {
	users := r.corpus.Users()
	_, span := progress.Start(ctx, "RecommendAll", len(users))
	err := parallel.Parallel(ctx, len(users), jobs, func(_, jobId int) error {
		items, err := r.Recommend(users[jobId], k)
		if err != nil {
			return errors.Trace(err)
		}
		if err = fn(users[jobId], items); err != nil {
			return errors.Trace(err)
		}
		span.Add(1)
		return nil
	})
	if err != nil {
		span.Fail(err)
		return errors.Trace(err)
	}
	span.End()
	log.Logger().Info("complete generating recommendations",
		zap.Int("n_users", len(users)),
		zap.Int("top_k", k))
	return nil
}
