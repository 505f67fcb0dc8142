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
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/gorse-io/restaurant-recommender/base"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/gorse-io/restaurant-recommender/model/mf"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RecommenderTestSuite struct {
	suite.Suite
	corpus *dataset.Dataset
	model  *mf.SGD
}

func (suite *RecommenderTestSuite) SetupSuite() {
	suite.corpus = dataset.NewDataset([]dataset.Rating{
		{UserId: "U1", RestaurantName: "A", TotalRating: 5},
		{UserId: "U1", RestaurantName: "B", TotalRating: 3},
		{UserId: "U2", RestaurantName: "A", TotalRating: 4},
		{UserId: "U2", RestaurantName: "C", TotalRating: 2},
	})
	suite.model = mf.NewSGD(model.Params{model.NFactors: 8, model.NEpochs: 50})
	_, err := suite.model.Fit(context.Background(), suite.corpus, nil, mf.NewFitConfig())
	suite.Require().NoError(err)
}

func (suite *RecommenderTestSuite) TestRecommend() {
	recommender := NewRecommender(suite.model, suite.corpus)
	items, err := recommender.Recommend("U1", 10)
	suite.NoError(err)
	// A and B are rated by U1
	suite.Equal([]string{"C"}, lo.Map(items, func(s Scored, _ int) string { return s.Id }))
	prediction, err := suite.model.Predict("U1", "C")
	suite.NoError(err)
	suite.Equal(float64(prediction), items[0].Score)

	items, err = recommender.Recommend("U2", 0)
	suite.NoError(err)
	suite.Equal([]string{"B"}, lo.Map(items, func(s Scored, _ int) string { return s.Id }))
}

func (suite *RecommenderTestSuite) TestRecommendUnknown() {
	recommender := NewRecommender(suite.model, suite.corpus)
	_, err := recommender.Recommend("U3", 10)
	suite.True(base.IsUnknownCategoryError(err))

	// corpus newer than the model
	corpus := dataset.NewDataset(append(suite.corpus.GetRatings(), dataset.Rating{UserId: "U2", RestaurantName: "D", TotalRating: 1}))
	recommender = NewRecommender(suite.model, corpus)
	_, err = recommender.Recommend("U1", 10)
	suite.True(base.IsUnknownCategoryError(err))
}

func (suite *RecommenderTestSuite) TestRecommendWithoutRatings() {
	// U1 is known to the model but has no rating in the corpus
	corpus := dataset.NewDataset(lo.Filter(suite.corpus.GetRatings(), func(r dataset.Rating, _ int) bool {
		return r.UserId != "U1"
	}))
	recommender := NewRecommender(suite.model, corpus)
	items, err := recommender.Recommend("U1", 10)
	suite.NoError(err)
	suite.Equal([]string{"A", "C"}, corpus.Restaurants())
	suite.ElementsMatch([]string{"A", "C"}, lo.Map(items, func(s Scored, _ int) string { return s.Id }))
	for _, item := range items {
		prediction, err := suite.model.Predict("U1", item.Id)
		suite.NoError(err)
		suite.Equal(float64(prediction), item.Score)
	}
}

func (suite *RecommenderTestSuite) TestRecommendAll() {
	recommender := NewRecommender(suite.model, suite.corpus)
	var mu sync.Mutex
	results := make(map[string][]Scored)
	err := recommender.RecommendAll(context.Background(), 10, 2, func(userId string, items []Scored) error {
		mu.Lock()
		defer mu.Unlock()
		results[userId] = items
		return nil
	})
	suite.NoError(err)
	suite.Len(results, 2)
	suite.Equal("C", results["U1"][0].Id)
	suite.Equal("B", results["U2"][0].Id)
}

func TestRecommender(t *testing.T) {
	suite.Run(t, new(RecommenderTestSuite))
}

func TestRecommendTopK(t *testing.T) {
	var ratings []dataset.Rating
	for u := 0; u < 10; u++ {
		for i := 0; i < 30; i++ {
			if (u*7+i)%3 == 0 {
				ratings = append(ratings, dataset.Rating{
					UserId:         fmt.Sprintf("U%d", u),
					RestaurantName: fmt.Sprintf("R%d", i),
					TotalRating:    (u+i)%5 + 1,
				})
			}
		}
	}
	corpus := dataset.NewDataset(ratings)
	m := mf.NewALS(model.Params{model.NFactors: 4, model.NEpochs: 5})
	_, err := m.Fit(context.Background(), corpus, nil, mf.NewFitConfig())
	require.NoError(t, err)
	recommender := NewRecommender(m, corpus)
	for _, userId := range corpus.Users() {
		rated := corpus.RatedBy(userId)
		unrated := len(corpus.Restaurants()) - rated.Cardinality()
		for _, k := range []int{1, 5, 100} {
			items, err := recommender.Recommend(userId, k)
			require.NoError(t, err)
			assert.Len(t, items, min(k, unrated))
			assert.True(t, sort.SliceIsSorted(items, func(i, j int) bool {
				return items[i].Score > items[j].Score
			}))
			for _, item := range items {
				assert.False(t, rated.Contains(item.Id))
			}
		}
	}
}

// constantModel predicts the same rating for every pair.
type constantModel struct {
	mf.SGD
}

func (m *constantModel) InternalPredict(_, _ int32) float32 {
	return 1
}

func TestRecommendTies(t *testing.T) {
	corpus := dataset.NewDataset([]dataset.Rating{
		{UserId: "U1", RestaurantName: "A", TotalRating: 1},
		{UserId: "U2", RestaurantName: "D", TotalRating: 1},
		{UserId: "U2", RestaurantName: "B", TotalRating: 1},
		{UserId: "U2", RestaurantName: "C", TotalRating: 1},
		{UserId: "U2", RestaurantName: "A", TotalRating: 1},
	})
	m := new(constantModel)
	m.SetParams(model.Params{model.NEpochs: 1})
	_, err := m.Fit(context.Background(), corpus, nil, mf.NewFitConfig())
	require.NoError(t, err)
	items, err := NewRecommender(m, corpus).Recommend("U1", 2)
	require.NoError(t, err)
	// ties keep the order of first appearance
	assert.Equal(t, []Scored{{"D", 1}, {"B", 1}}, items)
}
