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
	"fmt"

	"github.com/gorse-io/restaurant-recommender/base/progress"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) SetupTest() {
	err := suite.Database.Purge()
	suite.NoError(err)
}

func (suite *baseTestSuite) TearDownSuite() {
	err := suite.Database.Close()
	suite.NoError(err)
}

func (suite *baseTestSuite) getRatings(batchSize int) ([]dataset.Rating, int) {
	var ratings []dataset.Rating
	nBatches := 0
	ratingChan, errChan := suite.Database.GetRatingStream(context.Background(), batchSize)
	for batch := range ratingChan {
		suite.LessOrEqual(len(batch), batchSize)
		ratings = append(ratings, batch...)
		nBatches++
	}
	suite.NoError(<-errChan)
	return ratings, nBatches
}

func (suite *baseTestSuite) TestPing() {
	suite.NoError(suite.Database.Ping())
}

func (suite *baseTestSuite) TestRatings() {
	ctx := context.Background()
	// empty database
	count, err := suite.Database.CountRatings(ctx)
	suite.NoError(err)
	suite.Zero(count)
	ratings, _ := suite.getRatings(3)
	suite.Empty(ratings)

	// insert ratings in two batches
	expected := lo.Times(10, func(i int) dataset.Rating {
		return dataset.Rating{
			UserId:         fmt.Sprintf("U%d", (9-i)%4),
			RestaurantName: fmt.Sprintf("R%d", (9-i)%3),
			TotalRating:    i % 6,
		}
	})
	suite.NoError(suite.Database.BatchInsertRatings(ctx, expected[:6]))
	suite.NoError(suite.Database.BatchInsertRatings(ctx, expected[6:]))
	suite.NoError(suite.Database.BatchInsertRatings(ctx, nil))
	count, err = suite.Database.CountRatings(ctx)
	suite.NoError(err)
	suite.Equal(10, count)

	// ratings come back in insertion order
	ratings, nBatches := suite.getRatings(3)
	suite.Equal(expected, ratings)
	suite.Equal(4, nBatches)

	// purge
	suite.NoError(suite.Database.Purge())
	count, err = suite.Database.CountRatings(ctx)
	suite.NoError(err)
	suite.Zero(count)
}

func (suite *baseTestSuite) TestDuplicateRatings() {
	ctx := context.Background()
	expected := []dataset.Rating{
		{UserId: "U1", RestaurantName: "A", TotalRating: 5},
		{UserId: "U1", RestaurantName: "A", TotalRating: 3},
	}
	suite.NoError(suite.Database.BatchInsertRatings(ctx, expected))
	ratings, _ := suite.getRatings(DefaultBatchSize)
	suite.Equal(expected, ratings)
}

func (suite *baseTestSuite) TestImportAndLoad() {
	ctx := context.Background()
	ratings := []dataset.Rating{
		{UserId: "U1", RestaurantName: "A", TotalRating: 5},
		{UserId: "U1", RestaurantName: "B", TotalRating: 3},
		{UserId: "U2", RestaurantName: "A", TotalRating: 4},
		{UserId: "U2", RestaurantName: "C", TotalRating: 2},
	}
	suite.NoError(Import(ctx, suite.Database, ratings, 3))
	newCtx, span := progress.NewTracer("test").Start(ctx, "test", 1)
	data, err := LoadDataset(newCtx, suite.Database, 3)
	suite.NoError(err)
	// progress is sized by the number of ratings
	if children := span.Progress().Children; suite.Len(children, 1) {
		suite.Equal("LoadDataset", children[0].Name)
		suite.Equal(4, children[0].Total)
		suite.Equal(progress.StatusComplete, children[0].Status)
	}
	suite.Equal(ratings, data.GetRatings())
	suite.Equal([]string{"U1", "U2"}, data.Users())
	suite.Equal([]string{"A", "B", "C"}, data.Restaurants())
}
