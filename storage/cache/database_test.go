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

func (suite *baseTestSuite) TestPing() {
	suite.NoError(suite.Database.Ping())
}

func (suite *baseTestSuite) TestRecommend() {
	ctx := context.Background()
	scores := []Score{{"A", 1.5}, {"B", 4}, {"C", 3.2}, {"D", 2}}
	err := suite.Database.SetRecommend(ctx, "U1", scores, 0)
	suite.NoError(err)
	err = suite.Database.SetRecommend(ctx, "U2", []Score{{"E", 1}}, time.Hour)
	suite.NoError(err)

	// get all
	result, err := suite.Database.GetRecommend(ctx, "U1", 0, -1)
	suite.NoError(err)
	suite.Equal([]Score{{"B", 4}, {"C", 3.2}, {"D", 2}, {"A", 1.5}}, result)
	// get range
	result, err = suite.Database.GetRecommend(ctx, "U1", 1, 2)
	suite.NoError(err)
	suite.Equal([]Score{{"C", 3.2}, {"D", 2}}, result)
	result, err = suite.Database.GetRecommend(ctx, "U1", 2, -1)
	suite.NoError(err)
	suite.Equal([]Score{{"D", 2}, {"A", 1.5}}, result)
	// unknown user
	result, err = suite.Database.GetRecommend(ctx, "U3", 0, -1)
	suite.NoError(err)
	suite.Empty(result)

	// overwrite
	err = suite.Database.SetRecommend(ctx, "U1", []Score{{"A", 5}}, 0)
	suite.NoError(err)
	result, err = suite.Database.GetRecommend(ctx, "U1", 0, -1)
	suite.NoError(err)
	suite.Equal([]Score{{"A", 5}}, result)
	result, err = suite.Database.GetRecommend(ctx, "U2", 0, -1)
	suite.NoError(err)
	suite.Equal([]Score{{"E", 1}}, result)

	// delete
	err = suite.Database.DeleteRecommend(ctx, "U1")
	suite.NoError(err)
	result, err = suite.Database.GetRecommend(ctx, "U1", 0, -1)
	suite.NoError(err)
	suite.Empty(result)
}

func (suite *baseTestSuite) TestTies() {
	ctx := context.Background()
	err := suite.Database.SetRecommend(ctx, "U1", []Score{{"C", 1}, {"A", 1}, {"B", 2}}, 0)
	suite.NoError(err)
	result, err := suite.Database.GetRecommend(ctx, "U1", 0, -1)
	suite.NoError(err)
	suite.Equal([]Score{{"B", 2}, {"A", 1}, {"C", 1}}, result)
}

func (suite *baseTestSuite) TestExpire() {
	ctx := context.Background()
	err := suite.Database.SetRecommend(ctx, "U1", []Score{{"A", 1}}, time.Second)
	suite.NoError(err)
	result, err := suite.Database.GetRecommend(ctx, "U1", 0, -1)
	suite.NoError(err)
	suite.Len(result, 1)
	time.Sleep(2 * time.Second)
	result, err = suite.Database.GetRecommend(ctx, "U1", 0, -1)
	suite.NoError(err)
	suite.Empty(result)
}

func (suite *baseTestSuite) TestPurge() {
	ctx := context.Background()
	suite.NoError(suite.Database.SetRecommend(ctx, "U1", []Score{{"A", 1}}, 0))
	suite.NoError(suite.Database.SetRecommend(ctx, "U2", []Score{{"B", 1}}, 0))
	suite.NoError(suite.Database.Purge())
	for _, userId := range []string{"U1", "U2"} {
		result, err := suite.Database.GetRecommend(ctx, userId, 0, -1)
		suite.NoError(err)
		suite.Empty(result)
	}
}
