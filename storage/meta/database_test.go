// Copyright 2024 gorse Project Authors
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

package meta

import (
	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) TestKeyValues() {
	err := suite.Database.Put("key1", "value1")
	suite.NoError(err)
	err = suite.Database.Put("key2", "value2")
	suite.NoError(err)

	value, err := suite.Database.Get("key1")
	suite.NoError(err)
	suite.Equal("value1", *value)

	value, err = suite.Database.Get("key2")
	suite.NoError(err)
	suite.Equal("value2", *value)

	// Overwrite existing key
	err = suite.Database.Put("key1", "value3")
	suite.NoError(err)
	value, err = suite.Database.Get("key1")
	suite.NoError(err)
	suite.Equal("value3", *value)

	// Test non-existing key
	value, err = suite.Database.Get("non-existing-key")
	suite.NoError(err)
	suite.Nil(value)
}

type mockScore struct {
	RMSE float32
}

func (suite *baseTestSuite) TestModels() {
	// Get missing model
	_, err := GetModel[mockScore](suite.Database, MATRIX_FACTORIZATION_MODEL)
	suite.True(errors.Is(err, errors.NotFound))

	// Put and get model
	m := Model[mockScore]{
		ID:     1,
		Type:   "sgd",
		Params: model.Params{model.NFactors: 10, model.Lr: 0.01},
		Score:  mockScore{RMSE: 1.5},
	}
	err = PutModel(suite.Database, MATRIX_FACTORIZATION_MODEL, m)
	suite.NoError(err)
	loaded, err := GetModel[mockScore](suite.Database, MATRIX_FACTORIZATION_MODEL)
	suite.NoError(err)
	suite.Equal(int64(1), loaded.ID)
	suite.Equal("sgd", loaded.Type)
	suite.Equal(mockScore{RMSE: 1.5}, loaded.Score)
	suite.Equal(10, loaded.Params.GetInt(model.NFactors, 0))
	suite.Equal(float32(0.01), loaded.Params.GetFloat32(model.Lr, 0))

	// Replace model
	m.ID = 2
	err = PutModel(suite.Database, MATRIX_FACTORIZATION_MODEL, m)
	suite.NoError(err)
	loaded, err = GetModel[mockScore](suite.Database, MATRIX_FACTORIZATION_MODEL)
	suite.NoError(err)
	suite.Equal(int64(2), loaded.ID)
}
