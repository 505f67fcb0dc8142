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
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
)

var mongoUri = os.Getenv("MONGO_URI")

type MongoTestSuite struct {
	baseTestSuite
}

func (suite *MongoTestSuite) SetupSuite() {
	ctx := context.Background()
	var err error
	// drop database
	suite.Database, err = Open(mongoUri, "")
	suite.NoError(err)
	const dbName = "restaurant_data_test"
	err = suite.Database.(*MongoDB).client.Database(dbName).Drop(ctx)
	suite.NoError(err)
	suite.NoError(suite.Database.Close())
	// create schema
	suite.Database, err = Open(mongoUri+dbName+"?authSource=admin&connect=direct", "")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestMongo(t *testing.T) {
	if mongoUri == "" {
		t.Skip("MONGO_URI is not set, skipping MongoDB tests")
	}
	suite.Run(t, new(MongoTestSuite))
}
