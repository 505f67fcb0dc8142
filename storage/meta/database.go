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
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/gorse-io/restaurant-recommender/storage"
	"github.com/juju/errors"
)

const (
	MATRIX_FACTORIZATION_MODEL = "MATRIX_FACTORIZATION_MODEL"
)

// Model describes a trained model registered in the meta store.
type Model[T any] struct {
	ID     int64
	Type   string
	Params model.Params
	Score  T
}

func (m *Model[T]) ToJSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(data), nil
}

func (m *Model[T]) FromJSON(data string) error {
	return json.Unmarshal([]byte(data), m)
}

type Database interface {
	Close() error
	Init() error
	Put(key, value string) error
	Get(key string) (*string, error)
}

// Open a connection to a database.
func Open(path string) (Database, error) {
	if strings.HasPrefix(path, storage.SQLitePrefix) {
		dataSourceName, err := storage.SQLiteDataSourceName(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLite)
		if database.db, err = sql.Open("sqlite", dataSourceName); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.NotValidf("meta store %s", path)
}

// PutModel registers a model under key.
func PutModel[T any](db Database, key string, m Model[T]) error {
	value, err := m.ToJSON()
	if err != nil {
		return errors.Annotatef(err, "model %s", key)
	}
	return errors.Trace(db.Put(key, value))
}

// GetModel returns the model registered under key. It returns a NotFound error if no model has
// been registered.
func GetModel[T any](db Database, key string) (Model[T], error) {
	var m Model[T]
	value, err := db.Get(key)
	if err != nil {
		return m, errors.Trace(err)
	}
	if value == nil {
		return m, errors.NotFoundf("model %s", key)
	}
	if err = m.FromJSON(*value); err != nil {
		return m, errors.Annotatef(err, "model %s", key)
	}
	return m, nil
}
