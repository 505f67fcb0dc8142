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

package mf

import (
	"encoding/json"

	"github.com/chewxy/math32"
	"github.com/gorse-io/restaurant-recommender/base"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/stat"
)

// Score is the accuracy of predicted ratings.
type Score struct {
	RMSE float32
	R2   float32
}

type jsonScore struct {
	RMSE *float32
	R2   *float32
}

func finiteOrNil(x float32) *float32 {
	if math32.IsNaN(x) || math32.IsInf(x, 0) {
		return nil
	}
	return &x
}

func valueOrNaN(x *float32) float32 {
	if x == nil {
		return math32.NaN()
	}
	return *x
}

// MarshalJSON writes non-finite values as null since JSON has no NaN.
func (score Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonScore{RMSE: finiteOrNil(score.RMSE), R2: finiteOrNil(score.R2)})
}

// UnmarshalJSON reads null values as NaN.
func (score *Score) UnmarshalJSON(data []byte) error {
	var s jsonScore
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	score.RMSE = valueOrNaN(s.RMSE)
	score.R2 = valueOrNaN(s.R2)
	return nil
}

// BetterThan returns true if score has a lower RMSE than s.
func (score Score) BetterThan(s Score) bool {
	return score.RMSE < s.RMSE
}

// Evaluate measures the RMSE and R² of predictions on testSet. Ratings are matched to the
// model through their identifiers, so testSet may carry its own encoders.
func Evaluate(m MatrixFactorization, testSet *dataset.Dataset) (Score, error) {
	if testSet == nil || testSet.Count() == 0 {
		return Score{}, base.NewInsufficientDataError("no ratings to evaluate")
	}
	predictions := make([]float64, testSet.Count())
	values := make([]float64, testSet.Count())
	sharedIndex := testSet.GetUserIndex() == m.GetUserIndex() && testSet.GetItemIndex() == m.GetItemIndex()
	var sum float32
	for i, rating := range testSet.GetRatings() {
		var prediction float32
		if sharedIndex {
			prediction = m.InternalPredict(testSet.GetUserIds()[i], testSet.GetItemIds()[i])
		} else {
			var err error
			if prediction, err = m.Predict(rating.UserId, rating.RestaurantName); err != nil {
				return Score{}, errors.Trace(err)
			}
		}
		value := testSet.GetValues()[i]
		sum += (prediction - value) * (prediction - value)
		predictions[i] = float64(prediction)
		values[i] = float64(value)
	}
	return Score{
		RMSE: math32.Sqrt(sum / float32(testSet.Count())),
		R2:   float32(stat.RSquaredFrom(predictions, values, nil)),
	}, nil
}
