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

package model

import (
	"github.com/gorse-io/restaurant-recommender/base"
	"github.com/gorse-io/restaurant-recommender/dataset"
)

// Splitter splits a dataset into train folds and test folds. Folds share encoders with the
// source dataset.
type Splitter func(data *dataset.Dataset) (trainFolds, testFolds []*dataset.Dataset)

// NewKFoldSplitter creates a k-fold splitter. Ratings are permuted by a generator seeded with
// seed and dealt into k contiguous folds whose sizes differ by at most one.
func NewKFoldSplitter(k int, seed int64) Splitter {
	return func(data *dataset.Dataset) (trainFolds, testFolds []*dataset.Dataset) {
		trainFolds = make([]*dataset.Dataset, k)
		testFolds = make([]*dataset.Dataset, k)
		// Check nil
		if data == nil || k <= 0 {
			return
		}
		// Generate permutation
		rng := base.NewRandomGenerator(seed)
		perm := rng.Perm(data.Count())
		// Split folds
		foldSize := data.Count() / k
		begin, end := 0, 0
		for i := 0; i < k; i++ {
			end += foldSize
			if i < data.Count()%k {
				end++
			}
			// Test data
			testFolds[i] = data.Subset(perm[begin:end])
			// Train data
			trainIndex := make([]int, 0, data.Count()-(end-begin))
			trainIndex = append(trainIndex, perm[:begin]...)
			trainIndex = append(trainIndex, perm[end:]...)
			trainFolds[i] = data.Subset(trainIndex)
			begin = end
		}
		return trainFolds, testFolds
	}
}
