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
	"context"
	"fmt"

	"github.com/gorse-io/restaurant-recommender/base"
	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/base/parallel"
	"github.com/gorse-io/restaurant-recommender/base/progress"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// ModelCreator creates an untrained model.
type ModelCreator func() MatrixFactorization

// CrossValidateResult contains the score of each fold and their means.
type CrossValidateResult struct {
	Folds []Score
	Mean  Score
}

// CrossValidate evaluates models created by creator with k-fold cross validation. Folds are
// trained concurrently, one model per fold, with config.Jobs workers shared by all folds.
func CrossValidate(ctx context.Context, creator ModelCreator, data *dataset.Dataset, k int, seed int64, config *FitConfig) (CrossValidateResult, error) {
	if k < 2 {
		return CrossValidateResult{}, base.NewInsufficientDataError("cross validation requires at least 2 folds, got %d", k)
	}
	if data == nil || data.Count() < 2*k {
		return CrossValidateResult{}, base.NewInsufficientDataError("%d-fold cross validation requires at least %d ratings, got %d",
			k, 2*k, lo.TernaryF(data == nil, func() int { return 0 }, func() int { return data.Count() }))
	}
	config = config.normalize()
	trainFolds, testFolds := model.NewKFoldSplitter(k, seed)(data)
	// each fold trains with a single job
	foldConfig := NewFitConfig().SetVerbose(config.Verbose)
	scores := make([]Score, k)
	newCtx, span := progress.Start(ctx, "CrossValidate", k)
	err := parallel.Parallel(newCtx, k, config.Jobs, func(_, fold int) error {
		m := creator()
		score, err := m.Fit(newCtx, trainFolds[fold], testFolds[fold], foldConfig)
		if err != nil {
			return errors.Annotatef(err, "fold %d", fold)
		}
		nUsers, nItems := CountUnpredictable(m)
		log.Logger().Info(fmt.Sprintf("cross validate %v/%v", fold+1, k),
			zap.Float32("rmse", score.RMSE),
			zap.Float32("r2", score.R2),
			zap.Int("n_untrained_users", nUsers),
			zap.Int("n_untrained_restaurants", nItems))
		scores[fold] = score
		span.Add(1)
		return nil
	})
	if err != nil {
		span.Fail(err)
		return CrossValidateResult{}, errors.Trace(err)
	}
	span.End()
	result := CrossValidateResult{
		Folds: scores,
		Mean: Score{
			RMSE: float32(stat.Mean(lo.Map(scores, func(s Score, _ int) float64 { return float64(s.RMSE) }), nil)),
			R2:   float32(stat.Mean(lo.Map(scores, func(s Score, _ int) float64 { return float64(s.R2) }), nil)),
		},
	}
	log.Logger().Info("cross validate complete",
		zap.Int("n_folds", k),
		zap.Float32("mean_rmse", result.Mean.RMSE),
		zap.Float32("mean_r2", result.Mean.R2))
	return result, nil
}
