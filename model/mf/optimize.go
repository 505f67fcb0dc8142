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

package mf

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/base/progress"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/gorse-io/restaurant-recommender/storage/meta"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ModelSearch searches model types and hyper-parameters with a goptuna study. Every trial is
// scored by the mean RMSE of k-fold cross validation.
type ModelSearch struct {
	ctx           context.Context
	modelCreators map[string]ModelCreator
	modelTypes    []string
	data          *dataset.Dataset
	folds         int
	seed          int64
	config        *FitConfig

	mu     sync.Mutex
	found  bool
	result meta.Model[Score]
}

func NewModelSearch(models map[string]ModelCreator, data *dataset.Dataset, folds int, seed int64, config *FitConfig) *ModelSearch {
	modelTypes := lo.Keys(models)
	sort.Strings(modelTypes)
	return &ModelSearch{
		ctx:           context.Background(),
		modelCreators: models,
		modelTypes:    modelTypes,
		data:          data,
		folds:         folds,
		seed:          seed,
		config:        config,
	}
}

// WithContext sets the context passed to cross validation.
func (ms *ModelSearch) WithContext(ctx context.Context) *ModelSearch {
	ms.ctx = ctx
	return ms
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	if len(ms.modelCreators) == 0 {
		return 0, errors.New("no model to search")
	}
	modelType, err := trial.SuggestCategorical("Model", ms.modelTypes)
	if err != nil {
		return 0, errors.Trace(err)
	}
	creator := ms.modelCreators[modelType]
	params := creator().SuggestParams(trial)
	log.Logger().Info("model search trial",
		zap.String("model", modelType),
		zap.Any("params", params))
	result, err := CrossValidate(ms.ctx, func() MatrixFactorization {
		m := creator()
		m.SetParams(m.GetParams().Overwrite(params))
		return m
	}, ms.data, ms.folds, ms.seed, ms.config)
	if err != nil {
		return 0, errors.Trace(err)
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.found || result.Mean.BetterThan(ms.result.Score) {
		ms.found = true
		ms.result = meta.Model[Score]{
			Type:   modelType,
			Params: params,
			Score:  result.Mean,
		}
	}
	return float64(result.Mean.RMSE), nil
}

// Result returns the best model found so far.
func (ms *ModelSearch) Result() meta.Model[Score] {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.result
}

// Search runs nTrials trials with the TPE sampler and returns the best model.
func (ms *ModelSearch) Search(ctx context.Context, nTrials int) (meta.Model[Score], error) {
	ms.ctx = ctx
	study, err := goptuna.CreateStudy("restaurant-recommender",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return meta.Model[Score]{}, errors.Trace(err)
	}
	if err = study.Optimize(ms.Objective, nTrials); err != nil {
		return meta.Model[Score]{}, errors.Trace(err)
	}
	result := ms.Result()
	log.Logger().Info("model search complete",
		zap.String("model", result.Type),
		zap.Any("params", result.Params),
		zap.Float32("rmse", result.Score.RMSE),
		zap.Float32("r2", result.Score.R2))
	return result, nil
}

// ParamsSearchResult contains the return of grid search.
type ParamsSearchResult struct {
	BestScore  Score
	BestParams model.Params
	BestIndex  int
	Scores     []Score
	Params     []model.Params
}

// GridSearchCV cross validates every combination of paramGrid and finds the one with the lowest
// mean RMSE.
func GridSearchCV(ctx context.Context, creator ModelCreator, data *dataset.Dataset, paramGrid model.ParamsGrid,
	folds int, seed int64, config *FitConfig) (ParamsSearchResult, error) {
	combinations := paramGrid.Combinations()
	results := ParamsSearchResult{
		BestIndex: -1,
		Scores:    make([]Score, 0, len(combinations)),
		Params:    make([]model.Params, 0, len(combinations)),
	}
	newCtx, span := progress.Start(ctx, "GridSearchCV", len(combinations))
	for i, params := range combinations {
		log.Logger().Info(fmt.Sprintf("grid search %v/%v", i+1, len(combinations)),
			zap.Any("params", params))
		result, err := CrossValidate(newCtx, func() MatrixFactorization {
			m := creator()
			m.SetParams(m.GetParams().Overwrite(params))
			return m
		}, data, folds, seed, config)
		if err != nil {
			span.Fail(err)
			return ParamsSearchResult{}, errors.Trace(err)
		}
		results.Scores = append(results.Scores, result.Mean)
		results.Params = append(results.Params, params.Copy())
		if results.BestIndex < 0 || result.Mean.BetterThan(results.BestScore) {
			results.BestScore = result.Mean
			results.BestParams = params.Copy()
			results.BestIndex = len(results.Params) - 1
		}
		span.Add(1)
	}
	span.End()
	return results, nil
}
