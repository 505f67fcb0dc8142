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
	"io"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/chewxy/math32"
	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/base/parallel"
	"github.com/gorse-io/restaurant-recommender/base/progress"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ALS learns factors by alternating least squares on explicit ratings. In each epoch, user factors
// are solved with restaurant factors fixed and then the other way round:
//
//	p_u <- (Q_u^T Q_u + reg * n_u * I)^{-1} Q_u^T r_u
//
// where Q_u stacks the factors of restaurants rated by u, r_u holds the ratings and n_u is the
// number of ratings. Users and restaurants without ratings keep their initial factors.
//
// Hyper-parameters:
//
//	NFactors    - The number of latent factors. Default is 100.
//	NEpochs     - The number of alternations. Default is 100.
//	Reg         - The regularization strength. Default is 0.1.
//	InitMean    - The mean of initial random factors. Default is 0.
//	InitStdDev  - The standard deviation of initial random factors. Default is 0.01.
//	RandomState - The seed of initialization. Default is 0.
type ALS struct {
	BaseMatrixFactorization
	// Hyper parameters
	reg float32
}

// NewALS creates an ALS model.
func NewALS(params model.Params) *ALS {
	als := new(ALS)
	als.SetParams(params)
	return als
}

// SetParams sets hyper-parameters for the ALS model.
func (als *ALS) SetParams(params model.Params) {
	als.BaseMatrixFactorization.SetParams(params)
	als.reg = als.Params.GetFloat32(model.Reg, DefaultReg)
}

func (als *ALS) GetParamsGrid(withSize bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors:   lo.If(withSize, []interface{}{8, 16, 32, 64, 100}).Else([]interface{}{als.nFactors}),
		model.NEpochs:    []interface{}{als.nEpochs},
		model.Reg:        []interface{}{0.001, 0.01, 0.05, 0.1, 0.5},
		model.InitMean:   []interface{}{0},
		model.InitStdDev: []interface{}{0.001, 0.01, 0.1},
	}
}

func (als *ALS) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:    lo.Must(trial.SuggestDiscreteFloat(string(model.NFactors), 8, 128, 8)),
		model.NEpochs:     lo.Must(trial.SuggestDiscreteFloat(string(model.NEpochs), 5, 50, 5)),
		model.Reg:         lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 1)),
		model.InitMean:    0,
		model.InitStdDev:  lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.1)),
		model.RandomState: als.GetRandomState(),
	}
}

// solver holds the buffers of a worker solving normal equations.
type solver struct {
	a    *mat.SymDense
	b    *mat.VecDense
	x    *mat.VecDense
	chol mat.Cholesky
}

func newSolvers(n, nFactors int) []*solver {
	solvers := make([]*solver, n)
	for i := range solvers {
		solvers[i] = &solver{
			a: mat.NewSymDense(nFactors, nil),
			b: mat.NewVecDense(nFactors, nil),
			x: mat.NewVecDense(nFactors, nil),
		}
	}
	return solvers
}

// solve updates target to the regularized least squares solution of ratings against factors.
func (s *solver) solve(target []float32, factors [][]float32, neighbors []int32, ratings []float32, reg float32) error {
	nFactors := len(target)
	s.a.Zero()
	s.b.Zero()
	for k, neighbor := range neighbors {
		factor := factors[neighbor]
		for i := 0; i < nFactors; i++ {
			s.b.SetVec(i, s.b.AtVec(i)+float64(ratings[k]*factor[i]))
			for j := i; j < nFactors; j++ {
				s.a.SetSym(i, j, s.a.At(i, j)+float64(factor[i]*factor[j]))
			}
		}
	}
	lambda := float64(reg) * float64(len(neighbors))
	for i := 0; i < nFactors; i++ {
		s.a.SetSym(i, i, s.a.At(i, i)+lambda)
	}
	if ok := s.chol.Factorize(s.a); !ok {
		return errors.New("normal equation is not positive definite, try a larger regularization")
	}
	if err := s.chol.SolveVecTo(s.x, s.b); err != nil {
		return errors.Trace(err)
	}
	for i := range target {
		target[i] = float32(s.x.AtVec(i))
	}
	return nil
}

// Fit the ALS model. Users (restaurants) are solved in parallel since each solve only reads
// restaurant (user) factors, so the result does not depend on the number of jobs.
func (als *ALS) Fit(ctx context.Context, trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error) {
	config = config.normalize()
	if err := als.validate(trainSet, config); err != nil {
		return Score{}, errors.Trace(err)
	}
	log.Logger().Info("fit als",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_restaurants", trainSet.CountItems()),
		zap.Any("params", als.GetParams()),
		zap.Int("n_jobs", config.Jobs))
	als.Init(trainSet)
	// group ratings by users and restaurants
	userRatings := make([][]float32, trainSet.CountUsers())
	itemRatings := make([][]float32, trainSet.CountItems())
	for i, value := range trainSet.GetValues() {
		userRatings[trainSet.GetUserIds()[i]] = append(userRatings[trainSet.GetUserIds()[i]], value)
		itemRatings[trainSet.GetItemIds()[i]] = append(itemRatings[trainSet.GetItemIds()[i]], value)
	}
	solvers := newSolvers(config.Jobs, als.nFactors)
	newCtx, span := progress.Start(ctx, "ALS.Fit", als.nEpochs)
	for epoch := 1; epoch <= als.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return Score{}, errors.Trace(err)
		}
		fitStart := time.Now()
		// update user factors
		if err := parallel.Parallel(newCtx, trainSet.CountUsers(), config.Jobs, func(workerId, userIndex int) error {
			feedback := trainSet.GetUserFeedback()[userIndex]
			if len(feedback) == 0 {
				return nil
			}
			return errors.Annotatef(
				solvers[workerId].solve(als.UserFactor[userIndex], als.ItemFactor, feedback, userRatings[userIndex], als.reg),
				"user %v", trainSet.GetUserIndex().ToName(int32(userIndex)))
		}); err != nil {
			span.Fail(err)
			return Score{}, errors.Trace(err)
		}
		// update item factors
		if err := parallel.Parallel(newCtx, trainSet.CountItems(), config.Jobs, func(workerId, itemIndex int) error {
			feedback := trainSet.GetItemFeedback()[itemIndex]
			if len(feedback) == 0 {
				return nil
			}
			return errors.Annotatef(
				solvers[workerId].solve(als.ItemFactor[itemIndex], als.UserFactor, feedback, itemRatings[itemIndex], als.reg),
				"restaurant %v", trainSet.GetItemIndex().ToName(int32(itemIndex)))
		}); err != nil {
			span.Fail(err)
			return Score{}, errors.Trace(err)
		}
		if epoch%config.Verbose == 0 || epoch == als.nEpochs {
			cost := float32(0)
			for i, value := range trainSet.GetValues() {
				diff := value - als.InternalPredict(trainSet.GetUserIds()[i], trainSet.GetItemIds()[i])
				cost += diff * diff
			}
			log.Logger().Debug(fmt.Sprintf("fit als %v/%v", epoch, als.nEpochs),
				zap.String("fit_time", time.Since(fitStart).String()),
				zap.Float32("train_rmse", math32.Sqrt(cost/float32(trainSet.Count()))))
		}
		span.Add(1)
	}
	span.End()
	score, err := Evaluate(als, lo.Ternary(validSet != nil, validSet, trainSet))
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	log.Logger().Info("fit als complete",
		zap.Float32("rmse", score.RMSE),
		zap.Float32("r2", score.R2))
	return score, nil
}

// Unmarshal model from byte stream.
func (als *ALS) Unmarshal(r io.Reader) error {
	if err := als.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	als.SetParams(als.Params)
	return nil
}
