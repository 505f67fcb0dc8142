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
	"github.com/gorse-io/restaurant-recommender/base/floats"
	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/base/progress"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SGD learns factors by stochastic gradient descent on the squared error. The predicted rating
// of user u to restaurant i is:
//
//	\hat{r}_{ui} = p_u^T q_i
//
// Hyper-parameters:
//
//	NFactors    - The number of latent factors. Default is 100.
//	NEpochs     - The number of passes over the ratings. Default is 100.
//	Lr          - The learning rate. Default is 0.01.
//	Reg         - The regularization strength. Default is 0.1.
//	InitMean    - The mean of initial random factors. Default is 0.
//	InitStdDev  - The standard deviation of initial random factors. Default is 0.01.
//	RandomState - The seed of initialization and shuffling. Default is 0.
type SGD struct {
	BaseMatrixFactorization
	// Hyper parameters
	lr  float32
	reg float32
}

// NewSGD creates a SGD model.
func NewSGD(params model.Params) *SGD {
	sgd := new(SGD)
	sgd.SetParams(params)
	return sgd
}

// SetParams sets hyper-parameters of the SGD model.
func (sgd *SGD) SetParams(params model.Params) {
	sgd.BaseMatrixFactorization.SetParams(params)
	sgd.lr = sgd.Params.GetFloat32(model.Lr, DefaultLr)
	sgd.reg = sgd.Params.GetFloat32(model.Reg, DefaultReg)
}

func (sgd *SGD) GetParamsGrid(withSize bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors:   lo.If(withSize, []interface{}{8, 16, 32, 64, 100}).Else([]interface{}{sgd.nFactors}),
		model.NEpochs:    []interface{}{sgd.nEpochs},
		model.Lr:         []interface{}{0.001, 0.005, 0.01, 0.05},
		model.Reg:        []interface{}{0.001, 0.01, 0.05, 0.1},
		model.InitMean:   []interface{}{0},
		model.InitStdDev: []interface{}{0.001, 0.01, 0.1},
	}
}

func (sgd *SGD) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:    lo.Must(trial.SuggestDiscreteFloat(string(model.NFactors), 8, 128, 8)),
		model.NEpochs:     lo.Must(trial.SuggestDiscreteFloat(string(model.NEpochs), 10, 200, 10)),
		model.Lr:          lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.05)),
		model.Reg:         lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 1)),
		model.InitMean:    0,
		model.InitStdDev:  lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.1)),
		model.RandomState: sgd.GetRandomState(),
	}
}

// Fit the SGD model. Ratings are visited in a seeded random order in every epoch.
func (sgd *SGD) Fit(ctx context.Context, trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error) {
	config = config.normalize()
	if err := sgd.validate(trainSet, config); err != nil {
		return Score{}, errors.Trace(err)
	}
	log.Logger().Info("fit sgd",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_restaurants", trainSet.CountItems()),
		zap.Any("params", sgd.GetParams()))
	sgd.Init(trainSet)
	userIds, itemIds, values := trainSet.GetUserIds(), trainSet.GetItemIds(), trainSet.GetValues()
	userFactor := make([]float32, sgd.nFactors)
	rng := sgd.GetRandomGenerator()
	_, span := progress.Start(ctx, "SGD.Fit", sgd.nEpochs)
	for epoch := 1; epoch <= sgd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return Score{}, errors.Trace(err)
		}
		fitStart := time.Now()
		cost := float32(0)
		for _, i := range rng.Perm(trainSet.Count()) {
			u, j := userIds[i], itemIds[i]
			diff := values[i] - sgd.InternalPredict(u, j)
			cost += diff * diff
			copy(userFactor, sgd.UserFactor[u])
			// p_u <- p_u + lr * (e * q_i - reg * p_u)
			floats.MulConst(sgd.UserFactor[u], 1-sgd.lr*sgd.reg)
			floats.MulConstAdd(sgd.ItemFactor[j], sgd.lr*diff, sgd.UserFactor[u])
			// q_i <- q_i + lr * (e * p_u - reg * q_i)
			floats.MulConst(sgd.ItemFactor[j], 1-sgd.lr*sgd.reg)
			floats.MulConstAdd(userFactor, sgd.lr*diff, sgd.ItemFactor[j])
		}
		if math32.IsNaN(cost) || math32.IsInf(cost, 0) {
			err := errors.Errorf("sgd diverged at epoch %d, try a smaller learning rate", epoch)
			span.Fail(err)
			return Score{}, err
		}
		if epoch%config.Verbose == 0 || epoch == sgd.nEpochs {
			log.Logger().Debug(fmt.Sprintf("fit sgd %v/%v", epoch, sgd.nEpochs),
				zap.String("fit_time", time.Since(fitStart).String()),
				zap.Float32("train_rmse", math32.Sqrt(cost/float32(trainSet.Count()))))
		}
		span.Add(1)
	}
	span.End()
	score, err := Evaluate(sgd, lo.Ternary(validSet != nil, validSet, trainSet))
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	log.Logger().Info("fit sgd complete",
		zap.Float32("rmse", score.RMSE),
		zap.Float32("r2", score.R2))
	return score, nil
}

// Unmarshal model from byte stream.
func (sgd *SGD) Unmarshal(r io.Reader) error {
	if err := sgd.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	sgd.SetParams(sgd.Params)
	return nil
}
