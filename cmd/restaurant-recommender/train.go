// Copyright 2022 gorse Project Authors
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

package main

import (
	"fmt"
	"time"

	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/model/mf"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *command) newTrainCommand() *cobra.Command {
	trainCommand := &cobra.Command{
		Use:   "train",
		Short: "Train a matrix factorization model on ratings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyTrainingFlags(cmd.Flags(), c.conf); err != nil {
				return errors.Trace(err)
			}
			ctx, span := newTracer(cmd).Start(cmd.Context(), "Train", 1)
			corpus, err := loadCorpus(ctx, cmd.Flags(), c.conf)
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			m, err := mf.NewModel(c.conf.Training.Algorithm, c.conf.Training.GetParams())
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			start := time.Now()
			score, err := m.Fit(ctx, corpus, nil, c.conf.Training.GetFitConfig().SetStrict(true))
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			span.End()
			log.Logger().Info("train model complete",
				zap.String("algorithm", c.conf.Training.Algorithm),
				zap.Duration("elapsed", time.Since(start)))
			if err = saveModel(cmd.Flags(), c.conf, m, score); err != nil {
				return errors.Trace(err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "RMSE = %.4f, R2 = %.4f\n", score.RMSE, score.R2)
			return err
		},
	}
	trainCommand.Flags().String("data", "", "ratings file in TSV format")
	trainCommand.Flags().String("model", "", "path of the model file")
	addTrainingFlags(trainCommand.Flags())
	return trainCommand
}
