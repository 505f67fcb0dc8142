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
	"strconv"

	"github.com/gorse-io/restaurant-recommender/config"
	"github.com/gorse-io/restaurant-recommender/model/mf"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

func (c *command) newCVCommand() *cobra.Command {
	cvCommand := &cobra.Command{
		Use:   "cv",
		Short: "Evaluate a model by k-fold cross validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("folds") {
				c.conf.CV.Folds, _ = cmd.Flags().GetInt("folds")
			}
			// the seed splits folds as well as initializes factors
			if cmd.Flags().Changed("seed") {
				c.conf.CV.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if err := applyTrainingFlags(cmd.Flags(), c.conf); err != nil {
				return errors.Trace(err)
			}
			// validate the algorithm before training folds
			if _, err := mf.NewModel(c.conf.Training.Algorithm, nil); err != nil {
				return errors.Trace(err)
			}
			ctx, span := newTracer(cmd).Start(cmd.Context(), "CV", 1)
			corpus, err := loadCorpus(ctx, cmd.Flags(), c.conf)
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			result, err := mf.CrossValidate(ctx, func() mf.MatrixFactorization {
				m, _ := mf.NewModel(c.conf.Training.Algorithm, c.conf.Training.GetParams())
				return m
			}, corpus, c.conf.CV.Folds, c.conf.CV.Seed, c.conf.Training.GetFitConfig())
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			span.End()
			rows := make([][]string, 0, len(result.Folds)+1)
			for i, score := range result.Folds {
				rows = append(rows, append([]string{strconv.Itoa(i + 1)}, formatScore(score)...))
			}
			rows = append(rows, append([]string{"mean"}, formatScore(result.Mean)...))
			return renderTable(cmd.OutOrStdout(), []string{"fold", "RMSE", "R2"}, rows)
		},
	}
	cvCommand.Flags().String("data", "", "ratings file in TSV format")
	cvCommand.Flags().Int("folds", config.GetDefaultConfig().CV.Folds, "number of folds")
	addTrainingFlags(cvCommand.Flags())
	return cvCommand
}

