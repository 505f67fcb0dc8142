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
	"sort"
	"strconv"

	"github.com/gorse-io/restaurant-recommender/config"
	"github.com/gorse-io/restaurant-recommender/model/mf"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func (c *command) newTuneCommand() *cobra.Command {
	tuneCommand := &cobra.Command{
		Use:   "tune",
		Short: "Search hyper-parameters by cross validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("trials") {
				c.conf.Tune.Trials, _ = cmd.Flags().GetInt("trials")
			}
			if cmd.Flags().Changed("folds") {
				c.conf.CV.Folds, _ = cmd.Flags().GetInt("folds")
			}
			if cmd.Flags().Changed("seed") {
				c.conf.CV.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if err := applyTrainingFlags(cmd.Flags(), c.conf); err != nil {
				return errors.Trace(err)
			}
			ctx, span := newTracer(cmd).Start(cmd.Context(), "Tune", 1)
			corpus, err := loadCorpus(ctx, cmd.Flags(), c.conf)
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			params := c.conf.Training.GetParams()
			fitConfig := c.conf.Training.GetFitConfig()

			// Grid search on the configured algorithm
			if grid, _ := cmd.Flags().GetBool("grid"); grid {
				m, err := mf.NewModel(c.conf.Training.Algorithm, params)
				if err != nil {
					span.Fail(err)
					return errors.Trace(err)
				}
				result, err := mf.GridSearchCV(ctx, func() mf.MatrixFactorization {
					m, _ := mf.NewModel(c.conf.Training.Algorithm, params)
					return m
				}, corpus, m.GetParamsGrid(false), c.conf.CV.Folds, c.conf.CV.Seed, fitConfig)
				if err != nil {
					span.Fail(err)
					return errors.Trace(err)
				}
				span.End()
				rows := make([][]string, 0, len(result.Params))
				for i := range result.Params {
					rows = append(rows, append(append([]string{strconv.Itoa(i + 1)}, formatScore(result.Scores[i])...),
						result.Params[i].ToString()))
				}
				if err = renderTable(cmd.OutOrStdout(), []string{"#", "RMSE", "R2", "params"}, rows); err != nil {
					return errors.Trace(err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "best: #%d %s\n", result.BestIndex+1, result.BestParams.ToString())
				return err
			}

			// Random search by TPE over all algorithms unless one is given
			creators := map[string]mf.ModelCreator{
				mf.ModelSGD: func() mf.MatrixFactorization { return mf.NewSGD(params) },
				mf.ModelALS: func() mf.MatrixFactorization { return mf.NewALS(params) },
			}
			if cmd.Flags().Changed("algorithm") {
				creators = lo.PickByKeys(creators, []string{c.conf.Training.Algorithm})
			}
			best, err := mf.NewModelSearch(creators, corpus, c.conf.CV.Folds, c.conf.CV.Seed, fitConfig).
				Search(ctx, c.conf.Tune.Trials)
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			span.End()
			names := lo.Keys(best.Params)
			sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
			rows := [][]string{{"algorithm", best.Type}}
			for _, name := range names {
				rows = append(rows, []string{string(name), fmt.Sprint(best.Params[name])})
			}
			score := formatScore(best.Score)
			rows = append(rows, []string{"RMSE", score[0]}, []string{"R2", score[1]})
			return renderTable(cmd.OutOrStdout(), []string{"param", "value"}, rows)
		},
	}
	defaultConfig := config.GetDefaultConfig()
	tuneCommand.Flags().String("data", "", "ratings file in TSV format")
	tuneCommand.Flags().Int("trials", defaultConfig.Tune.Trials, "number of search trials")
	tuneCommand.Flags().Int("folds", defaultConfig.CV.Folds, "number of folds")
	tuneCommand.Flags().Bool("grid", false, "search the default grid of the algorithm instead")
	addTrainingFlags(tuneCommand.Flags())
	return tuneCommand
}
