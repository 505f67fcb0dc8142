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

	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/logics"
	"github.com/gorse-io/restaurant-recommender/storage/cache"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *command) newRecommendCommand() *cobra.Command {
	recommendCommand := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend restaurants with a trained model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, _ := cmd.Flags().GetString("user")
			all, _ := cmd.Flags().GetBool("all")
			if userId == "" && !all {
				return errors.NotValidf("user (set --user or --all)")
			}
			topK := c.conf.Recommend.TopK
			if cmd.Flags().Changed("top-k") {
				topK, _ = cmd.Flags().GetInt("top-k")
			}
			m, err := loadModel(cmd.Flags(), c.conf)
			if err != nil {
				return errors.Trace(err)
			}
			ctx, span := newTracer(cmd).Start(cmd.Context(), "Recommend", 1)
			corpus, err := loadCorpus(ctx, cmd.Flags(), c.conf)
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			recommender := logics.NewRecommender(m, corpus)
			if all {
				if c.conf.Database.CacheStore == "" {
					err = errors.NotValidf("cache store (set database.cache_store)")
					span.Fail(err)
					return err
				}
				database, err := cache.Open(c.conf.Database.CacheStore, c.conf.Database.TablePrefix)
				if err != nil {
					span.Fail(err)
					return errors.Trace(err)
				}
				defer database.Close()
				if err = database.Init(); err != nil {
					span.Fail(err)
					return errors.Trace(err)
				}
				if err = recommender.RecommendAll(ctx, topK, c.conf.Training.Jobs, func(userId string, items []logics.Scored) error {
					// users who rated every restaurant have nothing to cache
					if len(items) == 0 {
						return database.DeleteRecommend(ctx, userId)
					}
					return database.SetRecommend(ctx, userId, lo.Map(items, func(item logics.Scored, _ int) cache.Score {
						return cache.Score{Id: item.Id, Score: item.Score}
					}), c.conf.Recommend.CacheTTL)
				}); err != nil {
					span.Fail(err)
					return errors.Trace(err)
				}
				span.End()
				log.Logger().Info("cache recommendations complete",
					zap.Int("n_users", len(corpus.Users())),
					zap.Duration("ttl", c.conf.Recommend.CacheTTL))
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "cached recommendations for %d users\n", len(corpus.Users()))
				return err
			}
			items, err := recommender.Recommend(userId, topK)
			if err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			span.End()
			return renderTable(cmd.OutOrStdout(), []string{"restaurant", "predicted rating"},
				lo.Map(items, func(item logics.Scored, _ int) []string {
					return []string{item.Id, fmt.Sprintf("%.1f", item.Score)}
				}))
		},
	}
	recommendCommand.Flags().String("user", "", "user to recommend for")
	recommendCommand.Flags().Int("top-k", logics.DefaultTopK, "number of recommended restaurants")
	recommendCommand.Flags().String("data", "", "ratings file in TSV format")
	recommendCommand.Flags().String("model", "", "path of the model file")
	recommendCommand.Flags().Bool("all", false, "cache recommendations for all users")
	return recommendCommand
}
