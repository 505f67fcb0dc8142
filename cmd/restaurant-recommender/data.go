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
	"os"

	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/config"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/storage/data"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func openDataStore(conf *config.Config) (data.Database, error) {
	if conf.Database.DataStore == "" {
		return nil, errors.NotValidf("data store (set database.data_store)")
	}
	database, err := data.Open(conf.Database.DataStore, conf.Database.TablePrefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = database.Init(); err != nil {
		_ = database.Close()
		return nil, errors.Trace(err)
	}
	return database, nil
}

func (c *command) newImportCommand() *cobra.Command {
	importCommand := &cobra.Command{
		Use:   "import",
		Short: "Import ratings from a TSV file into the data store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("data")
			if path == "" {
				return errors.NotValidf("ratings file (set --data)")
			}
			file, err := os.Open(path)
			if err != nil {
				return errors.Trace(err)
			}
			defer file.Close()
			ratings, err := dataset.ReadRatings(file)
			if err != nil {
				return errors.Annotate(err, path)
			}
			database, err := openDataStore(c.conf)
			if err != nil {
				return errors.Trace(err)
			}
			defer database.Close()
			if purge, _ := cmd.Flags().GetBool("purge"); purge {
				if err = database.Purge(); err != nil {
					return errors.Trace(err)
				}
			}
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			ctx, span := newTracer(cmd).Start(cmd.Context(), "Import", 1)
			if err = data.Import(ctx, database, ratings, batchSize); err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			span.End()
			log.Logger().Info("import ratings complete",
				zap.String("path", path),
				zap.Int("n_ratings", len(ratings)))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d ratings\n", len(ratings))
			return err
		},
	}
	importCommand.Flags().String("data", "", "ratings file in TSV format")
	importCommand.Flags().Bool("purge", false, "remove existing ratings before importing")
	importCommand.Flags().Int("batch-size", data.DefaultBatchSize, "number of ratings inserted per batch")
	return importCommand
}

func (c *command) newExportCommand() *cobra.Command {
	exportCommand := &cobra.Command{
		Use:   "export",
		Short: "Export ratings from the data store to a TSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				return errors.NotValidf("output file (set --output)")
			}
			database, err := openDataStore(c.conf)
			if err != nil {
				return errors.Trace(err)
			}
			defer database.Close()
			corpus, err := data.LoadDataset(cmd.Context(), database, data.DefaultBatchSize)
			if err != nil {
				return errors.Trace(err)
			}
			file, err := os.Create(path)
			if err != nil {
				return errors.Trace(err)
			}
			if err = dataset.WriteTSV(file, corpus.GetRatings()); err != nil {
				_ = file.Close()
				return errors.Trace(err)
			}
			if err = file.Close(); err != nil {
				return errors.Trace(err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d ratings\n", corpus.Count())
			return err
		},
	}
	exportCommand.Flags().String("output", "", "output file in TSV format")
	return exportCommand
}
