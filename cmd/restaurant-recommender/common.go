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
	"context"
	"fmt"
	"io"

	"github.com/gorse-io/restaurant-recommender/base"
	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/base/progress"
	"github.com/gorse-io/restaurant-recommender/config"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/model/mf"
	"github.com/gorse-io/restaurant-recommender/storage/blob"
	"github.com/gorse-io/restaurant-recommender/storage/data"
	"github.com/gorse-io/restaurant-recommender/storage/meta"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// addTrainingFlags registers flags overriding the [training] section.
func addTrainingFlags(flags *pflag.FlagSet) {
	defaultConfig := config.GetDefaultConfig().Training
	flags.String("algorithm", defaultConfig.Algorithm, "training algorithm (sgd or als)")
	flags.Int("rank", defaultConfig.NFactors, "number of latent factors")
	flags.Int("epochs", defaultConfig.NEpochs, "number of training epochs")
	flags.Float64("lr", defaultConfig.Lr, "learning rate of sgd")
	flags.Float64("reg", defaultConfig.Reg, "regularization strength")
	flags.Float64("init-std", defaultConfig.InitStdDev, "standard deviation of initial factors")
	flags.Int64("seed", defaultConfig.RandomState, "random seed")
	flags.Int("jobs", defaultConfig.Jobs, "number of jobs for model fitting")
}

// applyTrainingFlags overwrites the training config by flags set on the command line and
// validates the result.
func applyTrainingFlags(flags *pflag.FlagSet, conf *config.Config) error {
	if flags.Changed("algorithm") {
		conf.Training.Algorithm, _ = flags.GetString("algorithm")
	}
	if flags.Changed("rank") {
		conf.Training.NFactors, _ = flags.GetInt("rank")
	}
	if flags.Changed("epochs") {
		conf.Training.NEpochs, _ = flags.GetInt("epochs")
	}
	if flags.Changed("lr") {
		conf.Training.Lr, _ = flags.GetFloat64("lr")
	}
	if flags.Changed("reg") {
		conf.Training.Reg, _ = flags.GetFloat64("reg")
	}
	if flags.Changed("init-std") {
		conf.Training.InitStdDev, _ = flags.GetFloat64("init-std")
	}
	if flags.Changed("seed") {
		conf.Training.RandomState, _ = flags.GetInt64("seed")
	}
	if flags.Changed("jobs") {
		conf.Training.Jobs, _ = flags.GetInt("jobs")
	}
	return errors.Trace(conf.Validate())
}

// newTracer renders progress of long-running steps on stderr.
func newTracer(cmd *cobra.Command) *progress.Tracer {
	return progress.NewTracer(cmd.Name()).WithProgressBar(cmd.ErrOrStderr())
}

// loadCorpus reads ratings from --data if it is set, or from the configured data store otherwise.
func loadCorpus(ctx context.Context, flags *pflag.FlagSet, conf *config.Config) (*dataset.Dataset, error) {
	if path, _ := flags.GetString("data"); path != "" {
		corpus, err := dataset.LoadTSV(path)
		return corpus, errors.Trace(err)
	}
	if conf.Database.DataStore == "" {
		return nil, errors.NotValidf("ratings source (set --data or database.data_store)")
	}
	database, err := openDataStore(conf)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer database.Close()
	return data.LoadDataset(ctx, database, data.DefaultBatchSize)
}

// registry stores trained models in the model store and tracks the latest one in the meta store.
type registry struct {
	meta  meta.Database
	store blob.Store
}

func openRegistry(conf *config.Config) (*registry, error) {
	if conf.Database.MetaStore == "" {
		return nil, errors.NotValidf("model location (set --model or database.meta_store)")
	}
	metaDB, err := meta.Open(conf.Database.MetaStore)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = metaDB.Init(); err != nil {
		_ = metaDB.Close()
		return nil, errors.Trace(err)
	}
	store, err := blob.Open(conf.ModelStore)
	if err != nil {
		_ = metaDB.Close()
		return nil, errors.Trace(err)
	}
	return &registry{meta: metaDB, store: store}, nil
}

func (r *registry) Close() error {
	return r.meta.Close()
}

// Save uploads a model and registers it as the latest one.
func (r *registry) Save(m mf.MatrixFactorization, score mf.Score) (meta.Model[mf.Score], error) {
	entry := meta.Model[mf.Score]{
		ID:     1,
		Type:   mf.GetModelName(m),
		Params: m.GetParams(),
		Score:  score,
	}
	latest, err := meta.GetModel[mf.Score](r.meta, meta.MATRIX_FACTORIZATION_MODEL)
	if err == nil {
		entry.ID = latest.ID + 1
	} else if !errors.Is(err, errors.NotFound) {
		return entry, errors.Trace(err)
	}
	if err = blob.Write(r.store, blob.BlobName(entry.ID), func(w io.Writer) error {
		return mf.MarshalModel(w, m)
	}); err != nil {
		return entry, errors.Trace(err)
	}
	if err = meta.PutModel(r.meta, meta.MATRIX_FACTORIZATION_MODEL, entry); err != nil {
		return entry, errors.Trace(err)
	}
	log.Logger().Info("save model",
		zap.Int64("id", entry.ID),
		zap.String("type", entry.Type),
		zap.String("blob", blob.BlobName(entry.ID)))
	return entry, nil
}

// Load downloads the latest registered model.
func (r *registry) Load() (mf.MatrixFactorization, meta.Model[mf.Score], error) {
	entry, err := meta.GetModel[mf.Score](r.meta, meta.MATRIX_FACTORIZATION_MODEL)
	if err != nil {
		return nil, entry, errors.Trace(err)
	}
	var m mf.MatrixFactorization
	if err = blob.Read(r.store, blob.BlobName(entry.ID), func(reader io.Reader) error {
		var err error
		m, err = mf.UnmarshalModel(reader)
		return err
	}); err != nil {
		if base.IsPersistenceError(err) {
			return nil, entry, errors.Trace(err)
		}
		return nil, entry, base.NewPersistenceError(err)
	}
	log.Logger().Info("load model",
		zap.Int64("id", entry.ID),
		zap.String("type", entry.Type))
	return m, entry, nil
}

// saveModel writes a model to --model if it is set, or to the registry otherwise.
func saveModel(flags *pflag.FlagSet, conf *config.Config, m mf.MatrixFactorization, score mf.Score) error {
	if path, _ := flags.GetString("model"); path != "" {
		return errors.Trace(mf.Save(path, m))
	}
	r, err := openRegistry(conf)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()
	_, err = r.Save(m, score)
	return errors.Trace(err)
}

// loadModel reads a model from --model if it is set, or the latest model in the registry otherwise.
func loadModel(flags *pflag.FlagSet, conf *config.Config) (mf.MatrixFactorization, error) {
	if path, _ := flags.GetString("model"); path != "" {
		m, err := mf.Load(path)
		return m, errors.Trace(err)
	}
	r, err := openRegistry(conf)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	m, _, err := r.Load()
	return m, errors.Trace(err)
}

// renderTable writes rows as a table.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func formatScore(score mf.Score) []string {
	return []string{fmt.Sprintf("%.4f", score.RMSE), fmt.Sprintf("%.4f", score.R2)}
}
