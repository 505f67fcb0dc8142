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

package config

import (
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/gorse-io/restaurant-recommender/model/mf"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	ModelStorePOSIX = "posix"
	ModelStoreS3    = "s3"
	ModelStoreGCS   = "gcs"
	ModelStoreAzure = "azure"
)

// Config is the configuration of the recommender.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	ModelStore ModelStoreConfig `mapstructure:"model_store"`
	Training   TrainingConfig   `mapstructure:"training"`
	CV         CVConfig         `mapstructure:"cv"`
	Tune       TuneConfig       `mapstructure:"tune"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"omitempty,data_store"`
	CacheStore  string `mapstructure:"cache_store" validate:"omitempty,cache_store"`
	MetaStore   string `mapstructure:"meta_store" validate:"omitempty,startswith=sqlite://"`
	TablePrefix string `mapstructure:"table_prefix"`
}

// ModelStoreConfig is the configuration for the storage of trained models.
type ModelStoreConfig struct {
	Type  string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir   string          `mapstructure:"dir" validate:"required_if=Type posix"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

// TrainingConfig is the configuration of matrix factorization training.
type TrainingConfig struct {
	Algorithm   string  `mapstructure:"algorithm" validate:"oneof=sgd als"`
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gt=0"`
	Lr          float64 `mapstructure:"lr" validate:"gt=0"`
	Reg         float64 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float64 `mapstructure:"init_mean"`
	InitStdDev  float64 `mapstructure:"init_std" validate:"gte=0"`
	RandomState int64   `mapstructure:"random_state"`
	Jobs        int     `mapstructure:"jobs" validate:"gt=0"`
	Verbose     int     `mapstructure:"verbose" validate:"gt=0"`
}

// GetParams returns hyper-parameters of the configured model.
func (c *TrainingConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:    c.NFactors,
		model.NEpochs:     c.NEpochs,
		model.Lr:          c.Lr,
		model.Reg:         c.Reg,
		model.InitMean:    c.InitMean,
		model.InitStdDev:  c.InitStdDev,
		model.RandomState: c.RandomState,
	}
}

func (c *TrainingConfig) GetFitConfig() *mf.FitConfig {
	return mf.NewFitConfig().SetJobs(c.Jobs).SetVerbose(c.Verbose)
}

type CVConfig struct {
	// Folds is checked by cross validation, which reports too few folds as insufficient data.
	Folds int   `mapstructure:"folds"`
	Seed  int64 `mapstructure:"seed"`
}

type TuneConfig struct {
	Trials int `mapstructure:"trials" validate:"gt=0"`
}

type RecommendConfig struct {
	TopK     int           `mapstructure:"top_k" validate:"gt=0"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// GetDefaultConfig returns the configuration used when no file is given.
func GetDefaultConfig() *Config {
	return &Config{
		ModelStore: ModelStoreConfig{
			Type: ModelStorePOSIX,
			Dir:  "models",
		},
		Training: TrainingConfig{
			Algorithm:   mf.ModelSGD,
			NFactors:    mf.DefaultNFactors,
			NEpochs:     mf.DefaultNEpochs,
			Lr:          mf.DefaultLr,
			Reg:         mf.DefaultReg,
			InitMean:    mf.DefaultInitMean,
			InitStdDev:  mf.DefaultInitStdDev,
			RandomState: mf.DefaultRandomState,
			Jobs:        1,
			Verbose:     10,
		},
		CV: CVConfig{
			Folds: 5,
		},
		Tune: TuneConfig{
			Trials: 10,
		},
		Recommend: RecommendConfig{
			TopK:     10,
			CacheTTL: 24 * time.Hour,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [model_store]
	v.SetDefault("model_store.type", defaultConfig.ModelStore.Type)
	v.SetDefault("model_store.dir", defaultConfig.ModelStore.Dir)
	// [training]
	v.SetDefault("training.algorithm", defaultConfig.Training.Algorithm)
	v.SetDefault("training.n_factors", defaultConfig.Training.NFactors)
	v.SetDefault("training.n_epochs", defaultConfig.Training.NEpochs)
	v.SetDefault("training.lr", defaultConfig.Training.Lr)
	v.SetDefault("training.reg", defaultConfig.Training.Reg)
	v.SetDefault("training.init_mean", defaultConfig.Training.InitMean)
	v.SetDefault("training.init_std", defaultConfig.Training.InitStdDev)
	v.SetDefault("training.random_state", defaultConfig.Training.RandomState)
	v.SetDefault("training.jobs", defaultConfig.Training.Jobs)
	v.SetDefault("training.verbose", defaultConfig.Training.Verbose)
	// [cv]
	v.SetDefault("cv.folds", defaultConfig.CV.Folds)
	v.SetDefault("cv.seed", defaultConfig.CV.Seed)
	// [tune]
	v.SetDefault("tune.trials", defaultConfig.Tune.Trials)
	// [recommend]
	v.SetDefault("recommend.top_k", defaultConfig.Recommend.TopK)
	v.SetDefault("recommend.cache_ttl", defaultConfig.Recommend.CacheTTL)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"database.data_store", "RESTAURANT_DATA_STORE"},
	{"database.cache_store", "RESTAURANT_CACHE_STORE"},
	{"database.meta_store", "RESTAURANT_META_STORE"},
	{"database.table_prefix", "RESTAURANT_TABLE_PREFIX"},
	{"model_store.type", "RESTAURANT_MODEL_STORE"},
	{"model_store.dir", "RESTAURANT_MODEL_DIR"},
	{"model_store.s3.endpoint", "S3_ENDPOINT"},
	{"model_store.s3.access_key_id", "S3_ACCESS_KEY_ID"},
	{"model_store.s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
	{"model_store.gcs.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS"},
	{"model_store.azure.connection_string", "AZURE_STORAGE_CONNECTION_STRING"},
	{"model_store.azure.account_name", "AZURE_STORAGE_ACCOUNT"},
	{"model_store.azure.account_key", "AZURE_STORAGE_KEY"},
	{"training.jobs", "RESTAURANT_TRAINING_JOBS"},
}

// LoadConfig loads configuration from a TOML file. Values missing from the file take defaults and
// bound environment variables take precedence over both. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Trace(err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
