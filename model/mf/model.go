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
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"reflect"

	"github.com/bits-and-blooms/bitset"
	"github.com/c-bata/goptuna"
	"github.com/gorse-io/restaurant-recommender/base"
	"github.com/gorse-io/restaurant-recommender/base/encoding"
	"github.com/gorse-io/restaurant-recommender/base/floats"
	"github.com/gorse-io/restaurant-recommender/dataset"
	"github.com/gorse-io/restaurant-recommender/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	// ModelSGD is the name of the SGD trainer in model artifacts and the registry.
	ModelSGD = "sgd"
	// ModelALS is the name of the ALS trainer in model artifacts and the registry.
	ModelALS = "als"

	maxFactors = 1 << 16
)

// Default hyper-parameters.
const (
	DefaultNFactors    = 100
	DefaultNEpochs     = 100
	DefaultLr          = 0.01
	DefaultReg         = 0.1
	DefaultInitMean    = 0
	DefaultInitStdDev  = 0.01
	DefaultRandomState = 0
)

type FitConfig struct {
	Jobs    int
	Verbose int
	// Strict rejects training sets where an encoded user or restaurant has no rating.
	Strict bool
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetStrict(strict bool) *FitConfig {
	config.Strict = strict
	return config
}

func (config *FitConfig) normalize() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	c := *config
	c.Jobs = max(c.Jobs, 1)
	if c.Verbose <= 0 {
		c.Verbose = NewFitConfig().Verbose
	}
	return &c
}

// MatrixFactorization approximates the rating matrix by the product of a user factor matrix and
// a restaurant factor matrix.
type MatrixFactorization interface {
	model.Model
	// Fit learns factors from trainSet. The returned score is measured on validSet if it is not
	// nil, otherwise on trainSet.
	Fit(ctx context.Context, trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error)
	// Predict the rating given by a user to a restaurant.
	Predict(userId, restaurantName string) (float32, error)
	// InternalPredict predicts the rating given by an encoded user to an encoded restaurant.
	InternalPredict(userIndex, itemIndex int32) float32
	// SuggestParams samples hyper-parameters for a search trial.
	SuggestParams(trial goptuna.Trial) model.Params
	// GetUserIndex returns user index.
	GetUserIndex() *base.Index
	// GetItemIndex returns restaurant index.
	GetItemIndex() *base.Index
	// IsUserPredictable returns false if user has no rating and its factor never be trained.
	IsUserPredictable(userIndex int32) bool
	// IsItemPredictable returns false if restaurant has no rating and its factor never be trained.
	IsItemPredictable(itemIndex int32) bool
	// GetUserFactor returns latent factor of a user.
	GetUserFactor(userIndex int32) []float32
	// GetItemFactor returns latent factor of a restaurant.
	GetItemFactor(itemIndex int32) []float32
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
}

type BaseMatrixFactorization struct {
	model.BaseModel
	UserIndex       *base.Index
	ItemIndex       *base.Index
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Model parameters
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
	// Hyper parameters
	nFactors   int
	nEpochs    int
	initMean   float32
	initStdDev float32
}

// SetParams sets hyper-parameters shared by all trainers.
func (baseModel *BaseMatrixFactorization) SetParams(params model.Params) {
	baseModel.BaseModel.SetParams(params)
	baseModel.nFactors = baseModel.Params.GetInt(model.NFactors, DefaultNFactors)
	baseModel.nEpochs = baseModel.Params.GetInt(model.NEpochs, DefaultNEpochs)
	baseModel.initMean = baseModel.Params.GetFloat32(model.InitMean, DefaultInitMean)
	baseModel.initStdDev = baseModel.Params.GetFloat32(model.InitStdDev, DefaultInitStdDev)
}

func (baseModel *BaseMatrixFactorization) validate(trainSet *dataset.Dataset, config *FitConfig) error {
	if baseModel.nFactors <= 0 || baseModel.nFactors > maxFactors {
		return errors.NotValidf("number of factors %d", baseModel.nFactors)
	}
	if baseModel.nEpochs <= 0 {
		return errors.NotValidf("number of epochs %d", baseModel.nEpochs)
	}
	if trainSet == nil || trainSet.Count() == 0 {
		return base.NewInsufficientDataError("no ratings to train")
	}
	if trainSet.CountUsers() == 0 {
		return base.NewInsufficientDataError("no users to train")
	}
	if trainSet.CountItems() == 0 {
		return base.NewInsufficientDataError("no restaurants to train")
	}
	if config.Strict {
		isEmpty := func(feedback []int32, _ int) bool { return len(feedback) == 0 }
		nUsers := len(lo.Filter(trainSet.GetUserFeedback(), isEmpty))
		nItems := len(lo.Filter(trainSet.GetItemFeedback(), isEmpty))
		if nUsers > 0 || nItems > 0 {
			return base.NewInsufficientDataError("%d users and %d restaurants have no ratings to train", nUsers, nItems)
		}
	}
	return nil
}

// Init allocates factors for every encoded user and restaurant of trainSet. Entities encoded
// but absent from trainSet keep their random factors and are marked unpredictable.
func (baseModel *BaseMatrixFactorization) Init(trainSet *dataset.Dataset) {
	baseModel.UserIndex = trainSet.GetUserIndex()
	baseModel.ItemIndex = trainSet.GetItemIndex()
	// reseed so that refitting reproduces the same factors
	baseModel.BaseModel.SetParams(baseModel.Params)
	rng := baseModel.GetRandomGenerator()
	baseModel.UserFactor = rng.NormalMatrix(trainSet.CountUsers(), baseModel.nFactors, baseModel.initMean, baseModel.initStdDev)
	baseModel.ItemFactor = rng.NormalMatrix(trainSet.CountItems(), baseModel.nFactors, baseModel.initMean, baseModel.initStdDev)
	// set user trained flags
	baseModel.UserPredictable = bitset.New(uint(baseModel.UserIndex.Len()))
	for userIndex, feedback := range trainSet.GetUserFeedback() {
		if len(feedback) > 0 {
			baseModel.UserPredictable.Set(uint(userIndex))
		}
	}
	// set item trained flags
	baseModel.ItemPredictable = bitset.New(uint(baseModel.ItemIndex.Len()))
	for itemIndex, feedback := range trainSet.GetItemFeedback() {
		if len(feedback) > 0 {
			baseModel.ItemPredictable.Set(uint(itemIndex))
		}
	}
}

// CountUnpredictable returns the number of encoded users and restaurants whose factors were not
// trained.
func CountUnpredictable(m MatrixFactorization) (nUsers, nItems int) {
	for userIndex := int32(0); userIndex < m.GetUserIndex().Len(); userIndex++ {
		if !m.IsUserPredictable(userIndex) {
			nUsers++
		}
	}
	for itemIndex := int32(0); itemIndex < m.GetItemIndex().Len(); itemIndex++ {
		if !m.IsItemPredictable(itemIndex) {
			nItems++
		}
	}
	return
}

func (baseModel *BaseMatrixFactorization) GetUserIndex() *base.Index {
	return baseModel.UserIndex
}

func (baseModel *BaseMatrixFactorization) GetItemIndex() *base.Index {
	return baseModel.ItemIndex
}

// IsUserPredictable returns false if user has no rating and its factor never be trained.
func (baseModel *BaseMatrixFactorization) IsUserPredictable(userIndex int32) bool {
	if userIndex >= baseModel.UserIndex.Len() || userIndex < 0 {
		return false
	}
	return baseModel.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if restaurant has no rating and its factor never be trained.
func (baseModel *BaseMatrixFactorization) IsItemPredictable(itemIndex int32) bool {
	if itemIndex >= baseModel.ItemIndex.Len() || itemIndex < 0 {
		return false
	}
	return baseModel.ItemPredictable.Test(uint(itemIndex))
}

// GetUserFactor returns the latent factor of a user.
func (baseModel *BaseMatrixFactorization) GetUserFactor(userIndex int32) []float32 {
	return baseModel.UserFactor[userIndex]
}

// GetItemFactor returns the latent factor of a restaurant.
func (baseModel *BaseMatrixFactorization) GetItemFactor(itemIndex int32) []float32 {
	return baseModel.ItemFactor[itemIndex]
}

// Predict the rating given by a user to a restaurant. Unknown identifiers are reported as
// UnknownCategoryError.
func (baseModel *BaseMatrixFactorization) Predict(userId, restaurantName string) (float32, error) {
	if baseModel.Invalid() {
		return 0, errors.NotValidf("untrained model")
	}
	userIndex, err := baseModel.UserIndex.Encode(userId)
	if err != nil {
		return 0, errors.Trace(err)
	}
	itemIndex, err := baseModel.ItemIndex.Encode(restaurantName)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return baseModel.InternalPredict(userIndex, itemIndex), nil
}

// InternalPredict returns the dot product of the user factor and the restaurant factor.
func (baseModel *BaseMatrixFactorization) InternalPredict(userIndex, itemIndex int32) float32 {
	return floats.Dot(baseModel.UserFactor[userIndex], baseModel.ItemFactor[itemIndex])
}

func (baseModel *BaseMatrixFactorization) Clear() {
	baseModel.UserIndex = nil
	baseModel.ItemIndex = nil
	baseModel.UserPredictable = nil
	baseModel.ItemPredictable = nil
	baseModel.ItemFactor = nil
	baseModel.UserFactor = nil
}

func (baseModel *BaseMatrixFactorization) Invalid() bool {
	return baseModel == nil ||
		baseModel.UserIndex == nil ||
		baseModel.ItemIndex == nil ||
		baseModel.ItemFactor == nil ||
		baseModel.UserFactor == nil
}

// Marshal model into byte stream.
func (baseModel *BaseMatrixFactorization) Marshal(w io.Writer) error {
	if baseModel.Invalid() {
		return errors.NotValidf("untrained model")
	}
	// write params
	if err := encoding.WriteGob(w, baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// write indices
	if err := base.MarshalIndex(w, baseModel.UserIndex); err != nil {
		return errors.Trace(err)
	}
	if err := base.MarshalIndex(w, baseModel.ItemIndex); err != nil {
		return errors.Trace(err)
	}
	// write predictable flags
	if err := writeBitSet(w, baseModel.UserPredictable, baseModel.UserIndex.Len()); err != nil {
		return errors.Trace(err)
	}
	if err := writeBitSet(w, baseModel.ItemPredictable, baseModel.ItemIndex.Len()); err != nil {
		return errors.Trace(err)
	}
	// write factors
	if err := binary.Write(w, binary.LittleEndian, int32(baseModel.nFactors)); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, baseModel.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, baseModel.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (baseModel *BaseMatrixFactorization) Unmarshal(r io.Reader) error {
	// read params
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	baseModel.SetParams(params)
	// read indices
	var err error
	if baseModel.UserIndex, err = base.UnmarshalIndex(r); err != nil {
		return errors.Trace(err)
	}
	if baseModel.ItemIndex, err = base.UnmarshalIndex(r); err != nil {
		return errors.Trace(err)
	}
	// read predictable flags
	if baseModel.UserPredictable, err = readBitSet(r, baseModel.UserIndex.Len()); err != nil {
		return errors.Trace(err)
	}
	if baseModel.ItemPredictable, err = readBitSet(r, baseModel.ItemIndex.Len()); err != nil {
		return errors.Trace(err)
	}
	// read factors
	var nFactors int32
	if err = binary.Read(r, binary.LittleEndian, &nFactors); err != nil {
		return errors.Trace(err)
	}
	if int(nFactors) != baseModel.nFactors || nFactors <= 0 || nFactors > maxFactors {
		return errors.NotValidf("number of factors %d (params %d)", nFactors, baseModel.nFactors)
	}
	baseModel.UserFactor = make([][]float32, baseModel.UserIndex.Len())
	for i := range baseModel.UserFactor {
		baseModel.UserFactor[i] = make([]float32, nFactors)
	}
	if err = encoding.ReadMatrix(r, baseModel.UserFactor); err != nil {
		return errors.Trace(err)
	}
	baseModel.ItemFactor = make([][]float32, baseModel.ItemIndex.Len())
	for i := range baseModel.ItemFactor {
		baseModel.ItemFactor[i] = make([]float32, nFactors)
	}
	if err = encoding.ReadMatrix(r, baseModel.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func writeBitSet(w io.Writer, b *bitset.BitSet, n int32) error {
	words := make([]uint64, (n+63)/64)
	for i := uint(0); i < uint(n); i++ {
		if b.Test(i) {
			words[i/64] |= 1 << (i % 64)
		}
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, words))
}

func readBitSet(r io.Reader, n int32) (*bitset.BitSet, error) {
	words := make([]uint64, (n+63)/64)
	if err := binary.Read(r, binary.LittleEndian, words); err != nil {
		return nil, errors.Trace(err)
	}
	b := bitset.New(uint(n))
	for i, word := range words {
		for j := 0; j < 64 && i*64+j < int(n); j++ {
			if word&(1<<uint(j)) != 0 {
				b.Set(uint(i*64 + j))
			}
		}
	}
	return b, nil
}

// GetModelName returns the name written in the header of model artifacts.
func GetModelName(m MatrixFactorization) string {
	switch m.(type) {
	case *SGD:
		return ModelSGD
	case *ALS:
		return ModelALS
	default:
		return reflect.TypeOf(m).String()
	}
}

// NewModel creates an untrained model by name.
func NewModel(name string, params model.Params) (MatrixFactorization, error) {
	switch name {
	case ModelSGD:
		return NewSGD(params), nil
	case ModelALS:
		return NewALS(params), nil
	}
	return nil, errors.NotValidf("model %q", name)
}

// MarshalModel writes the model name followed by the model.
func MarshalModel(w io.Writer, m MatrixFactorization) error {
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalModel reads a model written by MarshalModel. Any failure is a PersistenceError.
func UnmarshalModel(r io.Reader) (MatrixFactorization, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, base.NewPersistenceError(err)
	}
	m, err := NewModel(name, nil)
	if err != nil {
		return nil, base.NewPersistenceError(err)
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, base.NewPersistenceError(err)
	}
	return m, nil
}

// Save writes a model to a file.
func Save(path string, m MatrixFactorization) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	writer := bufio.NewWriter(file)
	if err = MarshalModel(writer, m); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	if err = writer.Flush(); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	return errors.Trace(file.Close())
}

// Load reads a model from a file.
func Load(path string) (MatrixFactorization, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, base.NewPersistenceError(err)
	}
	defer file.Close()
	m, err := UnmarshalModel(bufio.NewReader(file))
	if err != nil {
		return nil, errors.Annotate(err, path)
	}
	return m, nil
}
