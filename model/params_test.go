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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_Copy(t *testing.T) {
	// Create parameters
	a := Params{
		NFactors: 1,
		Lr:       0.1,
	}
	// Create copy
	b := a.Copy()
	b[NFactors] = 2
	b[Lr] = 0.2
	// Check original parameters
	assert.Equal(t, 1, a.GetInt(NFactors, -1))
	assert.Equal(t, float32(0.1), a.GetFloat32(Lr, -0.1))
	// Check copy parameters
	assert.Equal(t, 2, b.GetInt(NFactors, -1))
	assert.Equal(t, float32(0.2), b.GetFloat32(Lr, -0.1))
}

func TestParams_GetInt(t *testing.T) {
	p := Params{NFactors: 1, NEpochs: float64(20), Lr: 0.5, InitMean: "a"}
	assert.Equal(t, 1, p.GetInt(NFactors, -1))
	assert.Equal(t, 20, p.GetInt(NEpochs, -1))
	assert.Equal(t, -1, p.GetInt(Lr, -1))
	assert.Equal(t, -1, p.GetInt(InitMean, -1))
	assert.Equal(t, -1, p.GetInt(Reg, -1))
}

func TestParams_GetInt64(t *testing.T) {
	p := Params{RandomState: 1, NEpochs: int64(2), NFactors: float64(3), Lr: "a"}
	assert.Equal(t, int64(1), p.GetInt64(RandomState, -1))
	assert.Equal(t, int64(2), p.GetInt64(NEpochs, -1))
	assert.Equal(t, int64(3), p.GetInt64(NFactors, -1))
	assert.Equal(t, int64(-1), p.GetInt64(Lr, -1))
	assert.Equal(t, int64(-1), p.GetInt64(Reg, -1))
}

func TestParams_GetFloat32(t *testing.T) {
	p := Params{Lr: float32(0.1), Reg: 0.2, NFactors: 3, InitMean: "a"}
	assert.Equal(t, float32(0.1), p.GetFloat32(Lr, -1))
	assert.Equal(t, float32(0.2), p.GetFloat32(Reg, -1))
	assert.Equal(t, float32(3), p.GetFloat32(NFactors, -1))
	assert.Equal(t, float32(-1), p.GetFloat32(InitMean, -1))
	assert.Equal(t, float32(-1), p.GetFloat32(InitStdDev, -1))
}

func TestParams_Overwrite(t *testing.T) {
	a := Params{NFactors: 10, Lr: 0.1}
	b := a.Overwrite(Params{Lr: 0.2, Reg: 0.3})
	assert.Equal(t, Params{NFactors: 10, Lr: 0.2, Reg: 0.3}, b)
	assert.Equal(t, Params{NFactors: 10, Lr: 0.1}, a)
	assert.Equal(t, `{"Lr":0.1,"NFactors":10}`, a.ToString())
}

func TestParamsGrid(t *testing.T) {
	grid := ParamsGrid{
		NFactors: {10, 20},
		Lr:       {0.1, 0.2, 0.3},
	}
	assert.Equal(t, 2, grid.Len())
	assert.Equal(t, 6, grid.NumCombinations())
	assert.Equal(t, []ParamName{Lr, NFactors}, grid.Names())
	assert.Equal(t, []Params{
		{Lr: 0.1, NFactors: 10},
		{Lr: 0.1, NFactors: 20},
		{Lr: 0.2, NFactors: 10},
		{Lr: 0.2, NFactors: 20},
		{Lr: 0.3, NFactors: 10},
		{Lr: 0.3, NFactors: 20},
	}, grid.Combinations())

	grid.Fill(ParamsGrid{Lr: {0.5}, Reg: {0.01}})
	assert.Equal(t, []interface{}{0.1, 0.2, 0.3}, grid[Lr])
	assert.Equal(t, []interface{}{0.01}, grid[Reg])

	assert.Empty(t, ParamsGrid{}.Combinations())
}

func TestBaseModel(t *testing.T) {
	var a, b BaseModel
	a.SetParams(Params{RandomState: 42})
	b.SetParams(Params{RandomState: 42})
	assert.Equal(t, int64(42), a.GetRandomState())
	assert.Equal(t, Params{RandomState: 42}, a.GetParams())
	assert.Equal(t, a.GetRandomGenerator().Int63(), b.GetRandomGenerator().Int63())
}
