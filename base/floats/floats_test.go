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

package floats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulConst(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	MulConst(a, 2)
	assert.Equal(t, []float32{2, 4, 6, 8}, a)
}

func TestMulConstAdd(t *testing.T) {
	a := []float32{0, 1, 2, 3}
	dst := []float32{1, 1, 1, 1}
	MulConstAdd(a, 2, dst)
	assert.Equal(t, []float32{1, 3, 5, 7}, dst)
	assert.Panics(t, func() { MulConstAdd([]float32{1}, 2, dst) })
}

func TestDot(t *testing.T) {
	a := []float32{0, 1, 2, 3, 4}
	b := []float32{0, 1, 2, 3, 4}
	assert.Equal(t, float32(30), Dot(a, b))
	assert.Zero(t, Dot(nil, nil))
	assert.Panics(t, func() { Dot(a, b[:1]) })
}
