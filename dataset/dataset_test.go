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

package dataset

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

var exampleRatings = []Rating{
	{"U1", "A", 5},
	{"U1", "B", 3},
	{"U2", "A", 4},
	{"U2", "C", 2},
}

func TestNewDataset(t *testing.T) {
	d := NewDataset(exampleRatings)
	assert.Equal(t, 4, d.Count())
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 3, d.CountItems())
	assert.Equal(t, exampleRatings, d.GetRatings())
	assert.Equal(t, []int32{0, 0, 1, 1}, d.GetUserIds())
	assert.Equal(t, []int32{0, 1, 0, 2}, d.GetItemIds())
	assert.Equal(t, []float32{5, 3, 4, 2}, d.GetValues())
	assert.Equal(t, [][]int32{{0, 1}, {0, 2}}, d.GetUserFeedback())
	assert.Equal(t, [][]int32{{0, 1}, {0}, {1}}, d.GetItemFeedback())
	assert.Equal(t, []string{"U1", "U2"}, d.Users())
	assert.Equal(t, []string{"A", "B", "C"}, d.Restaurants())
	assert.Equal(t, "user", d.GetUserIndex().Kind)
	assert.Equal(t, "restaurant", d.GetItemIndex().Kind)
}

func TestDataset_RatedBy(t *testing.T) {
	d := NewDataset(exampleRatings)
	assert.True(t, mapset.NewThreadUnsafeSet("A", "B").Equal(d.RatedBy("U1")))
	assert.True(t, mapset.NewThreadUnsafeSet("A", "C").Equal(d.RatedBy("U2")))
	assert.Zero(t, d.RatedBy("U3").Cardinality())
}

func TestDataset_Subset(t *testing.T) {
	d := NewDataset(exampleRatings)
	s := d.Subset([]int{1, 3})
	assert.Equal(t, 2, s.Count())
	// encoders are shared with the parent
	assert.Same(t, d.GetUserIndex(), s.GetUserIndex())
	assert.Same(t, d.GetItemIndex(), s.GetItemIndex())
	assert.Equal(t, 2, s.CountUsers())
	assert.Equal(t, 3, s.CountItems())
	assert.Equal(t, []int32{0, 1}, s.GetUserIds())
	assert.Equal(t, []int32{1, 2}, s.GetItemIds())
	assert.Equal(t, []float32{3, 2}, s.GetValues())
	// restaurant A has no rating in the subset
	assert.Equal(t, []string{"B", "C"}, s.Restaurants())
	assert.Empty(t, s.Subset(nil).Users())
}

func TestEmptyDataset(t *testing.T) {
	d := NewDataset(nil)
	assert.Zero(t, d.Count())
	assert.Zero(t, d.CountUsers())
	assert.Zero(t, d.CountItems())
	assert.Empty(t, d.Restaurants())
}
