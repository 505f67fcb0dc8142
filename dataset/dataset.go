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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/restaurant-recommender/base"
	"github.com/samber/lo"
)

const (
	UserKind       = "user"
	RestaurantKind = "restaurant"
)

// Rating is a rating given by a user to a restaurant.
type Rating struct {
	UserId         string
	RestaurantName string
	TotalRating    int
}

// Dataset is an immutable rating corpus together with its encoded view. Users and restaurants
// are encoded in first-seen order.
type Dataset struct {
	ratings      []Rating
	userIndex    *base.Index
	itemIndex    *base.Index
	userIds      []int32
	itemIds      []int32
	values       []float32
	userFeedback [][]int32
	itemFeedback [][]int32
}

// NewDataset creates a dataset from ratings and fits encoders of users and restaurants.
func NewDataset(ratings []Rating) *Dataset {
	userIndex := base.NewMapIndex(UserKind)
	itemIndex := base.NewMapIndex(RestaurantKind)
	for _, r := range ratings {
		userIndex.Add(r.UserId)
		itemIndex.Add(r.RestaurantName)
	}
	return newDatasetWithIndex(ratings, userIndex, itemIndex)
}

func newDatasetWithIndex(ratings []Rating, userIndex, itemIndex *base.Index) *Dataset {
	d := &Dataset{
		ratings:      ratings,
		userIndex:    userIndex,
		itemIndex:    itemIndex,
		userIds:      make([]int32, len(ratings)),
		itemIds:      make([]int32, len(ratings)),
		values:       make([]float32, len(ratings)),
		userFeedback: make([][]int32, userIndex.Len()),
		itemFeedback: make([][]int32, itemIndex.Len()),
	}
	for i, r := range ratings {
		userId := userIndex.ToNumber(r.UserId)
		itemId := itemIndex.ToNumber(r.RestaurantName)
		d.userIds[i] = userId
		d.itemIds[i] = itemId
		d.values[i] = float32(r.TotalRating)
		d.userFeedback[userId] = append(d.userFeedback[userId], itemId)
		d.itemFeedback[itemId] = append(d.itemFeedback[itemId], userId)
	}
	return d
}

// Subset creates a dataset over the ratings at indices. The subset shares encoders with the parent
// dataset, so that models trained on different subsets live in the same index space.
func (d *Dataset) Subset(indices []int) *Dataset {
	ratings := make([]Rating, len(indices))
	for i, index := range indices {
		ratings[i] = d.ratings[index]
	}
	return newDatasetWithIndex(ratings, d.userIndex, d.itemIndex)
}

// Count returns the number of ratings.
func (d *Dataset) Count() int {
	return len(d.ratings)
}

// CountUsers returns the number of encoded users.
func (d *Dataset) CountUsers() int {
	return int(d.userIndex.Len())
}

// CountItems returns the number of encoded restaurants.
func (d *Dataset) CountItems() int {
	return int(d.itemIndex.Len())
}

func (d *Dataset) GetRatings() []Rating {
	return d.ratings
}

func (d *Dataset) GetUserIndex() *base.Index {
	return d.userIndex
}

func (d *Dataset) GetItemIndex() *base.Index {
	return d.itemIndex
}

// GetUserIds returns encoded users of ratings.
func (d *Dataset) GetUserIds() []int32 {
	return d.userIds
}

// GetItemIds returns encoded restaurants of ratings.
func (d *Dataset) GetItemIds() []int32 {
	return d.itemIds
}

// GetValues returns ratings as floats.
func (d *Dataset) GetValues() []float32 {
	return d.values
}

// GetUserFeedback returns encoded restaurants rated by each user.
func (d *Dataset) GetUserFeedback() [][]int32 {
	return d.userFeedback
}

// GetItemFeedback returns encoded users who rated each restaurant.
func (d *Dataset) GetItemFeedback() [][]int32 {
	return d.itemFeedback
}

// Users returns users with at least one rating in first-seen order.
func (d *Dataset) Users() []string {
	return lo.Filter(d.userIndex.GetNames(), func(_ string, i int) bool {
		return len(d.userFeedback[i]) > 0
	})
}

// Restaurants returns restaurants with at least one rating in first-seen order.
func (d *Dataset) Restaurants() []string {
	return lo.Filter(d.itemIndex.GetNames(), func(_ string, i int) bool {
		return len(d.itemFeedback[i]) > 0
	})
}

// RatedBy returns restaurants rated by a user. The set is empty for unknown users.
func (d *Dataset) RatedBy(userId string) mapset.Set[string] {
	rated := mapset.NewThreadUnsafeSet[string]()
	userIndex := d.userIndex.ToNumber(userId)
	if userIndex == base.NotId {
		return rated
	}
	for _, itemIndex := range d.userFeedback[userIndex] {
		rated.Add(d.itemIndex.ToName(itemIndex))
	}
	return rated
}
