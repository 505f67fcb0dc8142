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

package heap

import (
	"container/heap"

	"golang.org/x/exp/constraints"
)

type Elem[T any, W constraints.Ordered] struct {
	Value  T
	Weight W
}

type seqElem[T any, W constraints.Ordered] struct {
	Elem[T, W]
	seq int
}

// _heap is a min-heap whose root is the worst element: the lowest weight, and among equal
// weights the latest pushed. NaN weights are worse than any number.
type _heap[T any, W constraints.Ordered] struct {
	elems []seqElem[T, W]
}

func isNaN[W constraints.Ordered](w W) bool {
	return w != w
}

func worse[T any, W constraints.Ordered](a, b seqElem[T, W]) bool {
	if aNaN, bNaN := isNaN(a.Weight), isNaN(b.Weight); aNaN || bNaN {
		if aNaN && bNaN {
			return a.seq > b.seq
		}
		return aNaN
	}
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	return a.seq > b.seq
}

func (e *_heap[T, W]) Len() int {
	return len(e.elems)
}

func (e *_heap[T, W]) Less(i, j int) bool {
	return worse(e.elems[i], e.elems[j])
}

func (e *_heap[T, W]) Swap(i, j int) {
	e.elems[i], e.elems[j] = e.elems[j], e.elems[i]
}

func (e *_heap[T, W]) Push(x interface{}) {
	e.elems = append(e.elems, x.(seqElem[T, W]))
}

func (e *_heap[T, W]) Pop() interface{} {
	old := e.elems
	item := e.elems[len(old)-1]
	e.elems = old[0 : len(old)-1]
	return item
}

// TopKFilter filters out top k items with maximum weights. Items with equal weights are
// ranked by push order, so the result is stable.
type TopKFilter[T any, W constraints.Ordered] struct {
	_heap[T, W]
	k     int
	count int
}

// NewTopKFilter creates a top k filter.
func NewTopKFilter[T any, W constraints.Ordered](k int) *TopKFilter[T, W] {
	return &TopKFilter[T, W]{k: k}
}

// Push pushes the element x onto the heap.
// The complexity is O(log k).
func (filter *TopKFilter[T, W]) Push(item T, weight W) {
	if filter.k <= 0 {
		return
	}
	elem := seqElem[T, W]{Elem: Elem[T, W]{Value: item, Weight: weight}, seq: filter.count}
	filter.count++
	if filter.Len() < filter.k {
		heap.Push(&filter._heap, elem)
	} else if worse(filter.elems[0], elem) {
		filter.elems[0] = elem
		heap.Fix(&filter._heap, 0)
	}
}

// PopAll pops all items in the filter with decreasing order.
func (filter *TopKFilter[T, W]) PopAll() []Elem[T, W] {
	elems := make([]Elem[T, W], filter.Len())
	for i := len(elems) - 1; i >= 0; i-- {
		elems[i] = heap.Pop(&filter._heap).(seqElem[T, W]).Elem
	}
	return elems
}
