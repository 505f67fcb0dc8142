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

package base

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/gorse-io/restaurant-recommender/base/encoding"
	"github.com/juju/errors"
)

// Index manages the map between sparse names and dense indices. A sparse name is
// a user ID or a restaurant name. The dense index is the internal user index or
// restaurant index optimized for faster parameter access and less memory usage.
type Index struct {
	Numbers map[string]int32 // sparse name -> dense index
	Names   []string         // dense index -> sparse name
	Kind    string           // used in error messages, e.g. "user"
}

// NotId represents an ID doesn't exist.
const NotId = int32(-1)

// initialIndexCapacity bounds preallocation while decoding untrusted streams.
const initialIndexCapacity = 1 << 16

// NewMapIndex creates an empty Index.
func NewMapIndex(kind string) *Index {
	return &Index{
		Numbers: make(map[string]int32),
		Names:   make([]string, 0),
		Kind:    kind,
	}
}

// FitIndex builds an Index from values. Indices are assigned in first-seen order.
func FitIndex(kind string, values []string) *Index {
	idx := NewMapIndex(kind)
	for _, v := range values {
		idx.Add(v)
	}
	return idx
}

// Len returns the number of indexed names.
func (idx *Index) Len() int32 {
	if idx == nil {
		return 0
	}
	return int32(len(idx.Names))
}

// Add adds a new name to the index.
func (idx *Index) Add(name string) {
	if _, exist := idx.Numbers[name]; !exist {
		idx.Numbers[name] = int32(len(idx.Names))
		idx.Names = append(idx.Names, name)
	}
}

// ToNumber converts a sparse name to a dense index. It returns NotId for unknown names.
func (idx *Index) ToNumber(name string) int32 {
	if denseId, exist := idx.Numbers[name]; exist {
		return denseId
	}
	return NotId
}

// ToName converts a dense index to a sparse name.
func (idx *Index) ToName(index int32) string {
	return idx.Names[index]
}

// Encode converts a sparse name to a dense index. Unknown names are reported as UnknownCategoryError.
func (idx *Index) Encode(name string) (int32, error) {
	if denseId, exist := idx.Numbers[name]; exist {
		return denseId, nil
	}
	return NotId, errors.Trace(&UnknownCategoryError{Kind: idx.Kind, Value: name})
}

// Decode converts a dense index back to its sparse name.
func (idx *Index) Decode(index int32) (string, error) {
	if index < 0 || index >= idx.Len() {
		return "", errors.Trace(&UnknownCategoryError{Kind: idx.Kind + " index", Value: strconv.Itoa(int(index))})
	}
	return idx.Names[index], nil
}

// GetNames returns all names in current index.
func (idx *Index) GetNames() []string {
	return idx.Names
}

// Marshal index into byte stream.
func (idx *Index) Marshal(w io.Writer) error {
	if err := encoding.WriteString(w, idx.Kind); err != nil {
		return errors.Trace(err)
	}
	// write length
	err := binary.Write(w, binary.LittleEndian, int32(len(idx.Names)))
	if err != nil {
		return errors.Trace(err)
	}
	// write names
	for _, s := range idx.Names {
		err = encoding.WriteString(w, s)
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal index from byte stream.
func (idx *Index) Unmarshal(r io.Reader) error {
	var err error
	if idx.Kind, err = encoding.ReadString(r); err != nil {
		return errors.Trace(err)
	}
	// read length
	var n int32
	err = binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return errors.Trace(err)
	}
	if n < 0 {
		return errors.Errorf("invalid index length %d", n)
	}
	// read names
	idx.Names = make([]string, 0, min(n, initialIndexCapacity))
	idx.Numbers = make(map[string]int32, min(n, initialIndexCapacity))
	for i := 0; i < int(n); i++ {
		name, err := encoding.ReadString(r)
		if err != nil {
			return errors.Trace(err)
		}
		idx.Add(name)
	}
	if idx.Len() != n {
		return errors.Errorf("duplicate names in index: expect %d names, got %d", n, idx.Len())
	}
	return nil
}

// MarshalIndex marshal index into byte stream.
func MarshalIndex(w io.Writer, index *Index) error {
	return index.Marshal(w)
}

// UnmarshalIndex unmarshal index from byte stream.
func UnmarshalIndex(r io.Reader) (*Index, error) {
	index := &Index{}
	err := index.Unmarshal(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return index, nil
}
