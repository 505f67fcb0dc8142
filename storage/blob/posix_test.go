// Copyright 2024 gorse Project Authors
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


package blob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPOSIX(t *testing.T) {
	testStore(t, NewPOSIX(filepath.Join(t.TempDir(), "blob")))
}

func TestPOSIXNested(t *testing.T) {
	client := NewPOSIX(t.TempDir())
	w, done, err := client.Create("a/b/model.bin")
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	<-done
	names, err := client.List()
	assert.NoError(t, err)
	assert.Equal(t, []string{"a/b/model.bin"}, names)
}

func TestPOSIXNotExist(t *testing.T) {
	client := NewPOSIX(filepath.Join(t.TempDir(), "missing"))
	names, err := client.List()
	assert.NoError(t, err)
	assert.Empty(t, names)
	_, err = client.Open("model.bin")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
