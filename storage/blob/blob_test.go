// Copyright 2025 gorse Project Authors
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
	"io"
	"path/filepath"
	"testing"

	"github.com/gorse-io/restaurant-recommender/config"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the same scenario against every backend.
func testStore(t *testing.T, store Store) {
	// write a blob
	w, done, err := store.Create("test.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	<-done

	// write with helper
	err = Write(store, BlobName(1), func(w io.Writer) error {
		_, err := w.Write([]byte("model"))
		return err
	})
	require.NoError(t, err)

	// list blobs
	names, err := store.List()
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"test.txt", "mf-1.bin"}, names)

	// read blobs
	r, err := store.Open("test.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.NoError(t, r.Close())
	err = Read(store, BlobName(1), func(r io.Reader) error {
		data, err := io.ReadAll(r)
		assert.Equal(t, "model", string(data))
		return err
	})
	assert.NoError(t, err)

	// remove blobs
	assert.NoError(t, store.Remove("test.txt"))
	assert.NoError(t, store.Remove(BlobName(1)))
	names, err = store.List()
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestBlobName(t *testing.T) {
	assert.Equal(t, "mf-42.bin", BlobName(42))
	assert.NotEqual(t, BlobName(1), BlobName(2))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(config.ModelStoreConfig{Type: config.ModelStorePOSIX, Dir: dir})
	assert.NoError(t, err)
	assert.IsType(t, &POSIX{}, store)

	_, err = Open(config.ModelStoreConfig{Type: "ftp"})
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = Open(config.ModelStoreConfig{Type: config.ModelStoreAzure})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestWriteError(t *testing.T) {
	store := NewPOSIX(filepath.Join(t.TempDir(), "blob"))
	err := Write(store, "broken", func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("encode failed")
	})
	assert.ErrorContains(t, err, "encode failed")
	names, err := store.List()
	assert.NoError(t, err)
	assert.Empty(t, names)
}
