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
	"fmt"
	"io"

	"github.com/gorse-io/restaurant-recommender/config"
	"github.com/juju/errors"
)

// Store saves trained models as named blobs.
type Store interface {
	// Open a blob for reading.
	Open(name string) (io.ReadCloser, error)
	// Create a blob for writing. The done channel is closed once the content is persisted
	// after the writer is closed.
	Create(name string) (io.WriteCloser, chan struct{}, error)
	// List names of all blobs.
	List() ([]string, error)
	// Remove a blob.
	Remove(name string) error
}

// Open a model store from configuration.
func Open(cfg config.ModelStoreConfig) (Store, error) {
	switch cfg.Type {
	case config.ModelStorePOSIX, "":
		return NewPOSIX(cfg.Dir), nil
	case config.ModelStoreS3:
		return NewS3(cfg.S3)
	case config.ModelStoreGCS:
		return NewGCS(cfg.GCS)
	case config.ModelStoreAzure:
		return NewAzureBlob(cfg.Azure, cfg.Azure.Container, cfg.Azure.Prefix)
	}
	return nil, errors.NotValidf("model store %q", cfg.Type)
}

// BlobName returns the name of the blob storing a model.
func BlobName(id int64) string {
	return fmt.Sprintf("mf-%d.bin", id)
}

// Write creates a blob, writes it with fn and waits until it is persisted.
func Write(store Store, name string, fn func(w io.Writer) error) error {
	w, done, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = fn(w); err != nil {
		if aborter, ok := w.(interface{ CloseWithError(error) error }); ok {
			_ = aborter.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		<-done
		return errors.Trace(err)
	}
	err = w.Close()
	<-done
	return errors.Trace(err)
}

// Read opens a blob and reads it with fn.
func Read(store Store, name string, fn func(r io.Reader) error) error {
	r, err := store.Open(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()
	return errors.Trace(fn(r))
}

// uploader streams written bytes to upload running in the background. Close waits for the upload
// and returns its error.
type uploader struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

func newUploader(upload func(r io.Reader) error) (*uploader, chan struct{}) {
	pr, pw := io.Pipe()
	u := &uploader{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(u.done)
		u.err = upload(pr)
		_ = pr.CloseWithError(u.err)
	}()
	return u, u.done
}

func (u *uploader) Close() error {
	if err := u.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	<-u.done
	return u.err
}
