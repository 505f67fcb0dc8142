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
	"fmt"

	"github.com/juju/errors"
)

// ParseError is returned when a row of the input file is malformed.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d (%q): %s", e.Line, e.Text, e.Reason)
}

// InsufficientDataError is returned when a dataset is empty or too small for an operation.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return "insufficient data: " + e.Reason
}

// UnknownCategoryError is returned when an identifier has no encoding.
type UnknownCategoryError struct {
	Kind  string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.Value)
}

// PersistenceError is returned when a saved model is corrupt or incompatible.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "failed to load model: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewInsufficientDataError creates a traced InsufficientDataError.
func NewInsufficientDataError(format string, args ...any) error {
	return errors.Trace(&InsufficientDataError{Reason: fmt.Sprintf(format, args...)})
}

// NewPersistenceError wraps err into a traced PersistenceError. It returns nil if err is nil.
func NewPersistenceError(err error) error {
	if err == nil {
		return nil
	}
	var persistenceError *PersistenceError
	if errors.As(err, &persistenceError) {
		return err
	}
	return errors.Trace(&PersistenceError{Err: err})
}

func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

func IsInsufficientDataError(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

func IsUnknownCategoryError(err error) bool {
	var target *UnknownCategoryError
	return errors.As(err, &target)
}

func IsPersistenceError(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
