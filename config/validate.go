// Copyright 2021 gorse Project Authors
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

package config

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var (
	dataStorePrefixes  = []string{"sqlite://", "mysql://", "postgres://", "postgresql://", "mongodb://", "mongodb+srv://"}
	cacheStorePrefixes = []string{"redis://", "rediss://", "sqlite://", "mysql://", "postgres://", "postgresql://"}
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		lo.Must0(validate.RegisterValidation("data_store", hasPrefix(dataStorePrefixes)))
		lo.Must0(validate.RegisterValidation("cache_store", hasPrefix(cacheStorePrefixes)))
	})
	return validate
}

func hasPrefix(prefixes []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return lo.ContainsBy(prefixes, func(prefix string) bool {
			return strings.HasPrefix(value, prefix)
		})
	}
}

// Validate checks values in the configuration.
func (config *Config) Validate() error {
	if err := getValidator().Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fieldError := validationErrors[0]
			return errors.NotValidf("%s (%s=%v)", fieldError.Namespace(), fieldError.Tag(), fieldError.Value())
		}
		return errors.Trace(err)
	}
	return nil
}
