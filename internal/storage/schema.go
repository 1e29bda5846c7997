/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"certstudio/internal/document"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed schema/template.schema.json
var templateSchemaJSON []byte

// SchemaJSON returns the JSON schema for template records.
func SchemaJSON() []byte { return append([]byte(nil), templateSchemaJSON...) }

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(templateSchemaJSON))
	})
	return schema, schemaErr
}

// SchemaError lists the violations found in a record.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "template record does not match schema: " + strings.Join(e.Problems, "; ")
}

// ErrInvalidRecord matches any *SchemaError through errors.Is.
var ErrInvalidRecord = errors.New("invalid template record")

func (e *SchemaError) Is(target error) bool { return target == ErrInvalidRecord }

// ValidateRecord checks raw record JSON against the embedded schema. Field
// values inside elements stay lenient; only the record structure is enforced.
func ValidateRecord(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &SchemaError{Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, e := range res.Errors() {
		se.Problems = append(se.Problems, e.String())
	}
	return se
}

// DecodeRecord validates data and decodes it into a template.
func DecodeRecord(data []byte) (document.Template, error) {
	var t document.Template
	if err := ValidateRecord(data); err != nil {
		return t, err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("decode record: %w", err)
	}
	return t, nil
}
