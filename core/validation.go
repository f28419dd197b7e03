// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strings"
)

// ValidateCatalogRecord validates a CatalogRecord according to domain rules.
//
// Validation rules:
//   - ID must not be blank
//   - Title must not be blank
//
// NOT validated (optional in the catalog):
//   - Author, PublicationDate, Materials
func ValidateCatalogRecord(record *CatalogRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidCatalogRecord)
	}

	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCatalogRecord, ErrEmptyID)
	}

	if strings.TrimSpace(record.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCatalogRecord, ErrEmptyTitle)
	}

	return nil
}

// ValidateEnrichedRecord validates an EnrichedRecord. On top of the catalog
// rules the derived embedding text must be present.
func ValidateEnrichedRecord(record *EnrichedRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEnrichedRecord)
	}

	if err := ValidateCatalogRecord(&record.CatalogRecord); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnrichedRecord, err)
	}

	if strings.TrimSpace(record.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEnrichedRecord, ErrEmptyText)
	}

	return nil
}

// ValidateVector validates an EmbeddingVector before it is stored.
func ValidateVector(vector *EmbeddingVector) error {
	if vector == nil {
		return fmt.Errorf("%w: vector is nil", ErrInvalidVector)
	}

	if vector.CatalogID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidVector, ErrEmptyID)
	}

	if len(vector.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidVector, ErrEmptyVector)
	}

	return nil
}
