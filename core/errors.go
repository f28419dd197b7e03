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

import "errors"

// Domain validation errors
var (
	// ErrInvalidCatalogRecord indicates a CatalogRecord failed validation.
	ErrInvalidCatalogRecord = errors.New("invalid catalog record")

	// ErrInvalidEnrichedRecord indicates an EnrichedRecord failed validation.
	ErrInvalidEnrichedRecord = errors.New("invalid enriched record")

	// ErrInvalidVector indicates an EmbeddingVector failed validation.
	ErrInvalidVector = errors.New("invalid embedding vector")

	// ErrEmptyID indicates the catalog identifier is empty.
	ErrEmptyID = errors.New("identifier cannot be empty")

	// ErrEmptyTitle indicates the title is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyText indicates the derived embedding text is empty.
	ErrEmptyText = errors.New("embedding text cannot be empty")

	// ErrEmptyVector indicates an embedding has no components.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrCorruptData indicates a serialized record could not be decoded.
	ErrCorruptData = errors.New("corrupt serialized data")
)
