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

package search

import "errors"

var (
	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrRecordRepositoryRequired is returned when a lookup table is not provided.
	ErrRecordRepositoryRequired = errors.New("record repository required")

	// ErrMetaRepositoryRequired is returned when index metadata storage is not provided.
	ErrMetaRepositoryRequired = errors.New("meta repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrIndexNotBuilt is returned when no index has been built in the run directory.
	ErrIndexNotBuilt = errors.New("index not built, run the embed stage first")

	// ErrModelMismatch is returned when the index was built with a different embedding model.
	ErrModelMismatch = errors.New("index was built with a different embedding model")

	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query is empty")
)
