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

// Package storage defines the persistence contracts of the index stage.
//
// Three repositories make up a built index:
//
//   - VectorIndex: embedding vectors plus nearest-neighbor search
//   - RecordRepository: the identifier-to-record lookup table
//   - MetaRepository: model, dimension and build time of the last build
//
// The default implementation (storage/badger) keeps all three in a BadgerDB
// directory inside the run directory. storage/qdrant provides an alternative
// VectorIndex backed by a Qdrant collection; the lookup table and metadata
// stay in badger in that setup.
//
// # Usage
//
//	backend, err := badger.OpenBackend(filepath.Join(runDir, "index"), false)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	vectors := badger.NewVectorRepository(backend)
//	records := badger.NewRecordRepository(backend)
//
// Tests use an in-memory backend:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Context Support
//
// All repository methods accept context.Context. The badger implementation
// checks it between keys during scans; network-backed implementations pass
// it through to their clients.
package storage
