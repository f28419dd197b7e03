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

package storage

import (
	"fmt"

	"github.com/poiesic/advisor/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalRecord serializes an EnrichedRecord to bytes.
func MarshalRecord(record *core.EnrichedRecord) []byte {
	buf := make([]byte, core.EnrichedRecordMUS.Size(*record))
	core.EnrichedRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalRecord deserializes an EnrichedRecord from bytes.
func UnmarshalRecord(data []byte) (*core.EnrichedRecord, error) {
	record, _, err := core.EnrichedRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalVector serializes an EmbeddingVector to bytes.
func MarshalVector(vector *core.EmbeddingVector) []byte {
	buf := make([]byte, core.EmbeddingVectorMUS.Size(*vector))
	core.EmbeddingVectorMUS.Marshal(*vector, buf)
	return buf
}

// UnmarshalVector deserializes an EmbeddingVector from bytes.
func UnmarshalVector(data []byte) (*core.EmbeddingVector, error) {
	vector, _, err := core.EmbeddingVectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &vector, nil
}

// MarshalMeta serializes IndexMeta to bytes.
func MarshalMeta(meta *core.IndexMeta) []byte {
	buf := make([]byte, core.IndexMetaMUS.Size(*meta))
	core.IndexMetaMUS.Marshal(*meta, buf)
	return buf
}

// UnmarshalMeta deserializes IndexMeta from bytes.
func UnmarshalMeta(data []byte) (*core.IndexMeta, error) {
	meta, _, err := core.IndexMetaMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &meta, nil
}
