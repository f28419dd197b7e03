package core

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Serializers for the records kept in the index store. Field order is part of
// the on-disk format; append new fields at the end.

var (
	IDMUS              = idMUS{}
	EnrichedRecordMUS  = enrichedRecordMUS{}
	EmbeddingVectorMUS = embeddingVectorMUS{}
	IndexMetaMUS       = indexMetaMUS{}
)

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

type enrichedRecordMUS struct{}

func (s enrichedRecordMUS) Marshal(v EnrichedRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Author, bs[n:])
	n += ord.String.Marshal(v.PublicationDate, bs[n:])
	n += ord.String.Marshal(v.ItemType, bs[n:])
	n += ord.Bool.Marshal(v.Available, bs[n:])
	n += ord.String.Marshal(v.Description, bs[n:])
	n += marshalMaterials(v.Materials, bs[n:])
	n += ord.String.Marshal(v.Subjects, bs[n:])
	n += ord.String.Marshal(v.Summary, bs[n:])
	n += marshalStrings(v.Contributors, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.SourceHash, bs[n:])
	return
}

func (s enrichedRecordMUS) Unmarshal(bs []byte) (v EnrichedRecord, n int, err error) {
	var n1 int
	fields := []*string{&v.ID, &v.Title, &v.Author, &v.PublicationDate, &v.ItemType}
	for _, f := range fields {
		*f, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	v.Available, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Description, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Materials, n1, err = unmarshalMaterials(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Subjects, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Summary, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Contributors, n1, err = unmarshalStrings(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s enrichedRecordMUS) Size(v EnrichedRecord) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Author)
	size += ord.String.Size(v.PublicationDate)
	size += ord.String.Size(v.ItemType)
	size += ord.Bool.Size(v.Available)
	size += ord.String.Size(v.Description)
	size += sizeMaterials(v.Materials)
	size += ord.String.Size(v.Subjects)
	size += ord.String.Size(v.Summary)
	size += sizeStrings(v.Contributors)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.SourceHash)
	return
}

type embeddingVectorMUS struct{}

func (s embeddingVectorMUS) Marshal(v EmbeddingVector, bs []byte) (n int) {
	n = IDMUS.Marshal(v.RecordID, bs)
	n += ord.String.Marshal(v.CatalogID, bs[n:])
	n += ord.String.Marshal(v.SourceHash, bs[n:])
	n += ord.String.Marshal(v.Model, bs[n:])
	n += marshalFloats(v.Vector, bs[n:])
	n += marshalTime(v.EmbeddedAt, bs[n:])
	return
}

func (s embeddingVectorMUS) Unmarshal(bs []byte) (v EmbeddingVector, n int, err error) {
	var n1 int
	v.RecordID, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.CatalogID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Model, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = unmarshalFloats(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.EmbeddedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (s embeddingVectorMUS) Size(v EmbeddingVector) (size int) {
	size = IDMUS.Size(v.RecordID)
	size += ord.String.Size(v.CatalogID)
	size += ord.String.Size(v.SourceHash)
	size += ord.String.Size(v.Model)
	size += sizeFloats(v.Vector)
	size += sizeTime(v.EmbeddedAt)
	return
}

type indexMetaMUS struct{}

func (s indexMetaMUS) Marshal(v IndexMeta, bs []byte) (n int) {
	n = ord.String.Marshal(v.Model, bs)
	n += varint.Int.Marshal(v.Dimension, bs[n:])
	n += varint.Int.Marshal(v.Count, bs[n:])
	n += marshalTime(v.BuiltAt, bs[n:])
	return
}

func (s indexMetaMUS) Unmarshal(bs []byte) (v IndexMeta, n int, err error) {
	var n1 int
	v.Model, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Dimension, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Count, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.BuiltAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (s indexMetaMUS) Size(v IndexMeta) (size int) {
	return ord.String.Size(v.Model) +
		varint.Int.Size(v.Dimension) +
		varint.Int.Size(v.Count) +
		sizeTime(v.BuiltAt)
}

// Timestamps are stored as Unix microseconds in UTC. The zero time round-trips
// as the zero time.

func marshalTime(t time.Time, bs []byte) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}

func marshalStrings(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return
}

func unmarshalStrings(bs []byte) (v []string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	if length < 0 {
		return nil, n, ErrCorruptData
	}
	v = make([]string, length)
	var n1 int
	for i := range v {
		v[i], n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func sizeStrings(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return
}

func marshalFloats(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return
}

func unmarshalFloats(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	if length < 0 {
		return nil, n, ErrCorruptData
	}
	v = make([]float32, length)
	var (
		bits uint32
		n1   int
	)
	for i := range v {
		bits, n1, err = varint.Uint32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		v[i] = math.Float32frombits(bits)
	}
	return
}

func sizeFloats(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return
}

func marshalMaterials(v []Material, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, m := range v {
		n += ord.String.Marshal(m.Name, bs[n:])
		n += ord.String.Marshal(m.Type, bs[n:])
		n += ord.String.Marshal(m.CallNumber, bs[n:])
		n += varint.Int.Marshal(len(m.Editions), bs[n:])
		for _, e := range m.Editions {
			n += ord.String.Marshal(e.ID, bs[n:])
			n += ord.String.Marshal(e.PublicationDate, bs[n:])
		}
	}
	return
}

func unmarshalMaterials(bs []byte) (v []Material, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	if length < 0 {
		return nil, n, ErrCorruptData
	}
	v = make([]Material, length)
	var n1 int
	for i := range v {
		m := &v[i]
		for _, f := range []*string{&m.Name, &m.Type, &m.CallNumber} {
			*f, n1, err = ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
		var editions int
		editions, n1, err = varint.Int.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		if editions < 0 {
			err = ErrCorruptData
			return
		}
		if editions == 0 {
			continue
		}
		m.Editions = make([]Edition, editions)
		for j := range m.Editions {
			m.Editions[j].ID, n1, err = ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			m.Editions[j].PublicationDate, n1, err = ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	return
}

func sizeMaterials(v []Material) (size int) {
	size = varint.Int.Size(len(v))
	for _, m := range v {
		size += ord.String.Size(m.Name)
		size += ord.String.Size(m.Type)
		size += ord.String.Size(m.CallNumber)
		size += varint.Int.Size(len(m.Editions))
		for _, e := range m.Editions {
			size += ord.String.Size(e.ID)
			size += ord.String.Size(e.PublicationDate)
		}
	}
	return
}
