package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVector(t *testing.T) {
	a := DeterministicVector("alpha", 16)
	b := DeterministicVector("alpha", 16)
	c := DeterministicVector("beta", 16)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	require.Len(t, a, 16)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_EmbedTextsUsesEmbedTextFunc(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("boom")
		}
		return []float32{1}, nil
	}

	vectors, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	_, err = m.EmbedTexts(context.Background(), []string{"a", "bad"})
	assert.Error(t, err)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, 2, m.BatchCallCount())

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Nil(t, m.EmbedTextFunc)
}

func TestMockCompleter(t *testing.T) {
	m := NewMockCompleter()

	reply, err := m.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, DefaultReply, reply)
	assert.Equal(t, "sys", m.LastSystem)
	assert.Equal(t, "user", m.LastUser)
	assert.Equal(t, 1, m.CallCount())
}
