package search

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSession(t *testing.T, f *engineFixture, mode Mode, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	session := NewSession(f.engine, mode, strings.NewReader(input), &out, WithTopK(2))
	err := session.Run(context.Background())
	return out.String(), err
}

func TestSession_SearchMode(t *testing.T) {
	f := newEngineFixture(t, scenarioDVDs()...)

	out, err := runSession(t, f, ModeSearch, "dinosaurs\n\nexit\nspace\n")
	require.NoError(t, err)

	assert.Contains(t, out, "search mode, 3 items indexed")
	assert.Contains(t, out, "1. Jurassic Park [DVD, 1993] (score 1.000)")
	assert.Contains(t, out, "A theme park of cloned dinosaurs goes badly wrong.")
	assert.NotContains(t, out, "3. ", "top-k is honored")
	assert.Equal(t, 2, f.embedder.CallCount(), "one build batch and one query; blank lines are skipped and exit stops the loop")
}

func TestSession_ChatMode(t *testing.T) {
	f := newEngineFixture(t, scenarioDVDs()...)
	f.completer.CompleteFunc = func(context.Context, string, string) (string, error) {
		return "- Jurassic Park: a theme park with dinosaurs.", nil
	}

	out, err := runSession(t, f, ModeChat, "dinosaurs\nQUIT\n")
	require.NoError(t, err)
	assert.Contains(t, out, "chat mode")
	assert.Contains(t, out, "- Jurassic Park: a theme park with dinosaurs.")
	assert.Equal(t, 1, f.completer.CallCount())
}

func TestSession_EndOfInput(t *testing.T) {
	f := newEngineFixture(t, scenarioDVDs()...)

	out, err := runSession(t, f, ModeSearch, "cooking")
	require.NoError(t, err)
	assert.Contains(t, out, "Julie & Julia")
}

func TestSession_FailedQueryContinues(t *testing.T) {
	f := newEngineFixture(t, scenarioDVDs()...)
	f.embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "boom") {
			return nil, errors.New("upstream unavailable")
		}
		return keywordVector(text), nil
	}

	out, err := runSession(t, f, ModeSearch, "boom\ndinosaurs\n")
	require.NoError(t, err)
	assert.Contains(t, out, "error: embed query: upstream unavailable")
	assert.Contains(t, out, "Jurassic Park")
}

func TestSession_MissingIndex(t *testing.T) {
	f := newEngineFixture(t)

	_, err := runSession(t, f, ModeSearch, "dinosaurs\n")
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
	assert.Zero(t, f.embedder.CallCount())
}

func TestSession_ContextCanceled(t *testing.T) {
	f := newEngineFixture(t, scenarioDVDs()...)
	ctx, cancel := context.WithCancel(context.Background())
	f.embedder.EmbedTextFunc = func(ctx context.Context, _ string) ([]float32, error) {
		cancel()
		return nil, ctx.Err()
	}

	var out bytes.Buffer
	session := NewSession(f.engine, ModeSearch, strings.NewReader("dinosaurs\nspace\n"), &out)
	err := session.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, out.String(), "error:")
}

func TestSession_CancelWhileWaitingForInput(t *testing.T) {
	f := newEngineFixture(t, scenarioDVDs()...)
	reader, writer := io.Pipe()
	t.Cleanup(func() { writer.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	session := NewSession(f.engine, ModeSearch, reader, &out)

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.engine.State() == StateAwaitingQuery
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "interrupt at the prompt is a normal exit")
	case <-time.After(2 * time.Second):
		t.Fatal("session did not return after cancellation")
	}
	assert.Equal(t, StateIdle, f.engine.State())
	assert.Equal(t, 1, f.embedder.CallCount(), "only the index build embedded anything")
}

func TestSession_States(t *testing.T) {
	f := newEngineFixture(t, scenarioDVDs()...)

	_, err := runSession(t, f, ModeSearch, "dinosaurs\nexit\n")
	require.NoError(t, err)
	assert.Equal(t, []State{
		StateAwaitingQuery,
		StateEmbeddingQuery,
		StateSearching,
		StatePresentingResult,
		StateIdle,
		StateAwaitingQuery,
		StateIdle,
	}, f.recorder.States())
	assert.Equal(t, StateIdle, f.engine.State())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short text", preview("  short\n text ", 20))
	assert.Equal(t, "abc...", preview("abcdef", 3))
	assert.Equal(t, "äöü...", preview("äöüß", 3))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "search", ModeSearch.String())
	assert.Equal(t, "chat", ModeChat.String())
	assert.Equal(t, "presenting-result", StatePresentingResult.String())
}
