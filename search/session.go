package search

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/advisor/core"
)

// Mode selects what a Session does with each query.
type Mode int

const (
	// ModeSearch prints the raw top-K neighbors.
	ModeSearch Mode = iota
	// ModeChat prints a generated recommendation.
	ModeChat
)

func (m Mode) String() string {
	if m == ModeChat {
		return "chat"
	}
	return "search"
}

const summaryPreview = 200

// Session is the interactive query loop.
type Session struct {
	engine *Engine
	mode   Mode
	in     *bufio.Scanner
	out    io.Writer
	prompt string
	topK   int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPrompt sets the input prompt. Default is "> ".
func WithPrompt(prompt string) SessionOption {
	return func(s *Session) {
		s.prompt = prompt
	}
}

// WithTopK overrides the engine's TopK in search mode.
func WithTopK(k int) SessionOption {
	return func(s *Session) {
		s.topK = k
	}
}

// NewSession creates a session reading queries from in and writing answers
// to out.
func NewSession(engine *Engine, mode Mode, in io.Reader, out io.Writer, opts ...SessionOption) *Session {
	s := &Session{
		engine: engine,
		mode:   mode,
		in:     bufio.NewScanner(in),
		out:    out,
		prompt: "> ",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves queries until an exit command, end of input or ctx is done.
// A failed query is reported and the loop continues. Cancellation while
// waiting for input ends the session like an exit command; cancellation
// during a query returns the context error. Returns ErrIndexNotBuilt if the
// index is missing.
func (s *Session) Run(ctx context.Context) error {
	meta, err := s.engine.CheckIndex(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Library advisor (%s mode, %d items indexed). Type 'exit' or 'quit' to leave.\n",
		s.mode, meta.Count)

	stop := make(chan struct{})
	defer close(stop)
	lines, readErr := s.readLines(stop)

	defer s.engine.enter(StateIdle)
	for {
		if ctx.Err() != nil {
			fmt.Fprintln(s.out)
			return nil
		}

		s.engine.enter(StateAwaitingQuery)
		fmt.Fprint(s.out, s.prompt)

		var text string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case next, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				return *readErr
			}
			text = next
		}

		line := strings.TrimSpace(text)
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			return nil
		}

		if err := s.answer(ctx, line); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			s.engine.logger.Warn("query failed", "query", line, "err", err)
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		s.engine.enter(StateIdle)
	}
}

// readLines scans input on its own goroutine so a blocked read never holds
// up cancellation. The channel is closed at end of input; *err is set
// before the close. The goroutine exits once stop is closed, or after its
// current read returns.
func (s *Session) readLines(stop <-chan struct{}) (<-chan string, *error) {
	lines := make(chan string)
	var readErr error
	go func() {
		defer close(lines)
		for s.in.Scan() {
			select {
			case lines <- s.in.Text():
			case <-stop:
				return
			}
		}
		readErr = s.in.Err()
	}()
	return lines, &readErr
}

func (s *Session) answer(ctx context.Context, query string) error {
	if s.mode == ModeChat {
		rec, err := s.engine.Recommend(ctx, query)
		if err != nil {
			return err
		}
		s.engine.enter(StatePresentingResult)
		fmt.Fprintf(s.out, "\n%s\n\n", rec.Text)
		return nil
	}

	results, err := s.engine.Search(ctx, query, s.topK)
	if err != nil {
		return err
	}
	s.engine.enter(StatePresentingResult)
	writeResults(s.out, results)
	return nil
}

func isExitCommand(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}
	return false
}

func writeResults(w io.Writer, results []*core.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, NoResultsMessage)
		return
	}
	for i, r := range results {
		rec := r.Record
		fmt.Fprintf(w, "%d. %s", i+1, rec.Title)
		if rec.Author != "" {
			fmt.Fprintf(w, " by %s", rec.Author)
		}
		fmt.Fprintf(w, " [%s", newCandidate(rec).Material)
		if rec.PublicationDate != "" {
			fmt.Fprintf(w, ", %s", rec.PublicationDate)
		}
		fmt.Fprintf(w, "] (score %.3f)\n", r.Score)

		summary := rec.Summary
		if summary == "" {
			summary = rec.Description
		}
		if summary != "" {
			fmt.Fprintf(w, "   %s\n", preview(summary, summaryPreview))
		}
	}
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
