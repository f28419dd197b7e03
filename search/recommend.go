package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/poiesic/advisor/core"
)

// LibrarianPrompt is the system prompt sent with every recommendation.
const LibrarianPrompt = `You are a professional librarian providing concise reader's advisory.

Rules:
- Review the candidate items provided
- Select the best matches for the patron request
- Recommend at most 5 items
- Use bullet points
- No more than 2 sentences per item
- Use ONLY the provided items
- Do NOT invent books
- Prefer thematic and tonal similarity over exact word matches
- If none fit well, say so`

const (
	// NoResultsMessage is returned when the index has no neighbors for a query.
	NoResultsMessage = "No results found."

	// FallbackMessage is returned when the model produced no text.
	FallbackMessage = "Sorry, I couldn't put together a recommendation for that request. Try rephrasing it."
)

// Candidate is a catalog item offered to the model.
type Candidate struct {
	Title        string   `json:"title"`
	Author       string   `json:"author,omitempty"`
	Material     string   `json:"material,omitempty"`
	Year         string   `json:"year,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Subjects     string   `json:"subjects,omitempty"`
	Contributors []string `json:"contributors,omitempty"`
	Score        float32  `json:"score"`
}

// Recommendation is the answer to a chat-mode query.
type Recommendation struct {
	Query      string
	Text       string
	Candidates []*Candidate
}

// Recommend retrieves the candidate pool for query, prefilters it and asks
// the chat model for a recommendation. The generated text is returned
// verbatim.
func (e *Engine) Recommend(ctx context.Context, query string) (*Recommendation, error) {
	query = strings.TrimSpace(query)
	results, err := e.Search(ctx, query, e.config.CandidatePool)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{Query: query}
	if len(results) == 0 {
		rec.Text = NoResultsMessage
		return rec, nil
	}
	rec.Candidates = Prefilter(results, e.config.SummaryBonus, e.config.MaxCandidates)

	prompt, err := patronPrompt(query, rec.Candidates)
	if err != nil {
		return nil, err
	}

	e.enter(StateSummarizing)
	text, err := e.completer.Complete(ctx, LibrarianPrompt, prompt)
	if err != nil {
		e.logger.Error("error generating recommendation", "err", err)
		return nil, fmt.Errorf("generate recommendation: %w", err)
	}
	rec.Text = text
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("empty recommendation, using fallback", "query", query)
		rec.Text = FallbackMessage
	}
	return rec, nil
}

// Prefilter rescores results, adding bonus to records that have a summary,
// and keeps the best max.
func Prefilter(results []*core.SearchResult, bonus float32, max int) []*Candidate {
	candidates := make([]*Candidate, len(results))
	for i, r := range results {
		c := newCandidate(r.Record)
		c.Score = r.Score
		if r.Record.HasSummary() {
			c.Score += bonus
		}
		candidates[i] = c
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

func newCandidate(record *core.EnrichedRecord) *Candidate {
	material := record.ItemType
	if len(record.Materials) > 0 {
		material = record.Materials[0].Name
	}
	return &Candidate{
		Title:        record.Title,
		Author:       record.Author,
		Material:     material,
		Year:         record.PublicationDate,
		Summary:      record.Summary,
		Subjects:     record.Subjects,
		Contributors: record.Contributors,
	}
}

func patronPrompt(query string, candidates []*Candidate) (string, error) {
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render candidates: %w", err)
	}
	return "Patron request:\n" + query + "\n\nCandidate items from the library catalog:\n" + string(data), nil
}
