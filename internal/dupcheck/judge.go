package dupcheck

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lingoflow/internal/logging"
	"lingoflow/internal/services/bilibili"
	"lingoflow/internal/services/llm"
)

// Translator is the language-model surface the judge relies on.
type Translator interface {
	TranslateTitle(ctx context.Context, title string) (string, error)
	JudgeDuplicate(ctx context.Context, originalTitle, translatedTitle string, candidates []llm.DuplicateCandidate) (llm.DuplicateVerdict, error)
}

// Searcher looks up existing uploads for a query title.
type Searcher interface {
	Query(ctx context.Context, text string) ([]bilibili.SearchResult, error)
}

// Verdict is the judge's decision for one candidate title.
type Verdict struct {
	Duplicate  bool
	Reason     string
	Matched    []llm.DuplicateCandidate
	QueryTitle string
	Candidates []bilibili.SearchResult
}

// Judge decides whether a discovered video already exists on the target
// platform. Every dependency failure degrades to a non-duplicate verdict
// with the failure recorded in Reason, so an outage disables duplicate
// filtering instead of blocking the pipeline.
type Judge struct {
	translator Translator
	searcher   Searcher
	logger     *slog.Logger
}

// New constructs a judge. A nil logger is replaced with a no-op logger.
func New(translator Translator, searcher Searcher, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Judge{
		translator: translator,
		searcher:   searcher,
		logger:     logging.NewComponentLogger(logger, "dupcheck"),
	}
}

// Check translates the title, gathers search candidates, and asks the model
// for a verdict. It never returns an error.
func (j *Judge) Check(ctx context.Context, title string) Verdict {
	query := title
	if j.translator != nil {
		zh, err := j.translator.TranslateTitle(ctx, title)
		switch {
		case err != nil:
			j.logger.Warn("title translation failed, querying with original", logging.Error(err))
		case strings.TrimSpace(zh) != "":
			query = zh
		}
	}

	var candidates []bilibili.SearchResult
	if j.searcher != nil {
		results, err := j.searcher.Query(ctx, query)
		if err != nil {
			j.logger.Warn("duplicate lookup failed, continuing with empty candidate list", logging.Error(err))
		} else {
			candidates = results
		}
	}

	verdict := Verdict{QueryTitle: query, Candidates: candidates}
	if j.translator == nil {
		return verdict
	}
	decision, err := j.translator.JudgeDuplicate(ctx, title, query, toCandidates(candidates))
	if err != nil {
		verdict.Reason = fmt.Sprintf("duplicate judge unavailable: %v", err)
		return verdict
	}
	verdict.Duplicate = decision.Duplicate
	verdict.Reason = decision.Reason
	verdict.Matched = decision.Matched
	return verdict
}

func toCandidates(results []bilibili.SearchResult) []llm.DuplicateCandidate {
	candidates := make([]llm.DuplicateCandidate, 0, len(results))
	for _, result := range results {
		candidates = append(candidates, llm.DuplicateCandidate{Title: result.Title, URL: result.URL})
	}
	return candidates
}
