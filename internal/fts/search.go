package fts

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/versebase/internal/engine"
)

// Result is one search hit. Score is the FTS5 rank negated so larger is
// better; substring-fallback hits carry Score 0.
type Result struct {
	VerseID     int64
	BookID      int64
	Chapter     int64
	Verse       int64
	Body        string
	Translation string
	Score       float64
}

const matchSQL = `
	SELECT verses.id, verses.book_id, verses.chapter, verses.verse,
	       verses.body, verses.translation, verses_fts.rank
	FROM verses_fts
	JOIN verses ON verses.id = verses_fts.rowid
	WHERE verses_fts MATCH ?
	ORDER BY verses_fts.rank, verses.id ASC
	LIMIT ?
`

const fallbackSQL = `
	SELECT id, book_id, chapter, verse, body, translation
	FROM verses
	WHERE body LIKE ? ESCAPE '\'
	ORDER BY id ASC
	LIMIT ?
`

// Search runs a match query against the shadow table under the configured
// time budget. If the budget is exceeded, it deterministically falls back
// to a bounded substring scan over the base table - logged, never silently
// retried. Only when the fallback also runs out of time does the caller see
// a SEARCH_TIMEOUT error, so a search never hangs indefinitely.
//
// A syntactically invalid match expression is a QUERY_MALFORMED error, not
// a timeout.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}

	mctx, cancel := context.WithTimeout(ctx, ix.budget)
	defer cancel()

	rows, err := ix.h.RawQuery(mctx, matchSQL, query, limit)
	switch {
	case err == nil:
		return matchResults(rows)
	case ctx.Err() != nil:
		// The caller's own context ended, not our budget. Propagate it
		// instead of misreporting a fallback or timeout.
		return nil, ctx.Err()
	case timedOut(mctx, err):
		ix.logger.Warn("full-text search exceeded budget, falling back to substring scan",
			zap.String("query", query),
			zap.Duration("budget", ix.budget))
		return ix.fallback(ctx, query, limit)
	default:
		return nil, err
	}
}

// fallback is the substring scan over the base table, under its own budget.
func (ix *Index) fallback(ctx context.Context, query string, limit int) ([]Result, error) {
	fctx, cancel := context.WithTimeout(ctx, ix.fallbackBudget)
	defer cancel()

	pattern := "%" + escapeLike(query) + "%"
	rows, err := ix.h.RawQuery(fctx, fallbackSQL, pattern, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if timedOut(fctx, err) {
			return nil, engine.NewSearchTimeoutError(query, ix.budget+ix.fallbackBudget)
		}
		return nil, err
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, Result{
			VerseID:     r["id"].(int64),
			BookID:      r["book_id"].(int64),
			Chapter:     r["chapter"].(int64),
			Verse:       r["verse"].(int64),
			Body:        r["body"].(string),
			Translation: r["translation"].(string),
		})
	}
	return out, nil
}

func matchResults(rows []engine.Row) ([]Result, error) {
	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		res := Result{
			VerseID:     r["id"].(int64),
			BookID:      r["book_id"].(int64),
			Chapter:     r["chapter"].(int64),
			Verse:       r["verse"].(int64),
			Body:        r["body"].(string),
			Translation: r["translation"].(string),
		}
		// FTS5 rank is negative; closer to zero is worse.
		if rank, ok := r["rank"].(float64); ok {
			res.Score = -rank
		}
		out = append(out, res)
	}
	return out, nil
}

// timedOut reports whether err is the budget context expiring rather than
// a real query failure. Callers rule out the parent context first, so a
// non-nil budget context error here means the budget itself.
func timedOut(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// The driver may surface an interrupt instead of the context error.
	return ctx.Err() != nil
}

// escapeLike escapes LIKE metacharacters so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
