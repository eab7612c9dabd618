package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/versebase/internal/sqlbuild"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Limit int
}

// searchHit is the rendered form of one result.
type searchHit struct {
	Reference   string  `json:"reference"`
	Body        string  `json:"body"`
	Translation string  `json:"translation"`
	Score       float64 `json:"score"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over verse bodies",
		Long: `Search verse bodies using full-text match syntax. If the match exceeds
its time budget the command falls back to a bounded substring scan, so a
search returns results or a timeout error, never hangs.

Example:
  versebase search shepherd
  versebase search '"green pastures"' --limit 5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, opts *SearchOptions, query string) error {
	ctx := cmdContext(cmd)

	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.index.Search(ctx, query, opts.Limit)
	if err != nil {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		_ = f.Error(err)
		return WrapExitError(ExitFailure, "search failed", err)
	}

	bookNames, err := bookNamesByID(ctx, a)
	if err != nil {
		return WrapExitError(ExitFailure, "resolve book names", err)
	}

	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		name := bookNames[r.BookID]
		if name == "" {
			name = fmt.Sprintf("book %d", r.BookID)
		}
		hits = append(hits, searchHit{
			Reference:   fmt.Sprintf("%s %d:%d", name, r.Chapter, r.Verse),
			Body:        r.Body,
			Translation: r.Translation,
			Score:       r.Score,
		})
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.Format == "json" {
		return f.Success(hits)
	}
	if len(hits) == 0 {
		return f.Success("no results")
	}
	for _, h := range hits {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)  %s\n", h.Reference, h.Translation, h.Body)
	}
	return nil
}

func bookNamesByID(ctx context.Context, a *app) (map[int64]string, error) {
	rows, err := a.handle.Query(ctx, "books", sqlbuild.QuerySpec{
		Columns: []string{"id", "name"},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(rows))
	for _, r := range rows {
		id, _ := r["id"].(int64)
		name, _ := r["name"].(string)
		out[id] = name
	}
	return out, nil
}
