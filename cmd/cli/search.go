package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/seiixin/gunwadex/internal/search"
	"github.com/seiixin/gunwadex/internal/util"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Query or rebuild the content search index",
	}

	var limit, offset int
	queryCmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search stories and articles",
		Long: `Search published stories and articles. Elasticsearch is used when
configured; otherwise the database is searched.

Examples:
  gunwadex search query "dragon"
  gunwadex search query "school romance" --limit 50`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				return fmt.Errorf("search query cannot be empty")
			}
			k, err := a.kernel(cmd.Context())
			if err != nil {
				return err
			}
			res, err := k.Search().Search(cmd.Context(), q, util.NewPage(limit, offset))
			if err != nil {
				return err
			}
			return a.print(res, func(w io.Writer) { printSearchResults(w, res) })
		},
	}
	queryCmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of results")
	queryCmd.Flags().IntVarP(&offset, "offset", "o", 0, "Result offset for pagination")

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Elasticsearch index from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.kernel(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := k.Search().Reindex(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(stats, func(w io.Writer) {
				fmt.Fprintf(w, "Indexed %d stories and %d articles (%d failed) in %s\n",
					stats.Stories, stats.Articles, stats.Failed, stats.Duration)
			})
		},
	}

	searchCmd.AddCommand(queryCmd, reindexCmd)
	return searchCmd
}

func printSearchResults(w io.Writer, res *search.Result) {
	if len(res.Hits) == 0 {
		fmt.Fprintf(w, "No results for %q\n", res.Query)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tTITLE\tSLUG\tAUTHOR")
	for _, h := range res.Hits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Kind, h.Title, h.Slug, h.Author)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d of %d results (%s)\n", len(res.Hits), res.Total, res.Backend)
}
