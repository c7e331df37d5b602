package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/search"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

var (
	searchArea   string
	searchLimit  int
	searchOffset int
	searchJSON   bool
	listAreas    bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Look up a name and/or area in the registry",
	Long: `Search ranks registry cases by name similarity. Masked forms are matched
too: searching 王小明 also finds 王○明 and 王○○. Without a name the most
recent cases are listed, optionally filtered by area.

Example:
  kidregistry search 王小明
  kidregistry search 陳○華 --area 台中市
  kidregistry search --area 高雄市 --limit 30
  kidregistry search --areas`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchArea, "area", "", "county or city filter (全部地區 for all)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", search.DefaultLimit, "results per page")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the raw response as JSON")
	searchCmd.Flags().BoolVar(&listAreas, "areas", false, "list the selectable areas and exit")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if listAreas {
		for _, a := range taxonomy.Areas() {
			fmt.Fprintln(cmd.OutOrStdout(), a)
		}
		return nil
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	r, err := a.resolver(ctx)
	if err != nil {
		return err
	}
	q := model.SearchQuery{Area: searchArea, Limit: searchLimit, Offset: searchOffset}
	if len(args) == 1 {
		q.Name = args[0]
	}
	resp, err := r.Search(ctx, q)
	if err != nil {
		return err
	}

	if searchJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printSearch(cmd.OutOrStdout(), resp)
	return nil
}

func printSearch(w io.Writer, resp model.SearchResponse) {
	if !resp.Found {
		fmt.Fprintln(w, resp.Disclaimer)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCORE\tMATCH\tROLE\tLOCATION\tDATE\tRISKS\tSOURCE")
	for _, r := range resp.Results {
		c := r.Case
		risks := make([]string, len(c.RiskTags))
		for i, t := range c.RiskTags {
			risks[i] = string(t)
		}
		verified := ""
		if !c.Verified {
			verified = " (unverified)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s%s\n",
			c.MaskedName, r.Similarity, r.MatchType, c.Role, c.Location, c.CaseDate,
			strings.Join(risks, ","), c.SourceLink, verified)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d of %d", len(resp.Results), resp.Total)
	if resp.HasMore {
		fmt.Fprint(w, " (more with --offset)")
	}
	fmt.Fprintf(w, "\n%s\n", resp.Disclaimer)
}
