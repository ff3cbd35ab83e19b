package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/salmonumbrella/paddock-cli/internal/api"
	"github.com/salmonumbrella/paddock-cli/internal/iocontext"
	"github.com/salmonumbrella/paddock-cli/internal/outfmt"
)

// DefaultConcurrency is the default number of requests in flight for get.
const DefaultConcurrency = 4

// fetchResult is the outcome of one path fetched by get.
type fetchResult struct {
	Path       string           `json:"path"`
	Status     api.Status       `json:"status"`
	StatusCode int              `json:"status_code"`
	Data       *json.RawMessage `json:"data,omitempty"`
	Detail     string           `json:"detail,omitempty"`
}

// fetchAll GETs every path with bounded parallelism. Results keep the order
// of paths. All requests share the client's session, so concurrent 401s
// renew once.
func fetchAll(ctx context.Context, client *api.Client, paths []string, concurrency int, opts api.RequestOptions) []fetchResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]fetchResult, len(paths))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			r := api.Execute[json.RawMessage](ctx, client, path, opts)
			results[i] = fetchResult{
				Path:       path,
				Status:     r.Status,
				StatusCode: r.StatusCode,
				Data:       r.Data,
				Detail:     r.Detail,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func newGetCmd() *cobra.Command {
	var concurrency int
	var query []string

	cmd := &cobra.Command{
		Use:   "get <path>...",
		Short: "Fetch several endpoints concurrently",
		Long: `Fetch several endpoints concurrently with GET.

Requests share one session: when several come back 401 together, the
session is renewed once and each request is replayed once.`,
		Example: `  paddock get /horses /owners /prices
  paddock get /horses/1 /horses/2 -o json --jq '.[].data.name'`,
		Args: cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}
			params, err := parseQueryParams(query)
			if err != nil {
				return err
			}
			opts := api.RequestOptions{Query: params}

			return withClient(cmd, func(client *api.Client) error {
				results := fetchAll(cmdContext(cmd), client, args, concurrency, opts)
				if err := printFetchResults(cmd, results); err != nil {
					return err
				}
				return firstFetchError(results)
			})
		}),
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", DefaultConcurrency, "Maximum requests in flight")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter added to every path as key=value (repeatable)")
	return cmd
}

func printFetchResults(cmd *cobra.Command, results []fetchResult) error {
	if isJSON(cmd) {
		return printJSON(cmd, results)
	}
	f := outfmt.NewFormatter(cmd.Context(), iocontext.GetIO(cmd.Context()).Out, cmd.ErrOrStderr())
	f.StartTable([]string{"PATH", "STATUS", "CODE", "DETAIL"})
	for _, r := range results {
		code := "-"
		if r.StatusCode != 0 {
			code = strconv.Itoa(r.StatusCode)
		}
		f.Row(r.Path, string(r.Status), code, r.Detail)
	}
	return f.EndTable()
}

// firstFetchError returns the error of the first failed path, for the exit code.
func firstFetchError(results []fetchResult) error {
	for _, r := range results {
		if r.Status == api.StatusError {
			return fmt.Errorf("%s: %w", r.Path, api.ResultError(api.Result[json.RawMessage]{
				Status:     r.Status,
				Detail:     r.Detail,
				StatusCode: r.StatusCode,
			}))
		}
	}
	return nil
}
