package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/paddock-cli/internal/api"
	"github.com/salmonumbrella/paddock-cli/internal/iocontext"
)

// requestFlags are shared by request and upload.
type requestFlags struct {
	method      string
	headers     []string
	query       []string
	credentials string
	noRenew     bool
}

func (f *requestFlags) register(cmd *cobra.Command, defaultMethod string) {
	cmd.Flags().StringVarP(&f.method, "method", "X", defaultMethod, "HTTP method")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	cmd.Flags().StringArrayVarP(&f.query, "query", "q", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&f.credentials, "credentials", "default", "Cookie policy: default|include|omit")
	cmd.Flags().BoolVar(&f.noRenew, "no-renew", false, "Return a 401 as-is instead of renewing the session")
}

// options converts the flags into request options.
func (f *requestFlags) options() (api.RequestOptions, error) {
	method := strings.ToUpper(strings.TrimSpace(f.method))
	switch method {
	case "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return api.RequestOptions{}, fmt.Errorf("invalid HTTP method %q: must be one of GET, POST, PUT, PATCH, DELETE", f.method)
	}
	header, err := parseHeaders(f.headers)
	if err != nil {
		return api.RequestOptions{}, err
	}
	query, err := parseQueryParams(f.query)
	if err != nil {
		return api.RequestOptions{}, err
	}
	credentials, err := parseCredentials(f.credentials)
	if err != nil {
		return api.RequestOptions{}, err
	}
	return api.RequestOptions{
		Method:      method,
		Header:      header,
		Query:       query,
		Credentials: credentials,
		SkipRenewal: f.noRenew,
	}, nil
}

func parseQueryParams(values []string) (url.Values, error) {
	if len(values) == 0 {
		return nil, nil
	}
	params := url.Values{}
	for _, v := range values {
		key, value, err := parseField(v)
		if err != nil {
			return nil, err
		}
		params.Add(key, value)
	}
	return params, nil
}

func parseCredentials(value string) (api.Credentials, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "default":
		return api.CredentialsDefault, nil
	case "include":
		return api.CredentialsInclude, nil
	case "omit":
		return api.CredentialsOmit, nil
	default:
		return api.CredentialsDefault, fmt.Errorf("invalid --credentials %q: must be default, include or omit", value)
	}
}

func newRequestCmd() *cobra.Command {
	var rf requestFlags
	var fields []string
	var rawFields []string
	var inputFile string
	var jsonBody string

	cmd := &cobra.Command{
		Use:     "request <path>",
		Aliases: []string{"req", "api"},
		Short:   "Send a JSON request to any backend endpoint",
		Long: `Send a JSON request to any backend endpoint.

The path is relative to the resolved backend origin (see 'paddock origin').
A 401 renews the session once and replays the request once.`,
		Example: `  # GET request (default)
  paddock request /horses

  # Query parameters
  paddock request /horses -q page=2 -q size=50

  # POST with fields
  paddock request /horses -X POST -f name=Comet -F age=4

  # Inline JSON body
  paddock request /horses/12 -X PATCH -d '{"active":false}'

  # Read body from stdin
  echo '{"name":"Comet"}' | paddock request /horses -X POST -i -

  # Filter the response
  paddock request /horses --jq '.items[].name'

  # Show what would be sent
  paddock request /horses -X POST -f name=Comet --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			opts, err := rf.options()
			if err != nil {
				return err
			}
			if jsonBody != "" && inputFile != "" {
				return fmt.Errorf("cannot use both --data and --input flags")
			}
			body, err := buildRequestBody(cmd, fields, rawFields, inputFile, jsonBody)
			if err != nil {
				return err
			}
			if body != nil {
				opts.Body = body
			}

			return withClient(cmd, func(client *api.Client) error {
				if ok, err := maybeDryRun(cmd, requestPreview(client, args[0], opts)); ok {
					return err
				}
				result := api.Execute[json.RawMessage](cmdContext(cmd), client, args[0], opts)
				if err := api.ResultError(result); err != nil {
					return err
				}
				return printData(cmd, result.Data)
			})
		}),
	}

	rf.register(cmd, "GET")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Body field as key=value (string)")
	cmd.Flags().StringArrayVarP(&rawFields, "raw-field", "F", nil, "Body field as key=value (JSON parsed)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Read the JSON body from a file (use - for stdin)")
	cmd.Flags().StringVarP(&jsonBody, "data", "d", "", "Request body as inline JSON")
	flagAlias(cmd.Flags(), "data", "body")

	return cmd
}

// buildRequestBody assembles the JSON body. A body given with --data or
// --input is sent unchanged unless fields are added, which requires it to
// be an object.
func buildRequestBody(cmd *cobra.Command, fields, rawFields []string, inputFile, jsonBody string) (any, error) {
	var base []byte
	switch {
	case jsonBody != "":
		base = []byte(jsonBody)
	case inputFile != "":
		var err error
		if inputFile == "-" {
			base, err = io.ReadAll(iocontext.GetIO(cmd.Context()).In)
		} else {
			base, err = os.ReadFile(inputFile)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
	}
	if len(base) > 0 && !json.Valid(base) {
		return nil, fmt.Errorf("invalid JSON body: must be valid JSON")
	}
	if len(fields) == 0 && len(rawFields) == 0 {
		if len(base) == 0 {
			return nil, nil
		}
		return json.RawMessage(base), nil
	}

	body := make(map[string]any)
	if len(base) > 0 {
		if err := json.Unmarshal(base, &body); err != nil {
			return nil, fmt.Errorf("fields can only be combined with a JSON object body: %w", err)
		}
	}
	for _, field := range fields {
		key, value, err := parseField(field)
		if err != nil {
			return nil, err
		}
		body[key] = value
	}
	for _, field := range rawFields {
		key, value, err := parseRawField(field)
		if err != nil {
			return nil, err
		}
		body[key] = value
	}
	return body, nil
}
