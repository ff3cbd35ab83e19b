package cmd

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/paddock-cli/internal/api"
)

func newUploadCmd() *cobra.Command {
	var rf requestFlags
	var fields []string
	var files []string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Send a multipart form with fields and files",
		Long: `Send a multipart/form-data request.

The Content-Type carries the multipart boundary and cannot be overridden.
A 401 renews the session once and replays the same form once.`,
		Example: `  paddock upload /horses/12/documents --file document=@passport.pdf -f kind=passport
  paddock upload /imports -X PUT --file data=@horses.csv`,
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			opts, err := rf.options()
			if err != nil {
				return err
			}
			form, err := buildForm(fields, files)
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *api.Client) error {
				preview := requestPreview(client, args[0], opts)
				preview.Parts = form.Describe()
				if ok, err := maybeDryRun(cmd, preview); ok {
					return err
				}
				result := api.ExecuteForm[json.RawMessage](cmdContext(cmd), client, args[0], form, opts)
				if err := api.ResultError(result); err != nil {
					return err
				}
				return printData(cmd, result.Data)
			})
		}),
	}

	rf.register(cmd, "POST")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Form field as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "File part as field=@path (repeatable)")
	return cmd
}

// buildForm reads fields and files into a form, in flag order: fields first.
func buildForm(fields, files []string) (*api.Form, error) {
	if len(fields) == 0 && len(files) == 0 {
		return nil, fmt.Errorf("at least one --field or --file is required")
	}
	form := &api.Form{}
	for _, field := range fields {
		key, value, err := parseField(field)
		if err != nil {
			return nil, err
		}
		form.AddField(key, value)
	}
	for _, arg := range files {
		name, path, ok := strings.Cut(arg, "=@")
		if !ok || strings.TrimSpace(name) == "" || path == "" {
			return nil, fmt.Errorf("invalid file format %q: must be field=@path", arg)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		form.AddFile(name, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), content)
	}
	return form, nil
}
