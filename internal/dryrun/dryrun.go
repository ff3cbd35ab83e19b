// Package dryrun previews requests without sending them.
package dryrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

type contextKey string

const dryRunKey contextKey = "dry_run_enabled"

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, dryRunKey, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(dryRunKey).(bool); ok {
		return v
	}
	return false
}

// Preview describes a request that would have been sent.
type Preview struct {
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Header   http.Header `json:"headers,omitempty"`
	Body     any         `json:"body,omitempty"`
	Parts    []string    `json:"parts,omitempty"`
	Renew    bool        `json:"renew"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Write outputs the preview to the writer
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "\n[DRY-RUN] Would send %s %s\n", p.Method, p.URL)
	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")

	if len(p.Header) > 0 {
		_, _ = fmt.Fprintln(w, "Headers:")
		names := make([]string, 0, len(p.Header))
		for name := range p.Header {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(p.Header[name], ", "))
		}
		_, _ = fmt.Fprintln(w)
	}

	if p.Body != nil {
		_, _ = fmt.Fprintln(w, "Body:")
		_, _ = fmt.Fprintf(w, "  %s\n\n", renderBody(p.Body))
	}

	if len(p.Parts) > 0 {
		_, _ = fmt.Fprintln(w, "Form parts:")
		for _, part := range p.Parts {
			_, _ = fmt.Fprintf(w, "  %s\n", part)
		}
		_, _ = fmt.Fprintln(w)
	}

	if !p.Renew {
		_, _ = fmt.Fprintln(w, "A 401 will be returned without renewing the session.")
		_, _ = fmt.Fprintln(w)
	}

	if len(p.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "Warnings:")
		for _, warning := range p.Warnings {
			_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")
	_, _ = fmt.Fprintln(w, "No request sent (dry-run mode)")
}

func renderBody(body any) string {
	switch b := body.(type) {
	case json.RawMessage:
		return string(b)
	case []byte:
		return string(b)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("%v", body)
	}
	return string(data)
}
