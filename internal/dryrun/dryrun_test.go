package dryrun

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestWithDryRun(t *testing.T) {
	ctx := WithDryRun(context.Background(), true)
	if !IsEnabled(ctx) {
		t.Error("IsEnabled should return true when dry-run is enabled")
	}
}

func TestIsEnabled_DefaultFalse(t *testing.T) {
	if IsEnabled(context.Background()) {
		t.Error("IsEnabled should return false by default")
	}
}

func TestWithDryRun_Disabled(t *testing.T) {
	ctx := WithDryRun(context.Background(), false)
	if IsEnabled(ctx) {
		t.Error("IsEnabled should return false when dry-run is explicitly disabled")
	}
}

func TestPreview_Write(t *testing.T) {
	p := &Preview{
		Method: "POST",
		URL:    "http://localhost:8001/api/horses",
		Header: http.Header{"X-Trace": {"abc"}, "Accept": {"text/plain"}},
		Body:   map[string]any{"name": "Comet"},
		Renew:  true,
	}

	var buf bytes.Buffer
	p.Write(&buf)
	output := buf.String()

	for _, want := range []string{
		"[DRY-RUN] Would send POST http://localhost:8001/api/horses",
		"  Accept: text/plain\n  X-Trace: abc\n",
		`{"name":"Comet"}`,
		"No request sent",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("preview missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "without renewing") {
		t.Error("renewal note should only appear when renewal is off")
	}
}

func TestPreview_WriteRawBodyAndParts(t *testing.T) {
	p := &Preview{
		Method:   "PUT",
		URL:      "http://x/imports",
		Body:     json.RawMessage(`[1,2]`),
		Parts:    []string{"kind", "data=@horses.json (12 bytes)"},
		Warnings: []string{"no session saved"},
	}

	var buf bytes.Buffer
	p.Write(&buf)
	output := buf.String()

	for _, want := range []string{"[1,2]", "Form parts:", "data=@horses.json", "without renewing", "! no session saved"} {
		if !strings.Contains(output, want) {
			t.Errorf("preview missing %q:\n%s", want, output)
		}
	}
}

func TestPreview_JSON(t *testing.T) {
	data, err := json.Marshal(&Preview{Method: "GET", URL: "http://x/a", Renew: true})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"method":"GET","url":"http://x/a","renew":true}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}
