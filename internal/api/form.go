package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/salmonumbrella/paddock-cli/internal/debug"
)

// Form is an ordered multipart payload of text fields and files.
type Form struct {
	parts []formPart
}

type formPart struct {
	name        string
	value       string
	filename    string
	contentType string
	content     []byte
	file        bool
}

// AddField appends a text field.
func (f *Form) AddField(name, value string) *Form {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// AddFile appends a file part. An empty contentType defaults to
// application/octet-stream.
func (f *Form) AddFile(name, filename, contentType string, content []byte) *Form {
	f.parts = append(f.parts, formPart{
		name:        name,
		filename:    filename,
		contentType: contentType,
		content:     content,
		file:        true,
	})
	return f
}

// Len returns the number of parts.
func (f *Form) Len() int {
	if f == nil {
		return 0
	}
	return len(f.parts)
}

// Describe lists the parts in order, as "name" for fields and
// "name=@filename" for files.
func (f *Form) Describe() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.parts))
	for _, p := range f.parts {
		if p.file {
			out = append(out, fmt.Sprintf("%s=@%s (%d bytes)", p.name, p.filename, len(p.content)))
			continue
		}
		out = append(out, p.name)
	}
	return out
}

// encode writes the form and returns the body with its Content-Type.
func (f *Form) encode() ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if f != nil {
		for _, p := range f.parts {
			if !p.file {
				if err := writer.WriteField(p.name, p.value); err != nil {
					return nil, "", fmt.Errorf("failed to write field %s: %w", p.name, err)
				}
				continue
			}
			part, err := writer.CreatePart(fileHeader(p))
			if err != nil {
				return nil, "", fmt.Errorf("failed to create form file %s: %w", p.filename, err)
			}
			if _, err := part.Write(p.content); err != nil {
				return nil, "", fmt.Errorf("failed to write file content %s: %w", p.filename, err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileHeader(p formPart) textproto.MIMEHeader {
	contentType := p.contentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(p.name), quoteEscaper.Replace(p.filename)))
	h.Set("Content-Type", contentType)
	return h
}

// ExecuteForm performs a multipart request against path with the same renewal
// and replay behaviour as Execute. The Content-Type is always the multipart
// type carrying the boundary, whatever the caller passes.
func ExecuteForm[T any](ctx context.Context, c *Client, path string, form *Form, opts RequestOptions) Result[T] {
	method := opts.Method
	if method == "" {
		method = http.MethodPost
	}

	body, contentType, err := form.encode()
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("failed to encode form", "path", path, "error", err)
		}
		return errorResult[T](DetailNetworkError, 0)
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header = mergeHeader(header, opts.Header)
	header.Set("Content-Type", contentType)

	return run[T](ctx, c, call{
		method:      method,
		path:        AddQueryParams(ensureLeadingSlash(path), opts.Query),
		header:      header,
		body:        body,
		credentials: opts.Credentials,
		skipRenewal: opts.SkipRenewal,
	})
}
