// Package datasource abstracts where the raw bytes of an input table come
// from. Local paths are opened from disk; http(s) URLs are fetched with the
// retrying HTTP client.
package datasource

import (
	"context"
	"io"
	"strings"

	"socioprep/internal/datasource/file"
	"socioprep/internal/datasource/httpds"
)

// Source opens a stream of input bytes. Callers must close the stream.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// IsURL reports whether path should be fetched over HTTP.
func IsURL(path string) bool {
	p := strings.ToLower(strings.TrimSpace(path))
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// For returns the Source for path. client is used for URLs; when nil a
// client with default settings is created.
func For(path string, client *httpds.Client) Source {
	if IsURL(path) {
		if client == nil {
			client = httpds.NewClient(httpds.Config{})
		}
		return httpds.NewSource(client, strings.TrimSpace(path))
	}
	return file.NewLocal(path)
}
