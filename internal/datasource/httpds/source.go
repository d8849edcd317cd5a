package httpds

import (
	"context"
	"io"
)

// Source adapts a Client and URL to datasource.Source.
type Source struct {
	client *Client
	url    string
}

// NewSource binds url to client.
func NewSource(client *Client, url string) *Source {
	return &Source{client: client, url: url}
}

// Open fetches the URL and returns the response body.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
