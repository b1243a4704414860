package gcs

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, handler roundTripperFunc) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: handler}),
	)
	require.NoError(t, err)
	return client
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client := newTestClient(t, func(*http.Request) (*http.Response, error) { return nil, io.EOF })
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []string
		body string
	)
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		payload, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, r.URL.Path)
		body = string(payload)
		mu.Unlock()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"name":"records/a.json","bucket":"crawl"}`)),
			Header:     http.Header{"Content-Type": {"application/json"}},
			Request:    r,
		}, nil
	})
	store, err := New(client, Config{Bucket: "crawl"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "records/a.json", "application/json", strings.NewReader(`{"id":"1"}`))
	require.NoError(t, err)
	require.Equal(t, "gs://crawl/records/a.json", uri)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	require.Contains(t, seen[0], "/b/crawl/o")
	require.Contains(t, body, `{"id":"1"}`)

	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader(""))
	require.Error(t, err)
}
