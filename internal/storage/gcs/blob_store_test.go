package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newOfflineClient(t *testing.T) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint("http://127.0.0.1:1/storage/v1/"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "feeds"})
	assert.ErrorContains(t, err, "storage client is required")

	_, err = New(newOfflineClient(t), Config{})
	assert.ErrorContains(t, err, "bucket name is required")

	store, err := New(newOfflineClient(t), Config{Bucket: "feeds"})
	require.NoError(t, err)
	assert.Equal(t, "feeds", store.bucket)
}

func TestEmptyPathRejected(t *testing.T) {
	t.Parallel()

	store, err := New(newOfflineClient(t), Config{Bucket: "feeds"})
	require.NoError(t, err)

	_, err = store.GetObject(context.Background(), " ")
	assert.ErrorContains(t, err, "path is required")
	_, err = store.PutObject(context.Background(), "", "application/rss+xml", nil)
	assert.ErrorContains(t, err, "path is required")
}
