package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublishToFakeServer(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer func() { _ = srv.Close() }()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	admin, err := pubsub.NewClient(ctx, "jobsight", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "council-jobs")
	require.NoError(t, err)

	pub, err := New(ctx, "jobsight", "council-jobs", option.WithGRPCConn(conn))
	require.NoError(t, err)

	id, err := pub.Publish(ctx, "job.published", map[string]string{"id": "https://x.vic.gov.au/jobs/42"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	pub.topic.Stop()

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "job.published", msgs[0].Attributes["event"])
	var body map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, "https://x.vic.gov.au/jobs/42", body["id"])
}

func TestNewRequiresProjectAndTopic(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "", "council-jobs")
	require.Error(t, err)
	_, err = New(context.Background(), "jobsight", "")
	require.Error(t, err)
}

func TestUnconfiguredPublisher(t *testing.T) {
	t.Parallel()

	var p *Publisher
	_, err := p.Publish(context.Background(), "job.published", "x")
	require.Error(t, err)
	assert.NoError(t, p.Close())
}
