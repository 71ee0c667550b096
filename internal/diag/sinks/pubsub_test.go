package sinks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mediascribe/mediascribe/internal/diag"
	"github.com/mediascribe/mediascribe/internal/pipeline"
)

func newPubSubHarness(t *testing.T, topicID string) (*pstest.Server, *PubSubSink) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)

	_, err = client.CreateTopic(ctx, "diagnostics")
	require.NoError(t, err)

	sink := NewPubSubSinkWithClient(client, topicID)
	t.Cleanup(func() { _ = sink.Close(context.Background()) })
	return srv, sink
}

func TestPubSubSinkPublishesRecord(t *testing.T) {
	t.Parallel()

	srv, sink := newPubSubHarness(t, "diagnostics")

	rec := diag.Record{
		JobID: "job-1",
		Kind:  pipeline.KindScrapeTweet,
		Stage: "scrape_tweet",
		Class: pipeline.ClassExhausted,
		Attempts: []pipeline.Attempt{
			{Strategy: "bearer-token-1", Class: pipeline.ClassRecoverable, Err: "rate limited"},
			{Strategy: "bearer-token-2", Class: pipeline.ClassRecoverable, Err: "rate limited"},
		},
		Error: "all tokens rate limited",
		At:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Consume(context.Background(), rec))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "scrape_tweet", msgs[0].Attributes["stage"])
	require.Equal(t, "exhausted", msgs[0].Attributes["class"])

	var got diag.Record
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, rec.JobID, got.JobID)
	require.Equal(t, rec.Class, got.Class)
	require.Len(t, got.Attempts, 2)
	require.Equal(t, "bearer-token-1", got.Attempts[0].Strategy)
}

func TestPubSubSinkMissingTopic(t *testing.T) {
	t.Parallel()

	_, sink := newPubSubHarness(t, "absent")

	err := sink.Consume(context.Background(), diag.Record{JobID: "job-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "publish diagnostics record")
}
