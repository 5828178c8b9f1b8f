//go:build integration

package journal_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"groundtruth/internal/journal"
	"groundtruth/pkg/testutil/containers"
)

func TestKafkaSink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rp := containers.GetManager().GetRedpanda(t)

	const topic = "groundtruth.journal.test"
	sink, err := journal.NewKafkaSink(ctx, rp.Brokers, topic)
	require.NoError(t, err)
	defer sink.Close()

	event := journal.Event{
		Time:     time.Now().UTC(),
		RunID:    "run-kafka",
		Type:     journal.TypeFixtureCreated,
		Kind:     "customer",
		EntityID: "c-99",
	}
	require.NoError(t, sink.Append(ctx, event))

	// Creating the sink twice must tolerate the existing topic.
	again, err := journal.NewKafkaSink(ctx, rp.Brokers, topic)
	require.NoError(t, err)
	defer again.Close()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.NotEmpty(t, records)

	var got journal.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, "run-kafka", got.RunID)
	assert.Equal(t, journal.TypeFixtureCreated, got.Type)
	assert.Equal(t, string(records[0].Key), got.RunID)
}
