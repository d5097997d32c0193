package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestPublisherSendsEventsOverRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "peak:test:events")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewPublisher(client, nil, "peak:test")
	require.NoError(t, publisher.Publish(ctx, PaperEvent{Type: TypePaperEvaluated, PaperID: "65f1c0ffee0000000000abcd", Evaluated: true, Submissions: 3}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event PaperEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, TypePaperEvaluated, event.Type)
	require.Equal(t, "65f1c0ffee0000000000abcd", event.PaperID)
	require.True(t, event.Evaluated)
	require.Equal(t, 3, event.Submissions)
	require.NotEmpty(t, event.ID)
	require.NotEmpty(t, event.Source)
	require.False(t, event.SentAt.IsZero())
}

func TestPublisherWithoutBrokersIsNoop(t *testing.T) {
	publisher := NewPublisher(nil, nil, "")
	require.NoError(t, publisher.Publish(context.Background(), PaperEvent{Type: TypePaperReset}))
}
