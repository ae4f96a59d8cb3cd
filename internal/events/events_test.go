package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacabot/internal/models"
)

func TestRunEvent_Type(t *testing.T) {
	finished := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ok := RunEvent(models.StrategyRun{ID: "r1", StrategyID: "s1", Status: models.RunStatusOK, FinishedAt: &finished})
	assert.Equal(t, TypeRunCompleted, ok.Type)
	assert.True(t, ok.At.Equal(finished))
	assert.Equal(t, "r1", ok.Run.ID)

	bad := RunEvent(models.StrategyRun{ID: "r2", Status: models.RunStatusError})
	assert.Equal(t, TypeRunError, bad.Type)
}

func TestHub_FanoutAndDrop(t *testing.T) {
	h := NewHub(1, nil)
	ch1, cancel1, err := h.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := h.Subscribe(context.Background())
	require.NoError(t, err)

	h.Publish(context.Background(), Event{Type: TypeTick})
	h.Publish(context.Background(), Event{Type: TypeRunCompleted})

	var got Event
	require.NoError(t, json.Unmarshal(<-ch1, &got))
	assert.Equal(t, TypeTick, got.Type)
	require.NoError(t, json.Unmarshal(<-ch2, &got))
	assert.Equal(t, TypeTick, got.Type)
	assert.EqualValues(t, 2, h.Dropped())

	cancel2()
	cancel2()
	_, open := <-ch2
	assert.False(t, open)
	h.Publish(context.Background(), Event{Type: TypeTick})
	assert.Len(t, ch1, 1)
}

func TestMulti_SkipsNil(t *testing.T) {
	h := NewHub(4, nil)
	ch, cancel, _ := h.Subscribe(context.Background())
	defer cancel()
	Multi{nil, NopPublisher{}, h}.Publish(context.Background(), Event{Type: TypeTick})
	assert.Len(t, ch, 1)
}

func TestRedisPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("ALPACABOT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ALPACABOT_TEST_REDIS_URL not set")
	}
	client, err := NewRedisClient(url)
	require.NoError(t, err)
	defer client.Close()
	p := NewRedisPublisher(client, "alpacabot_test_events", time.Second, nil)
	require.NoError(t, p.Ping(context.Background()))

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	ch, cancel, err := p.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	p.Publish(ctx, Event{Type: TypeTick, Data: map[string]any{"due": 1}})
	select {
	case raw := <-ch:
		var got Event
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, TypeTick, got.Type)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}
