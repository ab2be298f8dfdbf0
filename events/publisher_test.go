package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Dosada05/tournament-bracket/brackets"
	"github.com/Dosada05/tournament-bracket/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPublisher struct {
	batches int
	events  []models.Event
}

func (c *countingPublisher) Publish(_ context.Context, events ...models.Event) {
	c.batches++
	c.events = append(c.events, events...)
}

func sampleEvents() []models.Event {
	matchID := int64(7)
	champion := "p1"
	return []models.Event{
		{ID: "e-1", Type: models.EventMatchCompleted, TournamentID: "t-1", MatchID: &matchID},
		{ID: "e-2", Type: models.EventTournamentCompleted, TournamentID: "t-1", ChampionID: &champion},
	}
}

func TestMultiFansOut(t *testing.T) {
	first, second := &countingPublisher{}, &countingPublisher{}
	multi := Multi{first, nil, second}

	multi.Publish(context.Background())
	assert.Equal(t, 0, first.batches)

	multi.Publish(context.Background(), sampleEvents()...)
	assert.Equal(t, 1, first.batches)
	assert.Equal(t, 1, second.batches)
	assert.Len(t, second.events, 2)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	LogPublisher{Logger: logger, Level: slog.LevelInfo}.Publish(context.Background(), sampleEvents()...)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "bracket event", entry["msg"])
	assert.Equal(t, "match_completed", entry["type"])
	assert.Equal(t, float64(7), entry["match_id"])

	require.NoError(t, json.Unmarshal(lines[1], &entry))
	assert.Equal(t, "p1", entry["champion_id"])
}

func TestHubPublisherWithoutListeners(t *testing.T) {
	hub := brackets.NewHub(nil)
	publisher := NewHubPublisher(hub)
	assert.NotPanics(t, func() {
		publisher.Publish(context.Background(), sampleEvents()...)
	})
	assert.Equal(t, 0, hub.RoomSize(brackets.RoomForTournament("t-1")))
}

func TestRedisChannel(t *testing.T) {
	assert.Equal(t, "bracket:events:t-1", RedisChannel("t-1"))

	_, err := ConnectRedis(context.Background(), "not-a-url")
	assert.Error(t, err)
}
