package events

import (
	"context"

	"github.com/Dosada05/tournament-bracket/brackets"
	"github.com/Dosada05/tournament-bracket/models"
)

// HubPublisher forwards events to the websocket room of their tournament.
type HubPublisher struct {
	hub *brackets.Hub
}

func NewHubPublisher(hub *brackets.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, events ...models.Event) {
	for _, e := range events {
		room := brackets.RoomForTournament(e.TournamentID)
		p.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type:    string(e.Type),
			Payload: e,
			RoomID:  room,
		})
	}
}
