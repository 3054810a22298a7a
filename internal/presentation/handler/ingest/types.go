package ingest

import "github.com/farmsight/relay/internal/infrastructure/ws"

type ackResponse struct {
	Accepted bool         `json:"accepted"`
	Event    ws.EventKind `json:"event"`
	Room     ws.RoomKey   `json:"room"`
}
